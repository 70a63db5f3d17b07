package segmentation

import (
	"math"
	"testing"

	"github.com/grailbio/cnv/internal/cnvtest"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirror(t *testing.T) {
	for _, test := range []struct {
		j, n, want int
	}{
		{0, 5, 0},
		{4, 5, 4},
		{-1, 5, 0},
		{-3, 5, 2},
		{5, 5, 4},
		{7, 5, 2},
		{-4, 2, 0},
	} {
		expect.EQ(t, mirror(test.j, test.n), test.want, "mirror(%d, %d)", test.j, test.n)
	}
}

func TestHaarConv(t *testing.T) {
	x := []float64{0, 0, 0, 0, 2, 2, 2, 2}
	conv := HaarConv(x, nil, 2)
	require.Len(t, conv, len(x))
	expect.EQ(t, conv[0], 0.0)
	assert.InDelta(t, 2, conv[4], 1e-12)
	assert.InDelta(t, 1, conv[3], 1e-12)
	assert.InDelta(t, 1, conv[5], 1e-12)
	assert.InDelta(t, 0, conv[1], 1e-12)

	// Uniform weights do not change the result.
	w := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	weighted := HaarConv(x, w, 2)
	for k := range conv {
		assert.InDelta(t, conv[k]*math.Sqrt(0.5), weighted[k], 1e-12)
	}
	assert.Equal(t, []float64{0}, HaarConv([]float64{1}, nil, 2))
}

func TestFindLocalPeaks(t *testing.T) {
	x := []float64{0, 1, 3, 1, 0, -2, -2, -1, 0, 2, 2, 2, 1}
	assert.Equal(t, []int{2, 5, 9}, FindLocalPeaks(x))
	assert.Nil(t, FindLocalPeaks([]float64{0, 0, 0}))
	assert.Equal(t, []int{0}, FindLocalPeaks([]float64{-1, 0}))
}

func TestFDRThreshold(t *testing.T) {
	expect.EQ(t, FDRThreshold([]float64{5}, 0.01, 1), 0.0)
	// Clear outliers pass; noise-sized peaks do not.
	peaks := []float64{10, -8, 0.5, -0.3, 0.2, 0.7, -0.1}
	expect.EQ(t, FDRThreshold(peaks, 0.01, 1), 8.0)
	// Nothing is significant.
	small := []float64{0.5, -0.3, 0.2}
	assert.True(t, FDRThreshold(small, 0.01, 1) > 0.5)
	expect.EQ(t, FDRThreshold(small, 0.01, 0), math.SmallestNonzeroFloat64)
}

func TestUnifyLevels(t *testing.T) {
	assert.Equal(t, []int{10, 50}, unifyLevels([]int{10, 50}, nil, 2))
	assert.Equal(t, []int{3, 10, 30, 50, 60}, unifyLevels([]int{10, 50}, []int{3, 9, 30, 52, 60}, 2))
	assert.Equal(t, []int{7}, unifyLevels(nil, []int{7}, 4))
}

func TestHaarBreakpoints(t *testing.T) {
	var x []float64
	for i := 0; i < 200; i++ {
		switch {
		case i < 100:
			x = append(x, 0)
		case i < 150:
			x = append(x, 1)
		default:
			x = append(x, -1)
		}
	}
	assert.Equal(t, []int{100, 150}, haarBreakpoints(x, nil, 0.001))
	assert.Nil(t, haarBreakpoints(make([]float64, 50), nil, 0.001))
	assert.Nil(t, haarBreakpoints([]float64{1}, nil, 0.001))
}

func TestMergeShort(t *testing.T) {
	bins := cnvtest.Bins("s", []cnvtest.Chrom{{Name: "chr1", Blocks: []cnvtest.Block{
		{Bins: 10, Log2: 0}, {Bins: 2, Log2: 1}, {Bins: 10, Log2: 0.9}, {Bins: 1, Log2: 0.9},
	}}}, 0, 1)
	s, err := newChromSignal(bins, true)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 10, 23}, s.mergeShort([]int{0, 10, 12, 22, 23}, 3))
	assert.Equal(t, []int{0, 23}, s.mergeShort([]int{0, 2, 23}, 3))
	assert.Equal(t, []int{0, 23}, s.mergeShort([]int{0, 23}, 3))

	// Ties go left.
	bins = cnvtest.Bins("s", []cnvtest.Chrom{{Name: "chr1", Blocks: []cnvtest.Block{
		{Bins: 5, Log2: 0}, {Bins: 1, Log2: 1}, {Bins: 5, Log2: 2},
	}}}, 0, 1)
	s, err = newChromSignal(bins, true)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 6, 11}, s.mergeShort([]int{0, 5, 6, 11}, 2))
}
