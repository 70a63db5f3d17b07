package metrics

import (
	"math"
	"math/rand"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalSample(n int, mean, sd float64, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	for i := range x {
		x[i] = mean + sd*r.NormFloat64()
	}
	return x
}

func TestMedian(t *testing.T) {
	tests := []struct {
		x    []float64
		want float64
	}{
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
		{[]float64{-1}, -1},
	}
	for _, test := range tests {
		expect.EQ(t, Median(test.x), test.want)
		expect.EQ(t, WeightedMedian(test.x, nil), test.want)
		w := make([]float64, len(test.x))
		for i := range w {
			w[i] = 2
		}
		expect.EQ(t, WeightedMedian(test.x, w), test.want)
	}
	assert.True(t, math.IsNaN(Median(nil)))
	assert.True(t, math.IsNaN(WeightedMedian(nil, nil)))
}

func TestWeightedMedian(t *testing.T) {
	assert.Equal(t, 3.0, WeightedMedian([]float64{1, 2, 3}, []float64{1, 1, 10}))
	assert.Equal(t, 2.0, WeightedMedian([]float64{3, 1, 2}, []float64{1, 1, 3}))
	assert.Equal(t, 2.0, WeightedMedian([]float64{1, 2, 3}, []float64{0, 0, 0}))
}

func TestRobustLocation(t *testing.T) {
	assert.InDelta(t, 3.0, BiweightLocation([]float64{1, 2, 3, 4, 5}), 1e-9)
	loc := BiweightLocation([]float64{1, 2, 3, 4, 5, 1000})
	assert.True(t, loc > 2.5 && loc < 4, "biweight location %v", loc)
	assert.True(t, math.IsNaN(BiweightLocation(nil)))

	x := append(normalSample(200, 0, 0.2, 1), normalSample(40, 5, 0.2, 2)...)
	mode := ModalLocation(x)
	assert.InDelta(t, 0, mode, 0.2)
	assert.Equal(t, 7.0, ModalLocation([]float64{7}))
	assert.Equal(t, 4.0, ModalLocation([]float64{4, 4, 4}))
}

func TestScale(t *testing.T) {
	assert.InDelta(t, MADScale, MedianAbsoluteDeviation([]float64{1, 2, 3, 4, 100}), 1e-12)
	assert.Equal(t, 0.0, BiweightMidvariance([]float64{2, 2, 2, 2}))
	assert.Equal(t, 0.0, InterquartileRange([]float64{2, 2, 2, 2}))

	assert.Equal(t, Scale{}, EstsOfScale(nil))
	s := EstsOfScale(normalSample(500, 1, 2, 3))
	for _, v := range s.Values() {
		assert.True(t, v > 0, "scale %v", s)
	}
	assert.InDelta(t, 2, s.StdDev, 0.3)
	assert.InDelta(t, 2, s.MAD, 0.4)
	assert.InDelta(t, 2, s.Biweight, 0.4)
}

func TestConfidenceIntervalBootstrap(t *testing.T) {
	x := normalSample(50, 1, 0.5, 4)
	mean := Mean(x, nil)
	lo, hi, err := ConfidenceIntervalBootstrap(x, nil, 0.05, 100, nil)
	require.NoError(t, err)
	assert.True(t, lo < mean && mean < hi, "[%v, %v] around %v", lo, hi, mean)
	assert.True(t, hi-lo < 1)

	lo2, hi2, err := ConfidenceIntervalBootstrap(x, nil, 0.05, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, lo, lo2)
	assert.Equal(t, hi, hi2)

	w := make([]float64, len(x))
	for i := range w {
		w[i] = float64(i%3 + 1)
	}
	lo, hi, err = ConfidenceIntervalBootstrap(x, w, 0.05, 100, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	wmean := Mean(x, w)
	assert.True(t, lo <= wmean && wmean <= hi)

	lo, hi, err = ConfidenceIntervalBootstrap(nil, nil, 0.05, 100, nil)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(lo) && math.IsNaN(hi))
	lo, hi, err = ConfidenceIntervalBootstrap([]float64{0.5}, nil, 0.05, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, lo)
	assert.Equal(t, 0.5, hi)

	_, _, err = ConfidenceIntervalBootstrap(x, nil, 1.5, 100, nil)
	assert.Error(t, err)
	_, _, err = ConfidenceIntervalBootstrap(x, w[:3], 0.05, 100, nil)
	assert.Error(t, err)
}

func TestPredictionInterval(t *testing.T) {
	x := normalSample(30, -0.5, 0.3, 5)
	mean := Mean(x, nil)
	lo, hi, err := PredictionInterval(x, nil, 0.05)
	require.NoError(t, err)
	assert.True(t, lo < mean && mean < hi)
	// Roughly mean ± 2 sd for n = 30.
	assert.InDelta(t, 0.62, (hi-lo)/2, 0.2)

	ci, ch, err := ConfidenceIntervalBootstrap(x, nil, 0.05, 100, nil)
	require.NoError(t, err)
	assert.True(t, hi-lo > ch-ci)

	lo, hi, err = PredictionInterval([]float64{3}, nil, 0.05)
	require.NoError(t, err)
	assert.Equal(t, 3.0, lo)
	assert.Equal(t, 3.0, hi)

	lo, hi, err = PredictionInterval([]float64{0, 2}, []float64{1, 1}, 0.05)
	require.NoError(t, err)
	assert.True(t, lo < -10 && hi > 12)

	_, _, err = PredictionInterval(x, nil, 0)
	assert.Error(t, err)
}
