package segmetrics_test

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/grailbio/cnv/cnvio"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/internal/cnvtest"
	"github.com/grailbio/cnv/metrics"
	"github.com/grailbio/cnv/segmetrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chroms = []cnvtest.Chrom{
	{Name: "chr1", Blocks: []cnvtest.Block{{Bins: 40, Log2: 0}, {Bins: 20, Log2: 0.6}, {Bins: 3, Log2: -1}}},
	{Name: "chr2", Blocks: []cnvtest.Block{{Bins: 50, Log2: -0.4}}},
}

// meanSegments returns the segments of chroms with log2 set to the mean of
// their bins.
func meanSegments(t *testing.T, bins *genome.Table) *genome.Table {
	segments := cnvtest.Segments("s", chroms)
	log2 := bins.Floats(genome.Log2)
	means := make([]float64, segments.Len())
	for j, idx := range segmetrics.SegmentBins(bins, segments) {
		require.NotEmpty(t, idx)
		var x []float64
		for _, i := range idx {
			x = append(x, log2[i])
		}
		means[j] = metrics.Mean(x, nil)
	}
	return segments.WithFloats(genome.Log2, means)
}

func TestCompute(t *testing.T) {
	bins := cnvtest.Bins("s", chroms, 0.25, 5)
	segments := meanSegments(t, bins)
	out, err := segmetrics.Compute(bins, segments, segmetrics.DefaultOpts)
	require.NoError(t, err)
	assert.Equal(t, segments.Len(), out.Len())
	for _, c := range segmetrics.Columns {
		assert.True(t, out.Has(c), c)
	}
	assert.False(t, segments.Has(genome.CILo))

	probes := out.Ints(genome.Probes)
	means := out.Floats(genome.Log2)
	for _, pair := range [][2]string{{genome.CILo, genome.CIHi}, {genome.PILo, genome.PIHi}} {
		lo, hi := out.Floats(pair[0]), out.Floats(pair[1])
		for j := range means {
			assert.True(t, lo[j] <= means[j] && means[j] <= hi[j], "%v segment %d", pair, j)
			if probes[j] > 3 {
				assert.True(t, lo[j] < means[j] && means[j] < hi[j], "%v segment %d", pair, j)
			}
		}
	}
	stdev, sem := out.Floats(genome.StdDev), out.Floats(genome.SEM)
	for j := range stdev {
		assert.True(t, sem[j] > 0 && sem[j] < stdev[j])
		if probes[j] > 3 {
			assert.InDelta(t, 0.25, stdev[j], 0.1)
		}
	}

	again, err := segmetrics.Compute(bins, segments, segmetrics.DefaultOpts)
	require.NoError(t, err)
	assert.True(t, out.Equal(again))
}

func TestComputeEdgeCases(t *testing.T) {
	bins := cnvtest.Bins("s", chroms, 0.25, 5)
	segments := meanSegments(t, bins)

	empty, err := segmetrics.Compute(bins, segments.Slice(0, 0), segmetrics.DefaultOpts)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.True(t, empty.Has(genome.CILo))

	// Both tables read from empty files.
	blank, err := cnvio.Read(strings.NewReader(""), "s")
	require.NoError(t, err)
	empty, err = segmetrics.Compute(blank, blank, segmetrics.DefaultOpts)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.True(t, empty.Has(genome.SEM))
	// Segments without bins get NaN statistics.
	out, err := segmetrics.Compute(blank, segments, segmetrics.DefaultOpts)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out.Float(genome.SEM, 0)))

	// A segment with no bins gets NaN statistics.
	far := segments.Copy()
	r := far.Row(far.Len() - 1)
	r.Start, r.End = 1e8, 1e8+10
	far.SetRow(far.Len()-1, r)
	out, err = segmetrics.Compute(bins, far, segmetrics.Opts{Alpha: 0.1, Bootstraps: 20, Rand: rand.New(rand.NewSource(2))})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out.Float(genome.CILo, out.Len()-1)))
	assert.False(t, math.IsNaN(out.Float(genome.CILo, 0)))

	_, err = segmetrics.Compute(bins.DropExtraColumns().WithoutColumns(genome.Log2), segments, segmetrics.DefaultOpts)
	assert.Error(t, err)
	_, err = segmetrics.Compute(bins, segments, segmetrics.Opts{Alpha: 0.05})
	assert.Error(t, err)
}
