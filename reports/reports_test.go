package reports_test

import (
	"math"
	"strings"
	"testing"

	"github.com/grailbio/cnv/cnvio"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/internal/cnvtest"
	"github.com/grailbio/cnv/interval"
	"github.com/grailbio/cnv/reports"
	"github.com/grailbio/testutil/expect"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The chr1 breakpoint falls after bin 24, inside gene Gchr1_2 (bins 20-29).
var chroms = []cnvtest.Chrom{
	{Name: "chr1", Blocks: []cnvtest.Block{{Bins: 25, Log2: 0}, {Bins: 15, Log2: 1}}},
	{Name: "chr2", Blocks: []cnvtest.Block{{Bins: 30, Log2: 0}}},
	{Name: "chrX", Blocks: []cnvtest.Block{{Bins: 30, Log2: 1}}},
}

func binEnd(i int) interval.PosType {
	return interval.PosType(cnvtest.FirstStart + i*cnvtest.BinStep + cnvtest.BinSize)
}

func TestBreaks(t *testing.T) {
	bins := cnvtest.Bins("s", chroms, 0, 1)
	segs := cnvtest.Segments("s", chroms)

	bps, err := reports.Breaks(bins, segs, 4)
	require.NoError(t, err)
	assert.Equal(t, []reports.Breakpoint{{
		Gene:        "Gchr1_2",
		Chrom:       "chr1",
		Location:    binEnd(24),
		Change:      1,
		ProbesLeft:  5,
		ProbesRight: 5,
	}}, bps)

	bps, err = reports.Breaks(bins, segs, 6)
	require.NoError(t, err)
	assert.Empty(t, bps)

	// Antitarget bins never form a gene.
	anti := cnvtest.Antitargets("s", []string{"chr1"}, 4, 0, 0, 1)
	bps, err = reports.Breaks(genome.Concat(bins, anti), segs, 1)
	require.NoError(t, err)
	expect.EQ(t, len(bps), 1)
}

func TestGainLoss(t *testing.T) {
	bins := cnvtest.Bins("s", chroms, 0, 1)
	opts := reports.DefaultOpts
	opts.IsReferenceMale = true

	// A female sample on a male reference: chrX at +1 is neutral.
	for _, sex := range []genome.Sex{genome.Female, genome.SexUnknown} {
		opts.SampleSex = sex
		out, err := reports.GainLoss(bins, nil, opts)
		require.NoError(t, err)
		require.Equal(t, 2, out.Len(), "%v", sex)
		assert.Equal(t, []string{"Gchr1_2", "Gchr1_3"}, out.Genes())
		assert.InDelta(t, 0.5, out.Float(genome.Log2, 0), 1e-12)
		assert.InDelta(t, 1, out.Float(genome.Log2, 1), 1e-12)
		assert.Equal(t, []int{10, 10}, out.Ints(genome.Probes))
		assert.Equal(t, 10.0, out.Float(genome.Weight, 0))
		assert.InDelta(t, cnvtest.DefaultDepth*2, out.Float(genome.Depth, 1), 1e-9)
		expect.EQ(t, out.Start(0), interval.PosType(cnvtest.FirstStart+20*cnvtest.BinStep))
		expect.EQ(t, out.End(0), binEnd(29))
	}

	// The same chrX read as a male sample on a female reference is a gain.
	opts.IsReferenceMale = false
	opts.SampleSex = genome.Male
	out, err := reports.GainLoss(bins, nil, opts)
	require.NoError(t, err)
	expect.EQ(t, out.Len(), 5)
	expect.EQ(t, out.InChrom("chrX").Len(), 3)
	assert.InDelta(t, 2, out.InChrom("chrX").Float(genome.Log2, 0), 1e-12)

	opts = reports.DefaultOpts
	opts.Threshold = 0.6
	opts.SampleSex = genome.Female
	out, err = reports.GainLoss(bins, nil, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gchr1_3", "GchrX_0", "GchrX_1", "GchrX_2"}, out.Genes())
}

func TestGainLossSegments(t *testing.T) {
	bins := cnvtest.Bins("s", chroms, 0.05, 3)
	segs := cnvtest.Segments("s", chroms)
	segs = segs.WithFloats(genome.CILo, []float64{-0.1, 0.9, -0.1, 0.9})
	opts := reports.DefaultOpts
	opts.MinProbes = 6
	opts.IsReferenceMale = true
	opts.SampleSex = genome.Female

	out, err := reports.GainLoss(bins, segs, opts)
	require.NoError(t, err)
	// Gchr1_2 has only 5 bins inside the gained segment.
	require.Equal(t, 1, out.Len())
	expect.EQ(t, out.Gene(0), "Gchr1_3")
	expect.EQ(t, out.Float(genome.Log2, 0), 1.0)
	expect.EQ(t, out.Int(genome.Probes, 0), 10)
	assert.True(t, out.Has(genome.CILo))
	expect.EQ(t, out.Float(genome.CILo, 0), 0.9)
	assert.False(t, math.IsNaN(out.Float(genome.Depth, 0)))

	opts.MinProbes = 1
	out, err = reports.GainLoss(bins, segs, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gchr1_2", "Gchr1_3"}, out.Genes())
	expect.EQ(t, out.Start(0), interval.PosType(cnvtest.FirstStart+25*cnvtest.BinStep))
}

func TestReportsEmpty(t *testing.T) {
	empty, err := cnvio.Read(strings.NewReader(""), "s")
	require.NoError(t, err)
	bps, err := reports.Breaks(empty, empty, 1)
	require.NoError(t, err)
	assert.Empty(t, bps)
	out, err := reports.GainLoss(empty, nil, reports.DefaultOpts)
	require.NoError(t, err)
	expect.EQ(t, out.Len(), 0)
	assert.True(t, out.Has(genome.Log2))
	assert.True(t, out.Has(genome.Probes))

	bins := cnvtest.Bins("s", chroms, 0, 1)
	_, err = reports.GainLoss(bins.DropExtraColumns().WithoutColumns(genome.Log2), nil, reports.DefaultOpts)
	assert.Equal(t, genome.ErrMissingColumn, errors.Cause(err))
}
