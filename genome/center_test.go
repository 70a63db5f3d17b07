package genome_test

import (
	"testing"

	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/internal/cnvtest"
	"github.com/grailbio/cnv/metrics"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenterAll(t *testing.T) {
	chr1 := cnvtest.Bins("s", cnvtest.Flat([]string{"chr1"}, 300, 0.3), 0.2, 7)
	centered := chr1.CenterAll(genome.CenterMedian)
	orig := metrics.Median(centered.Floats(genome.Log2))
	assert.InDelta(t, 0, orig, 1e-12)
	// The source is untouched.
	assert.InDelta(t, 0.3, metrics.Median(chr1.Floats(genome.Log2)), 0.05)

	// Median-centering resets a shift away from the median.
	shifted := centered.Copy()
	log2 := shifted.Floats(genome.Log2)
	for i := range log2 {
		log2[i] += 2
	}
	shifted = shifted.WithFloats(genome.Log2, log2).CenterAll(genome.CenterMedian)
	assert.InDelta(t, orig, metrics.Median(shifted.Floats(genome.Log2)), 1e-12)

	for _, method := range []genome.CenterMethod{genome.CenterMean, genome.CenterMedian, genome.CenterMode, genome.CenterBiweight} {
		once := centered.CenterAll(method)
		assert.True(t, abs(metrics.Median(once.Floats(genome.Log2))-orig) < 0.15, "%v", method)
		// Idempotent.
		assert.InDelta(t, 0, once.CenterShift(genome.CenterOpts{Method: method}), 1e-9, "%v", method)
		twice := once.CenterAll(method)
		a, b := once.Floats(genome.Log2), twice.Floats(genome.Log2)
		for i := range a {
			assert.InDelta(t, a[i], b[i], 1e-9)
		}
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestCenterSkipLow(t *testing.T) {
	chroms := []cnvtest.Chrom{{Name: "chr1", Blocks: []cnvtest.Block{
		{Bins: 10, Log2: 0.5},
		{Bins: 30, Log2: genome.NullLog2Coverage},
	}}}
	tbl := cnvtest.Bins("s", chroms, 0, 1)
	all := tbl.Center(genome.CenterOpts{Method: genome.CenterMedian})
	skip := tbl.Center(genome.CenterOpts{Method: genome.CenterMedian, SkipLow: true})
	assert.Equal(t, 0.0, skip.Float(genome.Log2, 0))
	assert.Equal(t, genome.NullLog2Coverage-0.5, skip.Float(genome.Log2, 20))
	assert.Equal(t, 0.5-genome.NullLog2Coverage, all.Float(genome.Log2, 0))
	assert.Equal(t, 30, tbl.Len()-tbl.DropLowCoverage().Len())
}

func TestParseCenterMethod(t *testing.T) {
	for _, name := range []string{"mean", "median", "mode", "biweight"} {
		m, err := genome.ParseCenterMethod(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.String())
	}
	m, err := genome.ParseCenterMethod("")
	require.NoError(t, err)
	assert.Equal(t, genome.CenterMedian, m)
	_, err = genome.ParseCenterMethod("trimean")
	assert.Error(t, err)
}

func TestGuessXX(t *testing.T) {
	autosomes := []string{"chr1", "chr2", "chr3"}
	for _, test := range []struct {
		name            string
		chrX            float64
		isReferenceMale bool
		want            bool
	}{
		{"f-on-f", 0, false, true},
		{"f-on-m", 1, true, true},
		{"m-on-f", -1, false, false},
		{"m-on-m", 0, true, false},
	} {
		chroms := append(cnvtest.Flat(autosomes, 100, 0), cnvtest.Flat([]string{"chrX"}, 100, test.chrX)...)
		tbl := cnvtest.Bins(test.name, chroms, 0.15, 3)
		assert.Equal(t, autosomes, tbl.Autosomes().Chromosomes())
		xx, ok := tbl.GuessXX(test.isReferenceMale)
		assert.True(t, ok, test.name)
		assert.Equal(t, test.want, xx, test.name)
		sex := genome.Male
		if test.want {
			sex = genome.Female
		}
		assert.Equal(t, sex, tbl.GuessSex(test.isReferenceMale))
	}
	_, ok := cnvtest.Bins("s", cnvtest.Flat([]string{"chr1"}, 10, 0), 0.1, 1).GuessXX(true)
	assert.False(t, ok)
}

func TestParseSex(t *testing.T) {
	for name, want := range map[string]genome.Sex{
		"":       genome.SexUnknown,
		"female": genome.Female,
		"F":      genome.Female,
		"xx":     genome.Female,
		"Male":   genome.Male,
		"xy":     genome.Male,
	} {
		got, err := genome.ParseSex(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := genome.ParseSex("x0")
	assert.EqualError(t, err, `genome: unknown sex "x0"`)
}

func TestResiduals(t *testing.T) {
	chroms := []cnvtest.Chrom{
		{Name: "chr1", Blocks: []cnvtest.Block{{Bins: 50, Log2: 0}, {Bins: 30, Log2: 1}}},
		{Name: "chr2", Blocks: []cnvtest.Block{{Bins: 40, Log2: -1}}},
	}
	bins := cnvtest.Bins("s", chroms, 0.2, 11)
	segments := cnvtest.Segments("s", chroms)
	regions := segments.DropExtraColumns().WithoutColumns(genome.Log2)

	raw, err := bins.Residuals(nil)
	require.NoError(t, err)
	assert.Equal(t, bins.Floats(genome.Log2), raw)

	for _, other := range []*genome.Table{segments, regions} {
		resid, err := bins.Residuals(other)
		require.NoError(t, err)
		assert.Equal(t, bins.Len(), len(resid))
		assert.InDelta(t, 0, metrics.Mean(resid, nil), 0.05)
		s := metrics.EstsOfScale(resid)
		for _, v := range s.Values() {
			assert.True(t, v > 0)
		}
		assert.InDelta(t, 0.2, s.StdDev, 0.05)
	}

	// A segment boundary cutting through a bin drops it; a bin outside every
	// segment is an error.
	trimmed := segments.Copy()
	r := trimmed.Row(0)
	r.End -= cnvtest.BinSize / 2
	trimmed.SetRow(0, r)
	resid, err := bins.Residuals(trimmed)
	require.NoError(t, err)
	assert.Equal(t, bins.Len()-1, len(resid))

	_, err = bins.Residuals(segments.InChrom("chr1"))
	assert.Equal(t, genome.ErrShape, errors.Cause(err))

	_, err = bins.DropExtraColumns().WithoutColumns(genome.Log2).Residuals(nil)
	assert.Equal(t, genome.ErrMissingColumn, errors.Cause(err))
}
