package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/cnv/call"
	"github.com/grailbio/cnv/cnvio"
	"github.com/grailbio/cnv/fix"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/internal/cnvtest"
	"github.com/grailbio/cnv/reports"
	"github.com/grailbio/cnv/segmentation"
	"github.com/grailbio/cnv/segmetrics"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tumorChroms = []cnvtest.Chrom{
	{Name: "chr1", Blocks: []cnvtest.Block{{Bins: 80, Log2: 0}, {Bins: 40, Log2: 0.5}}},
	{Name: "chr2", Blocks: []cnvtest.Block{{Bins: 80, Log2: 0}}},
	{Name: "chrX", Blocks: []cnvtest.Block{{Bins: 60, Log2: -1}}},
}

func TestPipeline(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "bio-cnv")
	defer cleanup()
	ctx := context.Background()
	path := func(name string) string { return filepath.Join(dir, name) }
	names := []string{"chr1", "chr2", "chrX"}

	var normals []string
	for i, sex := range []float64{0, 0, -1} {
		chroms := []cnvtest.Chrom{
			{Name: "chr1", Blocks: []cnvtest.Block{{Bins: 120, Log2: 0}}},
			{Name: "chr2", Blocks: []cnvtest.Block{{Bins: 80, Log2: 0}}},
			{Name: "chrX", Blocks: []cnvtest.Block{{Bins: 60, Log2: sex}}},
		}
		name := path(string(rune('a'+i)) + ".targetcoverage.cnn")
		require.NoError(t, cnvio.WriteFile(ctx, name, cnvtest.Bins("n", chroms, 0.05, int64(i+1))))
		normals = append(normals, name)
	}
	require.NoError(t, runReference(ctx, referenceFlags{out: path("ref.cnn")}, normals))

	tumor := cnvtest.Bins("tumor", tumorChroms, 0.05, 10)
	require.NoError(t, cnvio.WriteFile(ctx, path("tumor.targetcoverage.cnn"), tumor))
	fixed := fixFlags{reference: path("ref.cnn"), out: path("tumor.cnr"), opts: fix.DefaultOpts}
	require.NoError(t, runFix(ctx, fixed, []string{path("tumor.targetcoverage.cnn")}))

	seg := segmentFlags{out: path("tumor.cns"), method: "haar", opts: segmentation.DefaultOpts}
	require.NoError(t, runSegment(ctx, seg, path("tumor.cnr")))
	segs, err := cnvio.ReadFile(ctx, path("tumor.cns"))
	require.NoError(t, err)
	assert.Equal(t, names, segs.Chromosomes())
	assert.True(t, segs.InChrom("chr1").Len() >= 2)

	metrics := segmetricsFlags{out: path("tumor.cns"), opts: segmetrics.DefaultOpts}
	require.NoError(t, runSegmetrics(ctx, metrics, path("tumor.cnr"), path("tumor.cns")))

	cf := callFlags{
		out:       path("tumor.call.cns"),
		method:    "threshold",
		sampleSex: "male",
		filters:   "cn",
		set:       map[string]bool{"sample-sex": true, "filter": true},
	}
	require.NoError(t, runCall(ctx, cf, path("tumor.cns")))
	called, err := cnvio.ReadFile(ctx, path("tumor.call.cns"))
	require.NoError(t, err)
	assert.True(t, called.Has(genome.CN))
	assert.True(t, called.Has(genome.CILo))
	gain := called.InChrom("chr1")
	expect.EQ(t, gain.Int(genome.CN, gain.Len()-1), 3)
	expect.EQ(t, called.InChrom("chr2").Int(genome.CN, 0), 2)
	expect.EQ(t, called.InChrom("chrX").Int(genome.CN, 0), 1)

	var out bytes.Buffer
	require.NoError(t, runSex(ctx, &out, false, []string{path("tumor.cnr")}))
	expect.EQ(t, out.String(), "sample\tsex\ntumor\tmale\n")
}

func TestFlatReference(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "bio-cnv")
	defer cleanup()
	ctx := context.Background()
	targets := filepath.Join(dir, "t.cnn")
	antitargets := filepath.Join(dir, "a.cnn")
	names := []string{"chr1", "chrX", "chrY"}
	require.NoError(t, cnvio.WriteFile(ctx, targets, cnvtest.Bins("s", cnvtest.Flat(names, 10, 0), 0, 1)))
	require.NoError(t, cnvio.WriteFile(ctx, antitargets, cnvtest.Antitargets("s", names, 4, 0, 0, 1)))

	out := filepath.Join(dir, "flat.cnn")
	require.NoError(t, runReference(ctx, referenceFlags{out: out, flat: true, maleReference: true},
		[]string{targets + "," + antitargets}))
	ref, err := cnvio.ReadFile(ctx, out)
	require.NoError(t, err)
	expect.EQ(t, ref.Len(), 42)
	expect.EQ(t, ref.InChrom("chrX").Float(genome.Log2, 0), -1.0)
	expect.EQ(t, ref.InChrom("chr1").Float(genome.Log2, 0), 0.0)
}

func TestReports(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "bio-cnv")
	defer cleanup()
	ctx := context.Background()
	chroms := []cnvtest.Chrom{
		{Name: "chr1", Blocks: []cnvtest.Block{{Bins: 25, Log2: 0}, {Bins: 15, Log2: 1}}},
		{Name: "chr2", Blocks: []cnvtest.Block{{Bins: 30, Log2: 0}}},
	}
	bins := filepath.Join(dir, "s.cnr")
	segs := filepath.Join(dir, "s.cns")
	require.NoError(t, cnvio.WriteFile(ctx, bins, cnvtest.Bins("s", chroms, 0, 1)))
	require.NoError(t, cnvio.WriteFile(ctx, segs, cnvtest.Segments("s", chroms)))

	out := filepath.Join(dir, "breaks.tsv")
	require.NoError(t, runBreaks(ctx, breaksFlags{out: out, minProbes: 2}, bins, segs))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	expect.EQ(t, string(data), "gene\tchromosome\tlocation\tchange\tprobes_left\tprobes_right\n"+
		"Gchr1_2\tchr1\t47000\t1\t5\t5\n")

	out = filepath.Join(dir, "gainloss.tsv")
	f := gainLossFlags{out: out, segments: segs, opts: reports.DefaultOpts}
	require.NoError(t, runGainLoss(ctx, f, bins))
	genes, err := cnvio.ReadFile(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gchr1_2", "Gchr1_3"}, genes.Genes())
	assert.Equal(t, []int{5, 10}, genes.Ints(genome.Probes))

	f.sampleSex = "unknown"
	assert.Error(t, runGainLoss(ctx, f, bins))
}

func TestCallOpts(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "bio-cnv")
	defer cleanup()
	ctx := context.Background()
	config := filepath.Join(dir, "call.yaml")
	require.NoError(t, os.WriteFile(config, []byte(`
method: clonal
purity: 0.7
male_reference: true
sample_sex: female
filters: [ampdel, cn]
`), 0644))

	opts, err := callOpts(ctx, callFlags{config: config})
	require.NoError(t, err)
	expect.EQ(t, opts.Method, call.Clonal)
	expect.EQ(t, opts.Purity, 0.7)
	expect.EQ(t, opts.Ploidy, 2)
	assert.True(t, opts.IsReferenceMale)
	expect.EQ(t, opts.SampleSex, genome.Female)
	assert.Equal(t, []call.Filter{call.FilterAmpDel, call.FilterCN}, opts.Filters)
	assert.Equal(t, call.DefaultThresholds, opts.Thresholds)

	// Flags given on the command line override the file.
	opts, err = callOpts(ctx, callFlags{
		config:     config,
		method:     "threshold",
		thresholds: "-1,0,1",
		purity:     0.5,
		set:        map[string]bool{"method": true, "thresholds": true, "purity": true},
	})
	require.NoError(t, err)
	expect.EQ(t, opts.Method, call.Threshold)
	expect.EQ(t, opts.Purity, 0.5)
	assert.Equal(t, []float64{-1, 0, 1}, opts.Thresholds)
	assert.True(t, opts.IsReferenceMale)

	_, err = callOpts(ctx, callFlags{filters: "ampdel,bic", set: map[string]bool{"filter": true}})
	assert.Error(t, err)
	_, err = parseCallConfig([]byte("method: threshold\nunknown: 1\n"))
	assert.Error(t, err)
	_, err = parseFloats("0.1,x")
	assert.Error(t, err)
}
