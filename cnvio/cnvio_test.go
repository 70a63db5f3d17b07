package cnvio_test

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/cnv/cnvio"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/internal/cnvtest"
	"github.com/grailbio/cnv/interval"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cnr = `chromosome	start	end	gene	depth	log2	weight
chr1	1000	2000	BRCA1	210.5	0.5	0.9
chr1	3000	4000	BRCA1	180	-0.25	
chr2	500	1500	Antitarget	12	-1e-05	0.4
`

func TestRead(t *testing.T) {
	tab, err := cnvio.Read(strings.NewReader(cnr), "s1")
	require.NoError(t, err)
	require.Equal(t, 3, tab.Len())
	expect.EQ(t, tab.Meta().SampleID, "s1")
	assert.Equal(t, []string{genome.Depth, genome.Log2, genome.Weight}, tab.Schema().Names())
	expect.EQ(t, tab.Chrom(2), "chr2")
	expect.EQ(t, tab.Start(0), interval.PosType(1000))
	expect.EQ(t, tab.End(1), interval.PosType(4000))
	expect.EQ(t, tab.Gene(2), genome.AntitargetGene)
	assert.Equal(t, []float64{0.5, -0.25, -1e-05}, tab.Floats(genome.Log2))
	assert.True(t, math.IsNaN(tab.Float(genome.Weight, 1)))
}

func TestReadIntColumns(t *testing.T) {
	const cns = "chromosome\tstart\tend\tlog2\tprobes\tcn\n" +
		"chr1\t0\t100\t0.1\t12\t2\n" +
		"chr1\t100\t200\t\t3.0\t\n"
	tab, err := cnvio.Read(strings.NewReader(cns), "s")
	require.NoError(t, err)
	expect.EQ(t, tab.Gene(0), "-")
	assert.Equal(t, []int{12, 3}, tab.Ints(genome.Probes))
	assert.Equal(t, []int{2, genome.MissingInt}, tab.Ints(genome.CN))
}

func TestReadEmpty(t *testing.T) {
	tab, err := cnvio.Read(strings.NewReader(""), "s")
	require.NoError(t, err)
	expect.EQ(t, tab.Len(), 0)

	tab, err = cnvio.Read(strings.NewReader("chromosome\tstart\tend\tgene\tlog2\tcn\n"), "s")
	require.NoError(t, err)
	expect.EQ(t, tab.Len(), 0)
	assert.True(t, tab.Has(genome.Log2))
	assert.True(t, tab.Has(genome.CN))
}

func TestReadErrors(t *testing.T) {
	for _, in := range []string{
		"chromosome\tstart\tgene\nchr1\t1\tA\n",
		"chromosome\tstart\tend\nchr1\tx\t10\n",
		"chromosome\tstart\tend\nchr1\t20\t10\n",
		"chromosome\tstart\tend\tlog2\nchr1\t0\t10\tbad\n",
		"chromosome\tstart\tend\tlog2\tlog2\nchr1\t0\t10\t1\t2\n",
		"chromosome\tstart\tend\nchr1\t0\n",
	} {
		_, err := cnvio.Read(strings.NewReader(in), "s")
		assert.Error(t, err, in)
	}
}

func TestWriteRead(t *testing.T) {
	bins := cnvtest.Bins("s", cnvtest.Flat([]string{"chr1", "chrX"}, 15, 0.2), 0.1, 1)
	probes := make([]int, bins.Len())
	for i := range probes {
		probes[i] = i
	}
	probes[3] = genome.MissingInt
	log2 := bins.Floats(genome.Log2)
	log2[4] = math.NaN()
	bins = bins.WithInts(genome.Probes, probes).WithFloats(genome.Log2, log2)

	var buf bytes.Buffer
	require.NoError(t, cnvio.Write(&buf, bins))
	assert.True(t, strings.HasPrefix(buf.String(), "chromosome\tstart\tend\tgene\tdepth\tlog2\tweight\tprobes\n"))
	got, err := cnvio.Read(&buf, "s")
	require.NoError(t, err)
	assert.True(t, got.Equal(bins))
}

func TestFiles(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "cnvio")
	defer cleanup()
	ctx := context.Background()
	segs := cnvtest.Segments("tumor", []cnvtest.Chrom{
		{Name: "chr1", Blocks: []cnvtest.Block{{Bins: 10, Log2: 0}, {Bins: 5, Log2: 1}}},
	})
	for _, name := range []string{"tumor.cns", "tumor.cns.gz"} {
		path := filepath.Join(dir, name)
		require.NoError(t, cnvio.WriteFile(ctx, path, segs))
		got, err := cnvio.ReadFile(ctx, path)
		require.NoError(t, err, name)
		expect.EQ(t, got.Meta().SampleID, "tumor")
		assert.True(t, got.Equal(segs), name)
	}
	_, err := cnvio.ReadFile(ctx, filepath.Join(dir, "missing.cnr"))
	assert.Error(t, err)
}

func TestSampleID(t *testing.T) {
	expect.EQ(t, cnvio.SampleID("/a/b/S1.targetcoverage.cnn"), "S1.targetcoverage")
	expect.EQ(t, cnvio.SampleID("s3://bucket/T.cnr.gz"), "T")
	expect.EQ(t, cnvio.SampleID("T.call.cns"), "T.call")
	expect.EQ(t, cnvio.SampleID("plain"), "plain")
}
