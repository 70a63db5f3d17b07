// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package reports summarizes copy-number results per gene: the genes that a
// segment breakpoint cuts through, and the genes with a copy-number gain or
// loss.
package reports

import (
	"math"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/interval"
	"github.com/grailbio/cnv/metrics"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ignoredGenes label bins that belong to no gene.
var ignoredGenes = []string{"-", ".", "CGH"}

func isGene(name string) bool {
	return name != "" && !genome.IsAntitarget(name) && !lo.Contains(ignoredGenes, name)
}

// geneSpan is the extent of one gene's bins on a chromosome.
type geneSpan struct {
	gene   string
	starts []interval.PosType
	end    interval.PosType
}

// geneSpans groups the bins of t by chromosome and gene, ordered by the
// gene's first bin.
func geneSpans(t *genome.Table) map[string][]geneSpan {
	type key struct{ chrom, gene string }
	byGene := map[key]*geneSpan{}
	var order []key
	for i := 0; i < t.Len(); i++ {
		if !isGene(t.Gene(i)) {
			continue
		}
		k := key{t.Chrom(i), t.Gene(i)}
		g, ok := byGene[k]
		if !ok {
			g = &geneSpan{gene: k.gene}
			byGene[k] = g
			order = append(order, k)
		}
		g.starts = append(g.starts, t.Start(i))
		if t.End(i) > g.end {
			g.end = t.End(i)
		}
	}
	spans := map[string][]geneSpan{}
	for _, k := range order {
		g := byGene[k]
		sort.Slice(g.starts, func(i, j int) bool { return g.starts[i] < g.starts[j] })
		spans[k.chrom] = append(spans[k.chrom], *g)
	}
	for _, s := range spans {
		sort.SliceStable(s, func(i, j int) bool { return s[i].starts[0] < s[j].starts[0] })
	}
	return spans
}

// Breakpoint is a segment boundary that falls inside a gene.
type Breakpoint struct {
	Gene  string
	Chrom string
	// Location is the end of the segment left of the boundary.
	Location interval.PosType
	// Change is the log2 of the right segment minus that of the left one.
	Change float64
	// ProbesLeft and ProbesRight count the gene's bins on either side.
	ProbesLeft, ProbesRight int
}

// Breaks lists the genes of bins that contain a boundary between two adjacent
// segments of the same chromosome, with at least minProbes of the gene's bins
// on each side.  Breakpoints come in segment order.
func Breaks(bins, segments *genome.Table, minProbes int) ([]Breakpoint, error) {
	if segments.Len() > 0 && !segments.Has(genome.Log2) {
		return nil, errors.Wrap(genome.ErrMissingColumn, "reports: segments have no log2")
	}
	if !segments.IsSorted() {
		segments = segments.Sort()
	}
	spans := geneSpans(bins)
	var out []Breakpoint
	for i := 0; i+1 < segments.Len(); i++ {
		chrom := segments.Chrom(i)
		if segments.Chrom(i+1) != chrom {
			continue
		}
		end := segments.End(i)
		for _, g := range spans[chrom] {
			if !(g.starts[0] < end && end < g.end) {
				continue
			}
			left := lo.CountBy(g.starts, func(s interval.PosType) bool { return s < end })
			right := len(g.starts) - left
			if left < minProbes || right < minProbes {
				continue
			}
			out = append(out, Breakpoint{
				Gene:        g.gene,
				Chrom:       chrom,
				Location:    end,
				Change:      segments.Float(genome.Log2, i+1) - segments.Float(genome.Log2, i),
				ProbesLeft:  left,
				ProbesRight: right,
			})
		}
	}
	log.Printf("reports: %s: %d genes contain breakpoints", bins.Meta().SampleID, len(out))
	return out, nil
}

// Opts configures GainLoss.
type Opts struct {
	// Threshold is the smallest |log2| reported.
	Threshold float64
	// MinProbes is the smallest number of bins a reported gene must have.
	MinProbes int
	// SkipLow leaves low-coverage bins out of gene means.
	SkipLow bool
	// IsReferenceMale tells whether the reference has one X chromosome.
	IsReferenceMale bool
	// SampleSex is the sample's sex.  If unknown, the bins' metadata is
	// used, and failing that the sex is guessed from chrX.
	SampleSex genome.Sex
}

// DefaultOpts are the default gain/loss options.
var DefaultOpts = Opts{
	Threshold: 0.2,
	MinProbes: 3,
}

// shiftX moves chrX log2 ratios so that a normal X dosage reads 0 whatever
// the sexes of the sample and the reference.
func shiftX(t *genome.Table, female, isReferenceMale bool) *genome.Table {
	var shift float64
	switch {
	case female && isReferenceMale:
		shift = -1
	case !female && !isReferenceMale:
		shift = 1
	default:
		return t
	}
	log2 := t.Floats(genome.Log2)
	for i := range log2 {
		if interval.IsX(t.Chrom(i)) {
			log2[i] += shift
		}
	}
	return t.WithFloats(genome.Log2, log2)
}

// geneRow summarizes bins [lo, hi) of one gene.
type geneRow struct {
	chrom      string
	start, end interval.PosType
	gene       string
	log2       float64
	depth      float64
	weight     float64
	probes     int
}

// byGene summarizes each run of consecutive bins of the same gene.  Runs
// without a usable log2 are skipped.
func byGene(bins *genome.Table, rows []int, skipLow bool) []geneRow {
	log2 := bins.Floats(genome.Log2)
	depth := bins.Floats(genome.Depth)
	weight := bins.Floats(genome.Weight)
	var out []geneRow
	for a := 0; a < len(rows); {
		b := a + 1
		for b < len(rows) && bins.Gene(rows[b]) == bins.Gene(rows[a]) && bins.Chrom(rows[b]) == bins.Chrom(rows[a]) {
			b++
		}
		run := rows[a:b]
		a = b
		if !isGene(bins.Gene(run[0])) {
			continue
		}
		var x, w []float64
		for _, i := range run {
			if math.IsNaN(log2[i]) || (skipLow && bins.IsLowCoverage(i)) {
				continue
			}
			x = append(x, log2[i])
			if weight != nil {
				w = append(w, weight[i])
			}
		}
		if len(x) == 0 {
			continue
		}
		r := geneRow{
			chrom:  bins.Chrom(run[0]),
			start:  bins.Start(run[0]),
			end:    bins.End(run[len(run)-1]),
			gene:   bins.Gene(run[0]),
			log2:   metrics.Mean(x, w),
			depth:  math.NaN(),
			weight: math.NaN(),
			probes: len(run),
		}
		var d, dw []float64
		if weight != nil {
			r.weight = 0
			for _, i := range run {
				r.weight += weight[i]
				dw = append(dw, weight[i])
			}
		}
		if depth != nil {
			for _, i := range run {
				d = append(d, depth[i])
			}
			r.depth = metrics.Mean(d, dw)
		}
		out = append(out, r)
	}
	return out
}

// GainLoss lists the genes whose copy ratio departs from neutral by at least
// opts.Threshold, among genes with at least opts.MinProbes bins.  chrX is
// first shifted for the sexes of the sample and the reference.
//
// Without segments, a gene's log2 is the weighted mean of its bins.  With
// segments, the genes inside each segment beyond the threshold are reported
// at the segment's log2 (and depth), along with segment columns the bins lack,
// such as confidence intervals.
//
// The result has one row per gene with log2, probes, and depth and weight if
// the bins have them.
func GainLoss(bins, segments *genome.Table, opts Opts) (*genome.Table, error) {
	if bins.Len() > 0 && !bins.Has(genome.Log2) {
		return nil, errors.Wrap(genome.ErrMissingColumn, "reports: bins have no log2")
	}
	if segments != nil && segments.Len() > 0 && !segments.Has(genome.Log2) {
		return nil, errors.Wrap(genome.ErrMissingColumn, "reports: segments have no log2")
	}
	if !bins.IsSorted() {
		bins = bins.Sort()
	}
	schema := genome.Schema{{Name: genome.Log2, Kind: genome.Float}}
	for _, name := range []string{genome.Depth, genome.Weight} {
		if bins.Has(name) {
			schema = append(schema, genome.Column{Name: name, Kind: genome.Float})
		}
	}
	schema = append(schema, genome.Column{Name: genome.Probes, Kind: genome.Int})
	if segments != nil {
		for _, c := range segments.Schema() {
			switch c.Name {
			case genome.Log2, genome.Depth, genome.Weight, genome.Probes:
				continue
			}
			if !bins.Has(c.Name) {
				schema = append(schema, c)
			}
		}
	}
	if bins.Len() == 0 {
		return genome.Empty(bins.Meta(), schema), nil
	}

	sex := opts.SampleSex
	if sex == genome.SexUnknown {
		sex = bins.Meta().SampleSex
	}
	if sex == genome.SexUnknown {
		sex = bins.GuessSex(opts.IsReferenceMale)
	}
	if sex != genome.SexUnknown {
		female := sex == genome.Female
		bins = shiftX(bins, female, opts.IsReferenceMale)
		if segments != nil && segments.Len() > 0 {
			segments = shiftX(segments, female, opts.IsReferenceMale)
		}
	}

	b := genome.NewBuilder(bins.Meta(), schema)
	add := func(r geneRow, seg int) {
		if r.probes < opts.MinProbes {
			return
		}
		values := []float64{r.log2}
		for _, c := range schema[1:] {
			switch c.Name {
			case genome.Depth:
				if seg >= 0 && segments.Has(genome.Depth) {
					values = append(values, segments.Float(genome.Depth, seg))
				} else {
					values = append(values, r.depth)
				}
			case genome.Weight:
				values = append(values, r.weight)
			case genome.Probes:
				values = append(values, float64(r.probes))
			default:
				values = append(values, segments.Float(c.Name, seg))
			}
		}
		b.Add(genome.Row{Chrom: r.chrom, Start: r.start, End: r.end, Gene: r.gene, Values: values})
	}

	all := make([]int, bins.Len())
	for i := range all {
		all[i] = i
	}
	if segments == nil {
		for _, r := range byGene(bins, all, opts.SkipLow) {
			if math.Abs(r.log2) >= opts.Threshold {
				add(r, -1)
			}
		}
	} else {
		index := genome.NewRangeIndex(bins)
		for j := 0; j < segments.Len(); j++ {
			segLog2 := segments.Float(genome.Log2, j)
			if !(math.Abs(segLog2) >= opts.Threshold) {
				continue
			}
			rows := index.Overlapping(segments.Chrom(j), segments.Start(j), segments.End(j))
			for _, r := range byGene(bins, rows, opts.SkipLow) {
				r.log2 = segLog2
				add(r, j)
			}
		}
	}
	out, err := b.Table()
	if err != nil {
		return nil, errors.Wrap(err, "reports")
	}
	log.Printf("reports: %s: %d genes gained or lost beyond %v", bins.Meta().SampleID, out.Len(), opts.Threshold)
	return out, nil
}
