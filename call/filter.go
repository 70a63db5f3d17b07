// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package call

import (
	"fmt"
	"math"
	"strings"

	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/metrics"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Filter merges adjacent segments that are not distinguishable by some
// criterion.
type Filter int

const (
	// FilterAmpDel merges runs of neutral, amplified (cn >= AmpCopies) or
	// deeply deleted (cn == 0) segments and drops segments whose |log2|
	// exceeds Opts.AmpDelLimit.
	FilterAmpDel Filter = iota
	// FilterCN merges runs of segments with the same copy number.
	FilterCN
	// FilterCI merges runs of segments whose confidence intervals lie on the
	// same side of zero, or straddle it.
	FilterCI
	// FilterSEM is FilterCI with a normal interval of 1.96 standard errors.
	FilterSEM
)

// AmpCopies is the smallest copy number reported as an amplification by
// FilterAmpDel.
const AmpCopies = 5

// semZ is the two-sided 95% normal quantile.
const semZ = 1.96

var filterNames = []string{"ampdel", "cn", "ci", "sem"}

func (f Filter) String() string {
	if f < 0 || int(f) >= len(filterNames) {
		return fmt.Sprintf("Filter(%d)", int(f))
	}
	return filterNames[f]
}

// ParseFilter parses a Filter name.
func ParseFilter(name string) (Filter, error) {
	for i, n := range filterNames {
		if n == name {
			return Filter(i), nil
		}
	}
	return 0, errors.Errorf("call: unknown filter %q, expected one of %s", name, strings.Join(filterNames, ", "))
}

// preCall returns whether f applies to segment statistics before calling.
func (f Filter) preCall() bool { return f == FilterCI || f == FilterSEM }

// levels assigns each segment the level that f groups by.
func (f Filter) levels(t *genome.Table) ([]float64, error) {
	need := map[Filter][]string{
		FilterAmpDel: {genome.CN},
		FilterCN:     {genome.CN},
		FilterCI:     {genome.CILo, genome.CIHi},
		FilterSEM:    {genome.Log2, genome.SEM},
	}[f]
	for _, c := range need {
		if !t.Has(c) {
			return nil, errors.Wrapf(genome.ErrMissingColumn, "call: filter %s needs column %s", f, c)
		}
	}
	levels := make([]float64, t.Len())
	switch f {
	case FilterAmpDel:
		for i, cn := range t.Ints(genome.CN) {
			switch {
			case cn == 0:
				levels[i] = -1
			case cn >= AmpCopies:
				levels[i] = 1
			}
		}
	case FilterCN:
		for i, cn := range t.Ints(genome.CN) {
			levels[i] = float64(cn)
		}
	case FilterCI:
		ciLo, ciHi := t.Floats(genome.CILo), t.Floats(genome.CIHi)
		for i := range levels {
			switch {
			case ciLo[i] > 0:
				levels[i] = 1
			case ciHi[i] < 0:
				levels[i] = -1
			}
		}
	case FilterSEM:
		log2, sem := t.Floats(genome.Log2), t.Floats(genome.SEM)
		for i := range levels {
			margin := semZ * sem[i]
			switch {
			case log2[i]-margin > 0:
				levels[i] = 1
			case log2[i]+margin < 0:
				levels[i] = -1
			}
		}
	}
	return levels, nil
}

// apply merges runs of equal level and, for FilterAmpDel, drops extreme
// segments.
func (f Filter) apply(t *genome.Table, opts Opts) (*genome.Table, error) {
	levels, err := f.levels(t)
	if err != nil {
		return nil, err
	}
	out := squashRuns(t, levels)
	if f == FilterAmpDel {
		out = dropExtreme(out, opts.AmpDelLimit)
	}
	return out, nil
}

// dropExtreme drops segments with |log2| above limit, keeping at least one
// segment (the least extreme) on every chromosome.
func dropExtreme(t *genome.Table, limit float64) *genome.Table {
	keep := make([]bool, t.Len())
	log2 := t.Floats(genome.Log2)
	row := 0
	for _, c := range t.ByChromosome() {
		best, kept := row, false
		for i := row; i < row+c.Len(); i++ {
			if math.Abs(log2[i]) <= limit {
				keep[i], kept = true, true
			}
			if math.Abs(log2[i]) < math.Abs(log2[best]) {
				best = i
			}
		}
		if !kept {
			keep[best] = true
		}
		row += c.Len()
	}
	return t.Mask(keep)
}

// squashRuns merges each maximal run of adjacent segments on one chromosome
// that share a level.
func squashRuns(t *genome.Table, levels []float64) *genome.Table {
	var groups [][]int
	for i := 0; i < t.Len(); i++ {
		if i > 0 && t.Chrom(i) == t.Chrom(i-1) && levels[i] == levels[i-1] {
			g := &groups[len(groups)-1]
			*g = append(*g, i)
			continue
		}
		groups = append(groups, []int{i})
	}
	if len(groups) == t.Len() {
		return t.Copy()
	}
	out := t.Take(lo.Map(groups, func(g []int, _ int) int { return g[0] }))
	for j, g := range groups {
		if len(g) > 1 {
			out.SetRow(j, squash(t, g))
		}
	}
	return out
}

// segmentWeights returns the weight of each of rows: the weight column, else
// probes, else one.
func segmentWeights(t *genome.Table, rows []int) []float64 {
	w := make([]float64, len(rows))
	weights, probes := t.Floats(genome.Weight), t.Floats(genome.Probes)
	for k, i := range rows {
		switch {
		case weights != nil && !math.IsNaN(weights[i]):
			w[k] = weights[i]
		case probes != nil && !math.IsNaN(probes[i]):
			w[k] = probes[i]
		default:
			w[k] = 1
		}
	}
	return w
}

// squash merges consecutive rows of t into one segment.  log2 and depth are
// weighted means, probes and weight sums, baf the median, cn the rounded
// weighted median; cn1 is the weighted median of the known allele calls.
// Other columns are undefined (NaN) for the merged segment.
func squash(t *genome.Table, rows []int) genome.Row {
	first := rows[0]
	r := genome.Row{
		Chrom:  t.Chrom(first),
		Start:  t.Start(first),
		End:    t.End(first),
		Values: make([]float64, len(t.Schema())),
	}
	var genes []string
	for _, i := range rows {
		if t.End(i) > r.End {
			r.End = t.End(i)
		}
		for _, g := range strings.Split(t.Gene(i), ",") {
			if g != "-" && g != "" {
				genes = append(genes, g)
			}
		}
	}
	r.Gene = "-"
	if genes = lo.Uniq(genes); len(genes) > 0 {
		r.Gene = strings.Join(genes, ",")
	}

	w := segmentWeights(t, rows)
	column := func(name string) []float64 {
		x := make([]float64, len(rows))
		for k, i := range rows {
			x[k] = t.Float(name, i)
		}
		return x
	}
	known := func(x, w []float64) (kx, kw []float64) {
		for k, v := range x {
			if !math.IsNaN(v) {
				kx = append(kx, v)
				kw = append(kw, w[k])
			}
		}
		return
	}
	cn := math.NaN()
	if t.Has(genome.CN) {
		if x, kw := known(column(genome.CN), w); len(x) > 0 {
			cn = math.RoundToEven(metrics.WeightedMedian(x, kw))
		}
	}
	for ci, c := range t.Schema() {
		x := column(c.Name)
		var v float64
		switch c.Name {
		case genome.Log2, genome.Depth:
			x, kw := known(x, w)
			v = math.NaN()
			if len(x) > 0 {
				v = metrics.Mean(x, kw)
			}
		case genome.Probes, genome.Weight:
			for _, e := range x {
				if !math.IsNaN(e) {
					v += e
				}
			}
		case genome.BAF:
			x, _ := known(x, w)
			v = metrics.Median(x)
		case genome.CN:
			v = cn
		case genome.CN1:
			v = math.NaN()
			if x, kw := known(x, w); len(x) > 0 && !math.IsNaN(cn) {
				c1 := math.Min(math.RoundToEven(metrics.WeightedMedian(x, kw)), cn)
				v = math.Max(c1, cn-c1)
			} else if cn == 0 {
				v = 0
			}
		case genome.CN2:
			// Filled in from cn and cn1 below.
			v = math.NaN()
		default:
			v = math.NaN()
		}
		r.Values[ci] = v
	}
	if i1, i2 := t.Schema().Index(genome.CN1), t.Schema().Index(genome.CN2); i1 >= 0 && i2 >= 0 && !math.IsNaN(r.Values[i1]) {
		r.Values[i2] = cn - r.Values[i1]
	}
	return r
}
