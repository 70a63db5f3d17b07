// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package reference builds the per-bin coverage baselines that samples are
// normalized against, either flat (no control samples) or pooled from a
// panel of normal samples.
package reference

import (
	"math"

	"github.com/grailbio/base/log"
	"github.com/grailbio/cnv/fix"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/interval"
	"github.com/grailbio/cnv/metrics"
	"github.com/pkg/errors"
)

// Split divides a reference (or any bin table) into its target and
// antitarget rows.
func Split(ref *genome.Table) (targets, antitargets *genome.Table) {
	anti := make([]bool, ref.Len())
	for i := range anti {
		anti[i] = genome.IsAntitarget(ref.Gene(i))
	}
	tgt := make([]bool, ref.Len())
	for i, a := range anti {
		tgt[i] = !a
	}
	return ref.Mask(tgt), ref.Mask(anti)
}

var schema = genome.Schema{
	{Name: genome.Depth, Kind: genome.Float},
	{Name: genome.Log2, Kind: genome.Float},
	{Name: genome.Spread, Kind: genome.Float},
}

// expectedLog2 returns the log2 coverage of chrom relative to the autosomes
// in a reference of the given sex.
func expectedLog2(chrom string, isReferenceMale bool) float64 {
	switch {
	case interval.IsY(chrom):
		return -1
	case interval.IsX(chrom) && isReferenceMale:
		return -1
	}
	return 0
}

// Flat returns a reference assuming equal coverage in every bin: log2 zero,
// except -1 on the haploid chromosomes (chrY, and chrX of a male reference),
// and no spread.  The bins are those of targets and antitargets, either of
// which may be empty.
func Flat(targets, antitargets *genome.Table, isReferenceMale bool) (*genome.Table, error) {
	b := genome.NewBuilder(genome.Meta{SampleID: "flat", ReferenceSex: sexOf(isReferenceMale)}, schema)
	for _, t := range []*genome.Table{targets, antitargets} {
		if t == nil {
			continue
		}
		for i := 0; i < t.Len(); i++ {
			log2 := expectedLog2(t.Chrom(i), isReferenceMale)
			b.Add(genome.Row{
				Chrom:  t.Chrom(i),
				Start:  t.Start(i),
				End:    t.End(i),
				Gene:   t.Gene(i),
				Values: []float64{math.Exp2(log2), log2, 0},
			})
		}
	}
	ref, err := b.Table()
	if err != nil {
		return nil, errors.Wrap(err, "flat reference")
	}
	log.Printf("reference: flat %s reference with %d bins", sexOf(isReferenceMale), ref.Len())
	return ref, nil
}

func sexOf(isMale bool) genome.Sex {
	if isMale {
		return genome.Male
	}
	return genome.Female
}

func sameBins(a, b *genome.Table) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if a.Chrom(i) != b.Chrom(i) || a.Start(i) != b.Start(i) || a.End(i) != b.End(i) {
			return false
		}
	}
	return true
}

// Pooled combines the bin coverages of normal samples into a reference.  Each
// sample is median-centered and its chrX is shifted to the dosage expected
// for the reference sex (the sample's sex is taken from its metadata, or
// guessed).  The reference log2 of a bin is the biweight location of the
// sample values, its spread their biweight midvariance and its depth their
// mean.  All samples must have the same bins.
func Pooled(samples []*genome.Table, isReferenceMale bool) (*genome.Table, error) {
	if len(samples) == 0 {
		return nil, errors.New("reference: no samples to pool")
	}
	first := samples[0]
	n := first.Len()
	log2s := make([][]float64, len(samples))
	depths := make([][]float64, len(samples))
	for k, s := range samples {
		if !s.IsSorted() {
			s = s.Sort()
		}
		if k == 0 {
			first = s
		}
		if !s.Has(genome.Log2) {
			return nil, errors.Wrapf(genome.ErrMissingColumn, "reference: sample %s has no log2", s.Meta().SampleID)
		}
		if !sameBins(first, s) {
			return nil, errors.Wrapf(fix.ErrAlignment, "reference: sample %s has different bins than %s",
				s.Meta().SampleID, first.Meta().SampleID)
		}
		s = s.Center(genome.CenterOpts{Method: genome.CenterMedian, SkipLow: true})
		sex := s.Meta().SampleSex
		if sex == genome.SexUnknown {
			// Raw coverage behaves like coverage normalized to a female
			// reference.
			sex = s.GuessSex(false)
		}
		var shift float64
		switch {
		case sex == genome.Female && isReferenceMale:
			shift = -1
		case sex == genome.Male && !isReferenceMale:
			shift = 1
		}
		log2 := s.Floats(genome.Log2)
		for i := range log2 {
			if interval.IsX(s.Chrom(i)) {
				log2[i] += shift
			}
		}
		log2s[k] = log2
		depths[k] = s.Floats(genome.Depth)
		log.Debug.Printf("reference: %s: %s sample, chrX shift %v", s.Meta().SampleID, sex, shift)
	}

	values := make([][]float64, 3)
	for c := range values {
		values[c] = make([]float64, n)
	}
	x := make([]float64, 0, len(samples))
	d := make([]float64, 0, len(samples))
	for i := 0; i < n; i++ {
		x, d = x[:0], d[:0]
		for k := range samples {
			if v := log2s[k][i]; !math.IsNaN(v) {
				x = append(x, v)
			}
			if depths[k] != nil && !math.IsNaN(depths[k][i]) {
				d = append(d, depths[k][i])
			}
		}
		depth := math.NaN()
		if len(d) > 0 {
			depth = metrics.Mean(d, nil)
		}
		log2, spread := genome.NullLog2Coverage, 0.0
		if len(x) > 0 {
			log2 = metrics.BiweightLocation(x)
			spread = metrics.BiweightMidvariance(x)
		}
		values[0][i], values[1][i], values[2][i] = depth, log2, spread
	}
	cols := make([]genome.ColumnData, len(schema))
	for c, col := range schema {
		cols[c] = genome.ColumnData{Name: col.Name, Floats: values[c]}
	}
	if depths[0] == nil {
		cols = cols[1:]
	}
	ref, err := genome.FromColumns(genome.Source{
		Meta:    genome.Meta{SampleID: "pooled", ReferenceSex: sexOf(isReferenceMale)},
		Chroms:  first.Chroms(),
		Starts:  first.Starts(),
		Ends:    first.Ends(),
		Genes:   first.Genes(),
		Columns: cols,
	})
	if err != nil {
		return nil, errors.Wrap(err, "pooled reference")
	}
	log.Printf("reference: pooled %d samples into a %s reference with %d bins", len(samples), sexOf(isReferenceMale), n)
	return ref, nil
}
