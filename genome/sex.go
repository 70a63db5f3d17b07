// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package genome

import (
	"math"

	"github.com/grailbio/base/log"
	"github.com/grailbio/cnv/interval"
	"github.com/grailbio/cnv/metrics"
)

// usableLog2 returns the log2 values (and weights, if the table has them) of
// the rows, skipping NaN and low-coverage rows.
func (t *Table) usableLog2() (x, w []float64) {
	ci := t.schema.Index(Log2)
	if ci < 0 {
		return nil, nil
	}
	wi := t.schema.Index(Weight)
	for i := 0; i < t.Len(); i++ {
		v := t.cell(ci, i)
		if math.IsNaN(v) || t.IsLowCoverage(i) {
			continue
		}
		x = append(x, v)
		if wi >= 0 {
			wv := t.cell(wi, i)
			if math.IsNaN(wv) {
				wv = 0
			}
			w = append(w, wv)
		}
	}
	return x, w
}

func (t *Table) chromX() *Table {
	mask := make([]bool, t.Len())
	for i, c := range t.chrom {
		mask[i] = interval.IsX(c)
	}
	return t.Mask(mask)
}

// XDosageShift returns the log2 of chrX relative to the autosomes expected
// for an XX and an XY sample, given the sex of the reference.
func XDosageShift(isReferenceMale bool) (xx, xy float64) {
	if isReferenceMale {
		return 1, 0
	}
	return 0, -1
}

// GuessXX guesses whether the sample has two X chromosomes by comparing the
// weighted median log2 of chrX with that of the autosomes.  The decision
// boundary is the midpoint between the expected XX and XY shifts for the
// given reference sex.  ok is false when the table lacks chrX or autosome
// data.
func (t *Table) GuessXX(isReferenceMale bool) (xx, ok bool) {
	xVals, xWts := t.chromX().usableLog2()
	aVals, aWts := t.Autosomes().usableLog2()
	if len(xVals) == 0 || len(aVals) == 0 {
		return false, false
	}
	diff := metrics.WeightedMedian(xVals, xWts) - metrics.WeightedMedian(aVals, aWts)
	xxShift, xyShift := XDosageShift(isReferenceMale)
	midpoint := (xxShift + xyShift) / 2
	xx = diff > midpoint
	log.Debug.Printf("genome: %s chrX shift %.3f vs autosomes (boundary %.2f): XX=%v",
		t.meta.SampleID, diff, midpoint, xx)
	return xx, true
}

// GuessSex is GuessXX mapped to a Sex.
func (t *Table) GuessSex(isReferenceMale bool) Sex {
	xx, ok := t.GuessXX(isReferenceMale)
	switch {
	case !ok:
		return SexUnknown
	case xx:
		return Female
	}
	return Male
}
