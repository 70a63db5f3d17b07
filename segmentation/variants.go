// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package segmentation

import (
	"math"
	"sort"

	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/interval"
	"github.com/grailbio/cnv/metrics"
)

const (
	// minSegmentVariants is the number of heterozygous variants a segment
	// needs before it is split on B-allele frequency.
	minSegmentVariants = 50
	// bafThresholdScale scales Opts.Threshold into the false discovery rate
	// of B-allele frequency breakpoints.
	bafThresholdScale = 0.01
)

// IsHeterozygous returns whether row i of variants is a heterozygous call.
// Without a zygosity column every variant counts.
func IsHeterozygous(variants *genome.Table, i int) bool {
	if !variants.Has(genome.Zygos) {
		return true
	}
	z := variants.Float(genome.Zygos, i)
	return z != 0 && z != 1
}

// MirroredBAF folds allele frequencies onto one side of 0.5: above it if
// aboveHalf, below it otherwise.
func MirroredBAF(freqs []float64, aboveHalf bool) []float64 {
	out := make([]float64, len(freqs))
	for i, f := range freqs {
		d := math.Abs(f - 0.5)
		if aboveHalf {
			out[i] = 0.5 + d
		} else {
			out[i] = 0.5 - d
		}
	}
	return out
}

// SegmentBAF returns the B-allele frequency summary of a set of heterozygous
// allele frequencies: the median after mirroring them onto the side of 0.5
// where their median lies.  It returns NaN for no values.
func SegmentBAF(freqs []float64) float64 {
	if len(freqs) == 0 {
		return math.NaN()
	}
	return metrics.Median(MirroredBAF(freqs, metrics.Median(freqs) > 0.5))
}

// chromVariants holds the heterozygous variants of one chromosome, by
// position.
type chromVariants struct {
	pos  []interval.PosType
	freq []float64
}

func newChromVariants(v *genome.Table) *chromVariants {
	cv := &chromVariants{}
	for i := 0; i < v.Len(); i++ {
		f := v.Float(genome.AltFreq, i)
		if math.IsNaN(f) || !IsHeterozygous(v, i) {
			continue
		}
		cv.pos = append(cv.pos, v.Start(i))
		cv.freq = append(cv.freq, f)
	}
	return cv
}

// in returns the index range of variants within [start, end).
func (cv *chromVariants) in(start, end interval.PosType) (a, b int) {
	a = sort.Search(len(cv.pos), func(i int) bool { return cv.pos[i] >= start })
	b = sort.Search(len(cv.pos), func(i int) bool { return cv.pos[i] >= end })
	return
}

func (cv *chromVariants) baf(start, end interval.PosType) float64 {
	a, b := cv.in(start, end)
	return SegmentBAF(cv.freq[a:b])
}

// split adds to bounds the bin boundaries where the mirrored B-allele
// frequency of the variants inside each segment changes.  A variant-level
// breakpoint is moved to the first bin whose midpoint lies past the midpoint
// between the flanking variants.
func (cv *chromVariants) split(bins *genome.Table, bounds []int, threshold float64) []int {
	out := []int{0}
	for j := 0; j+1 < len(bounds); j++ {
		first, last := bounds[j], bounds[j+1]
		a, b := cv.in(bins.Start(first), bins.End(last-1))
		if b-a >= minSegmentVariants {
			baf := MirroredBAF(cv.freq[a:b], true)
			for _, k := range haarBreakpoints(baf, nil, bafThresholdScale*threshold) {
				pos := (cv.pos[a+k-1] + cv.pos[a+k]) / 2
				row := first + sort.Search(last-first, func(i int) bool {
					r := first + i
					return (bins.Start(r)+bins.End(r))/2 > pos
				})
				if row > out[len(out)-1] && row < last {
					out = append(out, row)
				}
			}
		}
		out = append(out, last)
	}
	return out
}
