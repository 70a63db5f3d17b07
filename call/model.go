// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package call

import (
	"math"

	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/interval"
)

// minAbsolute is the smallest absolute copy number converted back to a log2
// ratio.
const minAbsolute = 1e-3

// ReferenceCopies returns the copy number of chrom in a reference of the given
// ploidy and sex.
func ReferenceCopies(chrom string, ploidy int, isReferenceMale bool) int {
	switch {
	case interval.IsY(chrom):
		return ploidy / 2
	case interval.IsX(chrom) && isReferenceMale:
		return ploidy / 2
	}
	return ploidy
}

// ExpectedCopies returns the copy number of chrom expected in a normal sample
// of the given ploidy and sex.
func ExpectedCopies(chrom string, ploidy int, isSampleFemale bool) int {
	switch {
	case interval.IsY(chrom):
		if isSampleFemale {
			return 0
		}
		return ploidy / 2
	case interval.IsX(chrom):
		if isSampleFemale {
			return ploidy
		}
		return ploidy / 2
	}
	return ploidy
}

// RatioToAbsolute converts a log2 ratio into an absolute copy number, given
// the reference copy number, the copy number expected of the normal cells
// mixed into the sample, and the tumor purity:
//
//	n = (ref*2^log2 - expect*(1-purity)) / purity
//
// A purity of 1 gives ref*2^log2.
func RatioToAbsolute(log2 float64, refCopies, expectCopies int, purity float64) float64 {
	ncopies := float64(refCopies) * math.Exp2(log2)
	if purity <= 0 || purity >= 1 {
		return ncopies
	}
	return (ncopies - float64(expectCopies)*(1-purity)) / purity
}

// AbsoluteToRatio converts an absolute copy number back into a log2 ratio
// against a reference of the given ploidy, restoring the haploid offset of
// chrY, and of chrX for a male reference.
func AbsoluteToRatio(chrom string, absolute float64, ploidy int, isReferenceMale bool) float64 {
	r := math.Log2(math.Max(absolute, minAbsolute) / float64(ploidy))
	if interval.IsY(chrom) || (interval.IsX(chrom) && isReferenceMale) {
		r++
	}
	return r
}

// RescaleBAF corrects a B-allele frequency for normal-cell contamination.
func RescaleBAF(baf, purity float64) float64 {
	if purity <= 0 || purity >= 1 {
		return baf
	}
	return (baf - 0.5*(1-purity)) / purity
}

// thresholdCall returns the copy number of a segment with the given log2
// ratio: the index of the first threshold the ratio does not exceed, scaled to
// the reference copy number on haploid chromosomes.  Ratios above every
// threshold are converted directly.
func thresholdCall(log2 float64, thresholds []float64, ploidy, refCopies int) int {
	for cn, t := range thresholds {
		if log2 <= t {
			if refCopies != ploidy {
				cn = cn * refCopies / ploidy
			}
			return cn
		}
	}
	return int(math.Ceil(RatioToAbsolute(log2, refCopies, refCopies, 1)))
}

// roundCopies rounds an absolute copy number half to even, clipping at zero.
func roundCopies(v float64) int {
	if math.IsNaN(v) {
		return genome.MissingInt
	}
	return int(math.Max(0, math.RoundToEven(v)))
}

// alleleCopies splits a total copy number into major (cn1) and minor (cn2)
// allele copy numbers using the B-allele frequency.  ok is false if baf is
// NaN and the split is undetermined.
func alleleCopies(absolute float64, cn int, baf float64) (cn1, cn2 int, ok bool) {
	if math.IsNaN(baf) {
		if cn > 0 {
			return 0, 0, false
		}
		return 0, 0, true
	}
	upper := math.Abs(baf-0.5) + 0.5
	cn1 = roundCopies(absolute * upper)
	if cn1 > cn {
		cn1 = cn
	}
	if cn1 < cn-cn1 {
		cn1 = cn - cn1
	}
	return cn1, cn - cn1, true
}
