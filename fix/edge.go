// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fix

import "github.com/grailbio/cnv/genome"

// InsertSize is the default sequencing library insert size, in bp, used to
// model coverage bias at bin edges.
const InsertSize = 250

// EdgeLosses returns the expected fraction of coverage lost at the two edges
// of targets of the given sizes, for reads from inserts of length insert:
//
//	i/2t                     if t >= i
//	i/2t - (i-t)^2/(2it)     if t < i
func EdgeLosses(sizes []float64, insert float64) []float64 {
	losses := make([]float64, len(sizes))
	for k, t := range sizes {
		losses[k] = insert / (2 * t)
		if t < insert {
			losses[k] -= (insert - t) * (insert - t) / (2 * insert * t)
		}
	}
	return losses
}

// EdgeGains returns the expected fraction of coverage a target gains from
// inserts spilling over from a neighbor gaps[k] bp away:
//
//	(i-g)^2/(4it)                       if t+g >= i
//	(i-g)^2/(4it) - (i-t-g)^2/(4it)     if t+g < i
//
// Negative gaps count as zero; gaps of at least insert yield no gain.
func EdgeGains(sizes, gaps []float64, insert float64) []float64 {
	if len(sizes) != len(gaps) {
		panic("fix.EdgeGains: sizes and gaps differ in length")
	}
	gains := make([]float64, len(sizes))
	for k, t := range sizes {
		g := gaps[k]
		if g < 0 {
			g = 0
		}
		if g >= insert {
			continue
		}
		gains[k] = (insert - g) * (insert - g) / (4 * insert * t)
		if t+g < insert {
			past := insert - t - g
			gains[k] -= past * past / (4 * insert * t)
		}
	}
	return gains
}

// EdgeBias returns, for each row of t, the net coverage bias from its own
// edges and from neighbors on the same chromosome closer than insert:
// gains minus losses.  Rows must be sorted.
func EdgeBias(t *genome.Table, insert float64) []float64 {
	bias := make([]float64, 0, t.Len())
	for _, c := range t.ByChromosome() {
		n := c.Len()
		sizes := c.Sizes()
		losses := EdgeLosses(sizes, insert)
		gains := make([]float64, n)
		for i := 0; i+1 < n; i++ {
			gap := float64(c.Start(i+1) - c.End(i))
			if gap >= insert {
				continue
			}
			// The right neighbor gains from the left one and vice versa.
			left := EdgeGains(sizes[i+1:i+2], []float64{gap}, insert)[0]
			right := EdgeGains(sizes[i:i+1], []float64{gap}, insert)[0]
			gains[i+1] += left
			gains[i] += right
		}
		for i := range gains {
			bias = append(bias, gains[i]-losses[i])
		}
	}
	return bias
}
