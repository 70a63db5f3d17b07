// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package segmentation

import (
	"math"
	"sort"

	"github.com/grailbio/cnv/metrics"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	haarStartLevel = 1
	haarEndLevel   = 5
	// minHaarWeight is the floor applied to bin weights before convolution.
	minHaarWeight = 1e-4
)

// mirror maps an out-of-range index into [0, n) by reflecting it at the
// signal ends.
func mirror(j, n int) int {
	for j < 0 || j >= n {
		if j < 0 {
			j = -j - 1
		} else {
			j = 2*n - j - 1
		}
	}
	return j
}

// HaarConv convolves x with a Haar wavelet of the given half-width.  Element k
// of the result is the standardized difference between the (weighted) means of
// x[k:k+halfWidth] and x[k-halfWidth:k], with x reflected at both ends.  The
// first element is always zero.  w may be nil.
func HaarConv(x, w []float64, halfWidth int) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n < 2 || halfWidth < 1 {
		return out
	}
	weight := func(j int) float64 {
		if w == nil {
			return 1
		}
		return math.Max(w[j], minHaarWeight)
	}
	for k := 1; k < n; k++ {
		var lowSum, lowWeight, highSum, highWeight float64
		for d := 0; d < halfWidth; d++ {
			lo, hi := mirror(k-halfWidth+d, n), mirror(k+d, n)
			lowWeight += weight(lo)
			lowSum += weight(lo) * x[lo]
			highWeight += weight(hi)
			highSum += weight(hi) * x[hi]
		}
		norm := math.Sqrt(lowWeight * highWeight / (lowWeight + highWeight))
		out[k] = norm * (highSum/highWeight - lowSum/lowWeight)
	}
	return out
}

// FindLocalPeaks returns the indices of the local extrema of x: the positive
// local maxima and negative local minima.  A plateau is reported once, at its
// first index.
func FindLocalPeaks(x []float64) []int {
	var peaks []int
	n := len(x)
	for a := 0; a < n; {
		b := a
		for b+1 < n && x[b+1] == x[a] {
			b++
		}
		v := x[a]
		switch {
		case v > 0 && (a == 0 || x[a-1] < v) && (b == n-1 || x[b+1] < v):
			peaks = append(peaks, a)
		case v < 0 && (a == 0 || x[a-1] > v) && (b == n-1 || x[b+1] > v):
			peaks = append(peaks, a)
		}
		a = b + 1
	}
	return peaks
}

// FDRThreshold returns the smallest peak magnitude that is significant at
// false discovery rate q, for peaks drawn from a zero-mean normal with the
// given standard deviation (Benjamini-Hochberg).  If no peak is significant
// the threshold exceeds every peak.  Fewer than two peaks yield zero.
func FDRThreshold(peaks []float64, q, sigma float64) float64 {
	m := len(peaks)
	if m < 2 {
		return 0
	}
	sorted := make([]float64, m)
	for i, v := range peaks {
		sorted[i] = math.Abs(v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if sigma <= 0 {
		// Noiseless: every nonzero peak is a real step.
		return math.SmallestNonzeroFloat64
	}
	noise := distuv.Normal{Mu: 0, Sigma: sigma}
	last := -1
	for i, v := range sorted {
		p := 2 * noise.Survival(v)
		if p <= float64(i+1)/float64(m)*q {
			last = i
		}
	}
	if last < 0 {
		return sorted[0] + 1e-16
	}
	return sorted[last]
}

// unifyLevels merges the breakpoints found at a coarser level into those of
// the finer levels.  Coarse breakpoints within window of a fine one are
// dropped.
func unifyLevels(base, addon []int, window int) []int {
	if len(addon) == 0 {
		return base
	}
	var joined []int
	k := 0
	for _, b := range base {
		for k < len(addon) {
			a := addon[k]
			if a < b-window {
				joined = append(joined, a)
			} else if a > b+window {
				break
			}
			k++
		}
		joined = append(joined, b)
	}
	if len(base) > 0 {
		last := base[len(base)-1] + window
		for k < len(addon) && addon[k] <= last {
			k++
		}
	}
	joined = append(joined, addon[k:]...)
	sort.Ints(joined)
	return joined
}

// haarBreakpoints returns the sorted positions k (0 < k < len(x)) at which
// the piecewise-constant signal underlying x changes level, found by a
// multiscale Haar wavelet scan with false discovery rate q.
func haarBreakpoints(x, w []float64, q float64) []int {
	n := len(x)
	if n < 2 {
		return nil
	}
	fine := HaarConv(x, w, 1)
	dev := make([]float64, 0, n-1)
	for _, v := range fine[1:] {
		dev = append(dev, math.Abs(v))
	}
	sigma := metrics.Median(dev) * metrics.MADScale

	var breaks []int
	for level := haarStartLevel; level <= haarEndLevel; level++ {
		halfWidth := 1 << uint(level)
		if halfWidth > n {
			break
		}
		conv := HaarConv(x, w, halfWidth)
		peaks := FindLocalPeaks(conv)
		values := make([]float64, len(peaks))
		for i, p := range peaks {
			values[i] = conv[p]
		}
		threshold := FDRThreshold(values, q, sigma)
		var addon []int
		for _, p := range peaks {
			if p > 0 && math.Abs(conv[p]) >= threshold {
				addon = append(addon, p)
			}
		}
		breaks = unifyLevels(breaks, addon, 1<<uint(level-1))
	}
	return breaks
}
