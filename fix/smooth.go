// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fix

import (
	"math"
	"math/rand"
	"sort"
)

// shuffleSeed fixes the tie-breaking order of CenterByWindow.
const shuffleSeed = 0xA5EED

// RollingMedian returns the centered running median of x over a window
// spanning about fraction*len(x) points.  x is reflected at both ends so the
// window is full everywhere.
func RollingMedian(x []float64, fraction float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	wing := int(math.Ceil(float64(n) * fraction / 2))
	if wing < 1 {
		wing = 1
	}
	if wing > n-1 {
		wing = n - 1
	}
	padded := make([]float64, 0, n+2*wing)
	for i := wing - 1; i >= 0; i-- {
		padded = append(padded, x[i])
	}
	padded = append(padded, x...)
	for i := n - 1; i >= n-wing; i-- {
		padded = append(padded, x[i])
	}

	width := 2*wing + 1
	window := append([]float64(nil), padded[:width]...)
	sort.Float64s(window)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			old := padded[i-1]
			k := sort.SearchFloat64s(window, old)
			window = append(window[:k], window[k+1:]...)
			add := padded[i+width-1]
			k = sort.SearchFloat64s(window, add)
			window = append(window, 0)
			copy(window[k+1:], window[k:])
			window[k] = add
		}
		out[i] = window[wing]
	}
	return out
}

// CenterByWindow detrends log2 against a bias covariate: rows are put in a
// fixed pseudo-random order, stably sorted by key, and the rolling median of
// log2 over a window of the given fraction of rows is subtracted.  Rows whose
// log2 or key is NaN are left unchanged.  The result is in the input order.
func CenterByWindow(log2, key []float64, fraction float64) []float64 {
	out := append([]float64(nil), log2...)
	var idx []int
	for i := range log2 {
		if !math.IsNaN(log2[i]) && !math.IsNaN(key[i]) {
			idx = append(idx, i)
		}
	}
	if len(idx) < 2 {
		return out
	}
	r := rand.New(rand.NewSource(shuffleSeed))
	r.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
	sort.SliceStable(idx, func(a, b int) bool { return key[idx[a]] < key[idx[b]] })
	ordered := make([]float64, len(idx))
	for k, i := range idx {
		ordered[k] = log2[i]
	}
	bias := RollingMedian(ordered, fraction)
	for k, i := range idx {
		out[i] = log2[i] - bias[k]
	}
	return out
}
