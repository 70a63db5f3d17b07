// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package metrics implements the robust location and scale estimators and
// the interval estimators used when normalizing, segmenting and calling
// copy-number data.
//
// Estimators of location return NaN for empty input; estimators of scale
// return 0.  None of the functions modify their arguments.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MADScale converts a median absolute deviation into a consistent estimator
// of the standard deviation of normally distributed data.
const MADScale = 1.4826

const (
	biweightLocationC = 6.0
	biweightScaleC    = 9.0
	biweightEpsilon   = 1e-3
	biweightMaxIter   = 5
)

func sortedCopy(x []float64) []float64 {
	s := make([]float64, len(x))
	copy(s, x)
	sort.Float64s(s)
	return s
}

func medianOfSorted(s []float64) float64 {
	n := len(s)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Median returns the median of x, averaging the two middle values when len(x)
// is even.
func Median(x []float64) float64 {
	return medianOfSorted(sortedCopy(x))
}

// Mean returns the (optionally weighted) arithmetic mean of x.  A nil or
// all-zero weight vector gives the unweighted mean.
func Mean(x, w []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	if w != nil && floats.Sum(w) > 0 {
		return stat.Mean(x, w)
	}
	return stat.Mean(x, nil)
}

type valueWeight struct {
	v, w float64
}

// WeightedMedian returns the weighted median of x.  When the cumulative weight
// lands exactly on the midpoint, the two straddling values are averaged, so
// uniform weights reproduce Median.  A nil or all-zero weight vector gives the
// unweighted median.
func WeightedMedian(x, w []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	if w == nil {
		return Median(x)
	}
	if len(w) != len(x) {
		panic("metrics.WeightedMedian: length mismatch")
	}
	pairs := make([]valueWeight, len(x))
	total := 0.0
	for i := range x {
		pairs[i] = valueWeight{x[i], w[i]}
		total += w[i]
	}
	if total <= 0 {
		return Median(x)
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })
	midpoint := total / 2
	cum := 0.0
	for i, p := range pairs {
		if p.w > midpoint {
			return p.v
		}
		cum += p.w
		if cum >= midpoint {
			if math.Abs(cum-midpoint) <= 1e-12*total && i+1 < len(pairs) {
				return (p.v + pairs[i+1].v) / 2
			}
			return p.v
		}
	}
	return pairs[len(pairs)-1].v
}

// MedianAbsoluteDeviation returns the median absolute deviation from the
// median, scaled by MADScale to estimate the standard deviation.
func MedianAbsoluteDeviation(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	m := Median(x)
	dev := make([]float64, len(x))
	for i, v := range x {
		dev[i] = math.Abs(v - m)
	}
	return Median(dev) * MADScale
}

// InterquartileRange returns the difference between the 75th and 25th
// percentiles of x.
func InterquartileRange(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	s := sortedCopy(x)
	return stat.Quantile(0.75, stat.LinInterp, s, nil) - stat.Quantile(0.25, stat.LinInterp, s, nil)
}

// BiweightLocation is Tukey's biweight M-estimator of location.  Iteration
// starts at the median and stops after biweightMaxIter rounds or once the
// estimate moves less than biweightEpsilon.
func BiweightLocation(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	initial := Median(x)
	result := initial
	d := make([]float64, len(x))
	for iter := 0; iter < biweightMaxIter; iter++ {
		for i, v := range x {
			d[i] = math.Abs(v - initial)
		}
		mad := Median(d)
		scale := math.Max(biweightLocationC*mad, biweightEpsilon)
		var num, den float64
		for _, v := range x {
			dv := v - initial
			u := dv / scale
			if math.Abs(u) >= 1 {
				continue
			}
			wt := (1 - u*u) * (1 - u*u)
			num += dv * wt
			den += wt
		}
		if den == 0 {
			return initial
		}
		result = initial + num/den
		if math.Abs(result-initial) <= biweightEpsilon {
			break
		}
		initial = result
	}
	return result
}

// BiweightMidvariance is the biweight estimator of scale, on the same scale
// as a standard deviation.  Deviations are measured from BiweightLocation.
// When every value is an outlier the scaled MAD is returned instead.
func BiweightMidvariance(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	loc := BiweightLocation(x)
	return biweightMidvarianceAt(x, loc)
}

func biweightMidvarianceAt(x []float64, loc float64) float64 {
	absDev := make([]float64, len(x))
	for i, v := range x {
		absDev[i] = math.Abs(v - loc)
	}
	mad := Median(absDev)
	scale := math.Max(biweightScaleC*mad, biweightEpsilon)
	var n int
	var num, den float64
	for _, v := range x {
		d := v - loc
		u := d / scale
		if math.Abs(u) >= 1 {
			continue
		}
		u2 := u * u
		n++
		num += d * d * math.Pow(1-u2, 4)
		den += (1 - u2) * (1 - 5*u2)
	}
	if n == 0 || den == 0 {
		return mad * MADScale
	}
	return math.Sqrt(float64(n)*num) / math.Abs(den)
}

// ModalLocation estimates the mode of x as the highest peak of a Gaussian
// kernel density estimate, evaluated at the data points.  The bandwidth
// follows Scott's rule.
func ModalLocation(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	s := sortedCopy(x)
	if len(s) < 2 {
		return s[0]
	}
	sd := stat.StdDev(s, nil)
	bw := sd * math.Pow(float64(len(s)), -0.2)
	if bw == 0 || math.IsNaN(bw) {
		return medianOfSorted(s)
	}
	// Kernel contributions beyond cutoff are below exp(-32) and are skipped.
	cutoff := 8 * bw
	best, bestDensity := s[0], -1.0
	lo := 0
	for i, v := range s {
		for s[lo] < v-cutoff {
			lo++
		}
		var density float64
		for j := lo; j < len(s) && s[j] <= v+cutoff; j++ {
			z := (s[j] - v) / bw
			density += math.Exp(-0.5 * z * z)
		}
		if density > bestDensity {
			best, bestDensity = s[i], density
		}
	}
	return best
}
