// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package metrics

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultSeed seeds the resampling source when the caller passes a nil
// *rand.Rand, so bootstrap intervals are reproducible run to run.
const DefaultSeed = 0xC0FFEE

func checkAlpha(alpha float64) error {
	if !(alpha > 0 && alpha < 1) {
		return errors.Errorf("metrics: alpha must be in (0, 1), got %v", alpha)
	}
	return nil
}

// degenerate handles inputs too small to resample.  ok is false when the
// caller should go on to the general computation.
func degenerate(values []float64) (lo, hi float64, ok bool) {
	switch len(values) {
	case 0:
		return math.NaN(), math.NaN(), true
	case 1:
		return values[0], values[0], true
	}
	return 0, 0, false
}

func bracket(lo, hi, mean float64) (float64, float64) {
	return math.Min(lo, mean), math.Max(hi, mean)
}

// ConfidenceIntervalBootstrap estimates a (1-alpha) confidence interval for
// the weighted mean of values by drawing n resamples with replacement and
// taking the alpha/2 and 1-alpha/2 percentiles of the resampled means.
// weights may be nil.  A nil rng is replaced by a source seeded with
// DefaultSeed.  The interval always contains the weighted mean of values.
func ConfidenceIntervalBootstrap(values, weights []float64, alpha float64, n int, rng *rand.Rand) (lo, hi float64, err error) {
	if err = checkAlpha(alpha); err != nil {
		return
	}
	if weights != nil && len(weights) != len(values) {
		return 0, 0, errors.Errorf("metrics: %d values but %d weights", len(values), len(weights))
	}
	if l, h, ok := degenerate(values); ok {
		return l, h, nil
	}
	if n < 1 {
		return 0, 0, errors.Errorf("metrics: need at least one bootstrap resample, got %d", n)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(DefaultSeed))
	}
	k := len(values)
	means := make([]float64, n)
	sampleV := make([]float64, k)
	var sampleW []float64
	if weights != nil {
		sampleW = make([]float64, k)
	}
	for b := range means {
		for i := 0; i < k; i++ {
			idx := rng.Intn(k)
			sampleV[i] = values[idx]
			if sampleW != nil {
				sampleW[i] = weights[idx]
			}
		}
		means[b] = Mean(sampleV, sampleW)
	}
	sort.Float64s(means)
	lo = stat.Quantile(alpha/2, stat.LinInterp, means, nil)
	hi = stat.Quantile(1-alpha/2, stat.LinInterp, means, nil)
	lo, hi = bracket(lo, hi, Mean(values, weights))
	return lo, hi, nil
}

// PredictionInterval returns the (1-alpha) Student-t prediction interval for
// a new observation drawn from the population of values:
//	mean ± t(1-alpha/2, n-1) · sd · sqrt(1 + 1/n)
// where mean and sd are weighted when weights is non-nil.
func PredictionInterval(values, weights []float64, alpha float64) (lo, hi float64, err error) {
	if err = checkAlpha(alpha); err != nil {
		return
	}
	if weights != nil && len(weights) != len(values) {
		return 0, 0, errors.Errorf("metrics: %d values but %d weights", len(values), len(weights))
	}
	if l, h, ok := degenerate(values); ok {
		return l, h, nil
	}
	w := weights
	if w != nil {
		total := 0.0
		for _, v := range w {
			total += v
		}
		if total <= 0 {
			w = nil
		}
	}
	mean := stat.Mean(values, w)
	sd := math.Sqrt(stat.PopVariance(values, w))
	n := float64(len(values))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 1}.Quantile(1 - alpha/2)
	margin := t * sd * math.Sqrt(1+1/n)
	lo, hi = bracket(mean-margin, mean+margin, mean)
	return lo, hi, nil
}
