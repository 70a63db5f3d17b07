// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scale holds several estimates of the spread of a set of values, all on the
// scale of a standard deviation except IQR.
type Scale struct {
	// StdDev is the population standard deviation.
	StdDev float64
	// MAD is the median absolute deviation, scaled by MADScale.
	MAD float64
	// IQR is the interquartile range.
	IQR float64
	// Biweight is the biweight midvariance.
	Biweight float64
}

// EstsOfScale computes the standard, median-based, quantile-based and
// biweight estimates of scale for values.  Empty input gives a zero Scale.
func EstsOfScale(values []float64) Scale {
	if len(values) == 0 {
		return Scale{}
	}
	return Scale{
		StdDev:   math.Sqrt(stat.PopVariance(values, nil)),
		MAD:      MedianAbsoluteDeviation(values),
		IQR:      InterquartileRange(values),
		Biweight: BiweightMidvariance(values),
	}
}

// Values returns the estimates in declaration order.
func (s Scale) Values() []float64 {
	return []float64{s.StdDev, s.MAD, s.IQR, s.Biweight}
}
