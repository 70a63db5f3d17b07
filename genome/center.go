// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package genome

import (
	"math"

	"github.com/grailbio/base/log"
	"github.com/grailbio/cnv/metrics"
	"github.com/pkg/errors"
)

// CenterMethod selects the estimator of central tendency used to recenter
// log2 values.
type CenterMethod int

const (
	// CenterMedian is the default.
	CenterMedian CenterMethod = iota
	CenterMean
	// CenterMode uses the peak of a Gaussian kernel density estimate.
	CenterMode
	// CenterBiweight uses Tukey's biweight location.
	CenterBiweight
)

var centerMethodNames = []string{"median", "mean", "mode", "biweight"}

func (m CenterMethod) String() string {
	if int(m) < len(centerMethodNames) && m >= 0 {
		return centerMethodNames[m]
	}
	return "unknown"
}

// ParseCenterMethod converts a method name to a CenterMethod.  The empty
// string selects CenterMedian.
func ParseCenterMethod(name string) (CenterMethod, error) {
	if name == "" {
		return CenterMedian, nil
	}
	for i, n := range centerMethodNames {
		if n == name {
			return CenterMethod(i), nil
		}
	}
	return 0, errors.Errorf("unknown centering method %q, want one of %v", name, centerMethodNames)
}

// Estimate applies the method to x.
func (m CenterMethod) Estimate(x []float64) float64 {
	switch m {
	case CenterMean:
		return metrics.Mean(x, nil)
	case CenterMode:
		return metrics.ModalLocation(x)
	case CenterBiweight:
		return metrics.BiweightLocation(x)
	case CenterMedian:
		return metrics.Median(x)
	}
	log.Panicf("genome: unknown center method %d", m)
	return 0
}

// CenterOpts configures Center.
type CenterOpts struct {
	Method CenterMethod
	// SkipLow excludes low-coverage bins from the estimate.  They are still
	// shifted.
	SkipLow bool
}

// IsLowCoverage returns whether row i carries no usable signal: log2 below
// MinRefCoverage, or zero depth when the table has depth.
func (t *Table) IsLowCoverage(i int) bool {
	if v := t.Float(Log2, i); v < MinRefCoverage {
		return true
	}
	if t.Has(Depth) && t.Float(Depth, i) == 0 {
		return true
	}
	return false
}

// DropLowCoverage returns the rows that are not IsLowCoverage.
func (t *Table) DropLowCoverage() *Table {
	mask := make([]bool, t.Len())
	for i := range mask {
		mask[i] = !t.IsLowCoverage(i)
	}
	return t.Mask(mask)
}

// CenterShift returns the amount Center would add to every log2 value.
func (t *Table) CenterShift(opts CenterOpts) float64 {
	ci := t.schema.Index(Log2)
	if ci < 0 {
		return 0
	}
	var x []float64
	for i := 0; i < t.Len(); i++ {
		v := t.cell(ci, i)
		if math.IsNaN(v) || (opts.SkipLow && t.IsLowCoverage(i)) {
			continue
		}
		x = append(x, v)
	}
	if len(x) == 0 {
		return 0
	}
	return -opts.Method.Estimate(x)
}

// Center returns a copy of the table with log2 shifted so that the chosen
// estimator of the column is zero.  A table without log2, or with no usable
// values, is returned unchanged.
func (t *Table) Center(opts CenterOpts) *Table {
	shift := t.CenterShift(opts)
	out := t.Copy()
	if shift == 0 {
		return out
	}
	ci := out.schema.Index(Log2)
	for i, v := range out.cols[ci].f {
		out.cols[ci].f[i] = v + shift
	}
	log.Debug.Printf("genome: centered %s by %s, shift %.4f", t.meta.SampleID, opts.Method, shift)
	return out
}

// CenterAll is Center without skipping low-coverage bins.
func (t *Table) CenterAll(method CenterMethod) *Table {
	return t.Center(CenterOpts{Method: method})
}
