// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package segmetrics summarizes the bins underlying each segment: spread of
// the bin log2 values around the segment mean, and confidence and prediction
// intervals for the segment mean.
package segmetrics

import (
	"math"
	"math/rand"

	"github.com/grailbio/base/log"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/metrics"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Opts configures Compute.
type Opts struct {
	// Alpha is the significance level of the confidence and prediction
	// intervals.
	Alpha float64
	// Bootstraps is the number of resamples for the confidence interval.
	Bootstraps int
	// Rand is the resampling source.  If nil, each segment is resampled with
	// a source seeded by metrics.DefaultSeed, which makes results
	// independent of segment order.
	Rand *rand.Rand
	// SkipLow excludes low-coverage bins from every statistic.
	SkipLow bool
}

// DefaultOpts are the default options for Compute.
var DefaultOpts = Opts{
	Alpha:      0.05,
	Bootstraps: 100,
}

// Columns lists the columns Compute adds, in order.
var Columns = []string{
	genome.StdDev, genome.MAD, genome.IQR, genome.Bivar, genome.SEM,
	genome.CILo, genome.CIHi, genome.PILo, genome.PIHi,
}

// SegmentBins returns, for each segment, the indices of the bins whose
// midpoint lies inside it.
func SegmentBins(bins, segments *genome.Table) [][]int {
	index := genome.NewRangeIndex(bins)
	out := make([][]int, segments.Len())
	for j := range out {
		start, end := segments.Start(j), segments.End(j)
		for _, i := range index.Overlapping(segments.Chrom(j), start, end) {
			mid := (bins.Start(i) + bins.End(i)) / 2
			if mid >= start && mid < end {
				out[j] = append(out[j], i)
			}
		}
	}
	return out
}

// Compute returns a copy of segments with the Columns added, computed from the
// log2 (and weight, if present) of bins.  Segments without a log2 column get
// the weighted mean of their bins as the center for spread statistics.
func Compute(bins, segments *genome.Table, opts Opts) (*genome.Table, error) {
	if !bins.Has(genome.Log2) && bins.Len() > 0 {
		return nil, errors.Wrap(genome.ErrMissingColumn, "segmetrics: bins have no log2")
	}
	if opts.Bootstraps < 1 {
		return nil, errors.Errorf("segmetrics: need at least one bootstrap, got %d", opts.Bootstraps)
	}
	log2 := bins.Floats(genome.Log2)
	weights := bins.Floats(genome.Weight)
	segLog2 := segments.Floats(genome.Log2)

	n := segments.Len()
	cols := make([][]float64, len(Columns))
	for k := range cols {
		cols[k] = make([]float64, n)
	}
	for j, idx := range SegmentBins(bins, segments) {
		var x, w []float64
		for _, i := range idx {
			if math.IsNaN(log2[i]) || (opts.SkipLow && bins.IsLowCoverage(i)) {
				continue
			}
			x = append(x, log2[i])
			if weights != nil {
				w = append(w, weights[i])
			}
		}
		if len(x) == 0 {
			for k := range cols {
				cols[k][j] = math.NaN()
			}
			continue
		}
		center := metrics.Mean(x, w)
		if segLog2 != nil && !math.IsNaN(segLog2[j]) {
			center = segLog2[j]
		}
		dev := make([]float64, len(x))
		for i, v := range x {
			dev[i] = v - center
		}
		scale := metrics.EstsOfScale(dev)
		sem := math.NaN()
		if len(dev) > 1 {
			sem = stat.StdDev(dev, nil) / math.Sqrt(float64(len(dev)))
		}
		rng := opts.Rand
		if rng == nil {
			rng = rand.New(rand.NewSource(metrics.DefaultSeed))
		}
		ciLo, ciHi, err := metrics.ConfidenceIntervalBootstrap(x, w, opts.Alpha, opts.Bootstraps, rng)
		if err != nil {
			return nil, err
		}
		piLo, piHi, err := metrics.PredictionInterval(x, w, opts.Alpha)
		if err != nil {
			return nil, err
		}
		for k, v := range []float64{scale.StdDev, scale.MAD, scale.IQR, scale.Biweight, sem, ciLo, ciHi, piLo, piHi} {
			cols[k][j] = v
		}
	}
	out := segments
	for k, name := range Columns {
		out = out.WithFloats(name, cols[k])
	}
	log.Debug.Printf("segmetrics: %s: summarized %d segments from %d bins", segments.Meta().SampleID, n, bins.Len())
	return out, nil
}
