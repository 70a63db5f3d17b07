// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package fix

import (
	"math"

	"github.com/grailbio/base/log"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/metrics"
	"github.com/pkg/errors"
)

// ErrAlignment is the cause of errors from matching sample bins to reference
// bins.
var ErrAlignment = errors.New("sample and reference bins do not align")

// MaxRefSpread is the largest reference spread of a usable bin.
const MaxRefSpread = 1.0

const (
	windowFraction = 0.1
	minGC          = 0.3
	maxGC          = 0.7
	// weightEpsilon is the lower clip of bin weights and the tolerance used
	// to detect a flat reference.
	weightEpsilon = 1e-4
	// spreadWeightShare is the share of the reference-spread weight in the
	// final bin weight when the reference was pooled from several samples.
	spreadWeightShare = 0.9
)

// Opts configures Fix.
type Opts struct {
	// InsertSize is the library insert size used by the edge-bias model.
	InsertSize float64
	// GC, Edge and RMask enable the GC-content, target-edge and repeat-mask
	// bias corrections.  GC and RMask apply only if the reference has the
	// gc and rmask columns respectively.
	GC, Edge, RMask bool
	// MaxUnmatchedFraction is the largest fraction of sample bins allowed to
	// be missing from the reference.  Unmatched bins are dropped.
	MaxUnmatchedFraction float64
}

// DefaultOpts are the default options for Fix.
var DefaultOpts = Opts{
	InsertSize:           InsertSize,
	GC:                   true,
	Edge:                 true,
	RMask:                true,
	MaxUnmatchedFraction: 0.05,
}

type binKey struct {
	chrom      string
	start, end int64
}

func keyAt(t *genome.Table, i int) binKey {
	return binKey{t.Chrom(i), int64(t.Start(i)), int64(t.End(i))}
}

// matchReference returns the sample rows found in ref, and the matching
// reference rows in the same order.
func matchReference(sample, ref *genome.Table, maxUnmatched float64) (*genome.Table, *genome.Table, error) {
	refRows := make(map[binKey]int, ref.Len())
	for i := 0; i < ref.Len(); i++ {
		k := keyAt(ref, i)
		if _, dup := refRows[k]; dup {
			return nil, nil, errors.Wrapf(ErrAlignment, "duplicate reference bin %s:%d-%d", k.chrom, k.start, k.end)
		}
		refRows[k] = i
	}
	seen := make(map[binKey]bool, sample.Len())
	var sampleIdx, refIdx []int
	for i := 0; i < sample.Len(); i++ {
		k := keyAt(sample, i)
		if seen[k] {
			return nil, nil, errors.Wrapf(ErrAlignment, "duplicate sample bin %s:%d-%d", k.chrom, k.start, k.end)
		}
		seen[k] = true
		if j, ok := refRows[k]; ok {
			sampleIdx = append(sampleIdx, i)
			refIdx = append(refIdx, j)
		}
	}
	unmatched := sample.Len() - len(sampleIdx)
	if unmatched > 0 {
		frac := float64(unmatched) / float64(sample.Len())
		if frac > maxUnmatched {
			return nil, nil, errors.Wrapf(ErrAlignment, "%s: reference is missing %d of %d bins (%.1f%%)",
				sample.Meta().SampleID, unmatched, sample.Len(), 100*frac)
		}
		log.Printf("fix: %s: dropping %d bins not in the reference", sample.Meta().SampleID, unmatched)
	}
	return sample.Take(sampleIdx), ref.Take(refIdx), nil
}

// badReferenceBins flags reference bins that carry no reliable signal.
func badReferenceBins(ref *genome.Table) []bool {
	log2 := ref.Floats(genome.Log2)
	spread := ref.Floats(genome.Spread)
	depth := ref.Floats(genome.Depth)
	gc := ref.Floats(genome.GC)
	bad := make([]bool, ref.Len())
	for i := range bad {
		v := log2[i]
		bad[i] = math.IsNaN(v) || v < genome.MinRefCoverage || v > -genome.MinRefCoverage
		if spread != nil && spread[i] > MaxRefSpread {
			bad[i] = true
		}
		if depth != nil && depth[i] == 0 {
			bad[i] = true
		}
		if gc != nil && (gc[i] < minGC || gc[i] > maxGC) {
			bad[i] = true
		}
	}
	return bad
}

// keepCoverage drops every optional column except log2 and depth.
func keepCoverage(t *genome.Table) *genome.Table {
	var drop []string
	for _, c := range t.Schema() {
		if c.Name != genome.Log2 && c.Name != genome.Depth {
			drop = append(drop, c.Name)
		}
	}
	return t.WithoutColumns(drop...)
}

func not(mask []bool) []bool {
	out := make([]bool, len(mask))
	for i, m := range mask {
		out[i] = !m
	}
	return out
}

// adjust matches one set of bins (targets or antitargets) to the reference,
// corrects systematic biases and subtracts the reference log2.  It returns
// the adjusted sample bins and the matching reference bins.
func adjust(sample, ref *genome.Table, isTarget bool, opts Opts) (*genome.Table, *genome.Table, error) {
	kind := "antitarget"
	if isTarget {
		kind = "target"
	}
	sample = keepCoverage(sample)
	if sample.Len() == 0 {
		schema := sample.Schema()
		if !schema.Has(genome.Log2) {
			schema = append(schema, genome.Column{Name: genome.Log2, Kind: genome.Float})
		}
		return genome.Empty(sample.Meta(), schema), ref.Slice(0, 0), nil
	}
	if !sample.Has(genome.Log2) {
		return nil, nil, errors.Wrapf(genome.ErrMissingColumn, "%s bins have no log2", kind)
	}
	if !ref.Has(genome.Log2) {
		return nil, nil, errors.Wrap(genome.ErrMissingColumn, "reference has no log2")
	}
	sample, ref, err := matchReference(sample, ref, opts.MaxUnmatchedFraction)
	if err != nil {
		return nil, nil, err
	}
	ok := not(badReferenceBins(ref))
	sample, ref = sample.Mask(ok), ref.Mask(ok)
	log.Printf("fix: %s: keeping %d %s bins with reliable reference coverage",
		sample.Meta().SampleID, sample.Len(), kind)

	centerOpts := genome.CenterOpts{Method: genome.CenterMedian, SkipLow: isTarget}
	sample = sample.Center(centerOpts)

	log2 := sample.Floats(genome.Log2)
	covered := 0
	for _, v := range log2 {
		if v > genome.NullLog2Coverage-genome.MinRefCoverage {
			covered++
		}
	}
	if covered <= len(log2)/2 {
		log.Error.Printf("fix: %s: most %s bins have no or very low coverage; check that the right regions were used",
			sample.Meta().SampleID, kind)
	} else {
		if opts.GC {
			if gc := ref.Floats(genome.GC); gc != nil {
				log.Debug.Printf("fix: correcting %s GC bias", kind)
				log2 = CenterByWindow(log2, gc, windowFraction)
			} else {
				log.Printf("fix: reference has no GC content; skipping GC correction")
			}
		}
		if opts.Edge && isTarget {
			log.Debug.Printf("fix: correcting %s edge bias", kind)
			log2 = CenterByWindow(log2, EdgeBias(sample, opts.InsertSize), windowFraction)
		}
		if opts.RMask && !isTarget {
			if rmask := ref.Floats(genome.RMask); rmask != nil {
				log.Debug.Printf("fix: correcting %s repeat-mask bias", kind)
				log2 = CenterByWindow(log2, rmask, windowFraction)
			}
		}
	}
	refLog2 := ref.Floats(genome.Log2)
	for i := range log2 {
		log2[i] -= refLog2[i]
	}
	sample = sample.WithFloats(genome.Log2, log2).Center(centerOpts)
	return sample, ref, nil
}

// Fix normalizes target and antitarget bin coverages against a reference.
// Each set is matched to the reference, stripped of unreliable bins,
// corrected for GC, edge and repeat-mask biases, and divided by the
// reference coverage; the two sets are then combined, weighted and
// median-centered.  antitargets may be nil or empty.  The result holds depth
// (if the input had it), log2 and weight.
func Fix(targets, antitargets, ref *genome.Table, opts Opts) (*genome.Table, error) {
	tgt, tgtRef, err := adjust(targets, ref, true, opts)
	if err != nil {
		return nil, errors.Wrap(err, "targets")
	}
	cnarr, refMatched := tgt, tgtRef
	if antitargets != nil && antitargets.Len() > 0 {
		anti, antiRef, err := adjust(antitargets, ref, false, opts)
		if err != nil {
			return nil, errors.Wrap(err, "antitargets")
		}
		cnarr = genome.Concat(tgt, anti)
		refMatched = genome.Concat(tgtRef, antiRef)
	}
	weights := binWeights(cnarr, refMatched)
	out := cnarr.WithFloats(genome.Weight, weights).Center(genome.CenterOpts{Method: genome.CenterMedian, SkipLow: true})
	log.Printf("fix: %s: %d normalized bins", out.Meta().SampleID, out.Len())
	return out, nil
}

// chromDeviations returns each usable bin's log2 deviation from the median of
// its chromosome.
func chromDeviations(t *genome.Table) []float64 {
	var dev []float64
	for _, c := range t.DropLowCoverage().ByChromosome() {
		log2 := c.Floats(genome.Log2)
		m := metrics.Median(log2)
		for _, v := range log2 {
			dev = append(dev, v-m)
		}
	}
	return dev
}

// simpleWeights weights the rows idx of t by bin size relative to the mean
// and by the overall variance of the set.
func simpleWeights(t *genome.Table, idx []int, out []float64) float64 {
	if len(idx) == 0 {
		return 0
	}
	sub := t.Take(idx)
	bivar := metrics.BiweightMidvariance(chromDeviations(sub))
	variance := bivar * bivar
	sizes := make([]float64, len(idx))
	mean := 0.0
	for k := range idx {
		sizes[k] = math.Sqrt(float64(sub.Size(k)))
		mean += sizes[k]
	}
	mean /= float64(len(idx))
	for k, i := range idx {
		out[i] = 1 - variance/(sizes[k]/mean)
	}
	return variance
}

// binWeights computes per-bin weights from bin size, the sample's overall
// variance (separately for targets and antitargets), and, for pooled
// references, the reference spread.
func binWeights(t, ref *genome.Table) []float64 {
	var tgtIdx, antiIdx []int
	for i := 0; i < t.Len(); i++ {
		if genome.IsAntitarget(t.Gene(i)) {
			antiIdx = append(antiIdx, i)
		} else {
			tgtIdx = append(tgtIdx, i)
		}
	}
	weights := make([]float64, t.Len())
	tgtVar := simpleWeights(t, tgtIdx, weights)
	if len(antiIdx) > 0 {
		anti := t.Take(antiIdx)
		if low := anti.Len() - anti.DropLowCoverage().Len(); 2*low > anti.Len() {
			log.Error.Printf("fix: %s: %d of %d antitarget bins have low coverage",
				t.Meta().SampleID, low, anti.Len())
		}
		antiVar := simpleWeights(t, antiIdx, weights)
		ratio := math.Max(tgtVar, 0.01) / math.Max(antiVar, 0.01)
		if ratio > 1 {
			log.Printf("fix: targets are %.2f x more variable than antitargets", ratio)
		} else {
			log.Printf("fix: antitargets are %.2f x more variable than targets", 1/ratio)
		}
	}
	spread := ref.Floats(genome.Spread)
	refLog2 := ref.Floats(genome.Log2)
	pooled := false
	if spread != nil {
		var wideSpread, fractional bool
		for i := range spread {
			wideSpread = wideSpread || spread[i] > weightEpsilon
			fractional = fractional || math.Abs(math.Mod(refLog2[i], 1)) > weightEpsilon
		}
		pooled = wideSpread && fractional
	}
	for i := range weights {
		if pooled {
			fancy := 1 - spread[i]*spread[i]
			weights[i] = spreadWeightShare*fancy + (1-spreadWeightShare)*weights[i]
		}
		weights[i] = math.Min(1, math.Max(weightEpsilon, weights[i]))
	}
	return weights
}
