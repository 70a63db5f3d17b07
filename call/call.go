// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package call converts segment log2 ratios into absolute integer copy
// numbers, accounting for sex-chromosome dosage and tumor purity, and
// optionally merges segments that are statistically indistinguishable.
package call

import (
	"fmt"
	"math"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/segmentation"
	"github.com/grailbio/cnv/segmetrics"
	"github.com/pkg/errors"
)

// Method selects how copy numbers are called.
type Method int

const (
	// Threshold assigns copy numbers by comparing log2 ratios to fixed cut
	// points.
	Threshold Method = iota
	// Clonal converts log2 ratios into copy numbers assuming a clonal tumor
	// of the given purity.
	Clonal
	// None leaves log2 unchanged and adds no copy numbers.
	None
)

var methodNames = []string{"threshold", "clonal", "none"}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// ParseMethod parses a Method name.
func ParseMethod(name string) (Method, error) {
	for i, n := range methodNames {
		if n == name {
			return Method(i), nil
		}
	}
	return 0, errors.Errorf("call: unknown method %q, expected one of %s", name, strings.Join(methodNames, ", "))
}

// ErrModel is the cause of errors for invalid ploidy, purity or thresholds.
var ErrModel = errors.New("invalid copy-number model")

// DefaultThresholds are the log2 cut points between copy numbers 0, 1, 2, 3
// and 4+ of a diploid genome.
var DefaultThresholds = []float64{-1.1, -0.25, 0.2, 0.7}

// Opts configures Call.
type Opts struct {
	Method Method
	// Thresholds are the increasing log2 cut points of the Threshold method.
	Thresholds []float64
	Ploidy     int
	// Purity is the tumor cell fraction in (0, 1].  One means pure.
	Purity float64
	// IsReferenceMale tells whether the reference has one X chromosome.
	IsReferenceMale bool
	// SampleSex is the sample's sex.  If unknown, the segments' metadata is
	// used, and failing that the sex is guessed from chrX.
	SampleSex genome.Sex
	// Filters are applied in order.  FilterCI and FilterSEM always run
	// before calling.
	Filters []Filter
	// AmpDelLimit is the largest |log2| FilterAmpDel keeps.
	AmpDelLimit float64
	// Variants, if set, supplies alt_freq values for B-allele frequencies
	// and allele-specific copy numbers.
	Variants *genome.Table
	// Bins, if set, are used to compute segment statistics that FilterCI or
	// FilterSEM need and the segments lack.
	Bins *genome.Table
}

// DefaultOpts are the default options for Call.
var DefaultOpts = Opts{
	Method:      Threshold,
	Thresholds:  DefaultThresholds,
	Ploidy:      2,
	Purity:      1,
	AmpDelLimit: 10,
}

// Validate checks the copy-number model.
func (o Opts) Validate() error {
	if o.Ploidy <= 0 {
		return errors.Wrapf(ErrModel, "ploidy must be positive, got %d", o.Ploidy)
	}
	if !(o.Purity > 0 && o.Purity <= 1) {
		return errors.Wrapf(ErrModel, "purity must be in (0, 1], got %v", o.Purity)
	}
	switch o.Method {
	case Threshold:
		if len(o.Thresholds) == 0 {
			return errors.Wrap(ErrModel, "no thresholds")
		}
		for i := 1; i < len(o.Thresholds); i++ {
			if !(o.Thresholds[i] > o.Thresholds[i-1]) {
				return errors.Wrapf(ErrModel, "thresholds must increase: %v", o.Thresholds)
			}
		}
	case Clonal, None:
	default:
		return errors.Errorf("call: unknown method %v", o.Method)
	}
	for _, f := range o.Filters {
		if f < FilterAmpDel || f > FilterSEM {
			return errors.Errorf("call: unknown filter %v", f)
		}
	}
	return nil
}

func (o Opts) impure() bool { return o.Purity < 1 }

// schema returns the columns Call produces from segments.
func (o Opts) schema(segments *genome.Table) genome.Schema {
	schema := segments.Schema()
	add := func(name string, kind genome.Kind) {
		if !schema.Has(name) {
			schema = append(schema, genome.Column{Name: name, Kind: kind})
		}
	}
	add(genome.Log2, genome.Float)
	if o.Variants != nil {
		add(genome.BAF, genome.Float)
	}
	if o.Method != None {
		add(genome.CN, genome.Int)
		if o.Variants != nil {
			add(genome.CN1, genome.Int)
			add(genome.CN2, genome.Int)
		}
	}
	return schema
}

// sampleFemale decides the sample's sex.
func (o Opts) sampleFemale(segments *genome.Table) bool {
	sex := o.SampleSex
	if sex == genome.SexUnknown {
		sex = segments.Meta().SampleSex
	}
	if sex == genome.SexUnknown {
		sex = segments.GuessSex(o.IsReferenceMale)
		log.Printf("call: %s: guessed sample sex %s", segments.Meta().SampleID, sex)
	}
	if sex == genome.SexUnknown {
		// Without chrX, assume the sample matches the reference.
		return !o.IsReferenceMale
	}
	return sex == genome.Female
}

// Call assigns copy numbers to segments.  The result holds the input columns,
// with log2 rescaled for purity when Purity < 1, plus cn (unless Method is
// None) and, with Variants, baf, cn1 and cn2.
func Call(segments *genome.Table, opts Opts) (*genome.Table, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if segments.Len() == 0 {
		return genome.Empty(segments.Meta(), opts.schema(segments)), nil
	}
	if !segments.Has(genome.Log2) {
		return nil, errors.Wrap(genome.ErrMissingColumn, "call: segments have no log2")
	}
	if !segments.IsSorted() {
		segments = segments.Sort()
	}
	isFemale := opts.sampleFemale(segments)
	meta := segments.Meta()
	meta.SampleSex = genome.Male
	if isFemale {
		meta.SampleSex = genome.Female
	}
	meta.ReferenceSex = genome.Female
	if opts.IsReferenceMale {
		meta.ReferenceSex = genome.Male
	}
	out := segments.WithMeta(meta)

	var err error
	for _, f := range opts.Filters {
		if !f.preCall() {
			continue
		}
		if out, err = withStatistics(out, f, opts); err != nil {
			return nil, err
		}
		n := out.Len()
		if out, err = f.apply(out, opts); err != nil {
			return nil, err
		}
		log.Printf("call: %s filter: %d segments -> %d", f, n, out.Len())
	}

	if opts.Variants != nil {
		if !opts.Variants.Has(genome.AltFreq) {
			return nil, errors.Wrap(genome.ErrMissingColumn, "call: variants have no alt_freq")
		}
		out = out.WithFloats(genome.BAF, segmentBAFs(out, opts.Variants))
	}

	if opts.Method != None {
		out = callCopies(out, opts, isFemale)
	}

	for _, f := range opts.Filters {
		if f.preCall() {
			continue
		}
		n := out.Len()
		if out, err = f.apply(out, opts); err != nil {
			return nil, err
		}
		log.Printf("call: %s filter: %d segments -> %d", f, n, out.Len())
	}
	log.Printf("call: %s: called %d segments (%s, ploidy %d, purity %v, %s sample on %s reference)",
		meta.SampleID, out.Len(), opts.Method, opts.Ploidy, opts.Purity, meta.SampleSex, meta.ReferenceSex)
	return out, nil
}

// withStatistics returns segments with the columns filter f needs, computing
// them from opts.Bins if necessary.
func withStatistics(segments *genome.Table, f Filter, opts Opts) (*genome.Table, error) {
	need := genome.SEM
	if f == FilterCI {
		need = genome.CILo
	}
	if segments.Has(need) {
		return segments, nil
	}
	if opts.Bins == nil {
		return nil, errors.Wrapf(genome.ErrMissingColumn, "call: filter %s needs %s or bins to compute it", f, need)
	}
	return segmetrics.Compute(opts.Bins, segments, segmetrics.DefaultOpts)
}

// segmentBAFs returns the B-allele frequency of each segment from the
// heterozygous variants inside it.
func segmentBAFs(segments, variants *genome.Table) []float64 {
	baf := make([]float64, segments.Len())
	index := genome.NewRangeIndex(variants)
	for j := range baf {
		var freqs []float64
		for _, i := range index.Overlapping(segments.Chrom(j), segments.Start(j), segments.End(j)) {
			if f := variants.Float(genome.AltFreq, i); !math.IsNaN(f) && segmentation.IsHeterozygous(variants, i) {
				freqs = append(freqs, f)
			}
		}
		baf[j] = segmentation.SegmentBAF(freqs)
	}
	return baf
}

// callCopies adds cn, and cn1 and cn2 if the segments have baf.
func callCopies(segments *genome.Table, opts Opts, isFemale bool) *genome.Table {
	n := segments.Len()
	log2 := segments.Floats(genome.Log2)
	baf := segments.Floats(genome.BAF)

	absolutes := make([]float64, n)
	for i := range absolutes {
		chrom := segments.Chrom(i)
		ref := ReferenceCopies(chrom, opts.Ploidy, opts.IsReferenceMale)
		if opts.impure() || opts.Method == Clonal {
			expect := ExpectedCopies(chrom, opts.Ploidy, isFemale)
			absolutes[i] = RatioToAbsolute(log2[i], ref, expect, opts.Purity)
		}
	}
	if opts.impure() {
		for i := range log2 {
			if !math.IsNaN(log2[i]) {
				log2[i] = AbsoluteToRatio(segments.Chrom(i), absolutes[i], opts.Ploidy, opts.IsReferenceMale)
			}
		}
		segments = segments.WithFloats(genome.Log2, log2)
		if baf != nil {
			for i := range baf {
				baf[i] = RescaleBAF(baf[i], opts.Purity)
			}
			segments = segments.WithFloats(genome.BAF, baf)
		}
	}

	cn := make([]int, n)
	for i := range cn {
		switch {
		case math.IsNaN(log2[i]):
			cn[i] = genome.MissingInt
		case opts.Method == Threshold:
			ref := ReferenceCopies(segments.Chrom(i), opts.Ploidy, opts.IsReferenceMale)
			cn[i] = thresholdCall(log2[i], opts.Thresholds, opts.Ploidy, ref)
			if !opts.impure() {
				absolutes[i] = float64(cn[i])
			}
		default:
			cn[i] = roundCopies(absolutes[i])
		}
	}
	segments = segments.WithInts(genome.CN, cn)
	if baf == nil {
		return segments
	}
	cn1 := make([]int, n)
	cn2 := make([]int, n)
	for i := range cn {
		cn1[i], cn2[i] = genome.MissingInt, genome.MissingInt
		if cn[i] == genome.MissingInt {
			continue
		}
		if a, b, ok := alleleCopies(absolutes[i], cn[i], baf[i]); ok {
			cn1[i], cn2[i] = a, b
		}
	}
	return segments.WithInts(genome.CN1, cn1).WithInts(genome.CN2, cn2)
}
