// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package segmentation infers piecewise-constant copy-number segments from
// normalized bin log2 ratios.
//
// Each chromosome is segmented independently, on a pool of Opts.Parallelism
// workers, and the per-chromosome results are assembled in genome order.  A
// segment covers a contiguous run of bins, including low-coverage bins that
// were excluded from the scan, and never spans two chromosomes.
package segmentation

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/interval"
	"github.com/grailbio/cnv/metrics"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Method selects the segmentation algorithm.
type Method int

const (
	// Haar finds breakpoints with a multiscale Haar wavelet scan, keeping
	// peaks that pass a false discovery rate threshold.
	Haar Method = iota
	// None emits one segment per chromosome.
	None
)

var methodNames = []string{"haar", "none"}

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
	return 0, errors.Errorf("segmentation: unknown method %q, expected one of %s",
		name, strings.Join(methodNames, ", "))
}

// ErrSignal is the cause of errors for bins whose log2 is infinite.
var ErrSignal = errors.New("non-finite log2 ratio")

// Opts configures Segment.
type Opts struct {
	Method Method
	// Threshold is the false discovery rate of Haar breakpoints.
	Threshold float64
	// SkipLow excludes low-coverage bins from the scan and from segment
	// means, and merges segments of fewer than MinProbes bins into a
	// neighbor.
	SkipLow   bool
	MinProbes int
	// Parallelism is the number of chromosomes segmented concurrently.
	Parallelism int
	// Variants, if not nil, holds per-position alt_freq values; each segment
	// is further split where the B-allele frequency changes, and the result
	// gets a baf column.
	Variants *genome.Table
}

// DefaultOpts are the default options for Segment.
var DefaultOpts = Opts{
	Method:      Haar,
	Threshold:   0.001,
	MinProbes:   3,
	Parallelism: runtime.NumCPU(),
}

// ChromosomeErrors reports the chromosomes that failed to segment.  Partial
// holds the segments of the chromosomes that succeeded.
type ChromosomeErrors struct {
	Errs    map[string]error
	Partial *genome.Table
}

func (e *ChromosomeErrors) Error() string {
	names := make([]string, 0, len(e.Errs))
	for c := range e.Errs {
		names = append(names, c)
	}
	sort.Slice(names, func(i, j int) bool { return interval.CompareChrom(names[i], names[j]) < 0 })
	msgs := make([]string, len(names))
	for i, c := range names {
		msgs[i] = fmt.Sprintf("%s: %v", c, e.Errs[c])
	}
	return fmt.Sprintf("segmentation failed on %d chromosome(s): %s", len(names), strings.Join(msgs, "; "))
}

func (o Opts) validate() error {
	switch o.Method {
	case Haar:
		if !(o.Threshold > 0 && o.Threshold < 1) {
			return errors.Errorf("segmentation: haar threshold must be in (0, 1), got %v", o.Threshold)
		}
	case None:
	default:
		return errors.Errorf("segmentation: unknown method %v", o.Method)
	}
	if o.Variants != nil && !o.Variants.Has(genome.AltFreq) {
		return errors.Wrap(genome.ErrMissingColumn, "segmentation: variants have no alt_freq")
	}
	return nil
}

// schema returns the columns of the segments produced from bins.
func (o Opts) schema(bins *genome.Table) genome.Schema {
	schema := genome.Schema{{Name: genome.Log2, Kind: genome.Float}}
	if bins.Has(genome.Depth) {
		schema = append(schema, genome.Column{Name: genome.Depth, Kind: genome.Float})
	}
	schema = append(schema,
		genome.Column{Name: genome.Probes, Kind: genome.Int},
		genome.Column{Name: genome.Weight, Kind: genome.Float})
	if o.Variants != nil {
		schema = append(schema, genome.Column{Name: genome.BAF, Kind: genome.Float})
	}
	return schema
}

// Segment partitions the bins of t into segments of constant copy number.
// If some chromosomes fail, Segment returns a nil table and a
// *ChromosomeErrors.
func Segment(t *genome.Table, opts Opts) (*genome.Table, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return genome.Empty(t.Meta(), opts.schema(t)), nil
	}
	if !t.Has(genome.Log2) {
		return nil, errors.Wrap(genome.ErrMissingColumn, "segmentation: bins have no log2")
	}
	if !t.IsSorted() {
		t = t.Sort()
	}
	schema := opts.schema(t)
	chroms := t.ByChromosome()
	results := make([]*genome.Table, len(chroms))
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	errs := eachChrom(parallelism, len(chroms), func(i int) (err error) {
		results[i], err = segmentChrom(chroms[i], schema, opts)
		return
	})

	var (
		done   []*genome.Table
		failed = map[string]error{}
	)
	for i, c := range chroms {
		if errs[i] != nil {
			failed[c.Chrom(0)] = errs[i]
			continue
		}
		done = append(done, results[i])
	}
	out := genome.Empty(t.Meta(), schema)
	if len(done) > 0 {
		out = genome.Concat(done...)
	}
	if len(failed) > 0 {
		log.Error.Printf("segmentation: %s: %d of %d chromosomes failed", t.Meta().SampleID, len(failed), len(chroms))
		return nil, &ChromosomeErrors{Errs: failed, Partial: out}
	}
	log.Printf("segmentation: %s: %d segments from %d bins on %d chromosomes (%s)",
		t.Meta().SampleID, out.Len(), t.Len(), len(chroms), opts.Method)
	return out, nil
}

// eachChrom runs job(0), ..., job(n-1) on a pool of parallelism workers and
// returns their errors by index.  A job that panics fails alone; the panic is
// returned as its error.
func eachChrom(parallelism, n int, job func(i int) error) []error {
	errs := make([]error, n)
	err := traverse.Limit(parallelism).Each(n, func(i int) error {
		defer func() {
			if v := recover(); v != nil {
				errs[i] = errors.Errorf("panic: %v", v)
			}
		}()
		errs[i] = job(i)
		return nil
	})
	if err != nil {
		for i := range errs {
			if errs[i] == nil {
				errs[i] = err
			}
		}
	}
	return errs
}

// chromSignal is the log2 signal of one chromosome restricted to the bins
// that take part in segmentation.
type chromSignal struct {
	bins   *genome.Table
	log2   []float64
	weight []float64
	// usable lists the rows of bins in the signal.
	usable []int
}

func newChromSignal(c *genome.Table, skipLow bool) (*chromSignal, error) {
	s := &chromSignal{bins: c}
	log2 := c.Floats(genome.Log2)
	weight := c.Floats(genome.Weight)
	for i, v := range log2 {
		if math.IsInf(v, 0) {
			return nil, errors.Wrapf(ErrSignal, "%s:%d-%d", c.Chrom(i), c.Start(i), c.End(i))
		}
		if math.IsNaN(v) || (skipLow && c.IsLowCoverage(i)) {
			continue
		}
		s.usable = append(s.usable, i)
		s.log2 = append(s.log2, v)
		w := 1.0
		if weight != nil && !math.IsNaN(weight[i]) {
			w = math.Max(weight[i], minHaarWeight)
		}
		s.weight = append(s.weight, w)
	}
	return s, nil
}

// usableIn returns the positions in s.usable of rows [lo, hi).
func (s *chromSignal) usableIn(lo, hi int) (a, b int) {
	a = sort.SearchInts(s.usable, lo)
	b = sort.SearchInts(s.usable, hi)
	return
}

// mean returns the weighted mean log2 of the usable rows in [lo, hi).  If
// there are none, all rows in the range are averaged.
func (s *chromSignal) mean(lo, hi int) float64 {
	a, b := s.usableIn(lo, hi)
	if a < b {
		return metrics.Mean(s.log2[a:b], s.weight[a:b])
	}
	var x []float64
	for i := lo; i < hi; i++ {
		if v := s.bins.Float(genome.Log2, i); !math.IsNaN(v) {
			x = append(x, v)
		}
	}
	if len(x) == 0 {
		return math.NaN()
	}
	return metrics.Mean(x, nil)
}

// bounds converts breakpoints in signal positions into row boundaries
// [0, ..., n].
func (s *chromSignal) bounds(breaks []int) []int {
	b := []int{0}
	for _, k := range breaks {
		if row := s.usable[k]; row > b[len(b)-1] {
			b = append(b, row)
		}
	}
	return append(b, s.bins.Len())
}

// mergeShort merges segments with fewer than minProbes usable bins into the
// neighbor whose mean is closer, the left one on ties.
func (s *chromSignal) mergeShort(bounds []int, minProbes int) []int {
	for len(bounds) > 2 {
		short := -1
		for j := 0; j+1 < len(bounds); j++ {
			if a, b := s.usableIn(bounds[j], bounds[j+1]); b-a < minProbes {
				short = j
				break
			}
		}
		if short < 0 {
			break
		}
		// Remove the boundary shared with the chosen neighbor.
		remove := short
		switch {
		case short == 0:
			remove = 1
		case short+2 < len(bounds):
			m := s.mean(bounds[short], bounds[short+1])
			left := s.mean(bounds[short-1], bounds[short])
			right := s.mean(bounds[short+1], bounds[short+2])
			if math.Abs(right-m) < math.Abs(left-m) || math.IsNaN(left) {
				remove = short + 1
			}
		}
		bounds = append(bounds[:remove], bounds[remove+1:]...)
	}
	return bounds
}

func segmentChrom(c *genome.Table, schema genome.Schema, opts Opts) (*genome.Table, error) {
	s, err := newChromSignal(c, opts.SkipLow)
	if err != nil {
		return nil, err
	}
	var breaks []int
	if opts.Method == Haar {
		breaks = haarBreakpoints(s.log2, s.weight, opts.Threshold)
	}
	bounds := s.bounds(breaks)
	if opts.SkipLow && opts.MinProbes > 1 {
		bounds = s.mergeShort(bounds, opts.MinProbes)
	}
	var variants *chromVariants
	if opts.Variants != nil {
		variants = newChromVariants(opts.Variants.InChrom(c.Chrom(0)))
		bounds = variants.split(c, bounds, opts.Threshold)
	}
	log.Debug.Printf("segmentation: %s: %d segments from %d bins", c.Chrom(0), len(bounds)-1, c.Len())

	b := genome.NewBuilder(c.Meta(), schema)
	depth := c.Floats(genome.Depth)
	for j := 0; j+1 < len(bounds); j++ {
		first, last := bounds[j], bounds[j+1]
		a, z := s.usableIn(first, last)
		var end interval.PosType
		var genes []string
		for i := first; i < last; i++ {
			if c.End(i) > end {
				end = c.End(i)
			}
			if g := c.Gene(i); g != "-" && g != "" && !genome.IsAntitarget(g) {
				genes = append(genes, g)
			}
		}
		gene := "-"
		if genes = lo.Uniq(genes); len(genes) > 0 {
			gene = strings.Join(genes, ",")
		}
		values := []float64{s.mean(first, last)}
		if depth != nil {
			var d, w []float64
			for k := a; k < z; k++ {
				d = append(d, depth[s.usable[k]])
				w = append(w, s.weight[k])
			}
			dv := math.NaN()
			if len(d) > 0 {
				dv = metrics.Mean(d, w)
			}
			values = append(values, dv)
		}
		var wsum float64
		for _, w := range s.weight[a:z] {
			wsum += w
		}
		values = append(values, float64(z-a), wsum)
		if variants != nil {
			values = append(values, variants.baf(c.Start(first), end))
		}
		b.Add(genome.Row{Chrom: c.Chrom(first), Start: c.Start(first), End: end, Gene: gene, Values: values})
	}
	return b.Table()
}
