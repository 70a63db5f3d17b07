// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package genome

import (
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/cnv/interval"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

type column struct {
	f []float64
	i []int
}

func (c column) clone() column {
	var n column
	if c.f != nil {
		n.f = make([]float64, len(c.f))
		copy(n.f, c.f)
	} else {
		n.i = make([]int, len(c.i))
		copy(n.i, c.i)
	}
	return n
}

// Table is an ordered collection of genomic intervals with typed columns:
// a bin-level coverage table, a segment table, a reference, or a variant
// list.
//
// Every operation that returns a *Table returns a fresh copy; the result
// shares no storage with the receiver.  Only SetRow and SetSlice modify a
// table in place.
//
// Tables produced by Builder, FromColumns, Concat and Sort are sorted by
// (interval.CompareChrom, start, end).  Range queries use binary search on
// sorted tables and fall back to a linear scan otherwise.
type Table struct {
	meta   Meta
	schema Schema
	chrom  []string
	start  []interval.PosType
	end    []interval.PosType
	gene   []string
	cols   []column
	sorted bool
	// maxLen bounds end-start over all rows.  It may overestimate.
	maxLen interval.PosType
}

// Row is a single table row.  Values is aligned with the table's Schema; int
// cells are converted to float64 with MissingInt mapped to NaN.
type Row struct {
	Chrom  string
	Start  interval.PosType
	End    interval.PosType
	Gene   string
	Values []float64
}

func newTable(meta Meta, schema Schema, n int) *Table {
	t := &Table{
		meta:   meta,
		schema: schema.clone(),
		chrom:  make([]string, n),
		start:  make([]interval.PosType, n),
		end:    make([]interval.PosType, n),
		gene:   make([]string, n),
		cols:   make([]column, len(schema)),
	}
	for ci, c := range schema {
		if c.Kind == Int {
			t.cols[ci].i = make([]int, n)
		} else {
			t.cols[ci].f = make([]float64, n)
		}
	}
	return t
}

// Empty returns a table with no rows.
func Empty(meta Meta, schema Schema) *Table {
	t := newTable(meta, schema, 0)
	t.sorted = true
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.chrom) }

// Meta returns the table metadata.
func (t *Table) Meta() Meta { return t.meta }

// WithMeta returns a copy of the table carrying meta.
func (t *Table) WithMeta(meta Meta) *Table {
	n := t.Copy()
	n.meta = meta
	return n
}

// Schema returns a copy of the optional-column schema.
func (t *Table) Schema() Schema { return t.schema.clone() }

// Has returns whether the table carries the named optional column.
func (t *Table) Has(name string) bool { return t.schema.Has(name) }

// Chrom returns the chromosome of row i.
func (t *Table) Chrom(i int) string { return t.chrom[i] }

// Start returns the 0-based start of row i.
func (t *Table) Start(i int) interval.PosType { return t.start[i] }

// End returns the exclusive end of row i.
func (t *Table) End(i int) interval.PosType { return t.end[i] }

// Gene returns the gene label of row i.
func (t *Table) Gene(i int) string { return t.gene[i] }

// Size returns end-start of row i.
func (t *Table) Size(i int) interval.PosType { return t.end[i] - t.start[i] }

// Chroms returns a copy of the chromosome column.
func (t *Table) Chroms() []string { return append([]string(nil), t.chrom...) }

// Starts returns a copy of the start column.
func (t *Table) Starts() []interval.PosType { return append([]interval.PosType(nil), t.start...) }

// Ends returns a copy of the end column.
func (t *Table) Ends() []interval.PosType { return append([]interval.PosType(nil), t.end...) }

// Genes returns a copy of the gene column.
func (t *Table) Genes() []string { return append([]string(nil), t.gene...) }

// Sizes returns end-start for every row, as float64.
func (t *Table) Sizes() []float64 {
	s := make([]float64, t.Len())
	for i := range s {
		s[i] = float64(t.end[i] - t.start[i])
	}
	return s
}

func intToFloat(v int) float64 {
	if v == MissingInt {
		return math.NaN()
	}
	return float64(v)
}

func floatToInt(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MissingInt
	}
	return int(math.RoundToEven(v))
}

// Floats returns a copy of the named column as float64, or nil if the table
// has no such column.  Int columns are converted, MissingInt becoming NaN.
func (t *Table) Floats(name string) []float64 {
	ci := t.schema.Index(name)
	if ci < 0 {
		return nil
	}
	c := t.cols[ci]
	if c.f != nil {
		return append([]float64(nil), c.f...)
	}
	out := make([]float64, len(c.i))
	for i, v := range c.i {
		out[i] = intToFloat(v)
	}
	return out
}

// Float returns the named cell of row i, or NaN if the column is absent.
func (t *Table) Float(name string, i int) float64 {
	ci := t.schema.Index(name)
	if ci < 0 {
		return math.NaN()
	}
	return t.cell(ci, i)
}

func (t *Table) cell(ci, i int) float64 {
	c := t.cols[ci]
	if c.f != nil {
		return c.f[i]
	}
	return intToFloat(c.i[i])
}

func (t *Table) setCell(ci, i int, v float64) {
	c := t.cols[ci]
	if c.f != nil {
		c.f[i] = v
	} else {
		c.i[i] = floatToInt(v)
	}
}

// Ints returns a copy of the named column as int, or nil if the table has no
// such column.  Float columns are rounded half to even, NaN becoming
// MissingInt.
func (t *Table) Ints(name string) []int {
	ci := t.schema.Index(name)
	if ci < 0 {
		return nil
	}
	c := t.cols[ci]
	if c.i != nil {
		return append([]int(nil), c.i...)
	}
	out := make([]int, len(c.f))
	for i, v := range c.f {
		out[i] = floatToInt(v)
	}
	return out
}

// Int returns the named cell of row i as an int, or MissingInt if the column
// is absent.
func (t *Table) Int(name string, i int) int {
	ci := t.schema.Index(name)
	if ci < 0 {
		return MissingInt
	}
	c := t.cols[ci]
	if c.i != nil {
		return c.i[i]
	}
	return floatToInt(c.f[i])
}

func (t *Table) withColumn(name string, kind Kind, c column, n int) *Table {
	if n != t.Len() {
		log.Panicf("genome: column %s has %d values, table has %d rows", name, n, t.Len())
	}
	out := t.Copy()
	if ci := out.schema.Index(name); ci >= 0 {
		out.schema[ci].Kind = kind
		out.cols[ci] = c
		return out
	}
	out.schema = append(out.schema, Column{Name: name, Kind: kind})
	out.cols = append(out.cols, c)
	return out
}

// WithFloats returns a copy of the table with the float column name set to
// values, appending it to the schema if needed.  It panics if len(values)
// differs from t.Len().
func (t *Table) WithFloats(name string, values []float64) *Table {
	return t.withColumn(name, Float, column{f: append([]float64{}, values...)}, len(values))
}

// WithInts returns a copy of the table with the int column name set to
// values, appending it to the schema if needed.  It panics if len(values)
// differs from t.Len().
func (t *Table) WithInts(name string, values []int) *Table {
	return t.withColumn(name, Int, column{i: append([]int{}, values...)}, len(values))
}

// WithoutColumns returns a copy of the table with the named optional columns
// removed.  Unknown names are ignored.
func (t *Table) WithoutColumns(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var keep []string
	for _, c := range t.schema {
		if !drop[c.Name] {
			keep = append(keep, c.Name)
		}
	}
	return t.selectColumns(keep)
}

func (t *Table) selectColumns(names []string) *Table {
	out := t.Copy()
	out.schema = nil
	out.cols = nil
	for _, name := range names {
		ci := t.schema.Index(name)
		if ci < 0 {
			continue
		}
		out.schema = append(out.schema, t.schema[ci])
		out.cols = append(out.cols, t.cols[ci].clone())
	}
	return out
}

// DropExtraColumns returns a copy holding only the positional columns, gene,
// and log2.
func (t *Table) DropExtraColumns() *Table {
	return t.selectColumns([]string{Log2})
}

// Row returns row i.
func (t *Table) Row(i int) Row {
	r := Row{
		Chrom:  t.chrom[i],
		Start:  t.start[i],
		End:    t.end[i],
		Gene:   t.gene[i],
		Values: make([]float64, len(t.schema)),
	}
	for ci := range t.cols {
		r.Values[ci] = t.cell(ci, i)
	}
	return r
}

func (t *Table) ordered(i, j int) bool {
	if c := interval.CompareChrom(t.chrom[i], t.chrom[j]); c != 0 {
		return c < 0
	}
	if t.start[i] != t.start[j] {
		return t.start[i] < t.start[j]
	}
	return t.end[i] <= t.end[j]
}

// SetRow overwrites row i in place.  len(r.Values) must match the schema.
func (t *Table) SetRow(i int, r Row) {
	if len(r.Values) != len(t.schema) {
		log.Panicf("genome: row has %d values, schema %v", len(r.Values), t.schema)
	}
	t.chrom[i] = r.Chrom
	t.start[i] = r.Start
	t.end[i] = r.End
	t.gene[i] = r.Gene
	for ci := range t.cols {
		t.setCell(ci, i, r.Values[ci])
	}
	if l := r.End - r.Start; l > t.maxLen {
		t.maxLen = l
	}
	if t.sorted {
		t.sorted = (i == 0 || t.ordered(i-1, i)) && (i == t.Len()-1 || t.ordered(i, i+1))
	}
}

// SetSlice overwrites rows [i, i+src.Len()) with the rows of src, which must
// have the same schema.  Assigning a slice of t back to the same position
// leaves t unchanged.
func (t *Table) SetSlice(i int, src *Table) {
	if !t.schema.Equal(src.schema) {
		log.Panicf("genome: SetSlice schema %v, want %v", src.schema, t.schema)
	}
	if i < 0 || i+src.Len() > t.Len() {
		log.Panicf("genome: SetSlice [%d, %d) out of range [0, %d)", i, i+src.Len(), t.Len())
	}
	n := src.Len()
	copy(t.chrom[i:i+n], src.chrom)
	copy(t.start[i:i+n], src.start)
	copy(t.end[i:i+n], src.end)
	copy(t.gene[i:i+n], src.gene)
	for ci, c := range src.cols {
		if c.f != nil {
			copy(t.cols[ci].f[i:i+n], c.f)
		} else {
			copy(t.cols[ci].i[i:i+n], c.i)
		}
	}
	if src.maxLen > t.maxLen {
		t.maxLen = src.maxLen
	}
	if t.sorted {
		t.sorted = t.isSorted()
	}
}

// Take returns a new table holding rows idx, in that order.
func (t *Table) Take(idx []int) *Table {
	out := newTable(t.meta, t.schema, len(idx))
	sorted := t.sorted
	for k, i := range idx {
		out.chrom[k] = t.chrom[i]
		out.start[k] = t.start[i]
		out.end[k] = t.end[i]
		out.gene[k] = t.gene[i]
		if k > 0 && idx[k-1] >= i {
			sorted = false
		}
	}
	for ci, c := range t.cols {
		if c.f != nil {
			for k, i := range idx {
				out.cols[ci].f[k] = c.f[i]
			}
		} else {
			for k, i := range idx {
				out.cols[ci].i[k] = c.i[i]
			}
		}
	}
	out.maxLen = t.maxLen
	if sorted {
		out.sorted = true
	} else {
		out.sorted = out.isSorted()
	}
	return out
}

// Slice returns a copy of rows [i, j).
func (t *Table) Slice(i, j int) *Table {
	idx := make([]int, 0, j-i)
	for k := i; k < j; k++ {
		idx = append(idx, k)
	}
	return t.Take(idx)
}

// Mask returns a copy of the rows for which mask is true.
func (t *Table) Mask(mask []bool) *Table {
	if len(mask) != t.Len() {
		log.Panicf("genome: mask has %d entries, table has %d rows", len(mask), t.Len())
	}
	var idx []int
	for i, m := range mask {
		if m {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}

// Copy returns a deep copy of the table.
func (t *Table) Copy() *Table {
	out := &Table{
		meta:   t.meta,
		schema: t.schema.clone(),
		chrom:  append([]string(nil), t.chrom...),
		start:  append([]interval.PosType(nil), t.start...),
		end:    append([]interval.PosType(nil), t.end...),
		gene:   append([]string(nil), t.gene...),
		cols:   make([]column, len(t.cols)),
		sorted: t.sorted,
		maxLen: t.maxLen,
	}
	for ci, c := range t.cols {
		out.cols[ci] = c.clone()
	}
	return out
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// Equal returns whether the two tables hold the same rows in the same order
// with the same schema.  NaN equals NaN.  Metadata is not compared.
func (t *Table) Equal(o *Table) bool {
	if t.Len() != o.Len() || !t.schema.Equal(o.schema) {
		return false
	}
	for i := range t.chrom {
		if t.chrom[i] != o.chrom[i] || t.start[i] != o.start[i] || t.end[i] != o.end[i] || t.gene[i] != o.gene[i] {
			return false
		}
	}
	for ci, c := range t.cols {
		if c.f != nil {
			for i, v := range c.f {
				if !sameFloat(v, o.cols[ci].f[i]) {
					return false
				}
			}
		} else {
			for i, v := range c.i {
				if v != o.cols[ci].i[i] {
					return false
				}
			}
		}
	}
	return true
}

// String summarizes the table, for debugging.
func (t *Table) String() string {
	return fmt.Sprintf("genome.Table{sample: %q, rows: %d, columns: %v}", t.meta.SampleID, t.Len(), t.schema)
}

func (t *Table) computeMaxLen() {
	t.maxLen = 0
	for i := range t.start {
		if l := t.end[i] - t.start[i]; l > t.maxLen {
			t.maxLen = l
		}
	}
}

func (t *Table) isSorted() bool {
	for i := 1; i < t.Len(); i++ {
		if !t.ordered(i-1, i) {
			return false
		}
	}
	return true
}

// IsSorted returns whether rows are in (chromosome, start, end) order.
func (t *Table) IsSorted() bool { return t.sorted }

// Sort returns a copy of the table with rows in (chromosome, start, end)
// order.  Rows that compare equal keep their relative order.
func (t *Table) Sort() *Table {
	idx := make([]int, t.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if c := interval.CompareChrom(t.chrom[i], t.chrom[j]); c != 0 {
			return c < 0
		}
		if t.start[i] != t.start[j] {
			return t.start[i] < t.start[j]
		}
		return t.end[i] < t.end[j]
	})
	out := t.Take(idx)
	out.sorted = true
	return out
}

// Concat joins tables row-wise and sorts the result.  The schema is the union
// of the input schemas in order of first appearance; cells of columns a
// table lacks are NaN or MissingInt.  Metadata comes from the first table.
func Concat(tables ...*Table) *Table {
	var (
		meta   Meta
		schema Schema
		n      int
	)
	for k, t := range tables {
		if k == 0 {
			meta = t.meta
		}
		for _, c := range t.schema {
			if !schema.Has(c.Name) {
				schema = append(schema, c)
			}
		}
		n += t.Len()
	}
	out := newTable(meta, schema, n)
	row := 0
	for _, t := range tables {
		copy(out.chrom[row:], t.chrom)
		copy(out.start[row:], t.start)
		copy(out.end[row:], t.end)
		copy(out.gene[row:], t.gene)
		for ci, c := range schema {
			src := t.schema.Index(c.Name)
			for i := 0; i < t.Len(); i++ {
				v := math.NaN()
				if src >= 0 {
					v = t.cell(src, i)
				}
				out.setCell(ci, row+i, v)
			}
		}
		if t.maxLen > out.maxLen {
			out.maxLen = t.maxLen
		}
		row += t.Len()
	}
	if out.isSorted() {
		out.sorted = true
		return out
	}
	return out.Sort()
}

// chromRange returns the rows [lo, hi) of chrom in a sorted table.
func (t *Table) chromRange(chrom string) (lo, hi int) {
	n := t.Len()
	lo = sort.Search(n, func(i int) bool { return interval.CompareChrom(t.chrom[i], chrom) >= 0 })
	hi = sort.Search(n, func(i int) bool { return interval.CompareChrom(t.chrom[i], chrom) > 0 })
	return
}

// overlapping returns the indices of rows on chrom overlapping [start, end).
func (t *Table) overlapping(chrom string, start, end interval.PosType) []int {
	var idx []int
	if end <= start {
		return nil
	}
	if !t.sorted {
		for i := range t.chrom {
			if t.chrom[i] == chrom && t.start[i] < end && t.end[i] > start {
				idx = append(idx, i)
			}
		}
		return idx
	}
	cLo, cHi := t.chromRange(chrom)
	starts := t.start[cLo:cHi]
	// A row can overlap start only if it begins after start-maxLen.
	lo := cLo + interval.SearchPos(starts, start-t.maxLen+1)
	hi := cLo + interval.SearchPos(starts, end)
	for i := lo; i < hi; i++ {
		if t.end[i] > start {
			idx = append(idx, i)
		}
	}
	return idx
}

// InRange returns the rows of chrom overlapping the half-open range
// [start, end).
func (t *Table) InRange(chrom string, start, end interval.PosType) (*Table, error) {
	if end < start {
		return nil, errors.Wrapf(ErrInvalidRange, "%s:%d-%d", chrom, start, end)
	}
	return t.Take(t.overlapping(chrom, start, end)), nil
}

// InChrom returns the rows of chrom.
func (t *Table) InChrom(chrom string) *Table {
	if t.sorted {
		lo, hi := t.chromRange(chrom)
		return t.Slice(lo, hi)
	}
	mask := make([]bool, t.Len())
	for i, c := range t.chrom {
		mask[i] = c == chrom
	}
	return t.Mask(mask)
}

// InRegion returns the rows overlapping a region string such as
// "chr1:1,001-2,000" or "chrX".
func (t *Table) InRegion(region string) (*Table, error) {
	r, err := interval.ParseRegion(region)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidRange, err.Error())
	}
	return t.InRange(r.Chrom, r.Start, r.End)
}

// runs calls fn for every maximal run of consecutive rows on the same
// chromosome.
func (t *Table) runs(fn func(chrom string, lo, hi int)) {
	lo := 0
	for i := 1; i <= t.Len(); i++ {
		if i == t.Len() || t.chrom[i] != t.chrom[lo] {
			fn(t.chrom[lo], lo, i)
			lo = i
		}
	}
}

// Chromosomes returns the distinct chromosomes in row order.
func (t *Table) Chromosomes() []string {
	return lo.Uniq(t.chrom)
}

// ByChromosome splits the table into one table per chromosome, in the order
// of Chromosomes.
func (t *Table) ByChromosome() []*Table {
	var out []*Table
	for _, c := range t.Chromosomes() {
		out = append(out, t.InChrom(c))
	}
	return out
}

// Autosomes returns the rows on numbered chromosomes.
func (t *Table) Autosomes() *Table {
	mask := make([]bool, t.Len())
	for i, c := range t.chrom {
		mask[i] = interval.IsAutosome(c)
	}
	return t.Mask(mask)
}
