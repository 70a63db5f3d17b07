// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package genome

import (
	"github.com/grailbio/cnv/interval"
	"github.com/pkg/errors"
)

// Builder accumulates rows and produces a sorted Table.
type Builder struct {
	meta   Meta
	schema Schema
	rows   []Row
	err    error
}

// NewBuilder returns a Builder for tables with the given metadata and schema.
func NewBuilder(meta Meta, schema Schema) *Builder {
	return &Builder{meta: meta, schema: schema.clone()}
}

func checkCoords(chrom string, start, end interval.PosType) error {
	if chrom == "" {
		return errors.Wrap(ErrInvalidRange, "empty chromosome name")
	}
	if start < 0 || end <= start {
		return errors.Wrapf(ErrInvalidRange, "%s:%d-%d", chrom, start, end)
	}
	return nil
}

// Add appends a row.  The first invalid row is reported by Table.
func (b *Builder) Add(r Row) {
	if b.err != nil {
		return
	}
	if err := checkCoords(r.Chrom, r.Start, r.End); err != nil {
		b.err = errors.Wrapf(err, "row %d", len(b.rows))
		return
	}
	if len(r.Values) != len(b.schema) {
		b.err = errors.Errorf("row %d: %d values for schema %v", len(b.rows), len(r.Values), b.schema)
		return
	}
	r.Values = append([]float64(nil), r.Values...)
	b.rows = append(b.rows, r)
}

// Len returns the number of rows added so far.
func (b *Builder) Len() int { return len(b.rows) }

// Table returns the accumulated rows as a sorted Table.
func (b *Builder) Table() (*Table, error) {
	if b.err != nil {
		return nil, b.err
	}
	t := newTable(b.meta, b.schema, len(b.rows))
	for i, r := range b.rows {
		t.chrom[i] = r.Chrom
		t.start[i] = r.Start
		t.end[i] = r.End
		t.gene[i] = r.Gene
		for ci := range t.cols {
			t.setCell(ci, i, r.Values[ci])
		}
	}
	return t.finish(), nil
}

// finish computes the derived fields of a freshly filled table and sorts it.
func (t *Table) finish() *Table {
	t.computeMaxLen()
	if t.isSorted() {
		t.sorted = true
		return t
	}
	return t.Sort()
}

// ColumnData holds the values of one optional column.  Exactly one of Floats
// and Ints is set.
type ColumnData struct {
	Name   string
	Floats []float64
	Ints   []int
}

// Source is an already-parsed columnar table, as produced by a file reader.
// Genes may be nil, in which case every row gets the gene "-".
type Source struct {
	Meta    Meta
	Chroms  []string
	Starts  []interval.PosType
	Ends    []interval.PosType
	Genes   []string
	Columns []ColumnData
}

// FromColumns builds a sorted Table from src, validating lengths and
// coordinates.
func FromColumns(src Source) (*Table, error) {
	n := len(src.Chroms)
	if len(src.Starts) != n || len(src.Ends) != n || (src.Genes != nil && len(src.Genes) != n) {
		return nil, errors.Wrapf(ErrShape, "positional columns have lengths %d, %d, %d, %d",
			n, len(src.Starts), len(src.Ends), len(src.Genes))
	}
	var schema Schema
	for _, c := range src.Columns {
		if schema.Has(c.Name) {
			return nil, errors.Errorf("duplicate column %q", c.Name)
		}
		switch {
		case c.Ints != nil && c.Floats == nil:
			schema = append(schema, Column{Name: c.Name, Kind: Int})
			if len(c.Ints) != n {
				return nil, errors.Wrapf(ErrShape, "column %s has %d values, want %d", c.Name, len(c.Ints), n)
			}
		case c.Ints == nil:
			schema = append(schema, Column{Name: c.Name, Kind: Float})
			if len(c.Floats) != n {
				return nil, errors.Wrapf(ErrShape, "column %s has %d values, want %d", c.Name, len(c.Floats), n)
			}
		default:
			return nil, errors.Errorf("column %q has both float and int values", c.Name)
		}
	}
	t := newTable(src.Meta, schema, n)
	for i := 0; i < n; i++ {
		if err := checkCoords(src.Chroms[i], src.Starts[i], src.Ends[i]); err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
	}
	copy(t.chrom, src.Chroms)
	copy(t.start, src.Starts)
	copy(t.end, src.Ends)
	if src.Genes != nil {
		copy(t.gene, src.Genes)
	} else {
		for i := range t.gene {
			t.gene[i] = "-"
		}
	}
	for ci, c := range src.Columns {
		if schema[ci].Kind == Int {
			copy(t.cols[ci].i, c.Ints)
		} else {
			copy(t.cols[ci].f, c.Floats)
		}
	}
	return t.finish(), nil
}
