// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package cnvio reads and writes genome tables as tab-separated text with a
// header row: chromosome, start, end and gene, followed by one column per
// value (log2, depth, weight, cn, ...).  This is the layout of .cnn, .cnr and
// .cns files.  Coordinates are 0-based half-open.  Paths ending in .gz are
// gzip-compressed.
package cnvio

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/interval"
	"github.com/klauspost/compress/gzip"
)

// Positional column names.
const (
	ChromColumn = "chromosome"
	StartColumn = "start"
	EndColumn   = "end"
	GeneColumn  = "gene"
)

var positional = []string{ChromColumn, StartColumn, EndColumn, GeneColumn}

// missing is written for NaN floats and missing ints.
const missing = ""

// SampleID derives a sample ID from a file path by dropping the directory and
// the table extensions.
func SampleID(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	for _, ext := range []string{".cnn", ".cnr", ".cns", ".call", ".tsv", ".txt"} {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	if base == "" {
		return path
	}
	return base
}

func parseFloat(s string) (float64, error) {
	switch s {
	case "", "NA", "NaN", "nan", ".":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int, error) {
	switch s {
	case "", "NA", "NaN", "nan", ".":
		return genome.MissingInt, nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	// Integer columns written by other tools may carry a decimal point.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(math.RoundToEven(f)), nil
}

func lineError(err error, line int, column string) error {
	return errors.E(errors.Invalid, err, fmt.Sprintf("cnvio: line %d, column %s", line, column))
}

func parsePos(s string) (interval.PosType, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	return interval.PosType(v), err
}

// Read parses a table.  chromosome, start and end are required; gene defaults
// to "-".  Columns named by genome.IntColumn are read as integers, all others
// as floats.  An empty input yields an empty table.
func Read(r io.Reader, sampleID string) (*genome.Table, error) {
	tr := tsv.NewReader(r)
	tr.Comment = '#'
	header, err := tr.Reader.Read()
	if err == io.EOF {
		return genome.Empty(genome.Meta{SampleID: sampleID}, nil), nil
	}
	if err != nil {
		return nil, errors.E(err, "cnvio: read header")
	}
	index := map[string]int{}
	for i, name := range header {
		if _, ok := index[name]; ok {
			return nil, errors.E(errors.Invalid, "cnvio: duplicate column", name)
		}
		index[name] = i
	}
	for _, name := range positional[:3] {
		if _, ok := index[name]; !ok {
			return nil, errors.E(errors.Invalid, "cnvio: missing column", name)
		}
	}
	var (
		src     = genome.Source{Meta: genome.Meta{SampleID: sampleID}}
		geneCol = -1
		valCols []int
	)
	if i, ok := index[GeneColumn]; ok {
		geneCol = i
	}
	for i, name := range header {
		switch name {
		case ChromColumn, StartColumn, EndColumn, GeneColumn:
			continue
		}
		valCols = append(valCols, i)
		src.Columns = append(src.Columns, genome.ColumnData{Name: name})
	}
	for line := 2; ; line++ {
		rec, err := tr.Reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("cnvio: line %d", line))
		}
		start, err := parsePos(rec[index[StartColumn]])
		if err != nil {
			return nil, lineError(err, line, StartColumn)
		}
		end, err := parsePos(rec[index[EndColumn]])
		if err != nil {
			return nil, lineError(err, line, EndColumn)
		}
		gene := "-"
		if geneCol >= 0 && rec[geneCol] != "" {
			gene = rec[geneCol]
		}
		src.Chroms = append(src.Chroms, rec[index[ChromColumn]])
		src.Starts = append(src.Starts, start)
		src.Ends = append(src.Ends, end)
		src.Genes = append(src.Genes, gene)
		for k, i := range valCols {
			c := &src.Columns[k]
			if genome.IntColumn(c.Name) {
				v, err := parseInt(rec[i])
				if err != nil {
					return nil, lineError(err, line, c.Name)
				}
				c.Ints = append(c.Ints, v)
				continue
			}
			v, err := parseFloat(rec[i])
			if err != nil {
				return nil, lineError(err, line, c.Name)
			}
			c.Floats = append(c.Floats, v)
		}
	}
	// Columns of a table without rows still need their kind.
	for k := range src.Columns {
		c := &src.Columns[k]
		if c.Ints == nil && c.Floats == nil {
			if genome.IntColumn(c.Name) {
				c.Ints = []int{}
			} else {
				c.Floats = []float64{}
			}
		}
	}
	t, err := genome.FromColumns(src)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "cnvio: table", sampleID)
	}
	return t, nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return missing
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatInt(v int) string {
	if v == genome.MissingInt {
		return missing
	}
	return strconv.Itoa(v)
}

// Write writes t with a header row.
func Write(w io.Writer, t *genome.Table) error {
	tw := tsv.NewWriter(w)
	schema := t.Schema()
	for _, name := range positional {
		tw.WriteString(name)
	}
	for _, c := range schema {
		tw.WriteString(c.Name)
	}
	if err := tw.EndLine(); err != nil {
		return err
	}
	cols := make([]func(i int) string, len(schema))
	for k, c := range schema {
		if c.Kind == genome.Int {
			v := t.Ints(c.Name)
			cols[k] = func(i int) string { return formatInt(v[i]) }
		} else {
			v := t.Floats(c.Name)
			cols[k] = func(i int) string { return formatFloat(v[i]) }
		}
	}
	for i := 0; i < t.Len(); i++ {
		tw.WriteString(t.Chrom(i))
		tw.WriteString(strconv.Itoa(int(t.Start(i))))
		tw.WriteString(strconv.Itoa(int(t.End(i))))
		tw.WriteString(t.Gene(i))
		for _, col := range cols {
			tw.WriteString(col(i))
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// ReadFile reads the table at path, which may be local or any path the file
// package supports.  The sample ID is derived from the path.
func ReadFile(ctx context.Context, path string) (_ *genome.Table, err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "cnvio: open", path)
	}
	defer func() {
		if cerr := f.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	r := io.Reader(f.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.E(err, "cnvio: gzip", path)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
	}
	t, err := Read(r, SampleID(path))
	if err != nil {
		return nil, errors.E(err, path)
	}
	log.Debug.Printf("cnvio: read %d rows from %s", t.Len(), path)
	return t, nil
}

// WriteFile writes t to path, gzip-compressed if the path ends in .gz.
func WriteFile(ctx context.Context, path string, t *genome.Table) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "cnvio: create", path)
	}
	defer file.CloseAndReport(ctx, f, &err)
	w := f.Writer(ctx)
	if fileio.DetermineType(path) != fileio.Gzip {
		return Write(w, t)
	}
	gz := gzip.NewWriter(w)
	if err = Write(gz, t); err != nil {
		return err
	}
	return gz.Close()
}
