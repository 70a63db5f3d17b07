// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package genome

import (
	"math"

	"github.com/grailbio/cnv/interval"
	"github.com/grailbio/cnv/metrics"
	"github.com/pkg/errors"
)

// Union returns the union of the table's intervals.
func (t *Table) Union() (*interval.Union, error) {
	src := t
	if !t.sorted {
		src = t.Sort()
	}
	regions := make([]interval.Region, src.Len())
	for i := range regions {
		regions[i] = interval.Region{Chrom: src.chrom[i], Start: src.start[i], End: src.end[i]}
	}
	return interval.NewUnion(regions)
}

// Residuals returns, for each row of t, its log2 deviation from the region of
// other that contains it:
//
//   - other == nil: the row's own log2;
//   - other has log2 (segments): row log2 minus segment log2;
//   - other has no log2 (plain regions): row log2 minus the median log2 of
//     the rows inside the region.
//
// Rows that straddle a region boundary are dropped.  A row that lies
// entirely outside other yields ErrShape.  Residuals come back in row order.
func (t *Table) Residuals(other *Table) ([]float64, error) {
	if !t.Has(Log2) {
		return nil, errors.Wrap(ErrMissingColumn, "residuals: table has no log2")
	}
	log2 := t.Floats(Log2)
	if other == nil {
		return log2, nil
	}
	var (
		resid   = make([]float64, t.Len())
		covered = make([]bool, t.Len())
		index   = NewRangeIndex(t)
		segLog2 = other.Floats(Log2)
	)
	for j := 0; j < other.Len(); j++ {
		rows := index.Contained(other.chrom[j], other.start[j], other.end[j])
		if len(rows) == 0 {
			continue
		}
		center := math.NaN()
		if segLog2 != nil {
			center = segLog2[j]
		} else {
			vals := make([]float64, 0, len(rows))
			for _, i := range rows {
				vals = append(vals, log2[i])
			}
			center = metrics.Median(vals)
		}
		for _, i := range rows {
			resid[i] = log2[i] - center
			covered[i] = true
		}
	}
	union, err := other.Union()
	if err != nil {
		return nil, errors.Wrap(err, "residuals")
	}
	out := make([]float64, 0, t.Len())
	for i := range resid {
		if covered[i] {
			out = append(out, resid[i])
			continue
		}
		if !union.Intersects(t.chrom[i], t.start[i], t.end[i]) {
			return nil, errors.Wrapf(ErrShape, "residuals: row %s:%d-%d is outside all regions",
				t.chrom[i], t.start[i], t.end[i])
		}
	}
	return out, nil
}
