// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package genome

import (
	"sort"

	biointerval "github.com/biogo/store/interval"
	"github.com/grailbio/base/log"
	"github.com/grailbio/cnv/interval"
)

// rowInterval is one table row stored in an interval tree.
type rowInterval struct {
	row        uintptr
	start, end int
}

// Overlap reports half-open overlap with b.
func (r rowInterval) Overlap(b biointerval.IntRange) bool {
	return r.start < b.End && b.Start < r.end
}
func (r rowInterval) ID() uintptr { return r.row }
func (r rowInterval) Range() biointerval.IntRange {
	return biointerval.IntRange{Start: r.start, End: r.end}
}

type rangeQuery struct {
	start, end int
}

func (q rangeQuery) Overlap(b biointerval.IntRange) bool {
	return q.start < b.End && b.Start < q.end
}

// RangeIndex answers overlap queries against the rows of a table, sorted or
// not, and tolerates overlapping rows.  It is immutable once built.
type RangeIndex struct {
	trees map[string]*biointerval.IntTree
}

// NewRangeIndex indexes the rows of t.
func NewRangeIndex(t *Table) *RangeIndex {
	x := &RangeIndex{trees: map[string]*biointerval.IntTree{}}
	for i := 0; i < t.Len(); i++ {
		tree, ok := x.trees[t.chrom[i]]
		if !ok {
			tree = &biointerval.IntTree{}
			x.trees[t.chrom[i]] = tree
		}
		iv := rowInterval{row: uintptr(i), start: int(t.start[i]), end: int(t.end[i])}
		if err := tree.Insert(iv, true); err != nil {
			log.Panicf("genome: indexing row %d: %v", i, err)
		}
	}
	for _, tree := range x.trees {
		tree.AdjustRanges()
	}
	return x
}

// Overlapping returns the ascending indices of rows on chrom that overlap
// [start, end).
func (x *RangeIndex) Overlapping(chrom string, start, end interval.PosType) []int {
	tree, ok := x.trees[chrom]
	if !ok || end <= start {
		return nil
	}
	hits := tree.Get(rangeQuery{start: int(start), end: int(end)})
	idx := make([]int, len(hits))
	for k, h := range hits {
		idx[k] = int(h.ID())
	}
	sort.Ints(idx)
	return idx
}

// Contained returns the ascending indices of rows on chrom that lie entirely
// within [start, end).
func (x *RangeIndex) Contained(chrom string, start, end interval.PosType) []int {
	var idx []int
	tree, ok := x.trees[chrom]
	if !ok || end <= start {
		return nil
	}
	for _, h := range tree.Get(rangeQuery{start: int(start), end: int(end)}) {
		r := h.(rowInterval)
		if r.start >= int(start) && r.end <= int(end) {
			idx = append(idx, int(r.row))
		}
	}
	sort.Ints(idx)
	return idx
}
