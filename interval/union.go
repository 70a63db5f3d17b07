package interval

import (
	"github.com/pkg/errors"
)

// Union is the set of positions covered by a list of regions.  Each
// chromosome maps to a flat, strictly increasing endpoint list
// {s0, e0, s1, e1, ...} of disjoint, non-touching ranges [s_k, e_k).
//
// Queries keep a cursor into the last chromosome they touched, so a scan over
// sorted bins costs amortized O(1) per query.  A Union is therefore not safe
// for concurrent use.
type Union struct {
	chroms map[string][]PosType

	// Query cache.
	chrom     string
	endpoints []PosType
	pos       PosType
	at        cursor
}

// NewUnion merges regions into a Union.  The regions must be grouped by
// chromosome and sorted by start within each group.  Overlapping and
// abutting regions coalesce; empty regions are ignored.
func NewUnion(regions []Region) (*Union, error) {
	u := &Union{chroms: map[string][]PosType{}}
	var (
		chrom     string
		endpoints []PosType
		lastStart PosType
	)
	flush := func() {
		if chrom != "" {
			u.chroms[chrom] = endpoints
		}
	}
	for _, r := range regions {
		if r.Start < 0 || r.End < r.Start || r.End >= MaxPos {
			return nil, errors.Errorf("interval: bad range %s:%d-%d", r.Chrom, r.Start, r.End)
		}
		if r.Chrom != chrom {
			flush()
			if _, seen := u.chroms[r.Chrom]; seen {
				return nil, errors.Errorf("interval: regions of %s are not contiguous", r.Chrom)
			}
			chrom, endpoints, lastStart = r.Chrom, []PosType{}, r.Start
		}
		if r.Start < lastStart {
			return nil, errors.Errorf("interval: regions of %s are not sorted at %d", chrom, r.Start)
		}
		lastStart = r.Start
		if r.End == r.Start {
			continue
		}
		n := len(endpoints)
		switch {
		case n == 0 || r.Start > endpoints[n-1]:
			endpoints = append(endpoints, r.Start, r.End)
		case r.End > endpoints[n-1]:
			endpoints[n-1] = r.End
		}
	}
	flush()
	return u, nil
}

// Chromosomes returns the number of chromosomes named by the union's
// regions, including those whose regions were all empty.
func (u *Union) Chromosomes() int { return len(u.chroms) }

// seek points the query cache at chrom:pos.
func (u *Union) seek(chrom string, pos PosType) {
	if chrom == u.chrom && pos >= u.pos && u.endpoints != nil {
		u.at.advance(u.endpoints, pos)
	} else {
		u.chrom, u.endpoints = chrom, u.chroms[chrom]
		if u.endpoints == nil {
			u.endpoints = []PosType{}
		}
		u.at = newCursor(u.endpoints, pos)
	}
	u.pos = pos
}

// Intersects reports whether [start, end) shares a position with the union.
func (u *Union) Intersects(chrom string, start, end PosType) bool {
	if end <= start {
		return false
	}
	u.seek(chrom, start)
	if u.at.inside() {
		return true
	}
	return !u.at.done(u.endpoints) && u.endpoints[u.at] < end
}
