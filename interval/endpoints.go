package interval

import (
	"math"
	"sort"
)

// PosType is a 0-based genomic coordinate.  Bin and segment coordinates in
// copy-number tables fit in 32 bits for every assembled chromosome.
type PosType int32

// MaxPos is the largest representable coordinate.
const MaxPos = math.MaxInt32

// SearchPos returns the smallest index i with a[i] >= x in the sorted slice a,
// or len(a) if there is none.  Sorted genome.Table start and end columns are
// searched this way.
func SearchPos(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// gallop is SearchPos restricted to a[from:], probing a[from], a[from+1],
// a[from+3], ... before bisecting the last gap.  Queries at slowly increasing
// positions resolve in a step or two.
func gallop(a []PosType, x PosType, from int) int {
	lo, hi := from, len(a)
	for step, i := 1, from; i < hi; step, i = step*2, i+step {
		if a[i] >= x {
			hi = i
			break
		}
		lo = i + 1
	}
	return lo + sort.Search(hi-lo, func(k int) bool { return a[lo+k] >= x })
}

// cursor is SearchPos(endpoints, pos+1) for a union's sorted endpoint list
// {s0, e0, s1, e1, ...}: pos lies inside [s_k, e_k) exactly when the cursor
// is odd.
type cursor int

func newCursor(endpoints []PosType, pos PosType) cursor {
	return cursor(SearchPos(endpoints, pos+1))
}

func (c cursor) inside() bool { return c&1 == 1 }

func (c cursor) done(endpoints []PosType) bool { return int(c) >= len(endpoints) }

// advance moves c to pos, which must not precede the previous position.
func (c *cursor) advance(endpoints []PosType, pos PosType) {
	*c = cursor(gallop(endpoints, pos+1, int(*c)))
}
