package interval

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Region is a half-open range [Start, End) on one chromosome, with 0-based
// coordinates.
type Region struct {
	Chrom      string
	Start, End PosType
}

// ParseRegion parses a samtools-style region string:
//
//	chr1:1,001-2,000   first and last position, 1-based and inclusive
//	chr1:1000          a single position
//	chr1               the whole chromosome, [0, MaxPos-1)
//
// Commas inside the positions are ignored.
func ParseRegion(s string) (Region, error) {
	if s == "" {
		return Region{}, errors.New("interval: empty region")
	}
	chrom, span, hasSpan := s, "", false
	if i := strings.IndexByte(s, ':'); i >= 0 {
		chrom, span, hasSpan = s[:i], strings.Replace(s[i+1:], ",", "", -1), true
	}
	if chrom == "" {
		return Region{}, errors.Errorf("interval: region %q has no chromosome", s)
	}
	if !hasSpan {
		return Region{Chrom: chrom, End: MaxPos - 1}, nil
	}
	first, last := span, span
	if i := strings.IndexByte(span, '-'); i >= 0 {
		first, last = span[:i], span[i+1:]
	}
	lo, err := parsePosition(first)
	if err != nil {
		return Region{}, errors.Wrapf(err, "interval: region %q", s)
	}
	hi, err := parsePosition(last)
	if err != nil {
		return Region{}, errors.Wrapf(err, "interval: region %q", s)
	}
	if hi < lo || hi >= MaxPos {
		return Region{}, errors.Errorf("interval: region %q ends before it starts", s)
	}
	return Region{Chrom: chrom, Start: lo - 1, End: hi}, nil
}

// parsePosition parses a 1-based position.
func parsePosition(s string) (PosType, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, errors.Errorf("position %d out of range", v)
	}
	return PosType(v), nil
}
