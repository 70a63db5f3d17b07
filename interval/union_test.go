package interval

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnion(t *testing.T) {
	for _, test := range []struct {
		regions []Region
		want    map[string][]PosType
	}{
		{
			[]Region{
				{"chr1", 100, 200},
				{"chr1", 150, 250},
				{"chr1", 250, 300},
				{"chr1", 400, 500},
				{"chr2", 0, 10},
			},
			map[string][]PosType{
				"chr1": {100, 300, 400, 500},
				"chr2": {0, 10},
			},
		},
		{
			[]Region{{"chrX", 5, 5}, {"chrX", 7, 9}, {"chrY", 3, 3}},
			map[string][]PosType{"chrX": {7, 9}, "chrY": {}},
		},
		{nil, map[string][]PosType{}},
	} {
		u, err := NewUnion(test.regions)
		require.NoError(t, err)
		assert.Equal(t, test.want, u.chroms)
		expect.EQ(t, u.Chromosomes(), len(test.want))
	}
}

func TestNewUnionErrors(t *testing.T) {
	for _, regions := range [][]Region{
		{{"chr1", -1, 10}},
		{{"chr1", 10, 5}},
		{{"chr1", 0, MaxPos}},
		{{"chr1", 0, 10}, {"chr2", 0, 10}, {"chr1", 20, 30}},
		{{"chr1", 50, 60}, {"chr1", 10, 20}},
	} {
		_, err := NewUnion(regions)
		assert.Error(t, err, "%v", regions)
	}
}

func TestUnionQueries(t *testing.T) {
	u, err := NewUnion([]Region{
		{"chr1", 0, 100},
		{"chr1", 100, 200},
		{"chr1", 300, 400},
		{"chr2", 50, 60},
	})
	require.NoError(t, err)
	// Queries alternate between forward scans and jumps back, exercising both
	// the cached cursor and a fresh search.
	for _, test := range []struct {
		chrom      string
		start, end PosType
		want       bool
	}{
		{"chr1", 0, 10, true},
		{"chr1", 90, 110, true},
		{"chr1", 150, 250, true},
		{"chr1", 199, 200, true},
		{"chr1", 200, 300, false},
		{"chr1", 250, 301, true},
		{"chr1", 399, 400, true},
		{"chr1", 400, 410, false},
		{"chr1", 100000, 100010, false},
		{"chr2", 0, 10, false},
		{"chr2", 40, 55, true},
		{"chr3", 0, 10, false},
		{"chr1", 10, 20, true},
		{"chr1", 350, 350, false},
		{"chrM", 1, 2, false},
	} {
		expect.EQ(t, u.Intersects(test.chrom, test.start, test.end), test.want, "%v", test)
	}
}

func TestSearchPos(t *testing.T) {
	a := []PosType{1, 3, 5, 7, 9, 11, 13, 13, 15}
	for x := PosType(0); x < 17; x++ {
		want := SearchPos(a, x)
		for i, v := range a {
			if v >= x {
				expect.EQ(t, want, i, "x=%d", x)
				break
			}
		}
		for from := 0; from <= want; from++ {
			expect.EQ(t, gallop(a, x, from), want, "x=%d from=%d", x, from)
		}
	}
	expect.EQ(t, SearchPos(a, 16), len(a))
	expect.EQ(t, SearchPos(nil, 0), 0)
}
