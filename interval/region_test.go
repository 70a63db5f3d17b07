package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegion(t *testing.T) {
	for s, want := range map[string]Region{
		"chr1:1-1000":      {"chr1", 0, 1000},
		"chr1:1000":        {"chr1", 999, 1000},
		"chr1:1,001-2,000": {"chr1", 1000, 2000},
		"chr1:5-5":         {"chr1", 4, 5},
		"chrX":             {"chrX", 0, MaxPos - 1},
	} {
		got, err := ParseRegion(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	for _, s := range []string{"", ":1-10", "chr1:0-10", "chr1:20-10", "chr1:x", "chr1:1-", "chr1:1-99999999999"} {
		_, err := ParseRegion(s)
		assert.Error(t, err, s)
	}
}
