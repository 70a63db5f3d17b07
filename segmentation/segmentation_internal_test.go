package segmentation

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEachChrom(t *testing.T) {
	failure := errors.New("no signal")
	for _, parallelism := range []int{1, 3} {
		errs := eachChrom(parallelism, 4, func(i int) error {
			switch i {
			case 1:
				var tbl []int
				_ = tbl[i] // index out of range
			case 2:
				return failure
			}
			return nil
		})
		require.Len(t, errs, 4)
		assert.NoError(t, errs[0])
		require.Error(t, errs[1])
		assert.Contains(t, errs[1].Error(), "panic")
		assert.Equal(t, failure, errs[2])
		assert.NoError(t, errs[3])
	}
}
