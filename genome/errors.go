// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package genome

import "github.com/pkg/errors"

// Error causes reported by this package.  Callers compare against them with
// errors.Cause(err) == ErrX.
var (
	// ErrInvalidRange is returned for a malformed interval query or row
	// coordinates (end before start, negative start).
	ErrInvalidRange = errors.New("invalid range")
	// ErrShape is returned when a table's rows are not covered by the
	// regions it is compared against.
	ErrShape = errors.New("mismatched table shape")
	// ErrMissingColumn is returned when an operation needs a column the
	// table does not carry.
	ErrMissingColumn = errors.New("missing column")
)
