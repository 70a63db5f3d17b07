// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package genome

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Well-known column names.
const (
	Log2    = "log2"
	Depth   = "depth"
	Weight  = "weight"
	GC      = "gc"
	RMask   = "rmask"
	Spread  = "spread"
	Probes  = "probes"
	CN      = "cn"
	CN1     = "cn1"
	CN2     = "cn2"
	BAF     = "baf"
	AltFreq = "alt_freq"
	Zygos   = "zygosity"
	CILo    = "ci_lo"
	CIHi    = "ci_hi"
	PILo    = "pi_lo"
	PIHi    = "pi_hi"
	SEM     = "sem"
	StdDev  = "stdev"
	MAD     = "mad"
	IQR     = "iqr"
	Bivar   = "bivar"
)

// MissingInt marks an integer cell with no value, e.g. an allele-specific
// copy number where no heterozygous variant was observed.
const MissingInt = -1

// Coverage thresholds shared by the normalization, segmentation and calling
// stages.
const (
	// MinRefCoverage is the lowest log2 value considered to carry signal.
	MinRefCoverage = -5.0
	// NullLog2Coverage is the log2 assigned to bins with no coverage at all.
	NullLog2Coverage = -20.0
)

// Gene labels of antitarget (off-target background) bins.
const (
	AntitargetGene      = "Antitarget"
	AntitargetGeneAlias = "Background"
)

// IsAntitarget returns whether gene labels an antitarget bin.
func IsAntitarget(gene string) bool {
	return gene == AntitargetGene || gene == AntitargetGeneAlias
}

// IntColumn returns whether the well-known column name holds integers.
func IntColumn(name string) bool {
	switch name {
	case Probes, CN, CN1, CN2:
		return true
	}
	return false
}

// Kind is the storage type of an optional column.
type Kind int

const (
	// Float columns hold float64 values; NaN marks a missing value.
	Float Kind = iota
	// Int columns hold int values; MissingInt marks a missing value.
	Int
)

func (k Kind) String() string {
	if k == Int {
		return "int"
	}
	return "float"
}

// Column describes one optional column.
type Column struct {
	Name string
	Kind Kind
}

// Schema is the ordered list of optional columns of a Table.  The positional
// columns chromosome, start, end and gene are implicit.
type Schema []Column

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Has returns whether the schema includes name.
func (s Schema) Has(name string) bool {
	return s.Index(name) >= 0
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Equal returns whether the two schemas list the same columns in the same
// order.
func (s Schema) Equal(o Schema) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = fmt.Sprintf("%s:%v", c.Name, c.Kind)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (s Schema) clone() Schema {
	return append(Schema(nil), s...)
}

// Sex is the karyotypic sex of a sample or reference.
type Sex int

const (
	// SexUnknown means the sex was neither given nor inferred.
	SexUnknown Sex = iota
	// Female is XX.
	Female
	// Male is XY.
	Male
)

func (s Sex) String() string {
	switch s {
	case Female:
		return "female"
	case Male:
		return "male"
	}
	return "unknown"
}

// ParseSex parses "female"/"f"/"xx", "male"/"m"/"xy" (any case) or "" for
// SexUnknown.
func ParseSex(name string) (Sex, error) {
	switch strings.ToLower(name) {
	case "":
		return SexUnknown, nil
	case "female", "f", "xx":
		return Female, nil
	case "male", "m", "xy":
		return Male, nil
	}
	return SexUnknown, errors.Errorf("genome: unknown sex %q", name)
}

// Meta holds the scalar metadata carried by a Table.
type Meta struct {
	SampleID     string
	SampleSex    Sex
	ReferenceSex Sex
}
