package interval

import (
	"strconv"
	"strings"
)

// Chromosome classes, in sort order.
const (
	classAutosome = iota
	classSex
	classMito
	classOther
)

// chromKey is the decomposed sort key of a chromosome name.
type chromKey struct {
	class int
	num   int
	name  string
}

// trimChrPrefix removes a leading "chr" in any letter case.
func trimChrPrefix(name string) string {
	if len(name) > 3 && strings.EqualFold(name[:3], "chr") {
		return name[3:]
	}
	return name
}

func keyOf(name string) chromKey {
	base := trimChrPrefix(name)
	if n, err := strconv.Atoi(base); err == nil && n >= 0 {
		return chromKey{class: classAutosome, num: n, name: name}
	}
	switch strings.ToUpper(base) {
	case "X":
		return chromKey{class: classSex, num: 0, name: name}
	case "Y":
		return chromKey{class: classSex, num: 1, name: name}
	case "M", "MT":
		return chromKey{class: classMito, name: name}
	}
	return chromKey{class: classOther, name: name}
}

// CompareChrom orders chromosome names: numbered autosomes in numeric order,
// then X, then Y, then the mitochondrial genome, then everything else
// (unplaced contigs, decoys, ...) lexicographically.  Names differing only in
// the "chr" prefix fall back to plain string comparison so that the order is
// total.  It returns -1, 0 or 1.
func CompareChrom(a, b string) int {
	if a == b {
		return 0
	}
	ka, kb := keyOf(a), keyOf(b)
	if ka.class != kb.class {
		if ka.class < kb.class {
			return -1
		}
		return 1
	}
	if ka.num != kb.num {
		if ka.num < kb.num {
			return -1
		}
		return 1
	}
	if ka.name < kb.name {
		return -1
	}
	return 1
}

// IsX returns whether name denotes the X chromosome ("chrX" or "X").
func IsX(name string) bool {
	k := keyOf(name)
	return k.class == classSex && k.num == 0
}

// IsY returns whether name denotes the Y chromosome ("chrY" or "Y").
func IsY(name string) bool {
	k := keyOf(name)
	return k.class == classSex && k.num == 1
}

// IsAutosome returns whether name is a numbered chromosome.
func IsAutosome(name string) bool {
	return keyOf(name).class == classAutosome
}
