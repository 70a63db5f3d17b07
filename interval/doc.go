// Package interval holds the coordinate primitives shared by the copy-number
// packages: the PosType coordinate, chromosome ordering, samtools-style region
// strings, and Union, a merged set of ranges tuned for queries that walk
// sorted bins.  Union forgets the individual ranges it was built from;
// genome.RangeIndex answers per-row overlap queries.
package interval
