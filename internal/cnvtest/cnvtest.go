// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package cnvtest generates synthetic copy-number tables for tests.
//
// Target bins are BinSize bp long and start every BinStep bp from FirstStart,
// so consecutive targets are separated by a BinStep-BinSize gap.  Antitarget
// bins lie far downstream of the targets on the same chromosome.
package cnvtest

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/interval"
)

// Layout constants for generated bins.
const (
	FirstStart           = 10000
	BinSize              = 1000
	BinStep              = 1500
	GeneEvery            = 10
	AntitargetStart      = 50000000
	AntitargetSize       = 20000
	AntitargetStep       = 25000
	DefaultDepth         = 200.0
	antitargetDepthRatio = 0.05
)

// Block is a run of Bins consecutive bins sharing the copy ratio Log2.
type Block struct {
	Bins int
	Log2 float64
}

// Chrom lists the blocks of one chromosome, in order.
type Chrom struct {
	Name   string
	Blocks []Block
}

// Flat returns chromosomes of n bins each, all at log2 level.
func Flat(names []string, n int, level float64) []Chrom {
	chroms := make([]Chrom, len(names))
	for i, name := range names {
		chroms[i] = Chrom{Name: name, Blocks: []Block{{Bins: n, Log2: level}}}
	}
	return chroms
}

// BinSchema is the schema of tables produced by Bins.
var BinSchema = genome.Schema{
	{Name: genome.Depth, Kind: genome.Float},
	{Name: genome.Log2, Kind: genome.Float},
	{Name: genome.Weight, Kind: genome.Float},
}

func must(t *genome.Table, err error) *genome.Table {
	if err != nil {
		panic(err)
	}
	return t
}

// Bins returns a target-bin table with the given block structure.  Each bin's
// log2 is its block level plus Gaussian noise of standard deviation noise,
// drawn from a source seeded with seed.  Genes change every GeneEvery bins.
func Bins(sampleID string, chroms []Chrom, noise float64, seed int64) *genome.Table {
	r := rand.New(rand.NewSource(seed))
	b := genome.NewBuilder(genome.Meta{SampleID: sampleID}, BinSchema)
	for _, c := range chroms {
		i := 0
		for _, blk := range c.Blocks {
			for k := 0; k < blk.Bins; k++ {
				start := interval.PosType(FirstStart + i*BinStep)
				v := blk.Log2 + noise*r.NormFloat64()
				b.Add(genome.Row{
					Chrom:  c.Name,
					Start:  start,
					End:    start + BinSize,
					Gene:   fmt.Sprintf("G%s_%d", c.Name, i/GeneEvery),
					Values: []float64{DefaultDepth * math.Exp2(v), v, 1},
				})
				i++
			}
		}
	}
	return must(b.Table())
}

// Antitargets returns n antitarget bins per chromosome at log2 level plus
// noise.
func Antitargets(sampleID string, names []string, n int, level, noise float64, seed int64) *genome.Table {
	r := rand.New(rand.NewSource(seed))
	b := genome.NewBuilder(genome.Meta{SampleID: sampleID}, BinSchema)
	for _, name := range names {
		for i := 0; i < n; i++ {
			start := interval.PosType(AntitargetStart + i*AntitargetStep)
			v := level + noise*r.NormFloat64()
			b.Add(genome.Row{
				Chrom:  name,
				Start:  start,
				End:    start + AntitargetSize,
				Gene:   genome.AntitargetGene,
				Values: []float64{DefaultDepth * antitargetDepthRatio * math.Exp2(v), v, 1},
			})
		}
	}
	return must(b.Table())
}

// Segments returns one segment per block, with the block's level as log2 and
// its bin count as probes.  Coordinates match the bins of Bins.
func Segments(sampleID string, chroms []Chrom) *genome.Table {
	schema := genome.Schema{
		{Name: genome.Log2, Kind: genome.Float},
		{Name: genome.Probes, Kind: genome.Int},
	}
	b := genome.NewBuilder(genome.Meta{SampleID: sampleID}, schema)
	for _, c := range chroms {
		i := 0
		for _, blk := range c.Blocks {
			if blk.Bins == 0 {
				continue
			}
			start := interval.PosType(FirstStart + i*BinStep)
			end := interval.PosType(FirstStart+(i+blk.Bins-1)*BinStep) + BinSize
			b.Add(genome.Row{
				Chrom:  c.Name,
				Start:  start,
				End:    end,
				Gene:   "-",
				Values: []float64{blk.Log2, float64(blk.Bins)},
			})
			i += blk.Bins
		}
	}
	return must(b.Table())
}

// ReferenceSchema is the schema of tables produced by Reference.
var ReferenceSchema = genome.Schema{
	{Name: genome.Depth, Kind: genome.Float},
	{Name: genome.GC, Kind: genome.Float},
	{Name: genome.Log2, Kind: genome.Float},
	{Name: genome.RMask, Kind: genome.Float},
	{Name: genome.Spread, Kind: genome.Float},
}

// Reference returns a reference with the coordinates and genes of the given
// tables: log2 near zero, modest spread, GC in [0.35, 0.65] and rmask in
// [0, 0.3].
func Reference(seed int64, tables ...*genome.Table) *genome.Table {
	r := rand.New(rand.NewSource(seed))
	b := genome.NewBuilder(genome.Meta{SampleID: "reference"}, ReferenceSchema)
	for _, t := range tables {
		for i := 0; i < t.Len(); i++ {
			depth := DefaultDepth
			if genome.IsAntitarget(t.Gene(i)) {
				depth *= antitargetDepthRatio
			}
			b.Add(genome.Row{
				Chrom: t.Chrom(i),
				Start: t.Start(i),
				End:   t.End(i),
				Gene:  t.Gene(i),
				Values: []float64{
					depth,
					0.35 + 0.3*r.Float64(),
					0.05 * r.NormFloat64(),
					0.3 * r.Float64(),
					0.1 + 0.2*r.Float64(),
				},
			})
		}
	}
	return must(b.Table())
}
