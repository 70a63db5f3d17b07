// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"os"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/reports"
	"v.io/x/lib/cmdline"
)

// withOutput calls fn with a writer on path, or on stdout if path is empty.
func withOutput(ctx context.Context, path string, fn func(w io.Writer) error) (err error) {
	if path == "" {
		return fn(os.Stdout)
	}
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, f, &err)
	return fn(f.Writer(ctx))
}

type breaksFlags struct {
	out       string
	minProbes int
}

func newCmdBreaks() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "breaks",
		Short:    "List the genes that contain segment breakpoints",
		ArgsName: "bins segments",
	}
	var f breaksFlags
	cmd.Flags.StringVar(&f.out, "out", "", "Output path; default stdout")
	cmd.Flags.IntVar(&f.minProbes, "min-probes", 1, "Least number of a gene's bins on each side of the breakpoint")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return env.UsageErrorf("breaks takes bins and segments paths, got %v", argv)
		}
		return runBreaks(vcontext.Background(), f, argv[0], argv[1])
	})
	return cmd
}

func runBreaks(ctx context.Context, f breaksFlags, binsPath, segmentsPath string) error {
	tables, err := readTables(ctx, []string{binsPath, segmentsPath})
	if err != nil {
		return err
	}
	bps, err := reports.Breaks(tables[0], tables[1], f.minProbes)
	if err != nil {
		return err
	}
	return withOutput(ctx, f.out, func(w io.Writer) error {
		return writeBreaks(w, bps)
	})
}

func writeBreaks(w io.Writer, bps []reports.Breakpoint) error {
	tw := tsv.NewWriter(w)
	for _, h := range []string{"gene", "chromosome", "location", "change", "probes_left", "probes_right"} {
		tw.WriteString(h)
	}
	if err := tw.EndLine(); err != nil {
		return err
	}
	for _, bp := range bps {
		tw.WriteString(bp.Gene)
		tw.WriteString(bp.Chrom)
		tw.WriteInt64(int64(bp.Location))
		tw.WriteFloat64(bp.Change, 'g', 6)
		tw.WriteInt64(int64(bp.ProbesLeft))
		tw.WriteInt64(int64(bp.ProbesRight))
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

type gainLossFlags struct {
	out           string
	segments      string
	sampleSex     string
	maleReference bool
	opts          reports.Opts
}

func newCmdGainLoss() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "gainloss",
		Short:    "List the genes with copy-number gains or losses",
		ArgsName: "bins",
	}
	f := gainLossFlags{opts: reports.DefaultOpts}
	d := reports.DefaultOpts
	cmd.Flags.StringVar(&f.out, "out", "", "Output path; default stdout")
	cmd.Flags.StringVar(&f.segments, "segments", "", "Optional segments; genes then take the log2 of the segment they lie in")
	cmd.Flags.Float64Var(&f.opts.Threshold, "threshold", d.Threshold, "Least |log2| reported")
	cmd.Flags.IntVar(&f.opts.MinProbes, "min-probes", d.MinProbes, "Least number of bins of a reported gene")
	cmd.Flags.BoolVar(&f.opts.SkipLow, "skip-low", false, "Ignore low-coverage bins in gene means")
	cmd.Flags.BoolVar(&f.maleReference, "male-reference", false, "The bins were normalized to a male reference")
	cmd.Flags.StringVar(&f.sampleSex, "sample-sex", "", "Sample sex (female or male); guessed if empty")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return env.UsageErrorf("gainloss takes one bins path, got %v", argv)
		}
		return runGainLoss(vcontext.Background(), f, argv[0])
	})
	return cmd
}

func runGainLoss(ctx context.Context, f gainLossFlags, binsPath string) error {
	opts := f.opts
	opts.IsReferenceMale = f.maleReference
	var err error
	if opts.SampleSex, err = genome.ParseSex(f.sampleSex); err != nil {
		return err
	}
	tables, err := readTables(ctx, []string{binsPath})
	if err != nil {
		return err
	}
	segments, err := readTable(ctx, f.segments)
	if err != nil {
		return err
	}
	out, err := reports.GainLoss(tables[0], segments, opts)
	if err != nil {
		return err
	}
	return writeTable(ctx, f.out, out)
}
