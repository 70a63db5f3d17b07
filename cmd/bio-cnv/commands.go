// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/cnv/call"
	"github.com/grailbio/cnv/fix"
	"github.com/grailbio/cnv/genome"
	"github.com/grailbio/cnv/reference"
	"github.com/grailbio/cnv/segmentation"
	"github.com/grailbio/cnv/segmetrics"
	"v.io/x/lib/cmdline"
)

type referenceFlags struct {
	out           string
	flat          bool
	maleReference bool
}

func newCmdReference() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "reference",
		Short: "Build a copy-number reference from normal samples",
		Long: `Each argument is the bin coverage of one normal sample.  An argument
listing several comma-separated paths (e.g. target and antitarget coverage)
concatenates them.  With -flat, the arguments only supply the bin layout.`,
		ArgsName: "coverage...",
	}
	var f referenceFlags
	cmd.Flags.StringVar(&f.out, "out", "", "Output reference path; default stdout")
	cmd.Flags.BoolVar(&f.flat, "flat", false, "Assume equal coverage in every bin instead of pooling samples")
	cmd.Flags.BoolVar(&f.maleReference, "male-reference", false, "Build a male (haploid chrX) reference")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return env.UsageErrorf("reference takes at least one coverage path")
		}
		return runReference(vcontext.Background(), f, argv)
	})
	return cmd
}

func runReference(ctx context.Context, f referenceFlags, paths []string) error {
	samples, err := readTables(ctx, paths)
	if err != nil {
		return err
	}
	var ref *genome.Table
	if f.flat {
		targets, antitargets := reference.Split(genome.Concat(samples...))
		ref, err = reference.Flat(targets, antitargets, f.maleReference)
	} else {
		ref, err = reference.Pooled(samples, f.maleReference)
	}
	if err != nil {
		return err
	}
	return writeTable(ctx, f.out, ref)
}

type fixFlags struct {
	reference string
	out       string
	opts      fix.Opts
}

func newCmdFix() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "fix",
		Short:    "Normalize sample bin coverage against a reference",
		ArgsName: "targetcoverage [antitargetcoverage]",
	}
	f := fixFlags{opts: fix.DefaultOpts}
	noGC := cmd.Flags.Bool("no-gc", false, "Skip GC-content bias correction")
	noEdge := cmd.Flags.Bool("no-edge", false, "Skip target-edge bias correction")
	noRMask := cmd.Flags.Bool("no-rmask", false, "Skip repeat-mask bias correction")
	cmd.Flags.StringVar(&f.reference, "reference", "", "Reference path (required)")
	cmd.Flags.StringVar(&f.out, "out", "", "Output .cnr path; default stdout")
	cmd.Flags.Float64Var(&f.opts.InsertSize, "insert-size", fix.DefaultOpts.InsertSize, "Library insert size for the edge-bias model")
	cmd.Flags.Float64Var(&f.opts.MaxUnmatchedFraction, "max-unmatched", fix.DefaultOpts.MaxUnmatchedFraction,
		"Largest fraction of sample bins that may be missing from the reference")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 1 || len(argv) > 2 {
			return env.UsageErrorf("fix takes targetcoverage [antitargetcoverage], got %v", argv)
		}
		if f.reference == "" {
			return env.UsageErrorf("fix: -reference is required")
		}
		f.opts.GC, f.opts.Edge, f.opts.RMask = !*noGC, !*noEdge, !*noRMask
		return runFix(vcontext.Background(), f, argv)
	})
	return cmd
}

func runFix(ctx context.Context, f fixFlags, paths []string) error {
	ref, err := readTable(ctx, f.reference)
	if err != nil {
		return err
	}
	targets, err := readTable(ctx, paths[0])
	if err != nil {
		return err
	}
	var antitargets *genome.Table
	if len(paths) > 1 {
		if antitargets, err = readTable(ctx, paths[1]); err != nil {
			return err
		}
	}
	out, err := fix.Fix(targets, antitargets, ref, f.opts)
	if err != nil {
		return errors.E(err, "fix", targets.Meta().SampleID)
	}
	return writeTable(ctx, f.out, out)
}

type segmentFlags struct {
	out      string
	method   string
	variants string
	opts     segmentation.Opts
}

func newCmdSegment() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "segment",
		Short:    "Segment normalized bin log2 ratios",
		ArgsName: "bins",
	}
	f := segmentFlags{opts: segmentation.DefaultOpts}
	cmd.Flags.StringVar(&f.out, "out", "", "Output .cns path; default stdout")
	cmd.Flags.StringVar(&f.method, "method", segmentation.DefaultOpts.Method.String(), "Segmentation method: haar or none")
	cmd.Flags.StringVar(&f.variants, "variants", "", "Optional table of variant alt_freq (and zygosity) for B-allele frequency splitting")
	cmd.Flags.Float64Var(&f.opts.Threshold, "threshold", segmentation.DefaultOpts.Threshold, "Breakpoint false discovery rate")
	cmd.Flags.BoolVar(&f.opts.SkipLow, "skip-low", false, "Ignore low-coverage bins and merge short segments")
	cmd.Flags.IntVar(&f.opts.MinProbes, "min-probes", segmentation.DefaultOpts.MinProbes, "Smallest segment kept with -skip-low")
	cmd.Flags.IntVar(&f.opts.Parallelism, "parallelism", segmentation.DefaultOpts.Parallelism, "Chromosomes segmented concurrently")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return env.UsageErrorf("segment takes one bins path, got %v", argv)
		}
		return runSegment(vcontext.Background(), f, argv[0])
	})
	return cmd
}

func runSegment(ctx context.Context, f segmentFlags, path string) error {
	var err error
	if f.opts.Method, err = segmentation.ParseMethod(f.method); err != nil {
		return err
	}
	bins, err := readTable(ctx, path)
	if err != nil {
		return err
	}
	if f.opts.Variants, err = readTable(ctx, f.variants); err != nil {
		return err
	}
	segs, err := segmentation.Segment(bins, f.opts)
	if err != nil {
		return errors.E(err, "segment", bins.Meta().SampleID)
	}
	return writeTable(ctx, f.out, segs.WithMeta(bins.Meta()))
}

type segmetricsFlags struct {
	out  string
	opts segmetrics.Opts
}

func newCmdSegmetrics() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "segmetrics",
		Short:    "Add spread and interval statistics of the underlying bins to segments",
		ArgsName: "bins segments",
	}
	f := segmetricsFlags{opts: segmetrics.DefaultOpts}
	cmd.Flags.StringVar(&f.out, "out", "", "Output path; default stdout")
	cmd.Flags.Float64Var(&f.opts.Alpha, "alpha", segmetrics.DefaultOpts.Alpha, "Significance level of confidence and prediction intervals")
	cmd.Flags.IntVar(&f.opts.Bootstraps, "bootstrap", segmetrics.DefaultOpts.Bootstraps, "Resamples for the confidence interval")
	cmd.Flags.BoolVar(&f.opts.SkipLow, "skip-low", false, "Ignore low-coverage bins")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return env.UsageErrorf("segmetrics takes bins and segments paths, got %v", argv)
		}
		return runSegmetrics(vcontext.Background(), f, argv[0], argv[1])
	})
	return cmd
}

func runSegmetrics(ctx context.Context, f segmetricsFlags, binsPath, segmentsPath string) error {
	tables, err := readTables(ctx, []string{binsPath, segmentsPath})
	if err != nil {
		return err
	}
	out, err := segmetrics.Compute(tables[0], tables[1], f.opts)
	if err != nil {
		return err
	}
	return writeTable(ctx, f.out, out)
}

type callFlags struct {
	out           string
	config        string
	method        string
	thresholds    string
	ploidy        int
	purity        float64
	maleReference bool
	sampleSex     string
	filters       string
	ampDelLimit   float64
	variants      string
	bins          string
	// set holds the names of flags given on the command line.
	set map[string]bool
}

func newCmdCall() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "call",
		Short:    "Call absolute copy numbers of segments",
		ArgsName: "segments",
	}
	var f callFlags
	d := call.DefaultOpts
	cmd.Flags.StringVar(&f.out, "out", "", "Output path; default stdout")
	cmd.Flags.StringVar(&f.config, "config", "", "YAML file of call options; flags override it")
	cmd.Flags.StringVar(&f.method, "method", d.Method.String(), "Calling method: threshold, clonal or none")
	cmd.Flags.StringVar(&f.thresholds, "thresholds", joinFloats(d.Thresholds), "Comma-separated log2 cut points of the threshold method")
	cmd.Flags.IntVar(&f.ploidy, "ploidy", d.Ploidy, "Ploidy of the sample")
	cmd.Flags.Float64Var(&f.purity, "purity", d.Purity, "Tumor purity in (0, 1]; 1 means pure")
	cmd.Flags.BoolVar(&f.maleReference, "male-reference", d.IsReferenceMale, "The reference is male (haploid chrX)")
	cmd.Flags.StringVar(&f.sampleSex, "sample-sex", "", "Sample sex (female or male); guessed if empty")
	cmd.Flags.StringVar(&f.filters, "filter", "", "Comma-separated segment filters, applied in order: ampdel, cn, ci, sem")
	cmd.Flags.Float64Var(&f.ampDelLimit, "ampdel-limit", d.AmpDelLimit, "Largest |log2| kept by the ampdel filter")
	cmd.Flags.StringVar(&f.variants, "variants", "", "Optional table of variant alt_freq for B-allele frequencies and allele copy numbers")
	cmd.Flags.StringVar(&f.bins, "bins", "", "Optional bins, used to compute interval statistics the ci and sem filters need")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return env.UsageErrorf("call takes one segments path, got %v", argv)
		}
		f.set = map[string]bool{}
		cmd.Flags.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
		return runCall(vcontext.Background(), f, argv[0])
	})
	return cmd
}

func joinFloats(x []float64) string {
	s := make([]string, len(x))
	for i, v := range x {
		s[i] = fmt.Sprint(v)
	}
	return strings.Join(s, ",")
}

// callOpts resolves the call options: defaults, then the config file, then
// flags given on the command line.
func callOpts(ctx context.Context, f callFlags) (call.Opts, error) {
	opts := call.DefaultOpts
	if f.config != "" {
		c, err := readCallConfig(ctx, f.config)
		if err != nil {
			return opts, err
		}
		if err := c.apply(&opts); err != nil {
			return opts, err
		}
	}
	var err error
	for name := range f.set {
		switch name {
		case "method":
			opts.Method, err = call.ParseMethod(f.method)
		case "thresholds":
			opts.Thresholds, err = parseFloats(f.thresholds)
		case "ploidy":
			opts.Ploidy = f.ploidy
		case "purity":
			opts.Purity = f.purity
		case "male-reference":
			opts.IsReferenceMale = f.maleReference
		case "sample-sex":
			opts.SampleSex, err = genome.ParseSex(f.sampleSex)
		case "filter":
			opts.Filters, err = parseFilters(strings.Split(f.filters, ","))
		case "ampdel-limit":
			opts.AmpDelLimit = f.ampDelLimit
		}
		if err != nil {
			return opts, errors.E(errors.Invalid, err, "-"+name)
		}
	}
	return opts, nil
}

func runCall(ctx context.Context, f callFlags, path string) error {
	opts, err := callOpts(ctx, f)
	if err != nil {
		return err
	}
	segs, err := readTable(ctx, path)
	if err != nil {
		return err
	}
	if opts.Variants, err = readTable(ctx, f.variants); err != nil {
		return err
	}
	if opts.Bins, err = readTable(ctx, f.bins); err != nil {
		return err
	}
	out, err := call.Call(segs, opts)
	if err != nil {
		return errors.E(err, "call", segs.Meta().SampleID)
	}
	return writeTable(ctx, f.out, out)
}

func newCmdSex() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "sex",
		Short:    "Guess the sex of samples from chrX coverage",
		ArgsName: "table...",
	}
	maleReference := cmd.Flags.Bool("male-reference", false, "The tables were normalized to a male reference")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return env.UsageErrorf("sex takes at least one table path")
		}
		return runSex(vcontext.Background(), os.Stdout, *maleReference, argv)
	})
	return cmd
}

func runSex(ctx context.Context, w io.Writer, maleReference bool, paths []string) error {
	tables, err := readTables(ctx, paths)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "sample\tsex"); err != nil {
		return err
	}
	for i, t := range tables {
		sex := t.GuessSex(maleReference)
		if sex == genome.SexUnknown {
			log.Error.Printf("sex: %s: no usable chrX or autosome bins", paths[i])
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", t.Meta().SampleID, sex); err != nil {
			return err
		}
	}
	return nil
}
