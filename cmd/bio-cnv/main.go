// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/cnv/cnvio"
	"github.com/grailbio/cnv/genome"
	"v.io/x/lib/cmdline"
)

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-cnv",
		Short:    "Copy-number inference from binned read depth",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdReference(),
			newCmdFix(),
			newCmdSegment(),
			newCmdSegmetrics(),
			newCmdCall(),
			newCmdSex(),
			newCmdBreaks(),
			newCmdGainLoss(),
		},
	}
}

// readTables reads the tables at paths concurrently.  A path holding a comma
// concatenates the tables it lists, e.g. the target and antitarget coverage
// of one sample.
func readTables(ctx context.Context, paths []string) ([]*genome.Table, error) {
	tables := make([]*genome.Table, len(paths))
	err := traverse.Limit(runtime.NumCPU()).Each(len(paths), func(i int) error {
		parts := strings.Split(paths[i], ",")
		pieces := make([]*genome.Table, len(parts))
		for k, p := range parts {
			t, err := cnvio.ReadFile(ctx, p)
			if err != nil {
				return err
			}
			pieces[k] = t
		}
		t := pieces[0]
		if len(pieces) > 1 {
			t = genome.Concat(pieces...).WithMeta(pieces[0].Meta())
		}
		tables[i] = t
		return nil
	})
	return tables, err
}

func readTable(ctx context.Context, path string) (*genome.Table, error) {
	if path == "" {
		return nil, nil
	}
	return cnvio.ReadFile(ctx, path)
}

func writeTable(ctx context.Context, path string, t *genome.Table) error {
	if path == "" {
		return cnvio.Write(os.Stdout, t)
	}
	if err := cnvio.WriteFile(ctx, path, t); err != nil {
		return err
	}
	log.Printf("wrote %d rows to %s", t.Len(), path)
	return nil
}

func main() {
	shutdown := grail.Init()
	cmdline.HideGlobalFlagsExcept()
	env := cmdline.EnvFromOS()
	err := cmdline.ParseAndRun(newCmdRoot(), env, os.Args[1:])
	code := cmdline.ExitCode(err, env.Stderr)
	shutdown()
	os.Exit(code)
}
