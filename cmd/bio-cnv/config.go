// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/cnv/call"
	"github.com/grailbio/cnv/genome"
	"gopkg.in/yaml.v2"
)

// callConfig is the YAML form of call.Opts.  Unset fields keep their
// defaults.
type callConfig struct {
	Method        string    `yaml:"method"`
	Thresholds    []float64 `yaml:"thresholds"`
	Ploidy        int       `yaml:"ploidy"`
	Purity        *float64  `yaml:"purity"`
	MaleReference *bool     `yaml:"male_reference"`
	SampleSex     string    `yaml:"sample_sex"`
	Filters       []string  `yaml:"filters"`
	AmpDelLimit   float64   `yaml:"ampdel_limit"`
}

func parseCallConfig(data []byte) (callConfig, error) {
	var c callConfig
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, errors.E(errors.Invalid, err, "call config")
	}
	return c, nil
}

func readCallConfig(ctx context.Context, path string) (callConfig, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return callConfig{}, errors.E(err, "call config", path)
	}
	defer f.Close(ctx) // nolint: errcheck
	data, err := io.ReadAll(f.Reader(ctx))
	if err != nil {
		return callConfig{}, errors.E(err, "call config", path)
	}
	return parseCallConfig(data)
}

// apply sets the fields of opts that c sets.
func (c callConfig) apply(opts *call.Opts) error {
	var err error
	if c.Method != "" {
		if opts.Method, err = call.ParseMethod(c.Method); err != nil {
			return err
		}
	}
	if c.Thresholds != nil {
		opts.Thresholds = c.Thresholds
	}
	if c.Ploidy != 0 {
		opts.Ploidy = c.Ploidy
	}
	if c.Purity != nil {
		opts.Purity = *c.Purity
	}
	if c.MaleReference != nil {
		opts.IsReferenceMale = *c.MaleReference
	}
	if c.SampleSex != "" {
		if opts.SampleSex, err = genome.ParseSex(c.SampleSex); err != nil {
			return err
		}
	}
	if c.Filters != nil {
		if opts.Filters, err = parseFilters(c.Filters); err != nil {
			return err
		}
	}
	if c.AmpDelLimit != 0 {
		opts.AmpDelLimit = c.AmpDelLimit
	}
	return nil
}

func parseFilters(names []string) ([]call.Filter, error) {
	var filters []call.Filter
	for _, name := range names {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		f, err := call.ParseFilter(name)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func parseFloats(list string) ([]float64, error) {
	var out []float64
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "parse", list)
		}
		out = append(out, v)
	}
	return out, nil
}
