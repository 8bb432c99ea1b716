// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads a deferfs.Options record from a YAML file, then
// layers DEFERFS_*-prefixed environment variables on top.
//
// There is no automatic discovery: a file is only read when a path is
// given, and every field not present in the file keeps the value
// deferfs.DefaultOptions already gave it. This keeps a deployed config
// auditable — nothing overrides it except an explicit environment
// variable set on the same process, or an explicit command-line flag
// applied by cmd/deferfs on top of both.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/samuell/deferfs/lib/deferfs"
	"gopkg.in/yaml.v3"
)

// Default returns the options used when no config file or environment
// override is present.
func Default() deferfs.Options {
	return deferfs.DefaultOptions()
}

// Load reads the YAML file at path over Default, then validates the
// result. An empty path returns Default unchanged.
func Load(path string) (deferfs.Options, error) {
	options := Default()
	if path == "" {
		return options, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return deferfs.Options{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &options); err != nil {
		return deferfs.Options{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := options.Validate(); err != nil {
		return deferfs.Options{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return options, nil
}

// boolOverrides maps a DEFERFS_* environment variable name to the
// setter that applies its value to an Options record.
var boolOverrides = map[string]func(*deferfs.Options, bool){
	"DEFERFS_EAGER_LINK":        func(o *deferfs.Options, v bool) { o.EagerLink = v },
	"DEFERFS_EAGER_CHMOD":       func(o *deferfs.Options, v bool) { o.EagerChmod = v },
	"DEFERFS_EAGER_UTIMENS":     func(o *deferfs.Options, v bool) { o.EagerUtimens = v },
	"DEFERFS_EAGER_CHOWN":       func(o *deferfs.Options, v bool) { o.EagerChown = v },
	"DEFERFS_EAGER_CLOSE":       func(o *deferfs.Options, v bool) { o.EagerClose = v },
	"DEFERFS_EAGER_FSYNC":       func(o *deferfs.Options, v bool) { o.EagerFsync = v },
	"DEFERFS_EAGER_CREATE":      func(o *deferfs.Options, v bool) { o.EagerCreate = v },
	"DEFERFS_VERY_EAGER_ACCESS": func(o *deferfs.Options, v bool) { o.VeryEagerAccess = v },
	"DEFERFS_EAGER_ACCESS":      func(o *deferfs.Options, v bool) { o.EagerAccess = v },
	"DEFERFS_CLOSE_VERY_LATE":   func(o *deferfs.Options, v bool) { o.CloseVeryLate = v },
	"DEFERFS_RESTRICTIVE_DIRS":  func(o *deferfs.Options, v bool) { o.RestrictiveDirs = v },
	"DEFERFS_IGNORE_FSYNC":      func(o *deferfs.Options, v bool) { o.IgnoreFsync = v },
}

// LoadEnv applies DEFERFS_*-prefixed environment overrides on top of
// base, one per Options field. Boolean fields accept the values
// strconv.ParseBool understands; DEFERFS_WORKER_THREADS accepts a
// base-10 integer. An override that fails to parse is ignored, since
// by the time this runs the rest of the process has already chosen a
// config path and should not fail on a malformed container env var.
func LoadEnv(base deferfs.Options) deferfs.Options {
	options := base

	for name, apply := range boolOverrides {
		raw, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			continue
		}
		apply(&options, value)
	}

	if raw, ok := os.LookupEnv("DEFERFS_WORKER_THREADS"); ok {
		if value, err := strconv.Atoi(raw); err == nil {
			options.WorkerThreads = value
		}
	}

	return options
}
