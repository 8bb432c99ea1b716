// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samuell/deferfs/lib/config"
	"github.com/samuell/deferfs/lib/deferfs"
)

func TestDefaultMatchesDeferfsDefaultOptions(t *testing.T) {
	got := config.Default()
	want := deferfs.DefaultOptions()
	if got != want {
		t.Fatalf("Default() = %+v, want %+v", got, want)
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	got, err := config.Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if got != deferfs.DefaultOptions() {
		t.Fatalf("Load(\"\") = %+v, want defaults", got)
	}
}

func TestLoadOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deferfs.yaml")
	yaml := "eager_link: false\nworker_threads: 3\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	options, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if options.EagerLink {
		t.Error("EagerLink = true, want false after YAML override")
	}
	if options.WorkerThreads != 3 {
		t.Errorf("WorkerThreads = %d, want 3", options.WorkerThreads)
	}
	// Fields not mentioned in the file keep the default.
	if !options.EagerChmod {
		t.Error("EagerChmod = false, want true (unset fields keep the default)")
	}
}

func TestLoadRejectsInvalidOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deferfs.yaml")
	if err := os.WriteFile(path, []byte("worker_threads: -1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := config.Load(path); err == nil {
		t.Fatal("Load accepted worker_threads: -1")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load did not fail for a missing file")
	}
}

func TestLoadEnvAppliesBooleanOverride(t *testing.T) {
	t.Setenv("DEFERFS_EAGER_LINK", "false")
	t.Setenv("DEFERFS_RESTRICTIVE_DIRS", "true")

	base := deferfs.DefaultOptions()
	got := config.LoadEnv(base)

	if got.EagerLink {
		t.Error("EagerLink = true, want false after DEFERFS_EAGER_LINK=false")
	}
	if !got.RestrictiveDirs {
		t.Error("RestrictiveDirs = false, want true after DEFERFS_RESTRICTIVE_DIRS=true")
	}
}

func TestLoadEnvAppliesWorkerThreads(t *testing.T) {
	t.Setenv("DEFERFS_WORKER_THREADS", "12")

	got := config.LoadEnv(deferfs.DefaultOptions())
	if got.WorkerThreads != 12 {
		t.Fatalf("WorkerThreads = %d, want 12", got.WorkerThreads)
	}
}

func TestLoadEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("DEFERFS_EAGER_LINK", "not-a-bool")
	t.Setenv("DEFERFS_WORKER_THREADS", "not-a-number")

	base := deferfs.DefaultOptions()
	got := config.LoadEnv(base)
	if got != base {
		t.Fatalf("LoadEnv applied a malformed override: got %+v, want unchanged %+v", got, base)
	}
}

func TestLoadEnvLeavesUnsetFieldsAlone(t *testing.T) {
	got := config.LoadEnv(deferfs.DefaultOptions())
	if got != deferfs.DefaultOptions() {
		t.Fatalf("LoadEnv with no environment set changed options: got %+v", got)
	}
}
