// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package deferfs_test

import (
	"testing"

	"github.com/samuell/deferfs/lib/deferfs"
)

func TestDefaultOptionsAreEagerByDefault(t *testing.T) {
	options := deferfs.DefaultOptions()

	eagerFields := map[string]bool{
		"EagerLink":    options.EagerLink,
		"EagerChmod":   options.EagerChmod,
		"EagerUtimens": options.EagerUtimens,
		"EagerChown":   options.EagerChown,
		"EagerClose":   options.EagerClose,
		"EagerFsync":   options.EagerFsync,
		"EagerCreate":  options.EagerCreate,
		"EagerAccess":  options.EagerAccess,
	}
	for name, value := range eagerFields {
		if !value {
			t.Errorf("DefaultOptions().%s = false, want true", name)
		}
	}

	strictFields := map[string]bool{
		"VeryEagerAccess": options.VeryEagerAccess,
		"CloseVeryLate":   options.CloseVeryLate,
		"RestrictiveDirs": options.RestrictiveDirs,
		"IgnoreFsync":     options.IgnoreFsync,
	}
	for name, value := range strictFields {
		if value {
			t.Errorf("DefaultOptions().%s = true, want false", name)
		}
	}

	if options.WorkerThreads <= 0 {
		t.Errorf("WorkerThreads = %d, want > 0", options.WorkerThreads)
	}
}

func TestOptionsValidateRejectsNegativeWorkerThreads(t *testing.T) {
	options := deferfs.DefaultOptions()
	options.WorkerThreads = -1
	if err := options.Validate(); err == nil {
		t.Fatal("Validate did not reject a negative WorkerThreads")
	}
}

func TestOptionsValidateAcceptsZeroWorkerThreads(t *testing.T) {
	options := deferfs.DefaultOptions()
	options.WorkerThreads = 0
	if err := options.Validate(); err != nil {
		t.Fatalf("Validate rejected WorkerThreads = 0: %v", err)
	}
}
