// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package deferfs_test

import (
	"testing"

	"github.com/samuell/deferfs/lib/deferfs"
)

func TestPendingSetAddRemoveContains(t *testing.T) {
	set := deferfs.NewPendingSet()

	if set.Contains(1) {
		t.Fatalf("Contains(1) = true before Add")
	}

	set.Add(1)
	if !set.Contains(1) {
		t.Fatalf("Contains(1) = false after Add")
	}
	if set.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", set.Len())
	}

	set.Remove(1)
	if set.Contains(1) {
		t.Fatalf("Contains(1) = true after Remove")
	}
	if set.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", set.Len())
	}
}

func TestPendingSetRemoveUnknownIsNoop(t *testing.T) {
	set := deferfs.NewPendingSet()
	set.Remove(42)
	if set.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", set.Len())
	}
}
