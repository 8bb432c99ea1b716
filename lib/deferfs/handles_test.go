// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package deferfs_test

import (
	"testing"
	"time"

	"github.com/samuell/deferfs/lib/deferfs"
	"golang.org/x/sys/unix"
)

func TestHandleSlotDescriptorBlocksUntilFulfilled(t *testing.T) {
	table := deferfs.NewHandleTable()
	_, slot := table.Allocate()

	if _, ok := slot.TryDescriptor(); ok {
		t.Fatal("TryDescriptor reported ready before Fulfil")
	}

	result := make(chan int, 1)
	go func() {
		result <- slot.Descriptor()
	}()

	select {
	case <-result:
		t.Fatal("Descriptor returned before Fulfil")
	case <-time.After(50 * time.Millisecond):
	}

	slot.Fulfil(7)

	select {
	case fd := <-result:
		if fd != 7 {
			t.Fatalf("Descriptor() = %d, want 7", fd)
		}
	case <-time.After(time.Second):
		t.Fatal("Descriptor never returned after Fulfil")
	}

	if fd, ok := slot.TryDescriptor(); !ok || fd != 7 {
		t.Fatalf("TryDescriptor() = (%d, %v), want (7, true)", fd, ok)
	}
}

func TestHandleTableAllocateReusesFreedSlots(t *testing.T) {
	table := deferfs.NewHandleTable()

	firstID, _ := table.Allocate()
	table.Free(firstID)

	secondID, secondSlot := table.Allocate()
	if secondID != firstID {
		t.Fatalf("Allocate after Free returned id %d, want reused id %d", secondID, firstID)
	}
	if _, ok := secondSlot.TryDescriptor(); ok {
		t.Fatal("reused slot was not reset")
	}
	if table.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", table.Len())
	}
}

func TestHandleTableSlotOutOfRangePanics(t *testing.T) {
	table := deferfs.NewHandleTable()

	defer func() {
		if recover() == nil {
			t.Fatal("Slot did not panic on an out-of-range id")
		}
	}()
	table.Slot(99)
}

func TestHandleSlotEnsurePipeIdempotent(t *testing.T) {
	table := deferfs.NewHandleTable()
	_, slot := table.Allocate()

	readFD, writeFD, err := slot.EnsurePipe()
	if err != nil {
		t.Fatalf("EnsurePipe: %v", err)
	}
	defer func() {
		unix.Close(readFD)
		unix.Close(writeFD)
	}()

	readFD2, writeFD2, err := slot.EnsurePipe()
	if err != nil {
		t.Fatalf("EnsurePipe (second call): %v", err)
	}
	if readFD2 != readFD || writeFD2 != writeFD {
		t.Fatalf("EnsurePipe returned different descriptors on a second call: (%d,%d) vs (%d,%d)",
			readFD, writeFD, readFD2, writeFD2)
	}
}
