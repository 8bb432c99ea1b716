// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package deferfs

import (
	"sync"

	"golang.org/x/sys/unix"
)

// NoDescriptor is the sentinel file descriptor value meaning "not yet
// opened." No real file descriptor is ever negative, so this is
// distinguishable from any value [HandleSlot.Fulfil] might set.
const NoDescriptor = -1

// HandleSlot is one entry in a [HandleTable]: a promise for a file
// descriptor, plus the lazily-created write-buffering pipe used by
// deferred writes.
//
// A slot's descriptor, once set by [HandleSlot.Fulfil], is set for the
// life of the slot; readers of it block until it is set. This lets
// Open and Create hand the kernel a handle ID before the real open(2)
// has run on a worker.
type HandleSlot struct {
	mu   sync.Mutex
	cond *sync.Cond

	fd int

	pipeRead  int
	pipeWrite int
	havePipe  bool
}

func newHandleSlot() *HandleSlot {
	s := &HandleSlot{fd: NoDescriptor, pipeRead: NoDescriptor, pipeWrite: NoDescriptor}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Fulfil sets the slot's descriptor and wakes every goroutine blocked
// in [HandleSlot.Descriptor]. Calling Fulfil more than once on the
// same slot lifetime (between an Allocate and the matching Free) is a
// programming error.
func (s *HandleSlot) Fulfil(fd int) {
	s.mu.Lock()
	s.fd = fd
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Descriptor blocks until the slot's file descriptor has been set by
// [HandleSlot.Fulfil], then returns it. There is no timeout: per the
// ordering model a deferred open will eventually run on the worker
// pool and fulfil every outstanding slot, so a caller that blocks here
// is waiting on work that has already been queued, never on an
// external event that might not occur.
func (s *HandleSlot) Descriptor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.fd == NoDescriptor {
		s.cond.Wait()
	}
	return s.fd
}

// TryDescriptor returns the slot's descriptor and true if it has
// already been fulfilled, without blocking.
func (s *HandleSlot) TryDescriptor() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fd == NoDescriptor {
		return NoDescriptor, false
	}
	return s.fd, true
}

// EnsurePipe lazily creates the slot's anonymous write-buffering
// pipe and returns its read and write ends. Safe to call repeatedly
// and concurrently; the pipe is created at most once per slot
// lifetime.
func (s *HandleSlot) EnsurePipe() (readFD, writeFD int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.havePipe {
		return s.pipeRead, s.pipeWrite, nil
	}

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return NoDescriptor, NoDescriptor, err
	}

	s.pipeRead, s.pipeWrite = fds[0], fds[1]
	s.havePipe = true
	return s.pipeRead, s.pipeWrite, nil
}

// reset clears the slot back to its unfulfilled, pipe-less state. It
// does not close descriptors — ownership of the real fd and pipe fds
// has already passed to the release syscall by the time reset runs.
func (s *HandleSlot) reset() {
	s.mu.Lock()
	s.fd = NoDescriptor
	s.pipeRead = NoDescriptor
	s.pipeWrite = NoDescriptor
	s.havePipe = false
	s.mu.Unlock()
}

// HandleTable is a dense, append-mostly table of [HandleSlot]s indexed
// by handle ID, with a free-slot stack for reuse. Slot storage is
// never deallocated or moved: background workers may hold a pointer
// to a slot across a table grow, so addresses must stay stable for
// the life of the process.
//
// HandleTable is safe for concurrent use.
type HandleTable struct {
	mu    sync.Mutex
	slots []*HandleSlot
	free  []uint64
}

// NewHandleTable returns an empty HandleTable.
func NewHandleTable() *HandleTable {
	return &HandleTable{}
}

// Allocate reserves a handle ID and returns it together with its
// slot. The slot's descriptor is [NoDescriptor] until a subsequent
// call to [HandleSlot.Fulfil].
func (t *HandleTable) Allocate() (uint64, *HandleSlot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		return id, t.slots[id]
	}

	id := uint64(len(t.slots))
	t.slots = append(t.slots, newHandleSlot())
	return id, t.slots[id]
}

// Slot returns the slot for handle id. The id must have come from a
// prior Allocate call on this table and must not have been freed;
// violating that is a programming error and Slot panics rather than
// silently returning a stale slot.
func (t *HandleTable) Slot(id uint64) *HandleSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id >= uint64(len(t.slots)) {
		panic("deferfs: handle id out of range")
	}
	for _, freed := range t.free {
		if freed == id {
			panic("deferfs: handle id has been freed")
		}
	}
	return t.slots[id]
}

// Free returns id to the free stack and resets its slot. The slot's
// storage is kept, not deallocated, because a worker dispatched
// before the free may still hold a reference to it.
func (t *HandleTable) Free(id uint64) {
	t.mu.Lock()
	slot := t.slots[id]
	t.free = append(t.free, id)
	t.mu.Unlock()

	slot.reset()
}

// Len reports the number of slots ever allocated, including freed
// ones. Used by diagnostics.
func (t *HandleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
