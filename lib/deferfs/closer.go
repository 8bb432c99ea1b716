// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package deferfs

import (
	"sync"

	"golang.org/x/sys/unix"
)

// DeferredCloser collects file descriptors that should be closed at
// process teardown rather than when the kernel releases them. It
// exists to avoid paying close(2) latency during a batch run; it is
// only sound under this system's "rerun on failure" assumption, since
// a crash before CloseAll runs leaks the descriptors along with
// whatever buffering the kernel was doing for them.
//
// DeferredCloser is safe for concurrent use.
type DeferredCloser struct {
	mu  sync.Mutex
	fds []int
}

// NewDeferredCloser returns an empty DeferredCloser.
func NewDeferredCloser() *DeferredCloser {
	return &DeferredCloser{}
}

// Add registers fd to be closed by a future call to CloseAll.
func (c *DeferredCloser) Add(fd int) {
	c.mu.Lock()
	c.fds = append(c.fds, fd)
	c.mu.Unlock()
}

// Len reports how many descriptors are currently queued. Used by
// diagnostics.
func (c *DeferredCloser) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fds)
}

// CloseAll closes every registered descriptor and clears the queue.
// It returns every error encountered, continuing past individual
// close(2) failures so one bad descriptor does not leak the rest.
func (c *DeferredCloser) CloseAll() []error {
	c.mu.Lock()
	fds := c.fds
	c.fds = nil
	c.mu.Unlock()

	var errs []error
	for _, fd := range fds {
		if err := unix.Close(fd); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
