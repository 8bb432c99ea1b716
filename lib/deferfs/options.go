// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package deferfs

import (
	"fmt"
	"runtime"
)

// Options is the process-wide, immutable record that controls which
// operation families the [Dispatcher] defers versus runs eagerly, and
// a handful of cross-cutting behaviors. It is populated once at
// startup (from flags, an optional config file, or both) and read
// from every dispatch thread and worker thereafter.
type Options struct {
	// EagerLink makes link(2) return to the caller before the
	// syscall runs.
	EagerLink bool `yaml:"eager_link"`

	// EagerChmod makes chmod(2) return to the caller before the
	// syscall runs.
	EagerChmod bool `yaml:"eager_chmod"`

	// EagerUtimens makes utimensat(2) return to the caller before
	// the syscall runs.
	EagerUtimens bool `yaml:"eager_utimens"`

	// EagerChown makes chown(2) return to the caller before the
	// syscall runs.
	EagerChown bool `yaml:"eager_chown"`

	// EagerClose makes release/flush return to the caller before
	// close(2) runs, unless CloseVeryLate redirects it to the
	// DeferredCloser instead.
	EagerClose bool `yaml:"eager_close"`

	// EagerFsync makes fsync(2) return to the caller before the
	// syscall runs. Superseded by IgnoreFsync.
	EagerFsync bool `yaml:"eager_fsync"`

	// EagerCreate makes create's open(2) return to the caller before
	// the syscall runs. The handle is still promised immediately via
	// the HandleTable either way; this only controls when the real
	// open(2) executes.
	EagerCreate bool `yaml:"eager_create"`

	// VeryEagerAccess makes access(2) return success unconditionally,
	// without even a barrier read. Takes priority over EagerAccess.
	VeryEagerAccess bool `yaml:"very_eager_access"`

	// EagerAccess makes access(2) run on the worker pool after a
	// barrier, returning success to the caller immediately. Has no
	// effect if VeryEagerAccess is set.
	EagerAccess bool `yaml:"eager_access"`

	// CloseVeryLate redirects release and flush to the
	// DeferredCloser: the descriptor is closed at process teardown
	// instead of at release time. Only sound under this system's
	// rerun-on-failure assumption.
	CloseVeryLate bool `yaml:"close_very_late"`

	// RestrictiveDirs widens every directory read's barrier from its
	// own path to the whole-filesystem RootPath barrier, trading
	// concurrency for stricter cross-path ordering.
	RestrictiveDirs bool `yaml:"restrictive_dirs"`

	// IgnoreFsync makes fsync(2) a no-op that returns success without
	// a barrier, regardless of EagerFsync.
	IgnoreFsync bool `yaml:"ignore_fsync"`

	// WorkerThreads sizes the WorkerPool. Zero means
	// runtime.GOMAXPROCS(0); Validate rejects a negative value.
	WorkerThreads int `yaml:"worker_threads"`
}

// DefaultOptions returns the options used when nothing overrides them:
// every eager_* flag enabled, matching the CLI surface's stated
// default of "eager as possible." RestrictiveDirs, IgnoreFsync,
// CloseVeryLate, and VeryEagerAccess default off, since each trades
// away either ordering strictness or POSIX fidelity and should be an
// explicit opt-in.
func DefaultOptions() Options {
	return Options{
		EagerLink:       true,
		EagerChmod:      true,
		EagerUtimens:    true,
		EagerChown:      true,
		EagerClose:      true,
		EagerFsync:      true,
		EagerCreate:     true,
		VeryEagerAccess: false,
		EagerAccess:     true,
		CloseVeryLate:   false,
		RestrictiveDirs: false,
		IgnoreFsync:     false,
		WorkerThreads:   runtime.GOMAXPROCS(0),
	}
}

// Validate reports an error if the options are not usable as-is. It
// does not mutate the receiver.
func (o Options) Validate() error {
	if o.WorkerThreads < 0 {
		return fmt.Errorf("deferfs: worker_threads must be >= 0, got %d", o.WorkerThreads)
	}
	return nil
}

// normalizedWorkerThreads returns WorkerThreads, substituting
// runtime.GOMAXPROCS(0) for a zero or negative value.
func (o Options) normalizedWorkerThreads() int {
	if o.WorkerThreads <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.WorkerThreads
}
