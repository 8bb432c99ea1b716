// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package deferfs implements the per-path ordering engine behind a
// passthrough filesystem tuned for batch write workloads.
//
// Mutating operations return to the caller as soon as their intent is
// recorded; the underlying syscall runs asynchronously on a worker
// pool. Reads and metadata queries that depend on prior writes to the
// same path block until those writes have been issued and completed.
// The package does not itself speak the FUSE wire protocol — see
// [github.com/samuell/deferfs/lib/deferfs/fuseadapter] for the
// adapters that translate host callbacks into calls on the types
// here.
//
// # Core types
//
// [EventClock] hands out monotonically increasing event IDs.
// [PathStateMap] tracks, per path, the most recent event submitted
// against it and a signal that waiters sleep on until it completes.
// [HandleTable] lets a file descriptor be promised to the kernel
// before the real open(2) has run. [Dispatcher] ties these together:
// it decides whether an operation runs eagerly on the calling
// goroutine or is hand off to the [WorkerPool], and wraps both paths
// with the reader/writer ordering protocol.
package deferfs
