// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuseadapter is the FUSE operation-adapter layer. It
// translates github.com/hanwen/go-fuse/v2's Inode-based callback
// surface into calls against a github.com/samuell/deferfs/lib/deferfs
// Dispatcher. Every method here is a thin shim: it reconstructs the
// operation's path (or paths), picks the right Dispatcher method for
// that operation family, and runs the real syscall against the backing
// directory inside the closure the Dispatcher hands it. No ordering
// logic lives in this package — it all lives in lib/deferfs.
package fuseadapter
