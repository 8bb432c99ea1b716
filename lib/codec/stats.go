// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import "github.com/samuell/deferfs/lib/deferfs"

// StatsSnapshot is what cmd/deferfs writes to the stats socket and
// cmd/deferfs-top decodes on the other end. Sequence is a
// per-connection monotonic counter the sender assigns, not a
// wall-clock timestamp, so a client can detect a dropped frame without
// either side needing a synchronized clock.
type StatsSnapshot struct {
	Sequence uint64 `cbor:"1,keyasint"`

	PendingEvents    int `cbor:"2,keyasint"`
	KnownPaths       int `cbor:"3,keyasint"`
	AllocatedHandles int `cbor:"4,keyasint"`
	QueuedTasks      int `cbor:"5,keyasint"`
	DeferredCloses   int `cbor:"6,keyasint"`
}

// SnapshotFrom converts a deferfs.Stats sample into a StatsSnapshot
// tagged with sequence.
func SnapshotFrom(stats deferfs.Stats, sequence uint64) StatsSnapshot {
	return StatsSnapshot{
		Sequence:         sequence,
		PendingEvents:    stats.PendingEvents,
		KnownPaths:       stats.KnownPaths,
		AllocatedHandles: stats.AllocatedHandles,
		QueuedTasks:      stats.QueuedTasks,
		DeferredCloses:   stats.DeferredCloses,
	}
}
