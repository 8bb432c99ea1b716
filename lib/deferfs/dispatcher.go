// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package deferfs

import "log/slog"

// Dispatcher classifies every mutating filesystem operation as eager
// or deferred, wraps it with the [Writer]/[Reader] ordering barriers,
// and submits it to the [WorkerPool]. It is the single point through
// which every operation adapter in
// [github.com/samuell/deferfs/lib/deferfs/fuseadapter] reaches the
// ordering engine.
//
// Dispatcher is safe for concurrent use by every dispatch thread and
// worker goroutine.
type Dispatcher struct {
	clock   EventClock
	pending *PendingSet
	paths   *PathStateMap
	handles *HandleTable
	pool    *WorkerPool
	closer  *DeferredCloser
	options Options
	logger  *slog.Logger
}

// NewDispatcher builds a Dispatcher and starts its WorkerPool. Pass
// the returned Dispatcher's [Dispatcher.Shutdown] method to your
// cleanup path — it drains the pool and closes every descriptor
// queued by CloseVeryLate.
func NewDispatcher(options Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pending := NewPendingSet()
	paths := NewPathStateMap(pending)
	paths.RestrictiveDirs = options.RestrictiveDirs

	return &Dispatcher{
		pending: pending,
		paths:   paths,
		handles: NewHandleTable(),
		pool:    NewWorkerPool(options.normalizedWorkerThreads(), logger),
		closer:  NewDeferredCloser(),
		options: options,
		logger:  logger,
	}
}

// Options returns the Dispatcher's immutable option record.
func (d *Dispatcher) Options() Options { return d.options }

// Handles returns the Dispatcher's HandleTable.
func (d *Dispatcher) Handles() *HandleTable { return d.handles }

// Closer returns the Dispatcher's DeferredCloser, used by adapters
// when [Options.CloseVeryLate] is set.
func (d *Dispatcher) Closer() *DeferredCloser { return d.closer }

// Logger returns the logger passed to NewDispatcher.
func (d *Dispatcher) Logger() *slog.Logger { return d.logger }

// Shutdown drains the WorkerPool — blocking until every already
// queued deferred task has returned — and then closes every
// descriptor accumulated by [Options.CloseVeryLate]. Call this after
// the host FUSE library's main loop has returned.
func (d *Dispatcher) Shutdown() []error {
	d.pool.Drain()
	return d.closer.CloseAll()
}

// Stats is a point-in-time snapshot of the Dispatcher's internal
// queues, used by diagnostics and the deferfs-top monitor.
type Stats struct {
	PendingEvents    int
	KnownPaths       int
	AllocatedHandles int
	QueuedTasks      int
	DeferredCloses   int
}

// Stats returns a snapshot of the Dispatcher's current load.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		PendingEvents:    d.pending.Len(),
		KnownPaths:       d.paths.Len(),
		AllocatedHandles: d.handles.Len(),
		QueuedTasks:      d.pool.Pending(),
		DeferredCloses:   d.closer.Len(),
	}
}

// submit draws the next event ID before branching on deferOp, so
// that even an eager operation is observable mid-flight by a reader
// that arrives between acquire and completion. acquire runs on
// whichever goroutine ultimately executes work — the calling
// goroutine if !deferOp, a worker goroutine otherwise — and must
// return a function that releases whatever it acquired.
func (d *Dispatcher) submit(deferOp bool, acquire func(id EventID) func(), work func() int) int {
	id := d.clock.Next()

	run := func() int {
		release := acquire(id)
		defer release()
		return work()
	}

	if !deferOp {
		return run()
	}

	d.pool.Submit(func() int { return run() })
	return 0
}

// submitOnePath is the Dispatcher's helper for operations that
// mutate a single path.
func (d *Dispatcher) submitOnePath(deferOp bool, path string, wholePath bool, work func() int) int {
	return d.submit(deferOp, func(id EventID) func() {
		w := NewWriter(d.paths, path, id, wholePath)
		return w.Close
	}, work)
}

// submitTwoPaths is the Dispatcher's helper for operations that
// mutate two paths (link, rename). The two Writer guards are
// acquired in the order the arguments are given, matching the order
// the operation's arguments appear in the syscall; wholePathFirst
// additionally holds first's path mutex for the full duration, as
// rename does for its source.
func (d *Dispatcher) submitTwoPaths(deferOp bool, first, second string, wholePathFirst bool, work func() int) int {
	return d.submit(deferOp, func(id EventID) func() {
		w1 := NewWriter(d.paths, first, id, wholePathFirst)
		w2 := NewWriter(d.paths, second, id, false)
		return func() {
			w2.Close()
			w1.Close()
		}
	}, work)
}

// barrierPath returns the path a read barrier should be constructed
// against: path itself, or [RootPath] for a directory read when
// [Options.RestrictiveDirs] is set.
func (d *Dispatcher) barrierPath(path string, isDirRead bool) string {
	if isDirRead && d.options.RestrictiveDirs {
		return RootPath
	}
	return path
}

// Read runs work after waiting for every write previously submitted
// against path to complete. Read never defers work itself — per the
// ordering model, read-family operations always run on the calling
// goroutine, after their barrier.
func (d *Dispatcher) Read(path string, work func() int) int {
	r := NewReader(d.paths, d.barrierPath(path, false), false)
	defer r.Close()
	return work()
}

// DirRead is [Dispatcher.Read]'s directory-listing variant: when
// [Options.RestrictiveDirs] is set, the barrier widens to [RootPath]
// so the listing observes every pending write in the filesystem, not
// just ones targeting the directory itself.
func (d *Dispatcher) DirRead(path string, work func() int) int {
	r := NewReader(d.paths, d.barrierPath(path, true), false)
	defer r.Close()
	return work()
}

// Access implements the two-tier override the Options record defines
// for access(2): VeryEagerAccess short-circuits before any barrier;
// otherwise a barrier always runs, and EagerAccess decides whether
// the syscall itself executes inline or on the worker pool.
func (d *Dispatcher) Access(path string, work func() int) int {
	if d.options.VeryEagerAccess {
		return 0
	}

	r := NewReader(d.paths, path, false)
	defer r.Close()

	if d.options.EagerAccess {
		d.pool.Submit(work)
		return 0
	}
	return work()
}

// SubmitLink submits a link(2) from existingPath to newPath, gated by
// [Options.EagerLink].
func (d *Dispatcher) SubmitLink(existingPath, newPath string, work func() int) int {
	return d.submitTwoPaths(d.options.EagerLink, existingPath, newPath, false, work)
}

// SubmitChmod submits a chmod(2) on path, gated by
// [Options.EagerChmod].
func (d *Dispatcher) SubmitChmod(path string, work func() int) int {
	return d.submitOnePath(d.options.EagerChmod, path, false, work)
}

// SubmitChown submits a chown(2) on path, gated by
// [Options.EagerChown].
func (d *Dispatcher) SubmitChown(path string, work func() int) int {
	return d.submitOnePath(d.options.EagerChown, path, false, work)
}

// SubmitUtimens submits a utimensat(2) on path, gated by
// [Options.EagerUtimens].
func (d *Dispatcher) SubmitUtimens(path string, work func() int) int {
	return d.submitOnePath(d.options.EagerUtimens, path, false, work)
}

// SubmitFsync submits an fsync(2) on path, gated by
// [Options.EagerFsync]. If [Options.IgnoreFsync] is set, work never
// runs and fsync reports success immediately with no barrier at all.
func (d *Dispatcher) SubmitFsync(path string, work func() int) int {
	if d.options.IgnoreFsync {
		return 0
	}
	return d.submitOnePath(d.options.EagerFsync, path, false, work)
}

// SubmitCreate submits the open(2)-with-O_CREAT underlying a create
// call, gated by [Options.EagerCreate]. The caller is responsible for
// allocating the HandleTable slot and returning its ID to the kernel
// before calling SubmitCreate; work's job is to run the syscall and
// fulfil that slot.
func (d *Dispatcher) SubmitCreate(path string, work func() int) int {
	return d.submitOnePath(d.options.EagerCreate, path, false, work)
}

// SubmitOpen submits the open(2) underlying a plain (non-create) open
// call. Unlike the other families, there is no eager_open option:
// open always promises its handle before the syscall runs, so its
// underlying syscall always executes on the worker pool — deferring
// it inline would defeat the purpose of the HandleTable promise.
func (d *Dispatcher) SubmitOpen(path string, work func() int) int {
	return d.submitOnePath(true, path, false, work)
}

// SubmitRelease submits a release (close) on path, gated by
// [Options.EagerClose]. Callers must check [Options.CloseVeryLate]
// themselves before calling SubmitRelease — when it is set, the
// descriptor goes to the [DeferredCloser] instead and SubmitRelease
// is not called at all.
func (d *Dispatcher) SubmitRelease(path string, work func() int) int {
	return d.submitOnePath(d.options.EagerClose, path, false, work)
}

// SubmitFlush submits a flush on path, gated by [Options.EagerClose],
// the same policy as release.
func (d *Dispatcher) SubmitFlush(path string, work func() int) int {
	return d.submitOnePath(d.options.EagerClose, path, false, work)
}

// SubmitWriteBuf submits a buffered write on path. Writes are always
// deferred: the caller has already spliced the kernel's buffer into
// the handle's pipe before calling SubmitWriteBuf, so the data is
// safely off the caller's stack regardless of when the worker gets to
// it.
func (d *Dispatcher) SubmitWriteBuf(path string, work func() int) int {
	return d.submitOnePath(true, path, false, work)
}

// SubmitUnlink submits an inline unlink(2) on path. Per the source
// this system is grounded on, a pending write to the same path is not
// cancelled or waited for — the unlink simply runs inline and races
// with whatever the worker pool is doing. Callers must not rely on
// pending writes being dropped.
func (d *Dispatcher) SubmitUnlink(path string, work func() int) int {
	return d.submitOnePath(false, path, false, work)
}

// SubmitRmdir submits an inline rmdir(2) on path.
func (d *Dispatcher) SubmitRmdir(path string, work func() int) int {
	return d.submitOnePath(false, path, false, work)
}

// SubmitMkdir submits an inline mkdir(2) on path.
func (d *Dispatcher) SubmitMkdir(path string, work func() int) int {
	return d.submitOnePath(false, path, false, work)
}

// SubmitMknod submits an inline mknod(2) on path.
func (d *Dispatcher) SubmitMknod(path string, work func() int) int {
	return d.submitOnePath(false, path, false, work)
}

// SubmitSymlink submits an inline symlink(2) creating newPath.
func (d *Dispatcher) SubmitSymlink(newPath string, work func() int) int {
	return d.submitOnePath(false, newPath, false, work)
}

// SubmitTruncate submits an inline truncate(2) on path.
func (d *Dispatcher) SubmitTruncate(path string, work func() int) int {
	return d.submitOnePath(false, path, false, work)
}

// SubmitRename submits an inline rename(2) from oldPath to newPath.
// oldPath's Writer guard holds its path mutex for the full duration
// of the syscall; newPath's does not. The system does not defend
// against two concurrent renames holding oldPath/newPath in opposite
// orders: the two paths are not sorted before their guards are taken.
func (d *Dispatcher) SubmitRename(oldPath, newPath string, work func() int) int {
	return d.submitTwoPaths(false, oldPath, newPath, true, work)
}
