// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package fuseadapter

import (
	"context"
	"syscall"

	"github.com/samuell/deferfs/lib/deferfs"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// fileHandle is the gofuse.FileHandle returned by Open and Create. It
// does not hold a real file descriptor directly — it holds a
// HandleTable slot ID, so that a deferred open can still be pending
// when the kernel already has a handle to operate on.
type fileHandle struct {
	root     *fsRoot
	path     string
	handleID uint64
	slot     *deferfs.HandleSlot
}

var (
	_ gofuse.FileReader    = (*fileHandle)(nil)
	_ gofuse.FileWriter    = (*fileHandle)(nil)
	_ gofuse.FileFlusher   = (*fileHandle)(nil)
	_ gofuse.FileReleaser  = (*fileHandle)(nil)
	_ gofuse.FileFsyncer   = (*fileHandle)(nil)
	_ gofuse.FileGetattrer = (*fileHandle)(nil)
	_ gofuse.FileSetattrer = (*fileHandle)(nil)
)

func (h *fileHandle) Read(_ context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	fd := h.slot.Descriptor()

	var n int
	result := h.root.disp.Read(h.path, func() int {
		count, err := syscall.Pread(fd, dest, off)
		if err != nil {
			return resultFromError(err)
		}
		n = count
		return 0
	})
	if errno := errnoFromResult(result); errno != 0 {
		return nil, errno
	}
	return fuse.ReadResultData(dest[:n]), 0
}

// Write implements the write_buf contract: the caller-supplied bytes
// are spliced into the handle's pipe on this goroutine before Write
// returns, and the deferred worker later splices them out of the pipe
// into the destination descriptor at the requested offset.
func (h *fileHandle) Write(_ context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	fd := h.slot.Descriptor()

	_, pipeWrite, err := h.slot.EnsurePipe()
	if err != nil {
		return 0, errnoFromResult(resultFromError(err))
	}
	if _, err := unix.Write(pipeWrite, data); err != nil {
		return 0, errnoFromResult(resultFromError(err))
	}

	n := len(data)
	h.root.disp.SubmitWriteBuf(h.path, func() int {
		pipeRead, _, err := h.slot.EnsurePipe()
		if err != nil {
			return resultFromError(err)
		}

		offset := off
		remaining := n
		for remaining > 0 {
			spliced, err := unix.Splice(pipeRead, nil, fd, &offset, remaining, 0)
			if err != nil {
				return resultFromError(err)
			}
			if spliced == 0 {
				break
			}
			remaining -= int(spliced)
		}
		return 0
	})

	return uint32(n), 0
}

// Flush mirrors go-fuse's own loopback filesystem: dup the descriptor
// and close the duplicate, which is the documented way to force a
// flush of any kernel-buffered state tied to this specific handle
// without closing the real descriptor out from under other handles.
func (h *fileHandle) Flush(_ context.Context) syscall.Errno {
	fd := h.slot.Descriptor()

	if h.root.disp.Options().CloseVeryLate {
		dup, err := syscall.Dup(fd)
		if err != nil {
			return errnoFromResult(resultFromError(err))
		}
		h.root.disp.Closer().Add(dup)
		return 0
	}

	result := h.root.disp.SubmitFlush(h.path, func() int {
		dup, err := syscall.Dup(fd)
		if err != nil {
			return resultFromError(err)
		}
		return resultFromError(syscall.Close(dup))
	})
	return errnoFromResult(result)
}

func (h *fileHandle) Release(_ context.Context) syscall.Errno {
	fd := h.slot.Descriptor()
	defer h.root.disp.Handles().Free(h.handleID)

	if h.root.disp.Options().CloseVeryLate {
		h.root.disp.Closer().Add(fd)
		return 0
	}

	result := h.root.disp.SubmitRelease(h.path, func() int {
		return resultFromError(syscall.Close(fd))
	})
	return errnoFromResult(result)
}

func (h *fileHandle) Fsync(_ context.Context, _ uint32) syscall.Errno {
	fd := h.slot.Descriptor()
	result := h.root.disp.SubmitFsync(h.path, func() int {
		return resultFromError(syscall.Fsync(fd))
	})
	return errnoFromResult(result)
}

func (h *fileHandle) Getattr(_ context.Context, out *fuse.AttrOut) syscall.Errno {
	fd := h.slot.Descriptor()
	var st syscall.Stat_t
	result := h.root.disp.Read(h.path, func() int {
		return resultFromError(syscall.Fstat(fd, &st))
	})
	if errno := errnoFromResult(result); errno != 0 {
		return errno
	}
	fillAttrFromStat(&out.Attr, &st)
	return 0
}

func (h *fileHandle) Setattr(_ context.Context, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	fd := h.slot.Descriptor()

	if size, ok := in.GetSize(); ok {
		result := h.root.disp.SubmitTruncate(h.path, func() int {
			return resultFromError(syscall.Ftruncate(fd, int64(size)))
		})
		if errno := errnoFromResult(result); errno != 0 {
			return errno
		}
	}

	var st syscall.Stat_t
	if err := syscall.Fstat(fd, &st); err == nil {
		fillAttrFromStat(&out.Attr, &st)
	}
	return 0
}
