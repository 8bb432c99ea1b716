// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package fuseadapter

import (
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// resultFromError converts a Go syscall error into the POSIX-style
// integer Dispatcher.submit expects: zero or positive for success,
// negative errno otherwise.
func resultFromError(err error) int {
	if err == nil {
		return 0
	}
	if errno, ok := err.(syscall.Errno); ok {
		return -int(errno)
	}
	return -int(syscall.EIO)
}

// errnoFromResult converts a Dispatcher result back into the
// syscall.Errno go-fuse's Node/File methods return.
func errnoFromResult(result int) syscall.Errno {
	if result >= 0 {
		return 0
	}
	return syscall.Errno(-result)
}

// fillAttrFromStat copies a syscall.Stat_t into a fuse.Attr, the
// shape every Getattr/Setattr/Lookup/Create response needs.
func fillAttrFromStat(out *fuse.Attr, st *syscall.Stat_t) {
	out.Ino = st.Ino
	out.Size = uint64(st.Size)
	out.Blocks = uint64(st.Blocks)
	out.Blksize = uint32(st.Blksize)
	out.Atime = uint64(st.Atim.Sec)
	out.Atimensec = uint32(st.Atim.Nsec)
	out.Mtime = uint64(st.Mtim.Sec)
	out.Mtimensec = uint32(st.Mtim.Nsec)
	out.Ctime = uint64(st.Ctim.Sec)
	out.Ctimensec = uint32(st.Ctim.Nsec)
	out.Mode = st.Mode
	out.Nlink = uint32(st.Nlink)
	out.Owner = fuse.Owner{Uid: st.Uid, Gid: st.Gid}
	out.Rdev = uint32(st.Rdev)
}
