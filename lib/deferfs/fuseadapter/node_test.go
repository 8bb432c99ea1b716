// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package fuseadapter

import (
	"path/filepath"
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

func TestChownArgsNeitherSet(t *testing.T) {
	in := &fuse.SetAttrIn{}
	if _, _, ok := chownArgs(in); ok {
		t.Fatal("chownArgs reported ok with neither uid nor gid set")
	}
}

func TestChownArgsUIDOnly(t *testing.T) {
	in := &fuse.SetAttrIn{}
	in.Valid = fuse.FATTR_UID
	in.Owner.Uid = 1000

	uid, gid, ok := chownArgs(in)
	if !ok {
		t.Fatal("chownArgs reported !ok with uid set")
	}
	if uid != 1000 {
		t.Errorf("uid = %d, want 1000", uid)
	}
	if gid != -1 {
		t.Errorf("gid = %d, want -1 (unset)", gid)
	}
}

func TestChownArgsBothSet(t *testing.T) {
	in := &fuse.SetAttrIn{}
	in.Valid = fuse.FATTR_UID | fuse.FATTR_GID
	in.Owner.Uid = 1000
	in.Owner.Gid = 2000

	uid, gid, ok := chownArgs(in)
	if !ok {
		t.Fatal("chownArgs reported !ok with both set")
	}
	if uid != 1000 || gid != 2000 {
		t.Errorf("uid,gid = %d,%d, want 1000,2000", uid, gid)
	}
}

func TestUtimensArgsNeitherSet(t *testing.T) {
	in := &fuse.SetAttrIn{}
	if _, ok := utimensArgs(in); ok {
		t.Fatal("utimensArgs reported ok with neither atime nor mtime set")
	}
}

func TestUtimensArgsMtimeOnlyOmitsAtime(t *testing.T) {
	in := &fuse.SetAttrIn{}
	in.Valid = fuse.FATTR_MTIME
	in.Mtime = 1700000000
	in.Mtimensec = 0

	times, ok := utimensArgs(in)
	if !ok {
		t.Fatal("utimensArgs reported !ok with mtime set")
	}
	if len(times) != 2 {
		t.Fatalf("len(times) = %d, want 2", len(times))
	}
	if times[0].Nsec != unix.UTIME_OMIT {
		t.Errorf("atime slot = %+v, want UTIME_OMIT", times[0])
	}
	if times[1].Sec != 1700000000 {
		t.Errorf("mtime.Sec = %d, want 1700000000", times[1].Sec)
	}
}

func TestStatOrErrnoMissingPath(t *testing.T) {
	var st syscall.Stat_t
	errno := statOrErrno(filepath.Join(t.TempDir(), "missing"), &st)
	if errno != syscall.ENOENT {
		t.Fatalf("statOrErrno(missing) = %v, want ENOENT", errno)
	}
}

func TestStatOrErrnoExistingPath(t *testing.T) {
	dir := t.TempDir()
	var st syscall.Stat_t
	if errno := statOrErrno(dir, &st); errno != 0 {
		t.Fatalf("statOrErrno(%s) = %v, want 0", dir, errno)
	}
	if st.Mode&syscall.S_IFMT != syscall.S_IFDIR {
		t.Errorf("Mode = %o, want a directory", st.Mode)
	}
}
