// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package fuseadapter

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
)

func TestResultFromError(t *testing.T) {
	if got := resultFromError(nil); got != 0 {
		t.Fatalf("resultFromError(nil) = %d, want 0", got)
	}
	if got := resultFromError(syscall.ENOENT); got != -int(syscall.ENOENT) {
		t.Fatalf("resultFromError(ENOENT) = %d, want %d", got, -int(syscall.ENOENT))
	}
	if got := resultFromError(fmt.Errorf("opaque failure")); got != -int(syscall.EIO) {
		t.Fatalf("resultFromError(non-errno) = %d, want -EIO", got)
	}
}

func TestErrnoFromResult(t *testing.T) {
	if got := errnoFromResult(0); got != 0 {
		t.Fatalf("errnoFromResult(0) = %v, want 0", got)
	}
	if got := errnoFromResult(5); got != 0 {
		t.Fatalf("errnoFromResult(5) = %v, want 0", got)
	}
	if got := errnoFromResult(-int(syscall.EACCES)); got != syscall.EACCES {
		t.Fatalf("errnoFromResult(-EACCES) = %v, want EACCES", got)
	}
}

func TestResultErrnoRoundTrip(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.ENOENT, syscall.EACCES, syscall.EEXIST, syscall.ENOTEMPTY} {
		result := resultFromError(errno)
		if got := errnoFromResult(result); got != errno {
			t.Fatalf("round trip of %v produced %v", errno, got)
		}
	}
}

func TestFillAttrFromStat(t *testing.T) {
	st := syscall.Stat_t{
		Ino:     123,
		Size:    4096,
		Blocks:  8,
		Blksize: 4096,
		Mode:    syscall.S_IFREG | 0o644,
		Nlink:   2,
		Uid:     1000,
		Gid:     1000,
	}

	var out fuse.Attr
	fillAttrFromStat(&out, &st)

	if out.Ino != 123 {
		t.Errorf("Ino = %d, want 123", out.Ino)
	}
	if out.Size != 4096 {
		t.Errorf("Size = %d, want 4096", out.Size)
	}
	if out.Mode != st.Mode {
		t.Errorf("Mode = %o, want %o", out.Mode, st.Mode)
	}
	if out.Nlink != 2 {
		t.Errorf("Nlink = %d, want 2", out.Nlink)
	}
	if out.Owner.Uid != 1000 || out.Owner.Gid != 1000 {
		t.Errorf("Owner = %+v, want uid/gid 1000", out.Owner)
	}
}
