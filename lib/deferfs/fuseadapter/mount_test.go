// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package fuseadapter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samuell/deferfs/lib/deferfs"
)

// fuseAvailable checks whether /dev/fuse is accessible. Tests that need
// a real mount call this and skip if the device is absent.
func fuseAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

// testMount mounts a passthrough filesystem backed by a fresh temp
// directory and returns the mountpoint, the backing directory, and a
// Dispatcher the test can inspect. The mount is unmounted automatically
// via t.Cleanup.
func testMount(t *testing.T, options deferfs.Options) (mountpoint, backing string, disp *deferfs.Dispatcher) {
	t.Helper()
	fuseAvailable(t)

	root := t.TempDir()
	backing = filepath.Join(root, "backing")
	mountpoint = filepath.Join(root, "mount")
	if err := os.MkdirAll(backing, 0o755); err != nil {
		t.Fatalf("MkdirAll backing: %v", err)
	}

	disp = deferfs.NewDispatcher(options, nil)
	server, err := Mount(Options{
		Mountpoint: mountpoint,
		Backing:    backing,
		Dispatcher: disp,
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	t.Cleanup(func() {
		server.Unmount()
		disp.Shutdown()
	})
	return mountpoint, backing, disp
}

func TestMountCreateWriteReadRoundTrip(t *testing.T) {
	mountpoint, backing, _ := testMount(t, deferfs.DefaultOptions())

	content := []byte("hello from the mount\n")
	if err := os.WriteFile(filepath.Join(mountpoint, "greeting.txt"), content, 0o644); err != nil {
		t.Fatalf("WriteFile through mount: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(mountpoint, "greeting.txt"))
	if err != nil {
		t.Fatalf("ReadFile through mount: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("read back %q, want %q", got, content)
	}

	onDisk, err := os.ReadFile(filepath.Join(backing, "greeting.txt"))
	if err != nil {
		t.Fatalf("ReadFile from backing directory: %v", err)
	}
	if string(onDisk) != string(content) {
		t.Fatalf("backing file holds %q, want %q", onDisk, content)
	}
}

func TestMountMkdirRmdirRoundTrip(t *testing.T) {
	mountpoint, backing, _ := testMount(t, deferfs.DefaultOptions())

	dirPath := filepath.Join(mountpoint, "subdir")
	if err := os.Mkdir(dirPath, 0o755); err != nil {
		t.Fatalf("Mkdir through mount: %v", err)
	}
	if _, err := os.Stat(filepath.Join(backing, "subdir")); err != nil {
		t.Fatalf("subdir did not appear in backing directory: %v", err)
	}

	if err := os.Remove(dirPath); err != nil {
		t.Fatalf("Rmdir through mount: %v", err)
	}
	if _, err := os.Stat(filepath.Join(backing, "subdir")); !os.IsNotExist(err) {
		t.Fatalf("subdir still present in backing directory after Rmdir")
	}
}

func TestMountRenameRoundTrip(t *testing.T) {
	mountpoint, backing, _ := testMount(t, deferfs.DefaultOptions())

	oldPath := filepath.Join(mountpoint, "old.txt")
	newPath := filepath.Join(mountpoint, "new.txt")
	if err := os.WriteFile(oldPath, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("Rename through mount: %v", err)
	}

	if _, err := os.Stat(filepath.Join(backing, "old.txt")); !os.IsNotExist(err) {
		t.Fatal("old.txt still present in backing directory after rename")
	}
	if _, err := os.Stat(filepath.Join(backing, "new.txt")); err != nil {
		t.Fatalf("new.txt missing from backing directory after rename: %v", err)
	}
}

func TestMountDeferredWriteOrderingUnderLoad(t *testing.T) {
	// Exercises the deferred write path through the full mount stack
	// rather than the Dispatcher's Go API directly: every one of many
	// sequential appends to the same path must reach the file, with
	// EagerClose and EagerFsync off so release and fsync run inline.
	options := deferfs.DefaultOptions()
	options.EagerClose = false
	options.EagerFsync = false
	mountpoint, _, _ := testMount(t, options)

	path := filepath.Join(mountpoint, "log.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const lines = 20
	for i := 0; i < lines; i++ {
		if _, err := f.WriteString("line\n"); err != nil {
			t.Fatalf("WriteString: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		data, err := os.ReadFile(path)
		if err == nil && len(data) == lines*len("line\n") {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("file never reached expected size; last read %d bytes, err %v", len(data), err)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
