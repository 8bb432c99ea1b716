// Copyright 2026 The Deferfs Authors
// SPDX-License-Identifier: Apache-2.0

package fuseadapter

import (
	"context"
	"log/slog"
	"path/filepath"
	"syscall"

	"github.com/samuell/deferfs/lib/deferfs"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// fsRoot is the state shared by every passthroughNode in a mount: the
// backing directory and the Dispatcher every operation runs through.
type fsRoot struct {
	backing string
	disp    *deferfs.Dispatcher
	logger  *slog.Logger
}

func (r *fsRoot) backingPath(relPath string) string {
	return filepath.Join(r.backing, relPath)
}

// passthroughNode is the Inode for every file, directory, and symlink
// in the mount, including the root (whose path is [deferfs.RootPath]).
// It holds no per-node state beyond the shared fsRoot — every method
// reconstructs its path from the Inode tree on demand via Path(nil).
type passthroughNode struct {
	gofuse.Inode
	root *fsRoot
}

var (
	_ gofuse.InodeEmbedder     = (*passthroughNode)(nil)
	_ gofuse.NodeLookuper      = (*passthroughNode)(nil)
	_ gofuse.NodeGetattrer     = (*passthroughNode)(nil)
	_ gofuse.NodeSetattrer     = (*passthroughNode)(nil)
	_ gofuse.NodeCreater       = (*passthroughNode)(nil)
	_ gofuse.NodeOpener        = (*passthroughNode)(nil)
	_ gofuse.NodeMkdirer       = (*passthroughNode)(nil)
	_ gofuse.NodeMknoder       = (*passthroughNode)(nil)
	_ gofuse.NodeRmdirer       = (*passthroughNode)(nil)
	_ gofuse.NodeUnlinker      = (*passthroughNode)(nil)
	_ gofuse.NodeRenamer       = (*passthroughNode)(nil)
	_ gofuse.NodeLinker        = (*passthroughNode)(nil)
	_ gofuse.NodeSymlinker     = (*passthroughNode)(nil)
	_ gofuse.NodeReadlinker    = (*passthroughNode)(nil)
	_ gofuse.NodeAccesser      = (*passthroughNode)(nil)
	_ gofuse.NodeStatfser      = (*passthroughNode)(nil)
	_ gofuse.NodeReaddirer     = (*passthroughNode)(nil)
	_ gofuse.NodeGetxattrer    = (*passthroughNode)(nil)
	_ gofuse.NodeSetxattrer    = (*passthroughNode)(nil)
	_ gofuse.NodeRemovexattrer = (*passthroughNode)(nil)
	_ gofuse.NodeListxattrer   = (*passthroughNode)(nil)
)

// path returns the node's path relative to the mount root, the same
// string used as the key into the Dispatcher's PathStateMap. The root
// node's path is the empty string, [deferfs.RootPath].
func (n *passthroughNode) path() string {
	return n.Path(nil)
}

func (n *passthroughNode) childPath(name string) string {
	parent := n.path()
	if parent == deferfs.RootPath {
		return name
	}
	return parent + "/" + name
}

func (n *passthroughNode) newChildInode(ctx context.Context, st *syscall.Stat_t) *gofuse.Inode {
	return n.NewInode(ctx, &passthroughNode{root: n.root}, gofuse.StableAttr{
		Mode: st.Mode & syscall.S_IFMT,
		Ino:  st.Ino,
	})
}

func (n *passthroughNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childPath := n.childPath(name)
	backing := n.root.backingPath(childPath)

	var st syscall.Stat_t
	result := n.root.disp.Read(childPath, func() int {
		return resultFromError(syscall.Lstat(backing, &st))
	})
	if errno := errnoFromResult(result); errno != 0 {
		return nil, errno
	}

	fillAttrFromStat(&out.Attr, &st)
	return n.newChildInode(ctx, &st), 0
}

func (n *passthroughNode) Getattr(_ context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if fh, ok := f.(*fileHandle); ok {
		return fh.Getattr(context.Background(), out)
	}

	p := n.path()
	backing := n.root.backingPath(p)
	var st syscall.Stat_t
	result := n.root.disp.Read(p, func() int {
		return resultFromError(syscall.Lstat(backing, &st))
	})
	if errno := errnoFromResult(result); errno != 0 {
		return errno
	}
	fillAttrFromStat(&out.Attr, &st)
	return 0
}

func (n *passthroughNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if fh, ok := f.(*fileHandle); ok {
		return fh.Setattr(ctx, in, out)
	}

	p := n.path()
	backing := n.root.backingPath(p)

	if mode, ok := in.GetMode(); ok {
		result := n.root.disp.SubmitChmod(p, func() int {
			return resultFromError(syscall.Chmod(backing, mode))
		})
		if errno := errnoFromResult(result); errno != 0 {
			return errno
		}
	}

	if uid, gid, ok := chownArgs(in); ok {
		result := n.root.disp.SubmitChown(p, func() int {
			return resultFromError(syscall.Chown(backing, uid, gid))
		})
		if errno := errnoFromResult(result); errno != 0 {
			return errno
		}
	}

	if times, ok := utimensArgs(in); ok {
		result := n.root.disp.SubmitUtimens(p, func() int {
			return resultFromError(unix.UtimesNanoAt(unix.AT_FDCWD, backing, times, unix.AT_SYMLINK_NOFOLLOW))
		})
		if errno := errnoFromResult(result); errno != 0 {
			return errno
		}
	}

	if size, ok := in.GetSize(); ok {
		result := n.root.disp.SubmitTruncate(p, func() int {
			return resultFromError(syscall.Truncate(backing, int64(size)))
		})
		if errno := errnoFromResult(result); errno != 0 {
			return errno
		}
	}

	var st syscall.Stat_t
	if err := syscall.Lstat(backing, &st); err == nil {
		fillAttrFromStat(&out.Attr, &st)
	}
	return 0
}

// chownArgs reports the uid/gid to pass to chown(2), using -1 for
// whichever of the two SetAttrIn did not set, and ok=false if neither
// was set at all.
func chownArgs(in *fuse.SetAttrIn) (uid, gid int, ok bool) {
	u, uok := in.GetUID()
	g, gok := in.GetGID()
	if !uok && !gok {
		return 0, 0, false
	}
	uid, gid = -1, -1
	if uok {
		uid = int(u)
	}
	if gok {
		gid = int(g)
	}
	return uid, gid, true
}

// utimensArgs builds the two-element Timespec slice utimensat(2)
// wants, using UTIME_OMIT for whichever timestamp SetAttrIn did not
// set, and ok=false if neither was set at all.
func utimensArgs(in *fuse.SetAttrIn) (times []unix.Timespec, ok bool) {
	atime, aok := in.GetATime()
	mtime, mok := in.GetMTime()
	if !aok && !mok {
		return nil, false
	}
	ts := []unix.Timespec{{Nsec: unix.UTIME_OMIT}, {Nsec: unix.UTIME_OMIT}}
	if aok {
		ts[0] = unix.NsecToTimespec(atime.UnixNano())
	}
	if mok {
		ts[1] = unix.NsecToTimespec(mtime.UnixNano())
	}
	return ts, true
}

func (n *passthroughNode) Create(ctx context.Context, name string, flags, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	childPath := n.childPath(name)
	backing := n.root.backingPath(childPath)

	id, slot := n.root.disp.Handles().Allocate()
	result := n.root.disp.SubmitCreate(childPath, func() int {
		fd, err := syscall.Open(backing, int(flags)|syscall.O_CREAT, mode)
		if err != nil {
			return resultFromError(err)
		}
		slot.Fulfil(fd)
		return 0
	})
	if errno := errnoFromResult(result); errno != 0 {
		n.root.disp.Handles().Free(id)
		return nil, nil, 0, errno
	}

	out.Attr.Mode = syscall.S_IFREG | mode
	child := n.NewInode(ctx, &passthroughNode{root: n.root}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	handle := &fileHandle{root: n.root, path: childPath, handleID: id, slot: slot}
	return child, handle, 0, 0
}

func (n *passthroughNode) Open(_ context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	p := n.path()
	backing := n.root.backingPath(p)

	id, slot := n.root.disp.Handles().Allocate()
	n.root.disp.SubmitOpen(p, func() int {
		fd, err := syscall.Open(backing, int(flags), 0)
		if err != nil {
			return resultFromError(err)
		}
		slot.Fulfil(fd)
		return 0
	})

	return &fileHandle{root: n.root, path: p, handleID: id, slot: slot}, 0, 0
}

func (n *passthroughNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childPath := n.childPath(name)
	backing := n.root.backingPath(childPath)

	result := n.root.disp.SubmitMkdir(childPath, func() int {
		return resultFromError(syscall.Mkdir(backing, mode))
	})
	if errno := errnoFromResult(result); errno != 0 {
		return nil, errno
	}

	var st syscall.Stat_t
	if errno := statOrErrno(backing, &st); errno != 0 {
		return nil, errno
	}
	fillAttrFromStat(&out.Attr, &st)
	return n.newChildInode(ctx, &st), 0
}

func (n *passthroughNode) Mknod(ctx context.Context, name string, mode, dev uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childPath := n.childPath(name)
	backing := n.root.backingPath(childPath)

	result := n.root.disp.SubmitMknod(childPath, func() int {
		return resultFromError(syscall.Mknod(backing, mode, int(dev)))
	})
	if errno := errnoFromResult(result); errno != 0 {
		return nil, errno
	}

	var st syscall.Stat_t
	if errno := statOrErrno(backing, &st); errno != 0 {
		return nil, errno
	}
	fillAttrFromStat(&out.Attr, &st)
	return n.newChildInode(ctx, &st), 0
}

func (n *passthroughNode) Rmdir(_ context.Context, name string) syscall.Errno {
	childPath := n.childPath(name)
	backing := n.root.backingPath(childPath)
	result := n.root.disp.SubmitRmdir(childPath, func() int {
		return resultFromError(syscall.Rmdir(backing))
	})
	return errnoFromResult(result)
}

func (n *passthroughNode) Unlink(_ context.Context, name string) syscall.Errno {
	childPath := n.childPath(name)
	backing := n.root.backingPath(childPath)
	result := n.root.disp.SubmitUnlink(childPath, func() int {
		return resultFromError(syscall.Unlink(backing))
	})
	return errnoFromResult(result)
}

func (n *passthroughNode) Rename(_ context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if flags != 0 {
		return syscall.EINVAL
	}

	oldPath := n.childPath(name)
	newParentInode := newParent.EmbeddedInode()
	newParentPath := newParentInode.Path(nil)
	newPath := newName
	if newParentPath != deferfs.RootPath {
		newPath = newParentPath + "/" + newName
	}

	oldBacking := n.root.backingPath(oldPath)
	newBacking := n.root.backingPath(newPath)

	result := n.root.disp.SubmitRename(oldPath, newPath, func() int {
		return resultFromError(syscall.Rename(oldBacking, newBacking))
	})
	return errnoFromResult(result)
}

func (n *passthroughNode) Link(ctx context.Context, target gofuse.InodeEmbedder, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	existingPath := target.EmbeddedInode().Path(nil)
	newPath := n.childPath(name)
	existingBacking := n.root.backingPath(existingPath)
	newBacking := n.root.backingPath(newPath)

	result := n.root.disp.SubmitLink(existingPath, newPath, func() int {
		return resultFromError(syscall.Link(existingBacking, newBacking))
	})
	if errno := errnoFromResult(result); errno != 0 {
		return nil, errno
	}

	var st syscall.Stat_t
	if errno := statOrErrno(newBacking, &st); errno != 0 {
		return nil, errno
	}
	fillAttrFromStat(&out.Attr, &st)
	return n.newChildInode(ctx, &st), 0
}

func (n *passthroughNode) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	newPath := n.childPath(name)
	newBacking := n.root.backingPath(newPath)

	result := n.root.disp.SubmitSymlink(newPath, func() int {
		return resultFromError(syscall.Symlink(target, newBacking))
	})
	if errno := errnoFromResult(result); errno != 0 {
		return nil, errno
	}

	var st syscall.Stat_t
	if errno := statOrErrno(newBacking, &st); errno != 0 {
		return nil, errno
	}
	fillAttrFromStat(&out.Attr, &st)
	return n.newChildInode(ctx, &st), 0
}

func (n *passthroughNode) Readlink(_ context.Context) ([]byte, syscall.Errno) {
	p := n.path()
	backing := n.root.backingPath(p)

	buf := make([]byte, 4096)
	var length int
	result := n.root.disp.Read(p, func() int {
		size, err := syscall.Readlink(backing, buf)
		if err != nil {
			return resultFromError(err)
		}
		length = size
		return 0
	})
	if errno := errnoFromResult(result); errno != 0 {
		return nil, errno
	}
	return buf[:length], 0
}

func (n *passthroughNode) Access(_ context.Context, mask uint32) syscall.Errno {
	p := n.path()
	backing := n.root.backingPath(p)
	result := n.root.disp.Access(p, func() int {
		return resultFromError(unix.Access(backing, mask))
	})
	return errnoFromResult(result)
}

func (n *passthroughNode) Statfs(_ context.Context, out *fuse.StatfsOut) syscall.Errno {
	p := n.path()
	backing := n.root.backingPath(p)

	var st syscall.Statfs_t
	result := n.root.disp.Read(p, func() int {
		return resultFromError(syscall.Statfs(backing, &st))
	})
	if errno := errnoFromResult(result); errno != 0 {
		return errno
	}

	out.Blocks = st.Blocks
	out.Bfree = st.Bfree
	out.Bavail = st.Bavail
	out.Files = st.Files
	out.Ffree = st.Ffree
	out.Bsize = uint32(st.Bsize)
	out.NameLen = uint32(st.Namelen)
	out.Frsize = uint32(st.Frsize)
	return 0
}

func (n *passthroughNode) Readdir(_ context.Context) (gofuse.DirStream, syscall.Errno) {
	p := n.path()
	backing := n.root.backingPath(p)

	var stream gofuse.DirStream
	result := n.root.disp.DirRead(p, func() int {
		s, errno := gofuse.NewLoopbackDirStream(backing)
		if errno != 0 {
			return -int(errno)
		}
		stream = s
		return 0
	})
	if errno := errnoFromResult(result); errno != 0 {
		return nil, errno
	}
	return stream, 0
}

func (n *passthroughNode) Getxattr(_ context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	p := n.path()
	backing := n.root.backingPath(p)
	var size int
	result := n.root.disp.Read(p, func() int {
		sz, err := unix.Lgetxattr(backing, attr, dest)
		if err != nil {
			return resultFromError(err)
		}
		size = sz
		return 0
	})
	if errno := errnoFromResult(result); errno != 0 {
		return 0, errno
	}
	return uint32(size), 0
}

func (n *passthroughNode) Setxattr(_ context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	p := n.path()
	backing := n.root.backingPath(p)
	result := n.root.disp.Read(p, func() int {
		return resultFromError(unix.Lsetxattr(backing, attr, data, int(flags)))
	})
	return errnoFromResult(result)
}

func (n *passthroughNode) Removexattr(_ context.Context, attr string) syscall.Errno {
	p := n.path()
	backing := n.root.backingPath(p)
	result := n.root.disp.Read(p, func() int {
		return resultFromError(unix.Lremovexattr(backing, attr))
	})
	return errnoFromResult(result)
}

func (n *passthroughNode) Listxattr(_ context.Context, dest []byte) (uint32, syscall.Errno) {
	p := n.path()
	backing := n.root.backingPath(p)
	var size int
	result := n.root.disp.Read(p, func() int {
		sz, err := unix.Llistxattr(backing, dest)
		if err != nil {
			return resultFromError(err)
		}
		size = sz
		return 0
	})
	if errno := errnoFromResult(result); errno != 0 {
		return 0, errno
	}
	return uint32(size), 0
}

func statOrErrno(path string, st *syscall.Stat_t) syscall.Errno {
	if err := syscall.Lstat(path, st); err != nil {
		return errnoFromResult(resultFromError(err))
	}
	return 0
}
