// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fuseadapter maps FUSE upcalls (C10) onto the metadata/data
// operations in internal/kvfs, marshaling POSIX errnos from kvfs's error
// taxonomy and formatting replies in the shapes go-fuse expects.
package fuseadapter

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/kvfs/kvfs/common"
	"github.com/kvfs/kvfs/internal/kvfs"
	"github.com/kvfs/kvfs/internal/logger"
	"github.com/kvfs/kvfs/internal/metrics"
)

// attrTimeout and entryTimeout bound how long the kernel caches attribute
// and dentry lookups before re-validating with the filesystem; one second
// matches typical FUSE daemons (the loopback example included).
const (
	attrTimeout  = time.Second
	entryTimeout = time.Second
)

// Adapter implements fuse.RawFileSystem on top of a kvfs.FileSystem.
// Unimplemented upcalls fall through to fuse.NewDefaultRawFileSystem's
// ENOSYS stubs.
type Adapter struct {
	fuse.RawFileSystem
	fs       *kvfs.FileSystem
	directIO bool
}

// New builds a RawFileSystem adapter over fs. directIO, when set, asks the
// kernel to bypass its page cache on every open (the mount's --direct-io
// flag), which matters here since writes already commit synchronously
// through bbolt and the page cache would only serve stale data until the
// next invalidation.
func New(fs *kvfs.FileSystem, directIO bool) *Adapter {
	return &Adapter{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		fs:            fs,
		directIO:      directIO,
	}
}

func (a *Adapter) String() string { return "kvfs" }

// toStatus maps a kvfs error (or nil) to the reply status go-fuse wants.
func toStatus(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	errno := kvfs.KindOf(err).Errno()
	logger.Tracef("kvfs op failed: kind=%s errno=%d: %v", kvfs.KindOf(err), errno, err)
	return fuse.Status(errno)
}

// finish records op's outcome in internal/metrics and converts err into
// the fuse.Status the caller should return. Call it as the last step of
// every RawFileSystem method, with start taken at the method's entry.
func finish(op string, start time.Time, err error) fuse.Status {
	kind := ""
	if err != nil {
		kind = kvfs.KindOf(err).String()
	}
	metrics.Record(op, start, kind)
	return toStatus(err)
}

// fillAttr populates a fuse.Attr from a kvfs.Attr.
func fillAttr(out *fuse.Attr, a kvfs.Attr) {
	out.Ino = a.Ino
	out.Size = a.Size
	out.Blocks = a.Blocks
	out.Atime = uint64(a.Atime.Unix())
	out.Atimensec = uint32(a.Atime.Nanosecond())
	out.Mtime = uint64(a.Mtime.Unix())
	out.Mtimensec = uint32(a.Mtime.Nanosecond())
	out.Ctime = uint64(a.Ctime.Unix())
	out.Ctimensec = uint32(a.Ctime.Nanosecond())
	out.Mode = uint32(a.Mode)
	out.Nlink = a.HardLinks
	out.Uid = a.Uid
	out.Gid = a.Gid
	out.Blksize = a.BlockSize
	out.Rdev = a.Rdev
}

func fillEntryOut(out *fuse.EntryOut, a kvfs.Attr) {
	out.NodeId = a.Ino
	out.Generation = 0
	out.SetEntryTimeout(entryTimeout)
	out.SetAttrTimeout(attrTimeout)
	fillAttr(&out.Attr, a)
}

// callerFrom extracts the uid/gid the request was made under from a FUSE
// request header.
func callerFrom(h *fuse.InHeader) (uid, gid uint32) {
	return h.Caller.Uid, h.Caller.Gid
}

// unixTime reconstructs a time.Time from the wire's separate seconds and
// nanoseconds fields (used by setattr's atime/mtime updates).
func unixTime(sec uint64, nsec uint32) time.Time {
	return time.Unix(int64(sec), int64(nsec))
}

// StatFs implements the statfs upcall (C3).
func (a *Adapter) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	start := time.Now()
	defer func() { finish(common.OpStatFS, start, nil) }()
	s := a.fs.StatFS()
	out.Blocks = s.TotalBlocks
	out.Bfree = s.FreeBlocks
	out.Bavail = s.FreeBlocks
	out.Files = s.Files
	out.Ffree = ^uint64(0)
	out.Bsize = s.BlockSize
	out.NameLen = s.NameLen
	out.Frsize = s.BlockSize
	return fuse.OK
}

// Init is called once the kernel connection is established; there is no
// extra state to seed beyond what kvfs.New already prepared.
func (a *Adapter) Init(server *fuse.Server) {
	logger.Infof("fuse: mounted, generation=%s", a.fs.Generation)
}
