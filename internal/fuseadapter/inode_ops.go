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

package fuseadapter

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/kvfs/kvfs/common"
	"github.com/kvfs/kvfs/internal/kvfs"
)

func (a *Adapter) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	start := time.Now()
	attr, err := a.fs.Lookup(header.NodeId, name)
	if err == nil {
		fillEntryOut(out, attr)
	}
	return finish(common.OpLookUpInode, start, err)
}

// Forget drops kernel-held references. kvfs keeps no per-lookup refcount
// of its own (ownership lives in the store's dirent/hard-link counts), so
// there is nothing to release here.
func (a *Adapter) Forget(nodeid, nlookup uint64) {}

func (a *Adapter) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	start := time.Now()
	attr, err := a.fs.GetAttr(input.NodeId)
	if err == nil {
		out.SetTimeout(attrTimeout)
		fillAttr(&out.Attr, attr)
	}
	return finish(common.OpGetInodeAttributes, start, err)
}

// SetAttr dispatches on which optional field the kernel populated: mode
// maps to Chmod, uid/gid to Chown, size to Truncate, atime/mtime to
// Utimens (spec C10).
func (a *Adapter) SetAttr(cancel <-chan struct{}, in *fuse.SetAttrIn, out *fuse.AttrOut) fuse.Status {
	start := time.Now()
	uid, gid := callerFrom(&in.InHeader)
	var attr kvfs.Attr
	var err error

	if in.Valid&fuse.FATTR_MODE != 0 {
		attr, err = a.fs.Chmod(in.NodeId, uid, uint16(in.Mode))
		if err != nil {
			return finish(common.OpSetInodeAttributes, start, err)
		}
	}
	if in.Valid&(fuse.FATTR_UID|fuse.FATTR_GID) != 0 {
		attr, err = a.fs.Chown(in.NodeId, uid, gid,
			in.Owner.Uid, in.Valid&fuse.FATTR_UID != 0,
			in.Owner.Gid, in.Valid&fuse.FATTR_GID != 0)
		if err != nil {
			return finish(common.OpSetInodeAttributes, start, err)
		}
	}
	if in.Valid&fuse.FATTR_SIZE != 0 {
		attr, err = a.fs.Truncate(in.NodeId, uid, gid, in.Size)
		if err != nil {
			return finish(common.OpSetInodeAttributes, start, err)
		}
	}
	if in.Valid&(fuse.FATTR_ATIME|fuse.FATTR_MTIME) != 0 {
		upd := kvfs.TimeUpdate{}
		if in.Valid&fuse.FATTR_ATIME != 0 {
			upd.SetAtime = true
			upd.Atime = unixTime(in.Atime, in.Atimensec)
		}
		if in.Valid&fuse.FATTR_MTIME != 0 {
			upd.SetMtime = true
			upd.Mtime = unixTime(in.Mtime, in.Mtimensec)
		}
		attr, err = a.fs.Utimens(in.NodeId, uid, gid, upd)
		if err != nil {
			return finish(common.OpSetInodeAttributes, start, err)
		}
	}

	if attr.Ino == 0 {
		attr, err = a.fs.GetAttr(in.NodeId)
		if err != nil {
			return finish(common.OpSetInodeAttributes, start, err)
		}
	}
	out.SetTimeout(attrTimeout)
	fillAttr(&out.Attr, attr)
	return finish(common.OpSetInodeAttributes, start, nil)
}

func (a *Adapter) Mknod(cancel <-chan struct{}, in *fuse.MknodIn, name string, out *fuse.EntryOut) fuse.Status {
	start := time.Now()
	uid, gid := callerFrom(&in.InHeader)
	attr, err := a.fs.Mknod(in.NodeId, name, uid, gid, uint16(in.Mode), in.Rdev)
	if err == nil {
		fillEntryOut(out, attr)
	}
	return finish(common.OpMkNode, start, err)
}

func (a *Adapter) Mkdir(cancel <-chan struct{}, in *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	start := time.Now()
	uid, gid := callerFrom(&in.InHeader)
	attr, err := a.fs.Mkdir(in.NodeId, name, uid, gid, uint16(in.Mode))
	if err == nil {
		fillEntryOut(out, attr)
	}
	return finish(common.OpMkDir, start, err)
}

func (a *Adapter) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	start := time.Now()
	uid, gid := callerFrom(header)
	err := a.fs.Unlink(header.NodeId, name, uid, gid)
	return finish(common.OpUnlink, start, err)
}

func (a *Adapter) Rmdir(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	start := time.Now()
	uid, gid := callerFrom(header)
	err := a.fs.Rmdir(header.NodeId, name, uid, gid)
	return finish(common.OpRmDir, start, err)
}

func (a *Adapter) Rename(cancel <-chan struct{}, in *fuse.RenameIn, oldName string, newName string) fuse.Status {
	start := time.Now()
	uid, gid := callerFrom(&in.InHeader)
	var err error
	if in.Flags&renameExchange != 0 {
		err = a.fs.RenameExchange(in.NodeId, oldName, in.Newdir, newName, uid, gid)
	} else {
		err = a.fs.Rename(in.NodeId, oldName, in.Newdir, newName, uid, gid)
	}
	return finish(common.OpRename, start, err)
}

// renameExchange mirrors Linux's RENAME_EXCHANGE flag value; go-fuse
// exposes the raw flags field without redeclaring the constant.
const renameExchange = 1 << 1

func (a *Adapter) Link(cancel <-chan struct{}, in *fuse.LinkIn, name string, out *fuse.EntryOut) fuse.Status {
	start := time.Now()
	uid, gid := callerFrom(&in.InHeader)
	attr, err := a.fs.Link(in.Oldnodeid, in.NodeId, name, uid, gid)
	if err == nil {
		fillEntryOut(out, attr)
	}
	return finish(common.OpCreateLink, start, err)
}

func (a *Adapter) Symlink(cancel <-chan struct{}, header *fuse.InHeader, target string, name string, out *fuse.EntryOut) fuse.Status {
	start := time.Now()
	uid, gid := callerFrom(header)
	attr, err := a.fs.Symlink(header.NodeId, name, uid, gid, target)
	if err == nil {
		fillEntryOut(out, attr)
	}
	return finish(common.OpCreateSymlink, start, err)
}

func (a *Adapter) Readlink(cancel <-chan struct{}, header *fuse.InHeader) ([]byte, fuse.Status) {
	start := time.Now()
	target, err := a.fs.Readlink(header.NodeId)
	status := finish(common.OpReadSymlink, start, err)
	if err != nil {
		return nil, status
	}
	return []byte(target), status
}

func (a *Adapter) Access(cancel <-chan struct{}, in *fuse.AccessIn) fuse.Status {
	start := time.Now()
	uid, gid := callerFrom(&in.InHeader)
	err := a.fs.Access(in.NodeId, uid, gid, kvfs.AccessMask(in.Mask))
	return finish(common.OpAccess, start, err)
}

func (a *Adapter) Create(cancel <-chan struct{}, in *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	start := time.Now()
	uid, gid := callerFrom(&in.InHeader)
	attr, err := a.fs.Create(in.NodeId, name, uid, gid, uint16(in.Mode))
	if err == nil {
		fillEntryOut(&out.EntryOut, attr)
	}
	return finish(common.OpCreateFile, start, err)
}
