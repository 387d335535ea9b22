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

// OpenDir has nothing to validate beyond Lookup/GetAttr; like Open, the
// handle is just the inode number.
func (a *Adapter) OpenDir(cancel <-chan struct{}, in *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	out.Fh = in.NodeId
	return finish(common.OpOpenDir, time.Now(), nil)
}

func (a *Adapter) ReadDir(cancel <-chan struct{}, in *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	start := time.Now()
	err := a.fs.ReadDir(in.NodeId, in.Offset, func(e kvfs.DirEntry) bool {
		return out.AddDirEntry(fuse.DirEntry{
			Mode: uint32(e.Mode),
			Name: e.Name,
			Ino:  e.Ino,
			Off:  e.Offset + 1,
		})
	})
	return finish(common.OpReadDir, start, err)
}

func (a *Adapter) ReadDirPlus(cancel <-chan struct{}, in *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	start := time.Now()
	err := a.fs.ReadDir(in.NodeId, in.Offset, func(e kvfs.DirEntry) bool {
		entryOut, ok := out.AddDirLookupEntry(fuse.DirEntry{
			Mode: uint32(e.Mode),
			Name: e.Name,
			Ino:  e.Ino,
			Off:  e.Offset + 1,
		})
		if !ok {
			return false
		}
		if attr, attrErr := a.fs.GetAttr(e.Ino); attrErr == nil {
			fillEntryOut(entryOut, attr)
		}
		return true
	})
	return finish(common.OpReadDirPlus, start, err)
}

func (a *Adapter) ReleaseDir(in *fuse.ReleaseIn) {
	a.fs.ReleaseDir(in.NodeId)
	finish(common.OpReleaseDirHandle, time.Now(), nil)
}

func (a *Adapter) FsyncDir(cancel <-chan struct{}, in *fuse.FsyncIn) fuse.Status {
	return finish(common.OpSyncFS, time.Now(), nil)
}
