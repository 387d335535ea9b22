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
)

// Open has nothing to validate beyond what Lookup/GetAttr already did;
// kvfs addresses data by inode number, so the file handle is just the
// inode itself and there is no separate open-file object to allocate.
func (a *Adapter) Open(cancel <-chan struct{}, in *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	out.Fh = in.NodeId
	if a.directIO {
		out.OpenFlags |= fuse.FOPEN_DIRECT_IO
	}
	return finish(common.OpOpenFile, time.Now(), nil)
}

func (a *Adapter) Read(cancel <-chan struct{}, in *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	start := time.Now()
	n, err := a.fs.Read(in.NodeId, in.Offset, buf)
	status := finish(common.OpReadFile, start, err)
	if err != nil {
		return nil, status
	}
	return fuse.ReadResultData(buf[:n]), status
}

func (a *Adapter) Write(cancel <-chan struct{}, in *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	start := time.Now()
	n, err := a.fs.Write(in.NodeId, in.Offset, data)
	status := finish(common.OpWriteFile, start, err)
	if err != nil {
		return 0, status
	}
	return uint32(n), status
}

// Release and Flush are no-ops: every kvfs Write commits its own bbolt
// transaction, so there is no in-process buffering to flush or file
// handle state to tear down.
func (a *Adapter) Release(cancel <-chan struct{}, in *fuse.ReleaseIn) {
	finish(common.OpReleaseFileHandle, time.Now(), nil)
}

func (a *Adapter) Flush(cancel <-chan struct{}, in *fuse.FlushIn) fuse.Status {
	return finish(common.OpFlushFile, time.Now(), nil)
}

func (a *Adapter) Fsync(cancel <-chan struct{}, in *fuse.FsyncIn) fuse.Status {
	return finish(common.OpSyncFile, time.Now(), nil)
}

func (a *Adapter) CopyFileRange(cancel <-chan struct{}, in *fuse.CopyFileRangeIn) (uint32, fuse.Status) {
	start := time.Now()
	n, err := a.fs.CopyFileRange(in.NodeId, in.OffIn, in.NodeIdOut, in.OffOut, in.Len)
	status := finish(common.OpCopyFileRange, start, err)
	if err != nil {
		return 0, status
	}
	return uint32(n), status
}

func (a *Adapter) Fallocate(cancel <-chan struct{}, in *fuse.FallocateIn) fuse.Status {
	start := time.Now()
	const fallocFLKeepSize = 0x01
	_, err := a.fs.Fallocate(in.NodeId, in.Offset, in.Length, in.Mode&fallocFLKeepSize != 0)
	return finish(common.OpFallocate, start, err)
}
