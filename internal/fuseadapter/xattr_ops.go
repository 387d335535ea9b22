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

func (a *Adapter) GetXAttr(cancel <-chan struct{}, header *fuse.InHeader, attr string, dest []byte) (uint32, fuse.Status) {
	start := time.Now()
	uid, gid := callerFrom(header)
	n, err := a.fs.GetXattr(header.NodeId, uid, gid, attr, dest)
	status := finish(common.OpGetXattr, start, err)
	if err != nil {
		return 0, status
	}
	return uint32(n), status
}

func (a *Adapter) SetXAttr(cancel <-chan struct{}, in *fuse.SetXAttrIn, attr string, data []byte) fuse.Status {
	start := time.Now()
	uid, gid := callerFrom(&in.InHeader)
	err := a.fs.SetXattr(in.NodeId, uid, gid, attr, data)
	return finish(common.OpSetXattr, start, err)
}

func (a *Adapter) ListXAttr(cancel <-chan struct{}, header *fuse.InHeader, dest []byte) (uint32, fuse.Status) {
	start := time.Now()
	n, err := a.fs.ListXattr(header.NodeId, dest)
	status := finish(common.OpListXattr, start, err)
	if err != nil {
		return 0, status
	}
	return uint32(n), status
}

func (a *Adapter) RemoveXAttr(cancel <-chan struct{}, header *fuse.InHeader, attr string) fuse.Status {
	start := time.Now()
	uid, gid := callerFrom(header)
	err := a.fs.RemoveXattr(header.NodeId, uid, gid, attr)
	return finish(common.OpRemoveXattr, start, err)
}
