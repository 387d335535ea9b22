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

package kvfs

import (
	"time"

	"golang.org/x/sys/unix"
)

// Attr is the fully-populated attribute record returned by every
// metadata operation (create, lookup, getattr, chmod, ...).
type Attr struct {
	Ino       uint64
	Mode      uint16
	Size      uint64
	HardLinks uint32
	Uid       uint32
	Gid       uint32
	BlockSize uint32
	Blocks    uint64
	Atime     time.Time
	Mtime     time.Time
	Ctime     time.Time
	Rdev      uint32
}

// IsDir, IsRegular, IsSymlink report the file-type bits of Mode.
func (a Attr) IsDir() bool     { return a.Mode&unix.S_IFMT == unix.S_IFDIR }
func (a Attr) IsRegular() bool { return a.Mode&unix.S_IFMT == unix.S_IFREG }
func (a Attr) IsSymlink() bool { return a.Mode&unix.S_IFMT == unix.S_IFLNK }
func (a Attr) IsDevice() bool {
	t := a.Mode & unix.S_IFMT
	return t == unix.S_IFCHR || t == unix.S_IFBLK
}

// blocksFor derives the `blocks` attribute field: ceil(size/blockSize).
func blocksFor(size uint64, blockSize uint32) uint64 {
	if blockSize == 0 {
		return 0
	}
	return (size + uint64(blockSize) - 1) / uint64(blockSize)
}
