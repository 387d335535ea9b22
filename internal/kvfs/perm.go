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

import "golang.org/x/sys/unix"

// Mode bit groups used by CheckAccess; unix.S_IRUSR etc. are not exposed
// on all platforms, so the 3-bit rwx groups are hand rolled here exactly
// as POSIX defines them.
const (
	modeR = 0o4
	modeW = 0o2
	modeX = 0o1
)

// AccessMask names the access bits a caller is probing for, matching
// FUSE's access(2) mask semantics.
type AccessMask uint32

const (
	MaskRead    AccessMask = modeR
	MaskWrite   AccessMask = modeW
	MaskExecute AccessMask = modeX
)

// CheckAccess returns true iff the identity (callerUID, callerGID) holds
// every bit in mask against an object owned by (ownerUID, ownerGID) with
// permission bits mode (the low 9 bits of a POSIX mode). Root is granted
// read and write unconditionally, and execute iff any x bit is set
// anywhere in mode.
func CheckAccess(ownerUID, ownerGID uint32, mode uint16, callerUID, callerGID uint32, mask AccessMask) bool {
	if callerUID == 0 {
		if mask&MaskExecute != 0 {
			return mode&0o111 != 0
		}
		return true
	}

	var bits uint16
	switch {
	case callerUID == ownerUID:
		bits = (mode >> 6) & 0o7
	case callerGID == ownerGID:
		bits = (mode >> 3) & 0o7
	default:
		bits = mode & 0o7
	}

	return uint16(mask)&^bits == 0
}

// ClearSuidSgid drops S_ISUID unconditionally, and drops S_ISGID iff
// group-execute is not set (mirroring the kernel's chmod/write behavior:
// SGID on a non-group-executable file marks mandatory locking, which this
// filesystem does not implement, so it is always cleared alongside SUID
// in that case).
func ClearSuidSgid(mode uint16) uint16 {
	mode &^= unix.S_ISUID
	if mode&0o010 == 0 {
		mode &^= unix.S_ISGID
	}
	return mode
}

// CreationGID returns the effective group id a newly created inode should
// receive: the parent's gid if the parent carries S_ISGID (BSD/SysV group
// inheritance), otherwise the caller's own gid.
func CreationGID(parentGID uint32, parentMode uint16, callerGID uint32) uint32 {
	if parentMode&unix.S_ISGID != 0 {
		return parentGID
	}
	return callerGID
}

// IsSticky reports whether mode carries the sticky bit (S_ISVTX), which on
// a directory restricts removal/rename of children to the child owner,
// the directory owner, or root.
func IsSticky(mode uint16) bool {
	return mode&unix.S_ISVTX != 0
}

// CheckStickyRemoval applies the sticky-bit rule for removing or renaming
// a child of a directory with mode dirMode: permitted iff the directory
// isn't sticky, or the caller is root, the directory owner, or the child
// owner.
func CheckStickyRemoval(dirMode uint16, dirOwnerUID, childOwnerUID, callerUID uint32) bool {
	if !IsSticky(dirMode) {
		return true
	}
	return callerUID == 0 || callerUID == dirOwnerUID || callerUID == childOwnerUID
}
