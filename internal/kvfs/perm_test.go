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
	"testing"

	"golang.org/x/sys/unix"
)

func TestCheckAccess_RootAlwaysReadWrite(t *testing.T) {
	if !CheckAccess(1000, 1000, 0o000, 0, 0, MaskRead|MaskWrite) {
		t.Error("root should always have read/write access")
	}
}

func TestCheckAccess_RootExecuteRequiresAnyXBit(t *testing.T) {
	if CheckAccess(1000, 1000, 0o666, 0, 0, MaskExecute) {
		t.Error("root should not get execute access without any x bit set")
	}
	if !CheckAccess(1000, 1000, 0o100, 0, 0, MaskExecute) {
		t.Error("root should get execute access when any x bit is set")
	}
}

func TestCheckAccess_OwnerGroupOther(t *testing.T) {
	mode := uint16(0o640) // rw- r-- ---
	if !CheckAccess(1000, 1000, mode, 1000, 1000, MaskRead|MaskWrite) {
		t.Error("owner should have read/write")
	}
	if !CheckAccess(1000, 1000, mode, 2000, 1000, MaskRead) {
		t.Error("group member should have read")
	}
	if CheckAccess(1000, 1000, mode, 2000, 1000, MaskWrite) {
		t.Error("group member should not have write")
	}
	if CheckAccess(1000, 1000, mode, 2000, 2000, MaskRead) {
		t.Error("other should not have read")
	}
}

func TestClearSuidSgid(t *testing.T) {
	mode := uint16(unix.S_ISUID | unix.S_ISGID | 0o750) // group-execute set
	got := ClearSuidSgid(mode)
	if got&unix.S_ISUID != 0 {
		t.Error("SUID should always be cleared")
	}
	if got&unix.S_ISGID == 0 {
		t.Error("SGID should survive when group-execute is set")
	}

	mode2 := uint16(unix.S_ISUID | unix.S_ISGID | 0o640) // no group-execute
	got2 := ClearSuidSgid(mode2)
	if got2&unix.S_ISGID != 0 {
		t.Error("SGID should be cleared when group-execute is not set")
	}
}

func TestCreationGID(t *testing.T) {
	if got := CreationGID(500, unix.S_ISGID|0o755, 1000); got != 500 {
		t.Errorf("creation gid with parent SGID: got %d want 500", got)
	}
	if got := CreationGID(500, 0o755, 1000); got != 1000 {
		t.Errorf("creation gid without parent SGID: got %d want 1000", got)
	}
}

func TestCheckStickyRemoval(t *testing.T) {
	sticky := uint16(unix.S_ISVTX | 0o777)
	if !CheckStickyRemoval(sticky, 1000, 2000, 1000) {
		t.Error("directory owner should be able to remove any child under sticky bit")
	}
	if !CheckStickyRemoval(sticky, 1000, 2000, 2000) {
		t.Error("child owner should be able to remove their own entry under sticky bit")
	}
	if CheckStickyRemoval(sticky, 1000, 2000, 3000) {
		t.Error("unrelated caller should not be able to remove under sticky bit")
	}
	if !CheckStickyRemoval(0o777, 1000, 2000, 3000) {
		t.Error("non-sticky directory should allow any caller with write access")
	}
}
