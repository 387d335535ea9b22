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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/kvfs/kvfs/clock"
	"github.com/kvfs/kvfs/internal/store"
)

const testUID, testGID = 1000, 1000

func newTestFS(t *testing.T) *FileSystem {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "kvfs.db")
	st, err := store.Open(dbPath, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fs, err := New(st, Options{
		SliceSize:       4096,
		ScratchArenaMiB: 1,
		DiskSizeBytes:   64 << 20,
		RootUID:         testUID,
		RootGID:         testGID,
		Clock:           clock.RealClock{},
	})
	require.NoError(t, err)
	return fs
}

func TestScenario_MkdirCreateWriteRead(t *testing.T) {
	fs := newTestFS(t)

	dbDir, err := fs.Mkdir(RootIno, "db", testUID, testGID, 0o755)
	require.NoError(t, err)

	f1, err := fs.Create(dbDir.Ino, "f1", testUID, testGID, 0o644)
	require.NoError(t, err)

	n, err := fs.Write(f1.Ino, 0, []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, 11, n)

	buf := make([]byte, 20)
	n, err = fs.Read(f1.Ino, 0, buf)
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, "hello world", string(buf[:11]))
}

func TestScenario_HardLink(t *testing.T) {
	fs := newTestFS(t)

	f1, err := fs.Create(RootIno, "f1", testUID, testGID, 0o644)
	require.NoError(t, err)

	f2, err := fs.Link(f1.Ino, RootIno, "f2", testUID, testGID)
	require.NoError(t, err)
	require.Equal(t, uint32(2), f2.HardLinks)

	attr, err := fs.GetAttr(f1.Ino)
	require.NoError(t, err)
	require.Equal(t, uint32(2), attr.HardLinks)

	require.NoError(t, fs.Unlink(RootIno, "f1", testUID, testGID))

	attr, err = fs.GetAttr(f2.Ino)
	require.NoError(t, err)
	require.Equal(t, uint32(1), attr.HardLinks)

	_, err = fs.Write(f2.Ino, 0, []byte("still here"))
	require.NoError(t, err)
}

func TestScenario_Symlink(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Create(RootIno, "f1", testUID, testGID, 0o644)
	require.NoError(t, err)

	link, err := fs.Symlink(RootIno, "symf1", testUID, testGID, "/f1")
	require.NoError(t, err)
	require.True(t, link.IsSymlink())

	target, err := fs.Readlink(link.Ino)
	require.NoError(t, err)
	require.Equal(t, "/f1", target)
}

func TestScenario_RenameAcrossDirectories(t *testing.T) {
	fs := newTestFS(t)

	d1, err := fs.Mkdir(RootIno, "d1", testUID, testGID, 0o755)
	require.NoError(t, err)
	d2, err := fs.Mkdir(RootIno, "d2", testUID, testGID, 0o755)
	require.NoError(t, err)

	_, err = fs.Create(d1.Ino, "a", testUID, testGID, 0o644)
	require.NoError(t, err)

	require.NoError(t, fs.Rename(d1.Ino, "a", d2.Ino, "b", testUID, testGID))

	_, err = fs.Lookup(d1.Ino, "a")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = fs.Lookup(d2.Ino, "b")
	require.NoError(t, err)

	d1Attr, err := fs.GetAttr(d1.Ino)
	require.NoError(t, err)
	require.Equal(t, uint64(2), d1Attr.Size) // just . and ..

	d2Attr, err := fs.GetAttr(d2.Ino)
	require.NoError(t, err)
	require.Equal(t, uint64(3), d2Attr.Size) // . .. b
}

func TestScenario_TruncateThenSparseRead(t *testing.T) {
	fs := newTestFS(t)

	f, err := fs.Create(RootIno, "f", testUID, testGID, 0o644)
	require.NoError(t, err)

	_, err = fs.Write(f.Ino, 0, []byte("hello"))
	require.NoError(t, err)

	_, err = fs.Truncate(f.Ino, testUID, testGID, 20)
	require.NoError(t, err)

	attr, err := fs.GetAttr(f.Ino)
	require.NoError(t, err)
	require.Equal(t, uint64(20), attr.Size)

	buf := make([]byte, 20)
	n, err := fs.Read(f.Ino, 0, buf)
	require.NoError(t, err)
	require.Equal(t, 20, n)
	require.Equal(t, "hello", string(buf[:5]))
	for _, b := range buf[5:] {
		require.Zero(t, b)
	}
}

func TestScenario_LargeSparseWrite(t *testing.T) {
	fs := newTestFS(t)

	f, err := fs.Create(RootIno, "f", testUID, testGID, 0o644)
	require.NoError(t, err)

	_, err = fs.Write(f.Ino, 1024, []byte("hello world"))
	require.NoError(t, err)

	attr, err := fs.GetAttr(f.Ino)
	require.NoError(t, err)
	require.Equal(t, uint64(1035), attr.Size)

	buf := make([]byte, 2048)
	n, err := fs.Read(f.Ino, 0, buf)
	require.NoError(t, err)
	require.Equal(t, 1035, n)
	for _, b := range buf[:1024] {
		require.Zero(t, b)
	}
	require.Equal(t, "hello world", string(buf[1024:1035]))
}

func TestScenario_CreateUnlinkLookupFails(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Create(RootIno, "f1", testUID, testGID, 0o644)
	require.NoError(t, err)
	require.NoError(t, fs.Unlink(RootIno, "f1", testUID, testGID))

	_, err = fs.Lookup(RootIno, "f1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestScenario_SetGetRemoveXattr(t *testing.T) {
	fs := newTestFS(t)

	f, err := fs.Create(RootIno, "f", testUID, testGID, 0o644)
	require.NoError(t, err)

	require.NoError(t, fs.SetXattr(f.Ino, testUID, testGID, "user.tag", []byte("v1")))

	buf := make([]byte, 2)
	n, err := fs.GetXattr(f.Ino, testUID, testGID, "user.tag", buf)
	require.NoError(t, err)
	require.Equal(t, "v1", string(buf[:n]))

	require.NoError(t, fs.RemoveXattr(f.Ino, testUID, testGID, "user.tag"))

	_, err = fs.GetXattr(f.Ino, testUID, testGID, "user.tag", buf)
	require.ErrorIs(t, err, ErrNoData)
}

func TestBoundary_ReadingSparseHoleReturnsZeros(t *testing.T) {
	fs := newTestFS(t)
	f, err := fs.Create(RootIno, "f", testUID, testGID, 0o644)
	require.NoError(t, err)

	// Grow the file via fallocate without writing any slice data.
	_, err = fs.Fallocate(f.Ino, 0, 8192, false)
	require.NoError(t, err)

	buf := make([]byte, 8192)
	n, err := fs.Read(f.Ino, 0, buf)
	require.NoError(t, err)
	require.Equal(t, 8192, n)
	for _, b := range buf {
		require.Zero(t, b)
	}
}

func TestBoundary_ReadZeroLengthBufferReturnsZero(t *testing.T) {
	fs := newTestFS(t)
	f, err := fs.Create(RootIno, "f", testUID, testGID, 0o644)
	require.NoError(t, err)
	_, err = fs.Write(f.Ino, 0, []byte("x"))
	require.NoError(t, err)

	n, err := fs.Read(f.Ino, 0, nil)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestBoundary_NameLengthLimits(t *testing.T) {
	fs := newTestFS(t)

	name255 := make([]byte, 255)
	for i := range name255 {
		name255[i] = 'a'
	}
	_, err := fs.Create(RootIno, string(name255), testUID, testGID, 0o644)
	require.NoError(t, err)

	name256 := append(name255, 'a')
	_, err = fs.Create(RootIno, string(name256), testUID, testGID, 0o644)
	require.ErrorIs(t, err, ErrNameTooLong)
}

func TestDirectoryInvariant_SizeMatchesDirentCount(t *testing.T) {
	fs := newTestFS(t)

	d, err := fs.Mkdir(RootIno, "d", testUID, testGID, 0o755)
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c"} {
		_, err := fs.Create(d.Ino, name, testUID, testGID, 0o644)
		require.NoError(t, err)
	}

	attr, err := fs.GetAttr(d.Ino)
	require.NoError(t, err)
	require.Equal(t, uint64(5), attr.Size) // . .. a b c
}

func TestReadDir_ListsAllEntriesAcrossBoundedCalls(t *testing.T) {
	fs := newTestFS(t)

	d, err := fs.Mkdir(RootIno, "d", testUID, testGID, 0o755)
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		_, err := fs.Create(d.Ino, name, testUID, testGID, 0o644)
		require.NoError(t, err)
	}

	var names []string
	const batch = 2

	offset := uint64(0)
	for {
		count := 0
		err := fs.ReadDir(d.Ino, offset, func(e DirEntry) bool {
			names = append(names, e.Name)
			offset = e.Offset + 1
			count++
			return count < batch
		})
		require.NoError(t, err)
		if count < batch {
			break
		}
	}

	require.ElementsMatch(t, []string{".", "..", "a", "b", "c", "d", "e"}, names)
}

func TestPermission_RenameOntoExistingFileRespectsStickyBit(t *testing.T) {
	fs := newTestFS(t)

	const dirOwnerUID, victimUID, attackerUID = 2000, 2001, 2002

	// World-writable sticky directory, e.g. /tmp (mode 1777), created by the
	// root directory's owner and then given to dirOwnerUID by root.
	d, err := fs.Mkdir(RootIno, "shared", testUID, testGID, 0o1777)
	require.NoError(t, err)
	_, err = fs.Chown(d.Ino, 0, 0, dirOwnerUID, true, 0, false)
	require.NoError(t, err)

	_, err = fs.Create(d.Ino, "victim", victimUID, testGID, 0o644)
	require.NoError(t, err)
	_, err = fs.Create(d.Ino, "attacker-file", attackerUID, testGID, 0o644)
	require.NoError(t, err)

	// A non-owner, non-root caller may not rename onto someone else's file
	// in a sticky directory: this is equivalent to unlinking "victim".
	err = fs.Rename(d.Ino, "attacker-file", d.Ino, "victim", attackerUID, testGID)
	require.ErrorIs(t, err, ErrAccessError)

	// "victim" must survive untouched.
	victim, err := fs.Lookup(d.Ino, "victim")
	require.NoError(t, err)
	require.Equal(t, uint32(1), victim.HardLinks)

	// The file owner may still rename their own file onto their own file.
	_, err = fs.Create(d.Ino, "victim-new", victimUID, testGID, 0o644)
	require.NoError(t, err)
	require.NoError(t, fs.Rename(d.Ino, "victim-new", d.Ino, "victim", victimUID, testGID))
}

func TestPermission_ChmodRequiresOwnerOrRoot(t *testing.T) {
	fs := newTestFS(t)
	f, err := fs.Create(RootIno, "f", testUID, testGID, 0o644)
	require.NoError(t, err)

	_, err = fs.Chmod(f.Ino, testUID+1, 0o600)
	require.ErrorIs(t, err, ErrPermissionDenied)

	attr, err := fs.Chmod(f.Ino, testUID, 0o600)
	require.NoError(t, err)
	require.Equal(t, uint16(unix.S_IFREG|0o600), attr.Mode)
}
