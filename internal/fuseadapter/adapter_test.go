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
	"path/filepath"
	"testing"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/require"

	"github.com/kvfs/kvfs/clock"
	"github.com/kvfs/kvfs/internal/kvfs"
	"github.com/kvfs/kvfs/internal/store"
)

const testUID, testGID = 1000, 1000

func newTestAdapter(t *testing.T) (*Adapter, *kvfs.FileSystem) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "kvfs.db")
	st, err := store.Open(dbPath, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fs, err := kvfs.New(st, kvfs.Options{
		SliceSize:       4096,
		ScratchArenaMiB: 1,
		DiskSizeBytes:   64 << 20,
		RootUID:         testUID,
		RootGID:         testGID,
		Clock:           clock.RealClock{},
	})
	require.NoError(t, err)

	return New(fs, false), fs
}

func TestToStatus_MapsEveryKindToItsErrno(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want fuse.Status
	}{
		{"nil", nil, fuse.OK},
		{"NotFound", kvfs.ErrNotFound, fuse.Status(kvfs.KindNotFound.Errno())},
		{"PermissionDenied", kvfs.ErrPermissionDenied, fuse.Status(kvfs.KindPermissionDenied.Errno())},
		{"AccessError", kvfs.ErrAccessError, fuse.Status(kvfs.KindAccessError.Errno())},
		{"FileExists", kvfs.ErrFileExists, fuse.Status(kvfs.KindFileExists.Errno())},
		{"InvalidArgument", kvfs.ErrInvalidArgument, fuse.Status(kvfs.KindInvalidArgument.Errno())},
		{"NoSpace", kvfs.ErrNoSpace, fuse.Status(kvfs.KindNoSpace.Errno())},
		{"RangeError", kvfs.ErrRangeError, fuse.Status(kvfs.KindRangeError.Errno())},
		{"NameTooLong", kvfs.ErrNameTooLong, fuse.Status(kvfs.KindNameTooLong.Errno())},
		{"NotEmpty", kvfs.ErrNotEmpty, fuse.Status(kvfs.KindNotEmpty.Errno())},
		{"NoData", kvfs.ErrNoData, fuse.Status(kvfs.KindNoData.Errno())},
		{"NotSupported", kvfs.ErrNotSupported, fuse.Status(kvfs.KindNotSupported.Errno())},
		{"Io", kvfs.ErrIo, fuse.Status(kvfs.KindIo.Errno())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, toStatus(tt.err))
		})
	}
}

func TestFinish_RecordsMetricAndConvertsStatus(t *testing.T) {
	// finish must behave exactly like toStatus for the caller's reply,
	// regardless of what it records into internal/metrics.
	require.Equal(t, fuse.OK, finish("TestOp", time.Now(), nil))
	require.Equal(t, fuse.Status(kvfs.KindNotFound.Errno()), finish("TestOp", time.Now(), kvfs.ErrNotFound))
}

func TestRename_DispatchesOnExchangeFlag(t *testing.T) {
	a, fs := newTestAdapter(t)

	_, err := fs.Create(kvfs.RootIno, "a", testUID, testGID, 0o644)
	require.NoError(t, err)
	_, err = fs.Create(kvfs.RootIno, "b", testUID, testGID, 0o644)
	require.NoError(t, err)

	aAttr, err := fs.Lookup(kvfs.RootIno, "a")
	require.NoError(t, err)

	// Plain rename (no RENAME_EXCHANGE): "a" overwrites "b", "a" is gone.
	status := a.Rename(nil, &fuse.RenameIn{
		InHeader: fuse.InHeader{
			NodeId: kvfs.RootIno,
			Caller: fuse.Caller{Uid: testUID, Gid: testGID},
		},
		Newdir: kvfs.RootIno,
	}, "a", "b")
	require.Equal(t, fuse.OK, status)

	_, err = fs.Lookup(kvfs.RootIno, "a")
	require.ErrorIs(t, err, kvfs.ErrNotFound)
	got, err := fs.Lookup(kvfs.RootIno, "b")
	require.NoError(t, err)
	require.Equal(t, aAttr.Ino, got.Ino)

	// Recreate "a" so an exchange has two names to swap.
	_, err = fs.Create(kvfs.RootIno, "a", testUID, testGID, 0o644)
	require.NoError(t, err)
	newAAttr, err := fs.Lookup(kvfs.RootIno, "a")
	require.NoError(t, err)

	// RENAME_EXCHANGE: both names survive, swapped.
	status = a.Rename(nil, &fuse.RenameIn{
		InHeader: fuse.InHeader{
			NodeId: kvfs.RootIno,
			Caller: fuse.Caller{Uid: testUID, Gid: testGID},
		},
		Newdir: kvfs.RootIno,
		Flags:  renameExchange,
	}, "a", "b")
	require.Equal(t, fuse.OK, status)

	// Before the exchange: "a" -> newAAttr.Ino, "b" -> aAttr.Ino (the
	// original "a", left behind by the plain rename above). The exchange
	// swaps those targets.
	afterA, err := fs.Lookup(kvfs.RootIno, "a")
	require.NoError(t, err)
	require.Equal(t, aAttr.Ino, afterA.Ino)

	afterB, err := fs.Lookup(kvfs.RootIno, "b")
	require.NoError(t, err)
	require.Equal(t, newAAttr.Ino, afterB.Ino)
}
