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

	"go.etcd.io/bbolt"
	"golang.org/x/sys/unix"

	"github.com/kvfs/kvfs/internal/store"
)

// bucketFor returns the bucket for ino, failing with NotFound if it does
// not exist.
func bucketFor(tx *bbolt.Tx, ino uint64) (*bbolt.Bucket, error) {
	b := tx.Bucket(store.InodeKey(ino))
	if b == nil {
		return nil, newErr(KindNotFound, "inode not found")
	}
	return b, nil
}

// putScalars writes the common metadata fields shared by every inode
// type. Directory- or symlink-specific keys are written by the caller.
func putScalars(b *bbolt.Bucket, mode uint16, size uint64, hardLinks uint32, uid, gid, blockSize uint32, atime, mtime, ctime time.Time) error {
	for _, kv := range []struct {
		key []byte
		val []byte
	}{
		{[]byte(store.KeyMode), store.EncodeU16(mode)},
		{[]byte(store.KeySize), store.EncodeU64(size)},
		{[]byte(store.KeyHardLinks), store.EncodeU32(hardLinks)},
		{[]byte(store.KeyUid), store.EncodeU32(uid)},
		{[]byte(store.KeyGid), store.EncodeU32(gid)},
		{[]byte(store.KeyBlockSz), store.EncodeU32(blockSize)},
		{[]byte(store.KeyAtime), store.EncodeTime(atime)},
		{[]byte(store.KeyMtime), store.EncodeTime(mtime)},
		{[]byte(store.KeyCtime), store.EncodeTime(ctime)},
	} {
		if err := b.Put(kv.key, kv.val); err != nil {
			return err
		}
	}
	return nil
}

// initDirBucket populates a freshly created directory bucket, including
// the mandatory `.` and `..` entries.
func initDirBucket(b *bbolt.Bucket, ino, parentIno uint64, mode uint16, uid, gid uint32, blockSize uint32, now time.Time) error {
	if err := putScalars(b, mode, 2, 2, uid, gid, blockSize, now, now, now); err != nil {
		return err
	}
	if err := b.Put(store.DirentKey(store.DotEntry), inoBytes(ino)); err != nil {
		return err
	}
	return b.Put(store.DirentKey(store.DotDotEntry), inoBytes(parentIno))
}

// inoBytes renders an inode number the way directory entry values are
// stored: the ASCII decimal string of the child inode number.
func inoBytes(ino uint64) []byte {
	return []byte(formatUint(ino))
}

func formatUint(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, newErr(KindIo, "empty inode reference")
	}
	var v uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, newErr(KindIo, "malformed inode reference: "+s)
		}
		v = v*10 + uint64(c-'0')
	}
	return v, nil
}

// readAttr decodes the full Attr record from an inode bucket.
func readAttr(b *bbolt.Bucket, ino uint64) (Attr, error) {
	mode := store.DecodeU16(b.Get([]byte(store.KeyMode)))
	size := store.DecodeU64(b.Get([]byte(store.KeySize)))
	hardLinks := store.DecodeU32(b.Get([]byte(store.KeyHardLinks)))
	uid := store.DecodeU32(b.Get([]byte(store.KeyUid)))
	gid := store.DecodeU32(b.Get([]byte(store.KeyGid)))
	blockSize := store.DecodeU32(b.Get([]byte(store.KeyBlockSz)))
	atime := store.DecodeTime(b.Get([]byte(store.KeyAtime)))
	mtime := store.DecodeTime(b.Get([]byte(store.KeyMtime)))
	ctime := store.DecodeTime(b.Get([]byte(store.KeyCtime)))

	a := Attr{
		Ino:       ino,
		Mode:      mode,
		Size:      size,
		HardLinks: hardLinks,
		Uid:       uid,
		Gid:       gid,
		BlockSize: blockSize,
		Blocks:    blocksFor(size, blockSize),
		Atime:     atime,
		Mtime:     mtime,
		Ctime:     ctime,
	}
	if a.IsDevice() {
		if v := b.Get([]byte(store.KeyDev)); v != nil {
			a.Rdev = store.DecodeU32(v)
		}
	}
	return a, nil
}

func touchCtime(b *bbolt.Bucket, now time.Time) error {
	return b.Put([]byte(store.KeyCtime), store.EncodeTime(now))
}

func touchMtimeCtime(b *bbolt.Bucket, now time.Time) error {
	if err := b.Put([]byte(store.KeyMtime), store.EncodeTime(now)); err != nil {
		return err
	}
	return touchCtime(b, now)
}

func getSize(b *bbolt.Bucket) uint64 {
	return store.DecodeU64(b.Get([]byte(store.KeySize)))
}

func setSize(b *bbolt.Bucket, size uint64) error {
	return b.Put([]byte(store.KeySize), store.EncodeU64(size))
}

func getMode(b *bbolt.Bucket) uint16 {
	return store.DecodeU16(b.Get([]byte(store.KeyMode)))
}

func fileType(mode uint16) uint16 {
	return mode & unix.S_IFMT
}
