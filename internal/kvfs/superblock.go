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
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/sys/unix"

	"github.com/kvfs/kvfs/internal/store"
)

// RootIno is the inode number of the filesystem root; 0 is reserved and
// never allocated.
const RootIno uint64 = 1

// Superblock tracks the scalars that persist across mounts: the next
// inode number to allocate, the magic value, the configured slice size,
// and the remaining disk-size budget.
type Superblock struct {
	Magic     uint32
	BlockSize uint32 // == slice size

	counter  atomic.Uint64 // next inode number to allocate
	diskSize atomic.Uint64 // remaining byte budget
}

// openSuperblock reads super_blk from the store, creating it (and the
// root directory, inode 1) if this is a fresh database.
func openSuperblock(st *store.Store, magic uint32, blockSize uint32, diskSizeBytes uint64, rootUID, rootGID uint32, now time.Time) (*Superblock, error) {
	sb := &Superblock{Magic: magic, BlockSize: blockSize}

	err := st.Update(func(tx *bbolt.Tx) error {
		super, err := tx.CreateBucketIfNotExists([]byte(store.SuperBucket))
		if err != nil {
			return err
		}

		if v := super.Get([]byte(store.KeyContinueNumber)); v != nil {
			sb.counter.Store(store.DecodeU64(v))
		} else {
			sb.counter.Store(RootIno + 1)
			if err := super.Put([]byte(store.KeyContinueNumber), store.EncodeU64(RootIno+1)); err != nil {
				return err
			}
		}

		if v := super.Get([]byte(store.KeyMagic)); v != nil {
			sb.Magic = store.DecodeU32(v)
		} else if err := super.Put([]byte(store.KeyMagic), store.EncodeU32(magic)); err != nil {
			return err
		}

		if v := super.Get([]byte(store.KeyBlockSize)); v != nil {
			sb.BlockSize = store.DecodeU32(v)
		} else if err := super.Put([]byte(store.KeyBlockSize), store.EncodeU32(blockSize)); err != nil {
			return err
		}

		if v := super.Get([]byte(store.KeyDiskSize)); v != nil {
			sb.diskSize.Store(store.DecodeU64(v))
		} else {
			sb.diskSize.Store(diskSizeBytes)
			if err := super.Put([]byte(store.KeyDiskSize), store.EncodeU64(diskSizeBytes)); err != nil {
				return err
			}
		}

		rootBucketKey := store.InodeKey(RootIno)
		if tx.Bucket(rootBucketKey) != nil {
			return nil
		}

		root, err := tx.CreateBucket(rootBucketKey)
		if err != nil {
			return err
		}
		return initDirBucket(root, RootIno, RootIno, unix.S_IFDIR|0o755, rootUID, rootGID, sb.BlockSize, now)
	})
	if err != nil {
		return nil, wrapErr(KindIo, "opening superblock", err)
	}
	return sb, nil
}

// nextIno allocates a fresh inode number via an atomic fetch-add, per
// the spec's in-memory counter.
func (sb *Superblock) nextIno() uint64 {
	return sb.counter.Add(1) - 1
}

// observeIno bumps the in-memory counter if ino is >= its current value,
// preserving monotonicity across any path that might otherwise under-run
// it (defensive bookkeeping for recovery code, not exercised by normal
// allocation).
func (sb *Superblock) observeIno(ino uint64) {
	for {
		cur := sb.counter.Load()
		if ino < cur {
			return
		}
		if sb.counter.CompareAndSwap(cur, ino+1) {
			return
		}
	}
}

// persist writes the current counter and disk-size budget back to
// super_blk; called on unmount.
func (sb *Superblock) persist(tx *bbolt.Tx) error {
	super := tx.Bucket([]byte(store.SuperBucket))
	if super == nil {
		return wrapErr(KindIo, "super_blk bucket missing", nil)
	}
	if err := super.Put([]byte(store.KeyContinueNumber), store.EncodeU64(sb.counter.Load())); err != nil {
		return err
	}
	return super.Put([]byte(store.KeyDiskSize), store.EncodeU64(sb.diskSize.Load()))
}

// chargeDiskSize debits n bytes from the remaining budget, failing with
// NoSpace if that would take it negative.
func (sb *Superblock) chargeDiskSize(n uint64) error {
	for {
		cur := sb.diskSize.Load()
		if n > cur {
			return newErr(KindNoSpace, "disk size budget exhausted")
		}
		if sb.diskSize.CompareAndSwap(cur, cur-n) {
			return nil
		}
	}
}

// creditDiskSize returns n bytes to the remaining budget (on
// truncate-down; unlink does not credit the budget).
func (sb *Superblock) creditDiskSize(n uint64) {
	sb.diskSize.Add(n)
}

// StatFS is the data returned by the statfs operation.
type StatFS struct {
	BlockSize   uint32
	TotalBlocks uint64
	FreeBlocks  uint64
	Files       uint64
	NameLen     uint32
}

// Stat reports aggregate filesystem statistics: disk_size/blk_size as
// total/free/available blocks, the counter's current value as the file
// count, and the fixed 255-byte name length limit.
func (sb *Superblock) Stat() StatFS {
	bs := sb.BlockSize
	if bs == 0 {
		bs = 1
	}
	return StatFS{
		BlockSize:   sb.BlockSize,
		TotalBlocks: sb.diskSize.Load() / uint64(bs),
		FreeBlocks:  sb.diskSize.Load() / uint64(bs),
		Files:       sb.counter.Load(),
		NameLen:     store.MaxNameLen,
	}
}
