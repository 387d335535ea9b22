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
	"go.etcd.io/bbolt"
	"golang.org/x/sys/unix"

	"github.com/kvfs/kvfs/internal/store"
)

// RenameExchange atomically swaps two existing names (spec 4.4, the
// RENAME_EXCHANGE flag) rather than moving src onto dst.
func (fs *FileSystem) RenameExchange(srcParentIno uint64, srcName string, dstParentIno uint64, dstName string, callerUID, callerGID uint32) error {
	return fs.rename(srcParentIno, srcName, dstParentIno, dstName, callerUID, callerGID, true)
}

// Rename moves/renames src to dst, overwriting dst if it exists
// (RenameExchange swaps the two names instead).
func (fs *FileSystem) Rename(srcParentIno uint64, srcName string, dstParentIno uint64, dstName string, callerUID, callerGID uint32) error {
	return fs.rename(srcParentIno, srcName, dstParentIno, dstName, callerUID, callerGID, false)
}

func (fs *FileSystem) rename(srcParentIno uint64, srcName string, dstParentIno uint64, dstName string, callerUID, callerGID uint32, exchange bool) error {
	now := fs.clock.Now()
	return fs.store.Update(func(tx *bbolt.Tx) error {
		srcParent, err := bucketFor(tx, srcParentIno)
		if err != nil {
			return err
		}
		srcParentMode := getMode(srcParent)
		srcParentUID := store.DecodeU32(srcParent.Get([]byte(store.KeyUid)))
		srcParentGID := store.DecodeU32(srcParent.Get([]byte(store.KeyGid)))
		if !CheckAccess(srcParentUID, srcParentGID, srcParentMode, callerUID, callerGID, MaskWrite) {
			return newErr(KindAccessError, "rename: no write access on source parent")
		}

		srcVal := srcParent.Get(store.DirentKey(srcName))
		if srcVal == nil {
			return newErr(KindNotFound, srcName)
		}
		srcIno, err := parseUint(string(srcVal))
		if err != nil {
			return err
		}
		srcBucket, err := bucketFor(tx, srcIno)
		if err != nil {
			return err
		}
		srcUID := store.DecodeU32(srcBucket.Get([]byte(store.KeyUid)))
		if !CheckStickyRemoval(srcParentMode, srcParentUID, srcUID, callerUID) {
			return newErr(KindAccessError, "rename: sticky bit forbids removal of source")
		}

		dstParent, err := bucketFor(tx, dstParentIno)
		if err != nil {
			return err
		}
		dstParentMode := getMode(dstParent)
		dstParentUID := store.DecodeU32(dstParent.Get([]byte(store.KeyUid)))
		dstParentGID := store.DecodeU32(dstParent.Get([]byte(store.KeyGid)))

		dstKey := store.DirentKey(dstName)
		dstVal := dstParent.Get(dstKey)

		if dstVal != nil || exchange {
			if !CheckAccess(dstParentUID, dstParentGID, dstParentMode, callerUID, callerGID, MaskWrite) {
				return newErr(KindAccessError, "rename: no write access on destination parent")
			}
		}

		if srcParentIno != dstParentIno && fileType(getMode(srcBucket)) == unix.S_IFDIR {
			if !CheckAccess(srcUID, store.DecodeU32(srcBucket.Get([]byte(store.KeyGid))), getMode(srcBucket), callerUID, callerGID, MaskWrite) {
				return newErr(KindAccessError, "rename: no write access on moved directory (.. rewrite)")
			}
		}

		if exchange {
			if dstVal == nil {
				return newErr(KindNotFound, dstName)
			}
			dstIno, err := parseUint(string(dstVal))
			if err != nil {
				return err
			}
			dstBucket, err := bucketFor(tx, dstIno)
			if err != nil {
				return err
			}
			dstUID := store.DecodeU32(dstBucket.Get([]byte(store.KeyUid)))
			if !CheckStickyRemoval(dstParentMode, dstParentUID, dstUID, callerUID) {
				return newErr(KindAccessError, "rename: sticky bit forbids removal of destination")
			}

			if err := srcParent.Put(store.DirentKey(srcName), inoBytes(dstIno)); err != nil {
				return err
			}
			if err := dstParent.Put(dstKey, inoBytes(srcIno)); err != nil {
				return err
			}
			if err := touchMtimeCtime(srcParent, now); err != nil {
				return err
			}
			if err := touchMtimeCtime(dstParent, now); err != nil {
				return err
			}

			if srcParentIno != dstParentIno {
				if fileType(getMode(srcBucket)) == unix.S_IFDIR {
					if err := srcBucket.Put(store.DirentKey(store.DotDotEntry), inoBytes(dstParentIno)); err != nil {
						return err
					}
				}
				if fileType(getMode(dstBucket)) == unix.S_IFDIR {
					if err := dstBucket.Put(store.DirentKey(store.DotDotEntry), inoBytes(srcParentIno)); err != nil {
						return err
					}
				}
			}
			return nil
		}

		// Move / overwrite.
		if dstVal != nil {
			dstIno, err := parseUint(string(dstVal))
			if err != nil {
				return err
			}
			dstBucket, err := bucketFor(tx, dstIno)
			if err != nil {
				return err
			}
			dstUID := store.DecodeU32(dstBucket.Get([]byte(store.KeyUid)))
			if !CheckStickyRemoval(dstParentMode, dstParentUID, dstUID, callerUID) {
				return newErr(KindAccessError, "rename: sticky bit forbids removal of destination")
			}
			if fileType(getMode(dstBucket)) == unix.S_IFDIR && getSize(dstBucket) > 2 {
				return newErr(KindNotEmpty, dstName)
			}
			hl := store.DecodeU32(dstBucket.Get([]byte(store.KeyHardLinks)))
			if hl <= 1 {
				if err := tx.DeleteBucket(store.InodeKey(dstIno)); err != nil {
					return err
				}
			} else {
				if err := dstBucket.Put([]byte(store.KeyHardLinks), store.EncodeU32(hl-1)); err != nil {
					return err
				}
				if err := touchCtime(dstBucket, now); err != nil {
					return err
				}
			}
		} else {
			if err := setSize(dstParent, getSize(dstParent)+1); err != nil {
				return err
			}
		}

		if err := srcParent.Delete(store.DirentKey(srcName)); err != nil {
			return err
		}
		if err := setSize(srcParent, getSize(srcParent)-1); err != nil {
			return err
		}
		if err := dstParent.Put(dstKey, inoBytes(srcIno)); err != nil {
			return err
		}
		if err := touchMtimeCtime(srcParent, now); err != nil {
			return err
		}
		if srcParentIno != dstParentIno {
			if err := touchMtimeCtime(dstParent, now); err != nil {
				return err
			}
		}

		if srcParentIno != dstParentIno && fileType(getMode(srcBucket)) == unix.S_IFDIR {
			if err := srcBucket.Put(store.DirentKey(store.DotDotEntry), inoBytes(dstParentIno)); err != nil {
				return err
			}
		}
		return nil
	})
}
