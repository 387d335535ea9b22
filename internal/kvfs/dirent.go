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

// Link adds a new name in newParentIno pointing at the existing inode
// ino, bumping its hard-link count (spec 4.5 link). Hard links to
// directories are rejected, matching the note in spec §9's open
// questions.
func (fs *FileSystem) Link(ino uint64, newParentIno uint64, newName string, callerUID, callerGID uint32) (Attr, error) {
	if err := validateName(newName); err != nil {
		return Attr{}, err
	}

	var result Attr
	now := fs.clock.Now()
	err := fs.store.Update(func(tx *bbolt.Tx) error {
		target, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		if fileType(getMode(target)) == unix.S_IFDIR {
			return newErr(KindPermissionDenied, "link: cannot hard-link a directory")
		}

		parent, err := bucketFor(tx, newParentIno)
		if err != nil {
			return err
		}
		parentMode := getMode(parent)
		parentUID := store.DecodeU32(parent.Get([]byte(store.KeyUid)))
		parentGID := store.DecodeU32(parent.Get([]byte(store.KeyGid)))
		if !CheckAccess(parentUID, parentGID, parentMode, callerUID, callerGID, MaskWrite) {
			return newErr(KindAccessError, "link: no write access on target directory")
		}

		key := store.DirentKey(newName)
		if parent.Get(key) != nil {
			return newErr(KindFileExists, newName)
		}
		if err := parent.Put(key, inoBytes(ino)); err != nil {
			return err
		}
		if err := setSize(parent, getSize(parent)+1); err != nil {
			return err
		}
		if err := touchMtimeCtime(parent, now); err != nil {
			return err
		}

		hl := store.DecodeU32(target.Get([]byte(store.KeyHardLinks)))
		if err := target.Put([]byte(store.KeyHardLinks), store.EncodeU32(hl+1)); err != nil {
			return err
		}
		if err := touchCtime(target, now); err != nil {
			return err
		}

		result, err = readAttr(target, ino)
		return err
	})
	return result, err
}

// Unlink removes a directory entry, deleting its inode bucket entirely
// once hard_links reaches zero (spec 4.5 unlink).
func (fs *FileSystem) Unlink(parentIno uint64, name string, callerUID, callerGID uint32) error {
	now := fs.clock.Now()
	return fs.store.Update(func(tx *bbolt.Tx) error {
		parent, err := bucketFor(tx, parentIno)
		if err != nil {
			return err
		}
		parentMode := getMode(parent)
		parentUID := store.DecodeU32(parent.Get([]byte(store.KeyUid)))
		parentGID := store.DecodeU32(parent.Get([]byte(store.KeyGid)))
		if !CheckAccess(parentUID, parentGID, parentMode, callerUID, callerGID, MaskWrite) {
			return newErr(KindAccessError, "unlink: no write access on parent")
		}

		v := parent.Get(store.DirentKey(name))
		if v == nil {
			return newErr(KindNotFound, name)
		}
		childIno, err := parseUint(string(v))
		if err != nil {
			return err
		}
		child, err := bucketFor(tx, childIno)
		if err != nil {
			return err
		}
		childUID := store.DecodeU32(child.Get([]byte(store.KeyUid)))
		if !CheckStickyRemoval(parentMode, parentUID, childUID, callerUID) {
			return newErr(KindAccessError, "unlink: sticky bit forbids removal")
		}
		if fileType(getMode(child)) == unix.S_IFDIR {
			return newErr(KindPermissionDenied, "unlink: is a directory")
		}

		if err := parent.Delete(store.DirentKey(name)); err != nil {
			return err
		}
		if err := setSize(parent, getSize(parent)-1); err != nil {
			return err
		}
		if err := touchMtimeCtime(parent, now); err != nil {
			return err
		}

		hl := store.DecodeU32(child.Get([]byte(store.KeyHardLinks)))
		if hl <= 1 {
			return tx.DeleteBucket(store.InodeKey(childIno))
		}
		if err := child.Put([]byte(store.KeyHardLinks), store.EncodeU32(hl-1)); err != nil {
			return err
		}
		return touchCtime(child, now)
	})
}

// Readlink returns a symlink's target path.
func (fs *FileSystem) Readlink(ino uint64) (string, error) {
	var target string
	err := fs.store.View(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		if fileType(getMode(b)) != unix.S_IFLNK {
			return newErr(KindInvalidArgument, "readlink: not a symlink")
		}
		target = string(b.Get([]byte(store.KeySymlink)))
		return nil
	})
	return target, err
}
