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

// validateName rejects names over the 255-byte limit or containing a
// path separator.
func validateName(name string) error {
	if len(name) == 0 || len(name) > store.MaxNameLen {
		return newErr(KindNameTooLong, "name length out of range")
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			return newErr(KindInvalidArgument, "name contains '/'")
		}
	}
	return nil
}

// createParams bundles the inputs shared by create/mkdir/symlink/mknod.
type createParams struct {
	ParentIno uint64
	Name      string
	CallerUID uint32
	CallerGID uint32
	Mode      uint16 // includes the S_IFMT type bits
	Target    []byte // symlink target, only for S_IFLNK
	Dev       uint32 // device number, only for S_IFCHR/S_IFBLK
}

// createCommon implements the shared body of create/mkdir/symlink/mknod
// (spec 4.4, steps 1-6): check parent write access, allocate an inode,
// insert the dirent, and populate the new bucket.
func (fs *FileSystem) createCommon(p createParams) (Attr, error) {
	if err := validateName(p.Name); err != nil {
		return Attr{}, err
	}

	var result Attr
	now := fs.clock.Now()

	err := fs.store.Update(func(tx *bbolt.Tx) error {
		parent, err := bucketFor(tx, p.ParentIno)
		if err != nil {
			return err
		}
		parentMode := getMode(parent)
		parentUID := store.DecodeU32(parent.Get([]byte(store.KeyUid)))
		parentGID := store.DecodeU32(parent.Get([]byte(store.KeyGid)))

		if !CheckAccess(parentUID, parentGID, parentMode, p.CallerUID, p.CallerGID, MaskWrite) {
			return newErr(KindAccessError, "no write access on parent directory")
		}

		direntKey := store.DirentKey(p.Name)
		if parent.Get(direntKey) != nil {
			return newErr(KindFileExists, p.Name)
		}

		ino := fs.sb.nextIno()

		if err := parent.Put(direntKey, inoBytes(ino)); err != nil {
			return err
		}
		if err := setSize(parent, getSize(parent)+1); err != nil {
			return err
		}
		if err := touchMtimeCtime(parent, now); err != nil {
			return err
		}

		mode := p.Mode
		if p.CallerUID != 0 {
			mode = ClearSuidSgid(mode)
		}
		if fileType(mode) == unix.S_IFDIR && parentMode&unix.S_ISGID != 0 {
			mode |= unix.S_ISGID
		}
		gid := CreationGID(parentGID, parentMode, p.CallerGID)

		child, err := tx.CreateBucket(store.InodeKey(ino))
		if err != nil {
			return err
		}

		switch fileType(mode) {
		case unix.S_IFDIR:
			if err := initDirBucket(child, ino, p.ParentIno, mode, p.CallerUID, gid, fs.sb.BlockSize, now); err != nil {
				return err
			}
		case unix.S_IFLNK:
			if err := putScalars(child, mode, uint64(len(p.Target)), 1, p.CallerUID, gid, fs.sb.BlockSize, now, now, now); err != nil {
				return err
			}
			if err := child.Put([]byte(store.KeySymlink), p.Target); err != nil {
				return err
			}
		default:
			if err := putScalars(child, mode, 0, 1, p.CallerUID, gid, fs.sb.BlockSize, now, now, now); err != nil {
				return err
			}
			if fileType(mode) == unix.S_IFCHR || fileType(mode) == unix.S_IFBLK {
				if err := child.Put([]byte(store.KeyDev), store.EncodeU32(p.Dev)); err != nil {
					return err
				}
			}
		}

		result, err = readAttr(child, ino)
		return err
	})
	if err != nil {
		return Attr{}, err
	}
	return result, nil
}

// Create makes a regular file (spec 4.4 create).
func (fs *FileSystem) Create(parentIno uint64, name string, callerUID, callerGID uint32, mode uint16) (Attr, error) {
	return fs.createCommon(createParams{
		ParentIno: parentIno, Name: name, CallerUID: callerUID, CallerGID: callerGID,
		Mode: unix.S_IFREG | (mode &^ unix.S_IFMT),
	})
}

// Mkdir makes a directory.
func (fs *FileSystem) Mkdir(parentIno uint64, name string, callerUID, callerGID uint32, mode uint16) (Attr, error) {
	return fs.createCommon(createParams{
		ParentIno: parentIno, Name: name, CallerUID: callerUID, CallerGID: callerGID,
		Mode: unix.S_IFDIR | (mode &^ unix.S_IFMT),
	})
}

// Symlink creates a symbolic link whose target is the given path.
func (fs *FileSystem) Symlink(parentIno uint64, name string, callerUID, callerGID uint32, target string) (Attr, error) {
	return fs.createCommon(createParams{
		ParentIno: parentIno, Name: name, CallerUID: callerUID, CallerGID: callerGID,
		Mode: unix.S_IFLNK | 0o777, Target: []byte(target),
	})
}

// Mknod creates a device, FIFO, or socket inode.
func (fs *FileSystem) Mknod(parentIno uint64, name string, callerUID, callerGID uint32, mode uint16, dev uint32) (Attr, error) {
	return fs.createCommon(createParams{
		ParentIno: parentIno, Name: name, CallerUID: callerUID, CallerGID: callerGID,
		Mode: mode, Dev: dev,
	})
}

// Lookup resolves name inside parentIno and returns the child's
// attributes.
func (fs *FileSystem) Lookup(parentIno uint64, name string) (Attr, error) {
	var result Attr
	err := fs.store.View(func(tx *bbolt.Tx) error {
		parent, err := bucketFor(tx, parentIno)
		if err != nil {
			return err
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
		result, err = readAttr(child, childIno)
		return err
	})
	return result, err
}

// GetAttr reads the attribute record for ino.
func (fs *FileSystem) GetAttr(ino uint64) (Attr, error) {
	var result Attr
	err := fs.store.View(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		result, err = readAttr(b, ino)
		return err
	})
	return result, err
}

// Chmod changes the permission bits of ino. Only the owner or root may
// do so; the type bits of mode are preserved.
func (fs *FileSystem) Chmod(ino uint64, callerUID uint32, newPerm uint16) (Attr, error) {
	var result Attr
	now := fs.clock.Now()
	err := fs.store.Update(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		ownerUID := store.DecodeU32(b.Get([]byte(store.KeyUid)))
		if callerUID != 0 && callerUID != ownerUID {
			return newErr(KindPermissionDenied, "chmod: not owner")
		}
		mode := getMode(b)
		mode = fileType(mode) | (newPerm & 0o7777)
		if err := b.Put([]byte(store.KeyMode), store.EncodeU16(mode)); err != nil {
			return err
		}
		if err := touchCtime(b, now); err != nil {
			return err
		}
		result, err = readAttr(b, ino)
		return err
	})
	return result, err
}

// Chown changes uid and/or gid of ino. Pass changeUID/changeGID == false
// to leave that field unchanged. Approximates POSIX's "member of target
// group" check as an exact gid match, as the spec allows.
func (fs *FileSystem) Chown(ino uint64, callerUID, callerGID uint32, newUID uint32, changeUID bool, newGID uint32, changeGID bool) (Attr, error) {
	var result Attr
	now := fs.clock.Now()
	err := fs.store.Update(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		ownerUID := store.DecodeU32(b.Get([]byte(store.KeyUid)))
		ownerGID := store.DecodeU32(b.Get([]byte(store.KeyGid)))

		if changeGID && newGID != ownerGID {
			if callerUID != 0 && callerUID != ownerUID {
				return newErr(KindPermissionDenied, "chown: not owner")
			}
			if callerUID != 0 && callerGID != newGID {
				return newErr(KindPermissionDenied, "chown: caller not member of target group")
			}
			if err := b.Put([]byte(store.KeyGid), store.EncodeU32(newGID)); err != nil {
				return err
			}
			ownerGID = newGID
		}

		if changeUID && newUID != ownerUID {
			if callerUID != 0 {
				return newErr(KindPermissionDenied, "chown: only root may change uid")
			}
			if err := b.Put([]byte(store.KeyUid), store.EncodeU32(newUID)); err != nil {
				return err
			}
			ownerUID = newUID
		}

		mode := getMode(b)
		if mode&0o111 != 0 {
			if err := b.Put([]byte(store.KeyMode), store.EncodeU16(ClearSuidSgid(mode))); err != nil {
				return err
			}
		}
		if err := touchCtime(b, now); err != nil {
			return err
		}
		result, err = readAttr(b, ino)
		return err
	})
	return result, err
}

// TimeUpdate is the input to Utimens: each field is applied only if its
// Set flag is true, matching FUSE's partial-update setattr semantics.
type TimeUpdate struct {
	Atime    time.Time
	SetAtime bool
	Mtime    time.Time
	SetMtime bool
}

// Utimens updates atime/mtime. The caller must be the owner (or root), or
// else hold write permission on ino.
func (fs *FileSystem) Utimens(ino uint64, callerUID, callerGID uint32, upd TimeUpdate) (Attr, error) {
	var result Attr
	now := fs.clock.Now()
	err := fs.store.Update(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		ownerUID := store.DecodeU32(b.Get([]byte(store.KeyUid)))
		ownerGID := store.DecodeU32(b.Get([]byte(store.KeyGid)))
		mode := getMode(b)

		if callerUID != 0 && callerUID != ownerUID {
			if !CheckAccess(ownerUID, ownerGID, mode, callerUID, callerGID, MaskWrite) {
				return newErr(KindAccessError, "utimens: not owner and no write access")
			}
		}

		if upd.SetAtime {
			if err := b.Put([]byte(store.KeyAtime), store.EncodeTime(upd.Atime)); err != nil {
				return err
			}
		}
		if upd.SetMtime {
			if err := b.Put([]byte(store.KeyMtime), store.EncodeTime(upd.Mtime)); err != nil {
				return err
			}
		}
		if err := touchCtime(b, now); err != nil {
			return err
		}
		result, err = readAttr(b, ino)
		return err
	})
	return result, err
}

// Truncate changes a regular file's size, deleting or zero-tailing slices
// as necessary and adjusting the disk-size budget.
func (fs *FileSystem) Truncate(ino uint64, callerUID, callerGID uint32, newSize uint64) (Attr, error) {
	var result Attr
	now := fs.clock.Now()
	err := fs.store.Update(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		ownerUID := store.DecodeU32(b.Get([]byte(store.KeyUid)))
		ownerGID := store.DecodeU32(b.Get([]byte(store.KeyGid)))
		mode := getMode(b)
		if !CheckAccess(ownerUID, ownerGID, mode, callerUID, callerGID, MaskWrite) {
			return newErr(KindAccessError, "truncate: no write access")
		}

		oldSize := getSize(b)
		sliceSize := uint64(fs.sliceSize)

		if newSize >= oldSize {
			if err := fs.sb.chargeDiskSize(newSize - oldSize); err != nil {
				return err
			}
		} else {
			if err := fs.deleteSlicesAbove(b, newSize, sliceSize); err != nil {
				return err
			}
			fs.sb.creditDiskSize(oldSize - newSize)
		}

		if err := setSize(b, newSize); err != nil {
			return err
		}
		if err := b.Put([]byte(store.KeyMode), store.EncodeU16(ClearSuidSgid(mode))); err != nil {
			return err
		}
		if err := touchMtimeCtime(b, now); err != nil {
			return err
		}
		result, err = readAttr(b, ino)
		return err
	})
	return result, err
}

// deleteSlicesAbove removes every zdata: slice whose index is beyond
// newSize, and zero-tails the slice straddling the new end if present.
func (fs *FileSystem) deleteSlicesAbove(b *bbolt.Bucket, newSize, sliceSize uint64) error {
	if sliceSize == 0 {
		return nil
	}
	lastIdx := uint32(newSize / sliceSize)
	inner := newSize % sliceSize

	if inner != 0 {
		key := store.SliceKey(lastIdx)
		if v := b.Get(key); v != nil {
			tail := append([]byte(nil), v...)
			for i := inner; i < uint64(len(tail)); i++ {
				tail[i] = 0
			}
			if err := b.Put(key, tail); err != nil {
				return err
			}
		}
	}

	firstToDelete := lastIdx + 1
	if inner == 0 {
		firstToDelete = lastIdx
	}

	c := b.Cursor()
	lo := store.SliceKey(firstToDelete)
	var toDelete [][]byte
	for k, _ := c.Seek(lo); k != nil; k, _ = c.Next() {
		if _, ok := store.DecodeSliceKey(k); !ok {
			break
		}
		toDelete = append(toDelete, append([]byte(nil), k...))
	}
	for _, k := range toDelete {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Rmdir removes an empty directory (size <= 2, i.e. only `.`/`..`).
func (fs *FileSystem) Rmdir(parentIno uint64, name string, callerUID, callerGID uint32) error {
	now := fs.clock.Now()
	return fs.store.Update(func(tx *bbolt.Tx) error {
		parent, err := bucketFor(tx, parentIno)
		if err != nil {
			return err
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
		if fileType(getMode(child)) != unix.S_IFDIR {
			return newErr(KindInvalidArgument, "rmdir: not a directory")
		}
		if getSize(child) > 2 {
			return newErr(KindNotEmpty, name)
		}

		parentMode := getMode(parent)
		parentUID := store.DecodeU32(parent.Get([]byte(store.KeyUid)))
		parentGID := store.DecodeU32(parent.Get([]byte(store.KeyGid)))
		if !CheckAccess(parentUID, parentGID, parentMode, callerUID, callerGID, MaskWrite) {
			return newErr(KindAccessError, "rmdir: no write access on parent")
		}
		childUID := store.DecodeU32(child.Get([]byte(store.KeyUid)))
		if !CheckStickyRemoval(parentMode, parentUID, childUID, callerUID) {
			return newErr(KindAccessError, "rmdir: sticky bit forbids removal")
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
		return tx.DeleteBucket(store.InodeKey(childIno))
	})
}
