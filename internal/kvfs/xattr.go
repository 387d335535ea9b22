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
	"strings"

	"go.etcd.io/bbolt"

	"github.com/kvfs/kvfs/internal/store"
)

var xattrNamespaces = []string{"user.", "trusted.", "system.", "security."}

const posixACLAccess = "system.posix_acl_access"

func xattrAccess(name string, ownerUID, ownerGID uint32, mode uint16, callerUID, callerGID uint32, write bool) error {
	switch {
	case strings.HasPrefix(name, "trusted."):
		if callerUID != 0 {
			return newErr(KindPermissionDenied, "xattr: trusted.* requires root")
		}
	case name == posixACLAccess:
		mask := MaskRead
		if write {
			mask = MaskWrite
		}
		if !CheckAccess(ownerUID, ownerGID, mode, callerUID, callerGID, mask) {
			return newErr(KindAccessError, "xattr: no access for "+name)
		}
	case strings.HasPrefix(name, "security."):
		if write && callerUID != 0 {
			return newErr(KindPermissionDenied, "xattr: security.* writes require root")
		}
	case strings.HasPrefix(name, "user."):
		mask := MaskRead
		if write {
			mask = MaskWrite
		}
		if !CheckAccess(ownerUID, ownerGID, mode, callerUID, callerGID, mask) {
			return newErr(KindAccessError, "xattr: no access for "+name)
		}
	default:
		return newErr(KindNotSupported, "xattr: unsupported namespace for "+name)
	}
	return nil
}

// SetXattr writes name=value on ino, subject to namespace access rules.
func (fs *FileSystem) SetXattr(ino uint64, callerUID, callerGID uint32, name string, value []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	now := fs.clock.Now()
	return fs.store.Update(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		ownerUID := store.DecodeU32(b.Get([]byte(store.KeyUid)))
		ownerGID := store.DecodeU32(b.Get([]byte(store.KeyGid)))
		mode := getMode(b)
		if err := xattrAccess(name, ownerUID, ownerGID, mode, callerUID, callerGID, true); err != nil {
			return err
		}
		if err := b.Put(store.XattrKey(name), value); err != nil {
			return err
		}
		return touchCtime(b, now)
	})
}

// GetXattr copies the value of name into buf. If buf is empty it returns
// the required size without copying; if buf is non-empty but too small
// it fails with RangeError.
func (fs *FileSystem) GetXattr(ino uint64, callerUID, callerGID uint32, name string, buf []byte) (int, error) {
	var n int
	err := fs.store.View(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		ownerUID := store.DecodeU32(b.Get([]byte(store.KeyUid)))
		ownerGID := store.DecodeU32(b.Get([]byte(store.KeyGid)))
		mode := getMode(b)
		if err := xattrAccess(name, ownerUID, ownerGID, mode, callerUID, callerGID, false); err != nil {
			return err
		}

		v := b.Get(store.XattrKey(name))
		if v == nil {
			return newErr(KindNoData, name)
		}
		n = len(v)
		if len(buf) == 0 {
			return nil
		}
		if len(buf) < n {
			return newErr(KindRangeError, "xattr buffer too small")
		}
		copy(buf, v)
		return nil
	})
	return n, err
}

// ListXattr writes every visible attribute name (user./trusted./system./
// security. prefixed keys), null-terminated, into buf, always returning
// the total size required even when buf is too small.
func (fs *FileSystem) ListXattr(ino uint64, buf []byte) (int, error) {
	var total int
	err := fs.store.View(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		c := b.Cursor()
		pos := 0
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			name, ok := store.IsXattrKey(k)
			if !ok {
				continue
			}
			if !hasNamespace(name) {
				continue
			}
			total += len(name) + 1
			if len(buf) >= total {
				copy(buf[pos:], name)
				buf[pos+len(name)] = 0
				pos = total
			}
		}
		return nil
	})
	return total, err
}

func hasNamespace(name string) bool {
	for _, ns := range xattrNamespaces {
		if strings.HasPrefix(name, ns) {
			return true
		}
	}
	return false
}

// RemoveXattr deletes name from ino.
func (fs *FileSystem) RemoveXattr(ino uint64, callerUID, callerGID uint32, name string) error {
	now := fs.clock.Now()
	return fs.store.Update(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		ownerUID := store.DecodeU32(b.Get([]byte(store.KeyUid)))
		ownerGID := store.DecodeU32(b.Get([]byte(store.KeyGid)))
		mode := getMode(b)
		if err := xattrAccess(name, ownerUID, ownerGID, mode, callerUID, callerGID, true); err != nil {
			return err
		}
		key := store.XattrKey(name)
		if b.Get(key) == nil {
			return newErr(KindNoData, name)
		}
		if err := b.Delete(key); err != nil {
			return err
		}
		return touchCtime(b, now)
	})
}
