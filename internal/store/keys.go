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

// Package store wraps go.etcd.io/bbolt with the key encoding that lets a
// single flat B+tree represent inodes, directory entries, sliced file data
// and extended attributes.
package store

import (
	"encoding/binary"
	"fmt"
)

// MaxNameLen is the longest directory entry or xattr name accepted, in
// bytes.
const MaxNameLen = 255

const (
	direntPrefix = "data:"
	slicePrefix  = "zdata:"
	xattrPrefix  = "attr:"
)

// SuperBucket is the single top-level bucket holding the scalar counters
// that survive across mounts.
const SuperBucket = "super_blk"

// Superblock scalar key names inside SuperBucket.
const (
	KeyContinueNumber = "continue_number"
	KeyMagic          = "magic"
	KeyBlockSize      = "blk_size"
	KeyDiskSize       = "disk_size"
)

// Per-inode metadata scalar key names.
const (
	KeyMode      = "mode"
	KeySize      = "size"
	KeyHardLinks = "hard_links"
	KeyUid       = "uid"
	KeyGid       = "gid"
	KeyBlockSz   = "block_size"
	KeyAtime     = "atime"
	KeyMtime     = "mtime"
	KeyCtime     = "ctime"
	KeyDev       = "dev"
	// KeySymlink is the key under which a symlink's target path is stored.
	KeySymlink = "data"
)

// InodeKey encodes an inode number as the 8-byte big-endian bucket name
// used for the top-level per-inode bucket.
func InodeKey(ino uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, ino)
	return b
}

// DecodeInodeKey is the inverse of InodeKey.
func DecodeInodeKey(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("store: inode key has length %d, want 8", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// DirentKey encodes a directory entry key for child name.
func DirentKey(name string) []byte {
	return append([]byte(direntPrefix), name...)
}

// IsDirentKey reports whether key is a directory-entry key, returning the
// child name when it is.
func IsDirentKey(key []byte) (name string, ok bool) {
	if len(key) < len(direntPrefix) || string(key[:len(direntPrefix)]) != direntPrefix {
		return "", false
	}
	return string(key[len(direntPrefix):]), true
}

// SliceKey encodes the key for file-data slice index idx.
func SliceKey(idx uint32) []byte {
	b := make([]byte, len(slicePrefix)+4)
	copy(b, slicePrefix)
	binary.BigEndian.PutUint32(b[len(slicePrefix):], idx)
	return b
}

// SliceRangeBounds returns the [lo, hi) byte-key bounds covering slice
// indices [startIdx, endIdx), suitable for a bbolt cursor range scan. The
// lexicographic order of these keys matches the numeric order of the
// indices, since the 4-byte big-endian suffix sorts the same way as the
// index itself.
func SliceRangeBounds(startIdx, endIdx uint32) (lo, hi []byte) {
	return SliceKey(startIdx), SliceKey(endIdx)
}

// DecodeSliceKey extracts the slice index from a zdata: key. ok is false
// if key does not have the zdata: prefix or is malformed.
func DecodeSliceKey(key []byte) (idx uint32, ok bool) {
	if len(key) != len(slicePrefix)+4 || string(key[:len(slicePrefix)]) != slicePrefix {
		return 0, false
	}
	return binary.BigEndian.Uint32(key[len(slicePrefix):]), true
}

// XattrKey encodes the key for extended attribute name.
func XattrKey(name string) []byte {
	return append([]byte(xattrPrefix), name...)
}

// IsXattrKey reports whether key is an extended-attribute key, returning
// the attribute name when it is.
func IsXattrKey(key []byte) (name string, ok bool) {
	if len(key) < len(xattrPrefix) || string(key[:len(xattrPrefix)]) != xattrPrefix {
		return "", false
	}
	return string(key[len(xattrPrefix):]), true
}

// DotEntry and DotDotEntry are the two directory entries every directory
// bucket is required to hold.
const (
	DotEntry    = "."
	DotDotEntry = ".."
)
