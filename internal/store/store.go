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

package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Store is the process-wide handle onto the backing bbolt database. Every
// filesystem object lives as a key or nested bucket inside this one file.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the database file at path. The file
// is memory-mapped by bbolt; timeout bounds how long Open waits to acquire
// the exclusive file lock held by another process with the same file open.
func Open(path string, timeout time.Duration) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the backing file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn inside a single read-write transaction; fn's error, if
// any, aborts the transaction.
func (s *Store) Update(fn func(tx *bbolt.Tx) error) error {
	return s.db.Update(fn)
}

// View runs fn inside a read-only transaction against a consistent
// snapshot.
func (s *Store) View(fn func(tx *bbolt.Tx) error) error {
	return s.db.View(fn)
}

// DB exposes the underlying handle for callers (the `tree` debug
// subcommand) that need direct bucket access beyond Update/View.
func (s *Store) DB() *bbolt.DB {
	return s.db
}

// Path returns the backing file's path.
func (s *Store) Path() string {
	return s.db.Path()
}

// --- scalar value encodings shared by every per-inode field ---

// EncodeU16 / DecodeU16 encode the `mode` scalar.
func EncodeU16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func DecodeU16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

// EncodeU32 / DecodeU32 encode `hard_links`, `uid`, `gid`, `block_size`,
// `dev` and `blk_size`.
func EncodeU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func DecodeU32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// EncodeU64 / DecodeU64 encode `size`, `continue_number` and `disk_size`.
func EncodeU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func DecodeU64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// EncodeTime encodes atime/mtime/ctime as 12 bytes: an 8-byte big-endian
// Unix-seconds field followed by a 4-byte big-endian nanoseconds field.
func EncodeTime(t time.Time) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint64(b[0:8], uint64(t.Unix()))
	binary.BigEndian.PutUint32(b[8:12], uint32(t.Nanosecond()))
	return b
}

// DecodeTime is the inverse of EncodeTime.
func DecodeTime(b []byte) time.Time {
	if len(b) != 12 {
		return time.Time{}
	}
	sec := int64(binary.BigEndian.Uint64(b[0:8]))
	nsec := int64(binary.BigEndian.Uint32(b[8:12]))
	return time.Unix(sec, nsec).UTC()
}
