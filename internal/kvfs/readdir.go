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
	"sync"

	"go.etcd.io/bbolt"

	"github.com/kvfs/kvfs/internal/store"
)

// dirCursor is the saved position of an in-progress directory iteration:
// the name and position of the entry at which emit last returned false.
type dirCursor struct {
	lastOffset uint64
	lastName   string
}

// continuationTable is the process-wide, per-inode readdir resumption
// map (spec C8). FUSE readdir replies are bounded by the caller's buffer
// size, so a multi-call iteration needs external bookkeeping between
// calls since the store's cursor itself cannot outlive one transaction.
type continuationTable struct {
	mu      sync.RWMutex
	entries map[uint64]dirCursor
}

func newContinuationTable() *continuationTable {
	return &continuationTable{entries: make(map[uint64]dirCursor)}
}

func (t *continuationTable) get(ino uint64) (dirCursor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.entries[ino]
	return c, ok
}

func (t *continuationTable) set(ino uint64, c dirCursor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[ino] = c
}

func (t *continuationTable) remove(ino uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, ino)
}

// DirEntry is one record yielded by ReadDir.
type DirEntry struct {
	Name   string
	Ino    uint64
	Mode   uint16
	Offset uint64
}

// ReadDir iterates ino's directory entries starting after offset,
// calling emit for each entry whose position (DirEntry.Offset, counted
// from 0 in key order) is at least offset. emit returns false to stop
// early (the caller's reply buffer is full); ReadDir then saves that
// entry's name and position in the continuation table, so a later call
// resumes at that entry when offset equals its position and just after it
// when offset is greater. Iterating to completion clears any saved entry.
func (fs *FileSystem) ReadDir(ino uint64, offset uint64, emit func(DirEntry) bool) error {
	if offset == 0 {
		fs.dirTable.remove(ino)
	}

	return fs.store.View(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}

		c := b.Cursor()
		var k, v []byte
		var pos uint64

		if cursor, ok := fs.dirTable.get(ino); ok && offset != 0 && offset >= cursor.lastOffset {
			k, v = c.Seek(store.DirentKey(cursor.lastName))
			pos = cursor.lastOffset
		} else {
			k, v = c.First()
		}

		for ; k != nil; k, v = c.Next() {
			name, ok := store.IsDirentKey(k)
			if !ok {
				continue
			}
			if pos < offset {
				pos++
				continue
			}
			childIno, err := parseUint(string(v))
			if err != nil {
				return err
			}
			childBucket, err := bucketFor(tx, childIno)
			var mode uint16
			if err == nil {
				mode = getMode(childBucket)
			}

			entry := DirEntry{Name: name, Ino: childIno, Mode: mode, Offset: pos}
			if !emit(entry) {
				fs.dirTable.set(ino, dirCursor{lastOffset: pos, lastName: name})
				return nil
			}
			pos++
		}

		fs.dirTable.remove(ino)
		return nil
	})
}

// ReleaseDir clears any saved continuation state for ino (spec C8:
// releasedir removes the table entry).
func (fs *FileSystem) ReleaseDir(ino uint64) {
	fs.dirTable.remove(ino)
}
