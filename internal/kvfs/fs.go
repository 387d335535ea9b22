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

// Package kvfs is the in-process translation layer between POSIX
// filesystem semantics and the underlying key-value store. It is driven
// both by the FUSE adapter (internal/fuseadapter) and directly by tests.
package kvfs

import (
	"github.com/google/uuid"

	"github.com/kvfs/kvfs/cfg"
	"github.com/kvfs/kvfs/clock"
	"github.com/kvfs/kvfs/internal/store"
)

// FileSystem is the process-wide translation layer: one store handle, one
// superblock, one scratch arena, one readdir continuation table. Every
// exported method here is safe for concurrent use by any number of FUSE
// worker threads; the store's own transactional discipline (single
// writer, consistent-snapshot readers) is the only serialization point.
type FileSystem struct {
	store     *store.Store
	sb        *Superblock
	scratch   *scratchArena
	dirTable  *continuationTable
	clock     clock.Clock
	sliceSize uint32

	// Generation is a per-mount-session identifier, logged by the FUSE
	// adapter's Init to distinguish log lines across remounts of the same
	// database file.
	Generation uuid.UUID
}

// Options configures a new FileSystem over an already-open Store.
type Options struct {
	SliceSize       uint32
	ScratchArenaMiB int
	DiskSizeBytes   uint64
	RootUID         uint32
	RootGID         uint32
	Clock           clock.Clock
}

// New opens or initializes the superblock on st and returns a ready
// FileSystem. If the database is fresh, inode 1 is created as the root
// directory owned by RootUID/RootGID.
func New(st *store.Store, opts Options) (*FileSystem, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	sb, err := openSuperblock(st, cfg.DefaultMagic, opts.SliceSize, opts.DiskSizeBytes, opts.RootUID, opts.RootGID, clk.Now())
	if err != nil {
		return nil, err
	}

	arenaBytes := opts.ScratchArenaMiB << 20
	if arenaBytes <= 0 {
		arenaBytes = int(cfg.DefaultScratchArenaMiB) << 20
	}

	return &FileSystem{
		store:      st,
		sb:         sb,
		scratch:    newScratchArena(sb.BlockSize, arenaBytes),
		dirTable:   newContinuationTable(),
		clock:      clk,
		sliceSize:  sb.BlockSize,
		Generation: uuid.New(),
	}, nil
}

// Close persists the superblock counters and closes the backing store.
func (fs *FileSystem) Close() error {
	err := fs.store.Update(fs.sb.persist)
	if err != nil {
		return wrapErr(KindIo, "persisting superblock on close", err)
	}
	return fs.store.Close()
}

// StatFS reports aggregate filesystem statistics (spec C3 statfs).
func (fs *FileSystem) StatFS() StatFS {
	return fs.sb.Stat()
}

// Access checks whether callerUID/callerGID holds every bit in mask
// against ino (the FUSE `access` upcall).
func (fs *FileSystem) Access(ino uint64, callerUID, callerGID uint32, mask AccessMask) error {
	attr, err := fs.GetAttr(ino)
	if err != nil {
		return err
	}
	if !CheckAccess(attr.Uid, attr.Gid, attr.Mode, callerUID, callerGID, mask) {
		return newErr(KindAccessError, "access check failed")
	}
	return nil
}
