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
	"bytes"

	"go.etcd.io/bbolt"

	"github.com/kvfs/kvfs/internal/store"
)

// Read fills buf from ino's data starting at offset, returning the
// number of bytes produced. Slices never written (sparse holes) read as
// zero; reading beyond size produces nothing.
func (fs *FileSystem) Read(ino uint64, offset uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	var n int
	err := fs.store.View(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		size := getSize(b)
		if offset >= size {
			return nil
		}

		S := uint64(fs.sliceSize)
		toRead := uint64(len(buf))
		if offset+toRead > size {
			toRead = size - offset
		}

		startIdx := uint32(offset / S)
		endIdx := uint32((offset+toRead)/S + 1)

		c := b.Cursor()
		lo, hi := store.SliceRangeBounds(startIdx, endIdx)
		nextWant := startIdx

		emitZeros := func(fromIdx, toIdx uint32) {
			for idx := fromIdx; idx < toIdx; idx++ {
				n += fs.copySliceIntoBuf(buf, nil, idx, offset, size, S, n)
			}
		}

		for k, v := c.Seek(lo); k != nil && bytes.Compare(k, hi) < 0; k, v = c.Next() {
			idx, ok := store.DecodeSliceKey(k)
			if !ok {
				break
			}
			if idx > nextWant {
				emitZeros(nextWant, idx)
			}
			n += fs.copySliceIntoBuf(buf, v, idx, offset, size, S, n)
			nextWant = idx + 1
			if uint64(n) >= toRead {
				return nil
			}
		}
		if uint64(n) < toRead {
			lastIdx := uint32((offset + toRead - 1) / S)
			emitZeros(nextWant, lastIdx+1)
		}
		return nil
	})
	if uint64(n) > uint64(len(buf)) {
		n = len(buf)
	}
	return n, err
}

// copySliceIntoBuf copies the portion of one S-byte slice (sliceData, or
// nil for a sparse hole) covering [offset, offset+len(buf)) that overlaps
// slice index idx, appending it at buf[written:]. It returns the number
// of bytes written.
func (fs *FileSystem) copySliceIntoBuf(buf []byte, sliceData []byte, idx uint32, offset, size, S uint64, written int) int {
	sliceStart := uint64(idx) * S
	sliceEnd := sliceStart + S
	if sliceEnd > size {
		sliceEnd = size
	}
	if sliceEnd <= sliceStart {
		return 0
	}

	reqEnd := offset + uint64(len(buf))
	lo := sliceStart
	if lo < offset {
		lo = offset
	}
	hi := sliceEnd
	if hi > reqEnd {
		hi = reqEnd
	}
	if hi <= lo {
		return 0
	}

	n := int(hi - lo)
	dst := buf[written : written+n]
	if sliceData == nil {
		clear(dst)
		return n
	}
	innerStart := lo - sliceStart
	copy(dst, sliceData[innerStart:innerStart+uint64(n)])
	return n
}

// Write stores buf at offset in ino, composing partial slices via the
// scratch arena, and returns the number of bytes written.
func (fs *FileSystem) Write(ino uint64, offset uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	now := fs.clock.Now()
	var scratchBufs [][]byte
	defer func() {
		for _, s := range scratchBufs {
			fs.scratch.release(s)
		}
	}()

	var written int
	err := fs.store.Update(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		size := getSize(b)
		S := uint64(fs.sliceSize)

		remaining := uint64(len(buf))
		cur := offset

		for remaining > 0 {
			idx := uint32(cur / S)
			inner := cur % S
			chunk := S - inner
			if chunk > remaining {
				chunk = remaining
			}

			key := store.SliceKey(idx)
			if chunk == S && inner == 0 {
				data := append([]byte(nil), buf[written:written+int(chunk)]...)
				if err := b.Put(key, data); err != nil {
					return err
				}
			} else {
				scratch := fs.scratch.acquire()
				scratchBufs = append(scratchBufs, scratch)
				if prior := b.Get(key); prior != nil {
					copy(scratch, prior)
				}
				copy(scratch[inner:inner+chunk], buf[written:written+int(chunk)])
				stored := append([]byte(nil), scratch...)
				if err := b.Put(key, stored); err != nil {
					return err
				}
			}

			written += int(chunk)
			cur += chunk
			remaining -= chunk
		}

		newEnd := offset + uint64(written)
		if newEnd > size {
			if err := fs.sb.chargeDiskSize(newEnd - size); err != nil {
				return err
			}
			if err := setSize(b, newEnd); err != nil {
				return err
			}
		}
		return touchMtimeCtime(b, now)
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// CopyFileRange copies length bytes from srcIno at srcOffset to dstIno at
// dstOffset, clamping to the source's remaining size.
func (fs *FileSystem) CopyFileRange(srcIno uint64, srcOffset uint64, dstIno uint64, dstOffset uint64, length uint64) (int, error) {
	srcAttr, err := fs.GetAttr(srcIno)
	if err != nil {
		return 0, err
	}
	if srcOffset >= srcAttr.Size {
		return 0, nil
	}
	if srcOffset+length > srcAttr.Size {
		length = srcAttr.Size - srcOffset
	}
	if length == 0 {
		return 0, nil
	}

	buf := make([]byte, length)
	n, err := fs.Read(srcIno, srcOffset, buf)
	if err != nil {
		return 0, err
	}
	return fs.Write(dstIno, dstOffset, buf[:n])
}

// Fallocate accounts byte growth against the disk-size budget for the
// range [offset, offset+length), without materializing slices. Unless
// keepSize is set, it extends the file's size when the range exceeds it.
func (fs *FileSystem) Fallocate(ino uint64, offset, length uint64, keepSize bool) (Attr, error) {
	var result Attr
	now := fs.clock.Now()
	err := fs.store.Update(func(tx *bbolt.Tx) error {
		b, err := bucketFor(tx, ino)
		if err != nil {
			return err
		}
		size := getSize(b)
		newEnd := offset + length

		if newEnd > size {
			if err := fs.sb.chargeDiskSize(newEnd - size); err != nil {
				return err
			}
			if !keepSize {
				if err := setSize(b, newEnd); err != nil {
					return err
				}
			}
		}
		if err := touchMtimeCtime(b, now); err != nil {
			return err
		}
		result, err = readAttr(b, ino)
		return err
	})
	return result, err
}
