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

	"github.com/kvfs/kvfs/common"
)

// scratchArena hands out fixed, slice-sized buffers for the write path's
// copy-modify-write composition (spec C9). It is a fixed-capacity pool of
// pre-allocated, slice-sized buffers rather than a general byte-range
// buddy allocator: every buffer is the same size (the filesystem's slice
// size), so a free list is sufficient and avoids the bookkeeping a real
// buddy allocator needs for variable-size regions. Callers always acquire
// and release within the span of one write transaction.
type scratchArena struct {
	mu        sync.Mutex
	sliceSize uint32
	free      common.Queue[[]byte]
	capacity  int
	allocated int
}

// newScratchArena preconfigures a pool sized to hold capacityBytes worth
// of sliceSize-sized buffers, rounding down to a whole number of slices.
func newScratchArena(sliceSize uint32, capacityBytes int) *scratchArena {
	n := 0
	if sliceSize > 0 {
		n = capacityBytes / int(sliceSize)
	}
	a := &scratchArena{
		sliceSize: sliceSize,
		free:      common.NewLinkedListQueue[[]byte](),
		capacity:  n,
	}
	for i := 0; i < n; i++ {
		a.free.Push(make([]byte, sliceSize))
	}
	return a
}

// acquire returns a zeroed, sliceSize-length buffer. If the arena is
// exhausted it falls back to a transient heap allocation, per the spec's
// design note that this is an acceptable failover rather than blocking
// the write path.
func (a *scratchArena) acquire() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.free.IsEmpty() {
		buf := a.free.Pop()
		a.allocated++
		clear(buf)
		return buf
	}
	return make([]byte, a.sliceSize)
}

// release returns buf to the pool if it originated from it (same length,
// under capacity); otherwise it is left for the garbage collector.
func (a *scratchArena) release(buf []byte) {
	if uint32(len(buf)) != a.sliceSize {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.free.Len() < a.capacity {
		a.free.Push(buf)
	}
	if a.allocated > 0 {
		a.allocated--
	}
}
