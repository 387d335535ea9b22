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

package cfg

const (
	// Logging-level constants.

	TRACE   string = "TRACE"
	DEBUG   string = "DEBUG"
	INFO    string = "INFO"
	WARNING string = "WARNING"
	ERROR   string = "ERROR"
	OFF     string = "OFF"
)

const (
	// DefaultMagic is the superblock magic value inherited from the
	// original dbfs2 mkfs routine.
	DefaultMagic uint32 = 1111

	// DefaultDiskSizeBytes is the free-space budget a freshly created store
	// starts with, matching the 16MiB default of the original mkfs routine.
	DefaultDiskSizeBytes uint64 = 16 << 20

	// DefaultSliceSize is the size, in bytes, of one "zdata:" value.
	DefaultSliceSize uint32 = 4096

	// DefaultScratchArenaMiB is the size of the scratch slice arena (C9).
	DefaultScratchArenaMiB = 8

	// MaxNameLen is the maximum length, in bytes, of a path component.
	MaxNameLen = 255
)

// AllowedSliceSizes lists the slice sizes the on-disk format supports.
var AllowedSliceSizes = []uint32{512, 1024, 4096, 8192, 32768}
