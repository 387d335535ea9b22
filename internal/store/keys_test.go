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
	"bytes"
	"testing"
	"time"
)

func TestInodeKeyRoundTrip(t *testing.T) {
	for _, ino := range []uint64{0, 1, 2, 1 << 40} {
		got, err := DecodeInodeKey(InodeKey(ino))
		if err != nil {
			t.Fatalf("DecodeInodeKey: %v", err)
		}
		if got != ino {
			t.Errorf("InodeKey round trip: got %d want %d", got, ino)
		}
	}
}

func TestDirentKeyRoundTrip(t *testing.T) {
	name, ok := IsDirentKey(DirentKey("hello.txt"))
	if !ok || name != "hello.txt" {
		t.Errorf("IsDirentKey: got (%q, %v) want (\"hello.txt\", true)", name, ok)
	}

	if _, ok := IsDirentKey(XattrKey("user.x")); ok {
		t.Errorf("IsDirentKey should reject a non-dirent key")
	}
}

func TestSliceKeyOrderingMatchesIndexOrder(t *testing.T) {
	k0 := SliceKey(0)
	k1 := SliceKey(1)
	k256 := SliceKey(256)

	if bytes.Compare(k0, k1) >= 0 {
		t.Errorf("SliceKey(0) should sort before SliceKey(1)")
	}
	if bytes.Compare(k1, k256) >= 0 {
		t.Errorf("SliceKey(1) should sort before SliceKey(256)")
	}
}

func TestSliceKeyRoundTrip(t *testing.T) {
	idx, ok := DecodeSliceKey(SliceKey(1234))
	if !ok || idx != 1234 {
		t.Errorf("DecodeSliceKey: got (%d, %v) want (1234, true)", idx, ok)
	}

	if _, ok := DecodeSliceKey(DirentKey("x")); ok {
		t.Errorf("DecodeSliceKey should reject a non-slice key")
	}
}

func TestXattrKeyRoundTrip(t *testing.T) {
	name, ok := IsXattrKey(XattrKey("user.checksum"))
	if !ok || name != "user.checksum" {
		t.Errorf("IsXattrKey: got (%q, %v) want (\"user.checksum\", true)", name, ok)
	}
}

func TestTimeEncodingRoundTrip(t *testing.T) {
	want := time.Unix(1_700_000_000, 123000).UTC()
	got := DecodeTime(EncodeTime(want))
	if !got.Equal(want) {
		t.Errorf("time round trip: got %v want %v", got, want)
	}
}

func TestScalarEncodingRoundTrip(t *testing.T) {
	if DecodeU16(EncodeU16(0o100644)) != 0o100644&0xFFFF {
		t.Errorf("u16 round trip failed")
	}
	if DecodeU32(EncodeU32(4096)) != 4096 {
		t.Errorf("u32 round trip failed")
	}
	if DecodeU64(EncodeU64(1<<40)) != 1<<40 {
		t.Errorf("u64 round trip failed")
	}
}
