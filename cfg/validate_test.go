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

import "testing"

func validConfig() *Config {
	return &Config{
		Store: StoreConfig{
			SliceSize:       DefaultSliceSize,
			DiskSizeBytes:   DefaultDiskSizeBytes,
			ScratchArenaMiB: DefaultScratchArenaMiB,
		},
		FileSystem: FileSystemConfig{
			FileMode: 0o644,
			DirMode:  0o755,
		},
		Logging: LoggingConfig{
			Severity: INFO,
			Format:   "text",
		},
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_RejectsBadSliceSize(t *testing.T) {
	c := validConfig()
	c.Store.SliceSize = 100
	if err := Validate(c); err == nil {
		t.Fatal("expected an error for an unsupported slice size")
	}
}

func TestValidate_RejectsZeroDiskSize(t *testing.T) {
	c := validConfig()
	c.Store.DiskSizeBytes = 0
	if err := Validate(c); err == nil {
		t.Fatal("expected an error for a zero disk size")
	}
}

func TestValidate_RejectsBadSeverity(t *testing.T) {
	c := validConfig()
	c.Logging.Severity = "LOUD"
	if err := Validate(c); err == nil {
		t.Fatal("expected an error for an invalid log severity")
	}
}

func TestValidate_RejectsModeOutOfRange(t *testing.T) {
	c := validConfig()
	c.FileSystem.FileMode = 0o17777
	if err := Validate(c); err == nil {
		t.Fatal("expected an error for a file mode with bits outside 07777")
	}
}

func TestValidate_RejectsBadFormat(t *testing.T) {
	c := validConfig()
	c.Logging.Format = "xml"
	if err := Validate(c); err == nil {
		t.Fatal("expected an error for an invalid log format")
	}
}
