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

import (
	"fmt"
	"slices"
)

// Validate checks a fully-populated Config for internally inconsistent or
// out-of-range values, before the store is opened or the filesystem mounted.
func Validate(c *Config) error {
	if !slices.Contains(AllowedSliceSizes, c.Store.SliceSize) {
		return fmt.Errorf("slice-size %d is not one of %v", c.Store.SliceSize, AllowedSliceSizes)
	}

	if c.Store.DiskSizeBytes == 0 {
		return fmt.Errorf("disk-size must be greater than zero")
	}

	if c.Store.ScratchArenaMiB <= 0 {
		return fmt.Errorf("scratch-arena-mib must be greater than zero")
	}

	if c.FileSystem.FileMode&^0o7777 != 0 {
		return fmt.Errorf("file-mode %o has bits set outside of 07777", c.FileSystem.FileMode)
	}

	if c.FileSystem.DirMode&^0o7777 != 0 {
		return fmt.Errorf("dir-mode %o has bits set outside of 07777", c.FileSystem.DirMode)
	}

	switch c.Logging.Severity {
	case TRACE, DEBUG, INFO, WARNING, ERROR, OFF:
	default:
		return fmt.Errorf("log-severity %q is not one of TRACE, DEBUG, INFO, WARNING, ERROR, OFF", c.Logging.Severity)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log-format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}
