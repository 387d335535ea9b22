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

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/kvfs/kvfs/internal/store"
)

// treeCmd is a debug subcommand with no on-disk analogue of its own: it
// walks every bucket and key in the store and prints them indented by
// nesting depth, mirroring dbfs2's `show_dbfs`/`show_bucket` dump.
var treeCmd = &cobra.Command{
	Use:   "tree <db-path>",
	Short: "Print the bucket/key tree of a kvfs database file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTree(args[0])
	},
}

func runTree(dbPath string) error {
	st, err := store.Open(dbPath, time.Second)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.DB().View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			fmt.Printf("BUCKET:%s\n", name)
			showBucket(1, b)
			return nil
		})
	})
}

func showBucket(depth int, b *bbolt.Bucket) {
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if v == nil {
			fmt.Printf("%*sBUCKET:%q\n", depth*2, "", k)
			showBucket(depth+1, b.Bucket(k))
			continue
		}
		fmt.Printf("%*s%s:%q\n", depth*2, "", describeKey(k), v)
	}
}

// describeKey renders a raw key in the same terms the rest of the
// codebase uses for it, falling back to a quoted literal for anything
// that isn't a recognized scalar/dirent/slice/xattr key shape.
func describeKey(k []byte) string {
	if name, ok := store.IsDirentKey(k); ok {
		return "data:" + name
	}
	if idx, ok := store.DecodeSliceKey(k); ok {
		return fmt.Sprintf("zdata:%d", idx)
	}
	if name, ok := store.IsXattrKey(k); ok {
		return "attr:" + name
	}
	return string(k)
}
