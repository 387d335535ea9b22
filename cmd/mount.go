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
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/kvfs/kvfs/cfg"
	"github.com/kvfs/kvfs/common"
	"github.com/kvfs/kvfs/internal/fuseadapter"
	"github.com/kvfs/kvfs/internal/kvfs"
	"github.com/kvfs/kvfs/internal/logger"
	"github.com/kvfs/kvfs/internal/metrics"
	"github.com/kvfs/kvfs/internal/store"
)

// storeOpenTimeout bounds how long Open waits on bbolt's file lock before
// giving up, in case another process already has the database mounted.
const storeOpenTimeout = 5 * time.Second

// runMount opens the backing store, builds the in-process filesystem and
// its FUSE adapter, and serves the mount until interrupted.
func runMount(ctx context.Context, dbPath, mountPoint string, c *cfg.Config) error {
	if err := logger.Init(c.Logging); err != nil {
		return err
	}

	st, err := store.Open(dbPath, storeOpenTimeout)
	if err != nil {
		return err
	}

	rootUID, rootGID := resolveRootOwnership(c)

	fs, err := kvfs.New(st, kvfs.Options{
		SliceSize:       c.Store.SliceSize,
		ScratchArenaMiB: c.Store.ScratchArenaMiB,
		DiskSizeBytes:   c.Store.DiskSizeBytes,
		RootUID:         rootUID,
		RootGID:         rootGID,
	})
	if err != nil {
		_ = st.Close()
		return err
	}

	adapter := fuseadapter.New(fs, c.Mount.DirectIO)
	server, err := fuse.NewServer(adapter, mountPoint, mountOptions(c, dbPath))
	if err != nil {
		_ = fs.Close()
		return err
	}

	if c.Metrics.Port != 0 {
		metricsSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", c.Metrics.Port),
			Handler: metrics.Handler(),
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("metrics: server stopped: %v", err)
			}
		}()
		defer metricsSrv.Close()
	}

	shutdown := common.JoinShutdownFunc(
		func(context.Context) error { return server.Unmount() },
		func(context.Context) error { return fs.Close() },
	)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		logger.Infof("mount: received shutdown signal, unmounting %s", mountPoint)
		if err := shutdown(context.Background()); err != nil {
			logger.Errorf("mount: shutdown: %v", err)
		}
	}()

	logger.Infof("mount: serving %s at %s (slice-size=%d)", dbPath, mountPoint, c.Store.SliceSize)
	server.Wait()
	return nil
}

// resolveRootOwnership applies the CLI's -1 "use the mounting process's
// own id" sentinel for --uid/--gid.
func resolveRootOwnership(c *cfg.Config) (uid, gid uint32) {
	uid = uint32(os.Getuid())
	gid = uint32(os.Getgid())
	if c.FileSystem.Uid >= 0 {
		uid = uint32(c.FileSystem.Uid)
	}
	if c.FileSystem.Gid >= 0 {
		gid = uint32(c.FileSystem.Gid)
	}
	return uid, gid
}

func mountOptions(c *cfg.Config, dbPath string) *fuse.MountOptions {
	opts := &fuse.MountOptions{
		AllowOther:           c.Mount.AllowOther,
		FsName:               dbPath,
		Name:                 "kvfs",
		DisableXAttrs:        false,
		EnableLocks:          false,
		IgnoreSecurityLabels: true,
	}

	var raw []string
	if c.Mount.AutoUnmount {
		raw = append(raw, "auto_unmount")
	}
	if c.Mount.Suid {
		raw = append(raw, "suid")
	}
	raw = append(raw, c.Mount.Other...)
	opts.Options = raw

	return opts
}
