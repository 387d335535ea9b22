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
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully parsed, validated configuration for a kvfs mount.
type Config struct {
	Store StoreConfig `yaml:"store"`

	FileSystem FileSystemConfig `yaml:"file-system"`

	Mount MountOptionsConfig `yaml:"mount"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig configures the embedded key-value store (C1/C3/C9).
type StoreConfig struct {
	// SliceSize is the fixed size, in bytes, of every "zdata:" value. Must be
	// one of AllowedSliceSizes.
	SliceSize uint32 `yaml:"slice-size"`

	// DiskSizeBytes is the free-space budget tracked by the superblock.
	DiskSizeBytes uint64 `yaml:"disk-size-bytes"`

	// ScratchArenaMiB sizes the scratch slice allocator (C9).
	ScratchArenaMiB int `yaml:"scratch-arena-mib"`
}

// FileSystemConfig configures the ownership applied at mkfs time (i.e. when
// the root inode is first created). FileMode and DirMode are validated but
// not applied: new inodes take their mode from the create request, and the
// root directory is always created with mode 0755.
type FileSystemConfig struct {
	Uid int `yaml:"uid"`
	Gid int `yaml:"gid"`

	FileMode Octal `yaml:"file-mode"`
	DirMode  Octal `yaml:"dir-mode"`
}

// MountOptionsConfig configures the FUSE mount itself.
type MountOptionsConfig struct {
	AutoUnmount bool     `yaml:"auto-unmount"`
	AllowOther  bool     `yaml:"allow-other"`
	DirectIO    bool     `yaml:"direct-io"`
	Suid        bool     `yaml:"suid"`
	Other       []string `yaml:"other"`
}

// LoggingConfig configures the slog-based logger.
type LoggingConfig struct {
	Severity string `yaml:"severity"`
	Format   string `yaml:"format"`
	Filepath string `yaml:"filepath"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	// Port the /metrics endpoint listens on. 0 disables it.
	Port int `yaml:"port"`
}

// BindFlags registers kvfs's command-line flags on flagSet and binds each one
// into viper under the dotted key matching the Config field it feeds,
// following the same pflag+viper wiring gcsfuse's generated cfg package uses.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.Uint32P("slice-size", "", DefaultSliceSize, "Fixed size in bytes of a file data slice. Must be one of 512, 1024, 4096, 8192, 32768.")
	if err = viper.BindPFlag("store.slice-size", flagSet.Lookup("slice-size")); err != nil {
		return err
	}

	flagSet.Uint64P("disk-size", "", DefaultDiskSizeBytes, "Total free-space budget tracked by the superblock, in bytes.")
	if err = viper.BindPFlag("store.disk-size-bytes", flagSet.Lookup("disk-size")); err != nil {
		return err
	}

	flagSet.IntP("scratch-arena-mib", "", DefaultScratchArenaMiB, "Size of the write-path scratch slice arena, in MiB.")
	if err = viper.BindPFlag("store.scratch-arena-mib", flagSet.Lookup("scratch-arena-mib")); err != nil {
		return err
	}

	flagSet.IntP("uid", "", -1, "UID that owns the root inode when the store is first created. -1 means the mounting process's UID.")
	if err = viper.BindPFlag("file-system.uid", flagSet.Lookup("uid")); err != nil {
		return err
	}

	flagSet.IntP("gid", "", -1, "GID that owns the root inode when the store is first created. -1 means the mounting process's GID.")
	if err = viper.BindPFlag("file-system.gid", flagSet.Lookup("gid")); err != nil {
		return err
	}

	flagSet.StringP("file-mode", "", "644", "Permission bits for regular files, in octal. Validated only; not applied to any inode.")
	if err = viper.BindPFlag("file-system.file-mode", flagSet.Lookup("file-mode")); err != nil {
		return err
	}

	flagSet.StringP("dir-mode", "", "755", "Permission bits for directories, in octal. Validated only; the root directory is created with mode 0755.")
	if err = viper.BindPFlag("file-system.dir-mode", flagSet.Lookup("dir-mode")); err != nil {
		return err
	}

	flagSet.BoolP("auto-unmount", "", false, "Attempt to unmount the filesystem when the process exits or loses its mount.")
	if err = viper.BindPFlag("mount.auto-unmount", flagSet.Lookup("auto-unmount")); err != nil {
		return err
	}

	flagSet.BoolP("allow-other", "", false, "Allow users other than the mounting user to access the filesystem.")
	if err = viper.BindPFlag("mount.allow-other", flagSet.Lookup("allow-other")); err != nil {
		return err
	}

	flagSet.BoolP("direct-io", "", false, "Bypass the kernel page cache for file reads and writes.")
	if err = viper.BindPFlag("mount.direct-io", flagSet.Lookup("direct-io")); err != nil {
		return err
	}

	flagSet.BoolP("suid", "", false, "Honor SUID/SGID bits on this mount (normally cleared by the kernel's nosuid mount option).")
	if err = viper.BindPFlag("mount.suid", flagSet.Lookup("suid")); err != nil {
		return err
	}

	flagSet.StringSliceP("other", "o", nil, "Additional raw FUSE mount options, forwarded verbatim. May be repeated.")
	if err = viper.BindPFlag("mount.other", flagSet.Lookup("other")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", INFO, "Minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log output format: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to write logs to. Empty means stderr.")
	if err = viper.BindPFlag("logging.filepath", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.IntP("metrics-port", "", 0, "Port to serve Prometheus /metrics on. 0 disables the endpoint.")
	if err = viper.BindPFlag("metrics.port", flagSet.Lookup("metrics-port")); err != nil {
		return err
	}

	return nil
}
