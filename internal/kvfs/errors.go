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
	"errors"

	"golang.org/x/sys/unix"
)

// Kind is the symbolic error taxonomy every operation in this package
// reports through, independent of any particular transport's errno
// encoding.
type Kind int

const (
	KindOther Kind = iota
	KindPermissionDenied
	KindNotFound
	KindAccessError
	KindIo
	KindFileExists
	KindInvalidArgument
	KindNoSpace
	KindRangeError
	KindNameTooLong
	KindNoSys
	KindNotEmpty
	KindNoData
	KindNotSupported
)

var kindNames = map[Kind]string{
	KindOther:            "Other",
	KindPermissionDenied: "PermissionDenied",
	KindNotFound:         "NotFound",
	KindAccessError:      "AccessError",
	KindIo:               "Io",
	KindFileExists:       "FileExists",
	KindInvalidArgument:  "InvalidArgument",
	KindNoSpace:          "NoSpace",
	KindRangeError:       "RangeError",
	KindNameTooLong:      "NameTooLong",
	KindNoSys:            "NoSys",
	KindNotEmpty:         "NotEmpty",
	KindNoData:           "NoData",
	KindNotSupported:     "NotSupported",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Other"
}

// Errno is the POSIX errno this symbolic kind maps to at the FUSE
// boundary.
func (k Kind) Errno() unix.Errno {
	switch k {
	case KindPermissionDenied:
		return unix.EPERM
	case KindNotFound:
		return unix.ENOENT
	case KindAccessError:
		return unix.EACCES
	case KindIo:
		return unix.EIO
	case KindFileExists:
		return unix.EEXIST
	case KindInvalidArgument:
		return unix.EINVAL
	case KindNoSpace:
		return unix.ENOSPC
	case KindRangeError:
		return unix.ERANGE
	case KindNameTooLong:
		return unix.ENAMETOOLONG
	case KindNoSys:
		return unix.ENOSYS
	case KindNotEmpty:
		return unix.ENOTEMPTY
	case KindNoData:
		return unix.ENODATA
	case KindNotSupported:
		return unix.EOPNOTSUPP
	default:
		return unix.EIO
	}
}

// Error is the concrete error type returned by every operation in this
// package. The FUSE adapter recovers the Kind via errors.As and maps it
// to the reply errno; logs record the symbolic Kind name alongside msg.
type Error struct {
	Kind Kind
	Msg  string
	err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.err }

// Is lets errors.Is(err, kvfs.ErrNotFound) match any *Error of the same
// Kind, regardless of message text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// newErr builds an *Error of the given kind.
func newErr(k Kind, msg string) *Error {
	return &Error{Kind: k, Msg: msg}
}

func wrapErr(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Msg: msg, err: cause}
}

// ErrNotFound etc. are sentinel instances for errors.Is comparisons against
// callers that don't need the message text.
var (
	ErrNotFound         = newErr(KindNotFound, "")
	ErrPermissionDenied = newErr(KindPermissionDenied, "")
	ErrAccessError      = newErr(KindAccessError, "")
	ErrFileExists       = newErr(KindFileExists, "")
	ErrInvalidArgument  = newErr(KindInvalidArgument, "")
	ErrNoSpace          = newErr(KindNoSpace, "")
	ErrRangeError       = newErr(KindRangeError, "")
	ErrNameTooLong      = newErr(KindNameTooLong, "")
	ErrNotEmpty         = newErr(KindNotEmpty, "")
	ErrNoData           = newErr(KindNoData, "")
	ErrNotSupported     = newErr(KindNotSupported, "")
	ErrIo               = newErr(KindIo, "")
)

// KindOf extracts the symbolic Kind from err, defaulting to KindIo for any
// error that didn't originate in this package (e.g. an unexpected bbolt
// failure).
func KindOf(err error) Kind {
	if err == nil {
		return KindOther
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIo
}
