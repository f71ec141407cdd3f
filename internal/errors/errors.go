// Package errors re-exports github.com/cockroachdb/errors and adds the
// storage error classification used across notification-manager.
//
// A storage error means a required resource (the active-users file, the
// contact book, the watched directory) could not be read or written. It is
// fatal to the operation that hit it and is never retried internally.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New      = crdb.New
	Newf     = crdb.Newf
	Wrap     = crdb.Wrap
	Wrapf    = crdb.Wrapf
	WithHint = crdb.WithHint
	Mark     = crdb.Mark
)

var (
	Is           = crdb.Is
	As           = crdb.As
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// ErrStorage marks errors caused by an inaccessible backing file or directory.
var ErrStorage = crdb.New("storage error")

// Storage wraps err with a message and marks it as a storage error.
// A nil err yields nil.
func Storage(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.Wrapf(err, format, args...), ErrStorage)
}

// IsStorage reports whether err, or anything it wraps, was marked by Storage.
func IsStorage(err error) bool {
	return crdb.Is(err, ErrStorage)
}
