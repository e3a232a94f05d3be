//go:build !windows
// +build !windows

// Package xos provides cross-platform helper functions.
package xos

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/renameio/v2"
)

// WriteFile writes the given file with the given data and permissions.
//
// Where possible (i.e. not on windows) it will use an atomic write process
// which removes the possibility of a partial file being written during a crash
// or error.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	return errors.WithStack(renameio.WriteFile(filename, data, perm))
}

// Symlink replaces newname with a symbolic link to oldname.
func Symlink(oldname, newname string) error {
	return errors.WithStack(renameio.Symlink(oldname, newname))
}
