//go:build windows
// +build windows

package xos

import (
	"os"

	"github.com/cockroachdb/errors"
)

// WriteFile writes the given file with the given data and permissions.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	return errors.WithStack(os.WriteFile(filename, data, perm))
}

// Symlink replaces newname with a symbolic link to oldname.
func Symlink(oldname, newname string) error {
	if err := os.RemoveAll(newname); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Symlink(oldname, newname))
}
