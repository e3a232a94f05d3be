// Package testutil holds helpers shared by the build pipeline tests.
package testutil

import (
	"os"
	"path/filepath"
	"sort"

	qt "github.com/frankban/quicktest"
	"github.com/rogpeppe/go-internal/txtar"
	"github.com/rs/zerolog"
)

// Logger returns a logger writing to the test log.
func Logger(c *qt.C) zerolog.Logger {
	return zerolog.New(zerolog.NewConsoleWriter(zerolog.ConsoleTestWriter(c)))
}

// WriteTxtar writes the files in the txtar archive into dir.
func WriteTxtar(c *qt.C, dir, archive string) {
	c.Helper()
	err := txtar.Write(txtar.Parse([]byte(archive)), dir)
	c.Assert(err, qt.IsNil)
}

// TxtarDir writes the txtar archive to a fresh temporary directory
// and returns its path.
func TxtarDir(c *qt.C, archive string) string {
	c.Helper()
	dir := c.TempDir()
	WriteTxtar(c, dir, archive)
	return dir
}

// Files lists the regular files below dir as sorted slash-separated
// relative paths.
func Files(c *qt.C, dir string) []string {
	c.Helper()
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	c.Assert(err, qt.IsNil)
	sort.Strings(files)
	return files
}

// TopDirs lists the directories directly below dir.
func TopDirs(c *qt.C, dir string) []string {
	c.Helper()
	entries, err := os.ReadDir(dir)
	c.Assert(err, qt.IsNil)
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs
}
