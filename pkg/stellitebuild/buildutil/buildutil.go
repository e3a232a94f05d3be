// Package buildutil holds filesystem helpers shared by the build stages.
package buildutil

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
)

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// RecreateDir removes dir and everything in it, then creates it empty.
func RecreateDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "remove %s", dir)
	}
	return errors.Wrapf(os.MkdirAll(dir, 0755), "create %s", dir)
}

// CopyTree copies the contents of src into dst, creating directories as
// needed and overwriting files that already exist. Symlinks are recreated,
// not followed.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.WithStack(err)
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return errors.WithStack(os.MkdirAll(target, 0755))
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return errors.WithStack(err)
			}
			_ = os.Remove(target)
			return errors.WithStack(os.Symlink(link, target))
		default:
			return CopyFile(path, target)
		}
	})
}

// CopyFile copies src to dst, preserving the file mode.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() { _ = in.Close() }()

	fi, err := in.Stat()
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.WithStack(err)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "copy %s", src)
	}
	return errors.WithStack(out.Close())
}

// CopyInto copies each file in files into dir, keeping base names.
func CopyInto(dir string, files ...string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.WithStack(err)
	}
	for _, f := range files {
		if err := CopyFile(f, filepath.Join(dir, filepath.Base(f))); err != nil {
			return err
		}
	}
	return nil
}

// TarGzip creates tarFile from the contents of srcDirectory.
func TarGzip(ctx context.Context, r cmdexec.Runner, srcDirectory string, tarFile string) error {
	cmd := cmdexec.Command("", "tar", "-czf", tarFile, "-C", srcDirectory, ".")
	return errors.Wrap(r.Run(ctx, cmd), "failed to create tar.gz")
}
