package depsync

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/stellitebuild/buildutil"
	"github.com/line/stellite/pkg/stellitebuild/platform"
	"github.com/line/stellite/pkg/xos"
)

// SyncWorkspace copies the platform's dependency directories from the
// checkout into the build workspace, then overlays the project files.
// Directories already present in the workspace are not copied again.
func (s *Synchronizer) SyncWorkspace(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		return err
	}
	src := s.src()
	ws := s.Cfg.WorkspaceSrcDir(s.Platform)
	if err := os.MkdirAll(ws, 0755); err != nil {
		return errors.WithStack(err)
	}

	for _, dir := range platform.DependencyDirectoriesFor(s.Platform) {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := filepath.FromSlash(dir)
		dst := filepath.Join(ws, rel)
		if buildutil.Exists(dst) {
			continue
		}
		from := filepath.Join(src, rel)
		if !buildutil.IsDir(from) {
			return &builderr.DependencyTreeInvalidError{Root: s.root(), Missing: filepath.Join("src", rel)}
		}
		s.log().Info().Msgf("copying chromium %s", dir)
		if err := buildutil.CopyTree(from, dst); err != nil {
			return errors.Wrapf(err, "copy %s", dir)
		}
	}

	s.log().Debug().Msg("copying .gclient and .gn")
	if err := buildutil.CopyFile(filepath.Join(s.root(), ".gclient"), filepath.Join(s.Cfg.BuildspaceDir(s.Platform), ".gclient")); err != nil {
		return errors.Wrap(err, "copy .gclient")
	}
	if err := buildutil.CopyFile(filepath.Join(src, ".gn"), filepath.Join(ws, ".gn")); err != nil {
		return errors.Wrap(err, "copy .gn")
	}

	if mod := s.Cfg.ModifiedFilesDir(); buildutil.IsDir(mod) {
		s.log().Debug().Msg("copying modified_files")
		if err := buildutil.CopyTree(mod, ws); err != nil {
			return errors.Wrap(err, "copy modified_files")
		}
	}

	return s.linkSources(ws)
}

// linkSources makes the project's own source directories visible to gn.
// Windows gets a fresh copy; other hosts get a symlink.
func (s *Synchronizer) linkSources(ws string) error {
	for _, name := range s.Cfg.SourceDirs {
		from := filepath.Join(s.Cfg.ProjectDir, name)
		if !buildutil.IsDir(from) {
			s.log().Debug().Str("dir", from).Msg("project source dir missing, skipping")
			continue
		}
		dst := filepath.Join(ws, name)

		if s.Host.OS == "windows" {
			if err := os.RemoveAll(dst); err != nil {
				return errors.WithStack(err)
			}
			if err := buildutil.CopyTree(from, dst); err != nil {
				return errors.Wrapf(err, "copy %s", name)
			}
			continue
		}

		if fi, err := os.Lstat(dst); err == nil && fi.Mode()&os.ModeSymlink == 0 {
			if err := os.RemoveAll(dst); err != nil {
				return errors.WithStack(err)
			}
		}
		if err := xos.Symlink(from, dst); err != nil {
			return errors.Wrapf(err, "link %s", name)
		}
	}
	return nil
}
