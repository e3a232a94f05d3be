// Package depsync keeps the chromium checkout a build depends on at the
// pinned tag and materializes the trimmed workspace the build runs in.
package depsync

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"

	"github.com/line/stellite/pkg/stellitebuild/buildconf"
	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/stellitebuild/buildutil"
	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
	"github.com/line/stellite/pkg/stellitebuild/platform"
	"github.com/line/stellite/pkg/xos"
)

// State is the synchronization state of a dependency tree.
type State int

const (
	Absent State = iota
	Fetched
	Tagged
	Ready
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Fetched:
		return "fetched"
	case Tagged:
		return "tagged"
	case Ready:
		return "ready"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// A Synchronizer owns the chromium checkout of one platform.
type Synchronizer struct {
	Cfg      *buildconf.Config
	Platform platform.Platform
	Runner   cmdexec.Runner
	Host     platform.Host
}

func (s *Synchronizer) log() *zerolog.Logger {
	l := s.Cfg.Log.With().Str("platform", string(s.Platform)).Logger()
	return &l
}

func (s *Synchronizer) root() string { return s.Cfg.ChromiumDir(s.Platform) }
func (s *Synchronizer) src() string  { return s.Cfg.ChromiumSrcDir(s.Platform) }

// Exists reports whether the checkout root exists.
func (s *Synchronizer) Exists() bool {
	return buildutil.IsDir(s.root())
}

// Validate reports a DependencyTreeInvalidError if the checkout lacks any
// of its expected markers.
func (s *Synchronizer) Validate() error {
	root := s.root()
	for _, marker := range []string{"", "src", ".gclient", filepath.Join("src", "DEPS")} {
		if !buildutil.Exists(filepath.Join(root, marker)) {
			missing := marker
			if missing == "" {
				missing = root
			}
			return &builderr.DependencyTreeInvalidError{Root: root, Missing: missing}
		}
	}
	if !buildutil.IsDir(s.src()) {
		return &builderr.DependencyTreeInvalidError{Root: root, Missing: "src"}
	}
	return nil
}

// State derives the synchronization state from disk.
func (s *Synchronizer) State() State {
	if !s.Exists() || s.Validate() != nil {
		return Absent
	}
	if ok, err := s.AtTag(); err != nil || !ok {
		return Fetched
	}
	ws := s.Cfg.WorkspaceSrcDir(s.Platform)
	for _, dir := range platform.DependencyDirectoriesFor(s.Platform) {
		if !buildutil.Exists(filepath.Join(ws, filepath.FromSlash(dir))) {
			return Tagged
		}
	}
	return Ready
}

// Sync brings the checkout and the workspace to the ready state.
// On a tree that is already ready it runs no external commands.
func (s *Synchronizer) Sync(ctx context.Context) error {
	if err := s.EnsureDepotTools(ctx); err != nil {
		return err
	}
	if _, err := s.Fetch(ctx); err != nil {
		return err
	}
	if _, err := s.Retag(ctx); err != nil {
		return err
	}
	return s.SyncWorkspace(ctx)
}

// Retag is SyncTag followed, when the checkout moved, by the removal of
// the build workspace, whose directories were copied from the previous tag.
func (s *Synchronizer) Retag(ctx context.Context) (bool, error) {
	retagged, err := s.SyncTag(ctx)
	if err != nil || !retagged {
		return retagged, err
	}
	ws := s.Cfg.BuildspaceDir(s.Platform)
	s.log().Info().Str("dir", ws).Msg("removing workspace of previous tag")
	if err := os.RemoveAll(ws); err != nil {
		return true, errors.Wrap(err, "remove stale workspace")
	}
	return true, nil
}

// EnsureDepotTools clones depot_tools if it is missing.
func (s *Synchronizer) EnsureDepotTools(ctx context.Context) error {
	dir := s.Cfg.DepotToolsDir()
	if buildutil.IsDir(dir) {
		return nil
	}
	s.log().Info().Str("dir", dir).Msg("fetching depot_tools")
	if err := os.MkdirAll(s.Cfg.CacheDir, 0755); err != nil {
		return errors.WithStack(err)
	}
	err := s.Runner.Run(ctx, cmdexec.Command(s.Cfg.CacheDir, "git", "clone", s.Cfg.DepotToolsURL, dir))
	if err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	return nil
}

// Fetch materializes the checkout if it does not exist yet.
// It reports whether a fetch happened. A failed fetch removes the
// partial checkout.
func (s *Synchronizer) Fetch(ctx context.Context) (fetched bool, err error) {
	root := s.root()
	if s.Exists() {
		s.log().Debug().Str("dir", root).Msg("chromium checkout already exists")
		return false, nil
	}

	s.log().Info().Str("dir", root).Msg("fetching chromium")
	if err := os.MkdirAll(root, 0755); err != nil {
		return false, errors.WithStack(err)
	}
	defer func() {
		if err != nil {
			s.log().Warn().Str("dir", root).Msg("fetch failed, removing partial checkout")
			if rmErr := os.RemoveAll(root); rmErr != nil {
				s.log().Error().Err(rmErr).Msg("could not remove partial checkout")
			}
		}
	}()

	if err := s.Runner.Run(ctx, cmdexec.Command(root, "fetch", "--nohooks", "chromium")); err != nil {
		return false, err
	}
	if s.Platform.Mobile() {
		if _, err := s.EnsureGclientTargetOS(); err != nil {
			return false, err
		}
		if err := s.gclientSync(ctx, root); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ReadTag reads the pinned chromium tag.
func (s *Synchronizer) ReadTag() (string, error) {
	data, err := os.ReadFile(s.Cfg.TagFile())
	if err != nil {
		return "", errors.Wrap(err, "read chromium tag")
	}
	tag := strings.TrimSpace(string(data))
	if tag == "" || strings.ContainsAny(tag, "\n\r") {
		return "", errors.Newf("%s must contain a single tag", s.Cfg.TagFile())
	}
	return tag, nil
}

// BranchFor is the local branch a tag is checked out on.
func BranchFor(tag string) string {
	return "chromium_" + tag
}

// CurrentBranch reports the branch checked out in the chromium src
// repository. It reports false for a detached or unreadable HEAD.
func (s *Synchronizer) CurrentBranch() (string, bool) {
	repo, err := git.PlainOpen(s.src())
	if err != nil {
		return "", false
	}
	ref, err := repo.Reference(plumbing.HEAD, false)
	if err != nil || ref.Type() != plumbing.SymbolicReference || !ref.Target().IsBranch() {
		return "", false
	}
	return ref.Target().Short(), true
}

// AtTag reports whether the checkout is on the branch of the pinned tag.
func (s *Synchronizer) AtTag() (bool, error) {
	tag, err := s.ReadTag()
	if err != nil {
		return false, err
	}
	branch, ok := s.CurrentBranch()
	return ok && (branch == BranchFor(tag) || branch == tag), nil
}

// SyncTag checks out the pinned tag and syncs its dependencies, unless the
// checkout is already on it. It reports whether anything changed.
func (s *Synchronizer) SyncTag(ctx context.Context) (bool, error) {
	if err := s.Validate(); err != nil {
		return false, err
	}
	tag, err := s.ReadTag()
	if err != nil {
		return false, err
	}
	if ok, err := s.AtTag(); err != nil {
		return false, err
	} else if ok {
		s.log().Info().Str("tag", tag).Msg("chromium is at the pinned tag")
		return false, nil
	}

	s.log().Info().Str("tag", tag).Msg("checking out chromium tag")
	src := s.src()
	for _, args := range [][]string{
		{"git", "fetch", "--tags"},
		{"git", "reset", "--hard"},
	} {
		if err := s.Runner.Run(ctx, cmdexec.Command(src, args...)); err != nil {
			return false, err
		}
	}

	branch := BranchFor(tag)
	if err := s.Runner.Run(ctx, cmdexec.Command(src, "git", "checkout", branch)); err != nil {
		var cmdErr *builderr.ExternalCommandFailedError
		if !errors.As(err, &cmdErr) {
			return false, err
		}
		s.log().Debug().Str("branch", branch).Msg("branch does not exist yet, creating it")
		if err := s.Runner.Run(ctx, cmdexec.Command(src, "git", "checkout", "-b", branch, tag)); err != nil {
			return false, err
		}
	}

	if s.Platform.Mobile() {
		if _, err := s.EnsureGclientTargetOS(); err != nil {
			return false, err
		}
	}
	if err := s.gclientSync(ctx, src, "--with_branch_heads"); err != nil {
		return false, err
	}
	if err := s.ApplyPatches(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Synchronizer) gclientSync(ctx context.Context, dir string, flags ...string) error {
	args := append([]string{"gclient", "sync"}, flags...)
	args = append(args, "--jobs", strconv.Itoa(s.Cfg.JobCount()))
	return s.Runner.Run(ctx, cmdexec.Command(dir, args...))
}

// EnsureGclientTargetOS appends the target OS block to .gclient unless a
// target_os entry is already present. It reports whether it wrote.
func (s *Synchronizer) EnsureGclientTargetOS() (bool, error) {
	path := filepath.Join(s.root(), ".gclient")
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, errors.Wrap(err, "read .gclient")
	}
	if hasTargetOS(string(data)) {
		return false, nil
	}

	var b strings.Builder
	b.Write(data)
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("target_os = [\"" + string(s.Platform) + "\"]\n")
	b.WriteString("target_os_only = \"True\"\n")
	if err := xos.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return false, errors.Wrap(err, "write .gclient")
	}
	s.log().Info().Msg("added target_os to .gclient")
	return true, nil
}

func hasTargetOS(gclient string) bool {
	for _, line := range strings.Split(gclient, "\n") {
		key, _, ok := strings.Cut(line, "=")
		if ok && strings.TrimSpace(key) == "target_os" {
			return true
		}
	}
	return false
}
