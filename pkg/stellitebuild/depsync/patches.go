package depsync

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
)

// Patches lists the patch files to apply, in application order.
func (s *Synchronizer) Patches() ([]string, error) {
	patches, err := filepath.Glob(filepath.Join(s.Cfg.PatchesDir(), "*.patch"))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sort.Strings(patches)
	return patches, nil
}

// ApplyPatches applies every patch to the chromium src tree.
//
// A patch whose reverse applies cleanly is already applied and is skipped.
// A patch that does not apply is logged and skipped unless StrictPatches is
// set, in which case its failure is returned.
func (s *Synchronizer) ApplyPatches(ctx context.Context) error {
	patches, err := s.Patches()
	if err != nil {
		return err
	}
	src := s.src()
	for _, p := range patches {
		check := cmdexec.Command(src, "git", "apply", "--check", "--reverse", "--ignore-space-change", p)
		if err := s.Runner.Run(ctx, check); err == nil {
			s.log().Debug().Str("patch", filepath.Base(p)).Msg("patch already applied")
			continue
		} else if !isCommandFailure(err) {
			return err
		}

		err := s.Runner.Run(ctx, cmdexec.Command(src, "git", "apply", "--ignore-space-change", p))
		switch {
		case err == nil:
			s.log().Info().Str("patch", filepath.Base(p)).Msg("applied patch")
		case isCommandFailure(err) && !s.Cfg.StrictPatches:
			s.log().Warn().Err(err).Str("patch", filepath.Base(p)).Msg("patch does not apply, skipping")
		default:
			return errors.Wrapf(err, "apply %s", filepath.Base(p))
		}
	}
	return nil
}

func isCommandFailure(err error) bool {
	var cmdErr *builderr.ExternalCommandFailedError
	return errors.As(err, &cmdErr)
}
