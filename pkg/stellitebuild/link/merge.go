package link

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/stellitebuild/buildutil"
	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
)

// Merge combines the per-architecture libraries in inputs into one
// universal library named name in outDir. outDir is recreated first.
// Every input must exist.
func Merge(ctx context.Context, r cmdexec.Runner, lipo string, inputs []string, outDir, name string) (Artifact, error) {
	if err := requireTool("lipo", lipo); err != nil {
		return Artifact{}, err
	}
	if len(inputs) == 0 {
		return Artifact{}, &builderr.LinkFailedError{Dir: outDir, Err: errors.New("nothing to merge")}
	}
	for _, in := range inputs {
		if !buildutil.Exists(in) {
			return Artifact{}, &builderr.LinkFailedError{
				Dir: outDir,
				Err: errors.Newf("missing architecture library %s", in),
			}
		}
	}

	if err := buildutil.RecreateDir(outDir); err != nil {
		return Artifact{}, &builderr.LinkFailedError{Dir: outDir, Err: err}
	}
	out := filepath.Join(outDir, name)
	args := append([]string{lipo, "-create"}, inputs...)
	args = append(args, "-output", out)
	if err := r.Run(ctx, cmdexec.Command(outDir, args...)); err != nil {
		return Artifact{}, &builderr.LinkFailedError{Args: args, Dir: outDir, Err: err}
	}
	return Artifact{Path: out, Role: Merged}, nil
}
