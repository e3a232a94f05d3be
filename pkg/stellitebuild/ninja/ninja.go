// Package ninja runs ninja over a generated build configuration.
package ninja

import (
	"context"

	"github.com/line/stellite/pkg/stellitebuild/buildconf"
	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
	"github.com/line/stellite/pkg/stellitebuild/gn"
)

type Executor struct {
	Cfg    *buildconf.Config
	Runner cmdexec.Runner
}

// Execute builds target in the output directory of conf.
// A failed build leaves the output directory as it is.
func (e *Executor) Execute(ctx context.Context, conf gn.Config, target string) error {
	args := []string{"ninja"}
	if e.Cfg.Verbose {
		args = append(args, "-v")
	}
	args = append(args, "-C", conf.OutDir, target)

	e.Cfg.Log.Info().
		Str("platform", string(conf.Platform)).
		Stringer("arch", conf.Arch).
		Str("target", target).
		Msg("building")
	return e.Runner.Run(ctx, cmdexec.Command(e.Cfg.WorkspaceSrcDir(conf.Platform), args...))
}
