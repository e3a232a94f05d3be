package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/line/stellite/cli/cmd/stellite-build/cmdutil"
	"github.com/line/stellite/pkg/option"
	"github.com/line/stellite/pkg/stellitebuild"
	"github.com/line/stellite/pkg/stellitebuild/buildconf"
	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
	"github.com/line/stellite/pkg/stellitebuild/platform"
)

// buildParams are the flags shared by the build commands.
type buildParams struct {
	ProjectDir    string
	ChromiumPath  string
	OutDir        string
	CacheDir      string
	Jobs          int
	Parallel      int
	Timeout       time.Duration
	StrictPatches bool
	Archive       bool

	Platform cmdutil.Oneof
	Target   cmdutil.Oneof
	Type     cmdutil.Oneof
}

func newBuildParams(host platform.Host) *buildParams {
	hostPlatform, ok := host.Platform()
	if !ok {
		hostPlatform = platform.Linux
	}
	return &buildParams{
		Platform: cmdutil.Oneof{
			Value:   string(hostPlatform),
			Allowed: cmdutil.Strings(platform.All),
			Flag:    "target-platform",
			Desc:    "the platform to build for",
		},
		Target: cmdutil.Oneof{
			Value:   stellitebuild.DefaultTarget,
			Allowed: stellitebuild.Targets,
			Flag:    "target",
			Desc:    "the target to build",
		},
		Type: cmdutil.Oneof{
			Value:   string(platform.StaticLibrary),
			Allowed: cmdutil.Strings([]platform.ArtifactType{platform.StaticLibrary, platform.SharedLibrary}),
			Flag:    "target-type",
			Desc:    "the kind of library to produce",
		},
	}
}

func (p *buildParams) addFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&p.ProjectDir, "project-dir", "", "stellite project root (defaults to the working directory)")
	fs.StringVar(&p.ChromiumPath, "chromium-path", "", "use an existing chromium checkout")
	fs.StringVar(&p.OutDir, "out", "", "directory the outputs are collected into")
	fs.StringVar(&p.CacheDir, "cache-dir", "", "directory holding depot_tools and the chromium checkouts")
	fs.IntVar(&p.Jobs, "jobs", 0, "parallel jobs passed to gclient (defaults to 4 per CPU)")
	fs.IntVar(&p.Parallel, "parallel", 0, "number of architectures built concurrently")
	fs.DurationVar(&p.Timeout, "timeout", 0, "timeout for each external command")
	fs.BoolVar(&p.StrictPatches, "strict-patches", false, "fail when a chromium patch does not apply")
	fs.BoolVar(&p.Archive, "archive", false, "create a tar.gz of the output directory")
	p.Platform.AddFlag(cmd)
	p.Target.AddFlag(cmd)
	p.Type.AddFlag(cmd)
}

// config loads the project configuration and applies the flags set on fs.
func (p *buildParams) config(fs *pflag.FlagSet, logger zerolog.Logger) (*buildconf.Config, error) {
	projectDir := p.ProjectDir
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		projectDir = wd
	}
	projectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg, err := buildconf.Load(projectDir, logger)
	if err != nil {
		return nil, err
	}
	if fs.Changed("chromium-path") {
		cfg.ChromiumPath = option.Some(p.ChromiumPath)
	}
	if fs.Changed("out") {
		cfg.OutDir = p.OutDir
	}
	if fs.Changed("cache-dir") {
		cfg.CacheDir = p.CacheDir
	}
	if fs.Changed("jobs") {
		cfg.Jobs = p.Jobs
	}
	if fs.Changed("parallel") {
		cfg.Parallel = p.Parallel
	}
	if fs.Changed("timeout") {
		cfg.Timeout = p.Timeout
	}
	if fs.Changed("strict-patches") {
		cfg.StrictPatches = p.StrictPatches
	}
	if fs.Changed("archive") {
		cfg.Archive = p.Archive
	}
	if verbosity > 0 {
		cfg.Verbose = true
	}
	return cfg, nil
}

func (p *buildParams) request() stellitebuild.Request {
	return stellitebuild.Request{
		Target:   p.Target.Value,
		Platform: platform.Platform(p.Platform.Value),
		Type:     platform.ArtifactType(p.Type.Value),
	}
}

func init() {
	host := platform.DetectHost()
	for _, action := range stellitebuild.Actions {
		p := newBuildParams(host)
		cmd := &cobra.Command{
			Use:   string(action),
			Short: actionDesc[action],
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runAction(cmd, action, p, host)
			},
		}
		p.addFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
}

var actionDesc = map[stellitebuild.Action]string{
	stellitebuild.Build:      "Syncs the chromium checkout and builds the target",
	stellitebuild.Clean:      "Removes the build outputs of the target platform",
	stellitebuild.CleanBuild: "Removes the build outputs, then builds the target",
}

func runAction(cmd *cobra.Command, action stellitebuild.Action, p *buildParams, host platform.Host) error {
	cfg, err := p.config(cmd.Flags(), log.Logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	o := &stellitebuild.Orchestrator{
		Cfg: cfg,
		Runner: &cmdexec.Exec{
			Log:        cfg.Log,
			PathPrefix: []string{cfg.DepotToolsDir()},
			Timeout:    cfg.Timeout,
		},
		Host: host,
	}
	res, err := o.Run(ctx, action, p.request())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, out := range res.Outputs {
		fmt.Fprintln(w, out)
	}
	if res.Archive != "" {
		fmt.Fprintln(w, res.Archive)
	}
	return nil
}
