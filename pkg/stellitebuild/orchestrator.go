// Package stellitebuild expands a build request into per-architecture cells
// and drives them through sync, generation, build, link and collection.
package stellitebuild

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/line/stellite/pkg/stellitebuild/buildconf"
	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/stellitebuild/buildutil"
	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
	"github.com/line/stellite/pkg/stellitebuild/depsync"
	"github.com/line/stellite/pkg/stellitebuild/gn"
	"github.com/line/stellite/pkg/stellitebuild/link"
	"github.com/line/stellite/pkg/stellitebuild/ninja"
	"github.com/line/stellite/pkg/stellitebuild/platform"
	"github.com/line/stellite/pkg/stellitebuild/toolchain"
)

// Result describes what a run produced.
type Result struct {
	Cells []Cell

	// Artifacts are the deliverables before collection: per-arch
	// libraries, the merged library or the executable.
	Artifacts []link.Artifact

	// Outputs are the files collected into the output root.
	Outputs []string

	// Archive is the tar.gz of the output root, if one was requested.
	Archive string
}

// An Orchestrator runs build requests.
//
// Cells of one request share the dependency tree read-only. They may run
// in parallel, up to Cfg.Parallel at a time.
type Orchestrator struct {
	Cfg    *buildconf.Config
	Runner cmdexec.Runner
	Host   platform.Host
}

// run is the state of a single request.
type run struct {
	cfg    *buildconf.Config
	runner cmdexec.Runner
	host   platform.Host
	req    Request
	log    zerolog.Logger

	resolver *toolchain.Resolver
}

// Run performs action for req.
func (o *Orchestrator) Run(ctx context.Context, action Action, req Request) (Result, error) {
	if err := platform.CheckHost(req.Platform, o.Host); err != nil {
		return Result{}, err
	}
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	cfg := *o.Cfg
	if req.ChromiumPath.IsPresent() {
		cfg.ChromiumPath = req.ChromiumPath
	}
	if req.OutputRoot == "" {
		req.OutputRoot = cfg.OutDir
	}
	r := &run{
		cfg:    &cfg,
		runner: o.Runner,
		host:   o.Host,
		req:    req,
		log:    cfg.Log.With().Str("platform", string(req.Platform)).Str("target", req.Target).Logger(),
	}
	r.resolver = &toolchain.Resolver{Cfg: r.cfg, Runner: r.runner, Host: r.host}
	sync := &depsync.Synchronizer{Cfg: r.cfg, Platform: req.Platform, Runner: r.runner, Host: r.host}

	switch action {
	case Clean, CleanBuild:
		if err := r.clean(); err != nil {
			return Result{}, err
		}
		if action == Clean {
			if sync.Exists() {
				if _, err := sync.Retag(ctx); err != nil {
					return Result{}, err
				}
			}
			return Result{}, nil
		}
	case Build:
	default:
		return Result{}, errors.Newf("unknown action %q", action)
	}

	if err := sync.Sync(ctx); err != nil {
		return Result{}, err
	}
	return r.build(ctx)
}

// clean removes the output directories of every cell of the platform.
func (r *run) clean() error {
	p := r.req.Platform
	dirs := []string{r.cfg.MergedOutDir(p)}
	for _, a := range platform.ArchitecturesFor(p) {
		dirs = append(dirs, r.cfg.CellOutDir(p, a))
	}
	for _, dir := range dirs {
		if !buildutil.Exists(dir) {
			continue
		}
		r.log.Info().Str("dir", dir).Msg("removing build output")
		if err := os.RemoveAll(dir); err != nil {
			return errors.Wrapf(err, "clean %s", dir)
		}
	}
	return nil
}

// cells expands the request into its build cells.
func (r *run) cells() ([]Cell, error) {
	caps, err := r.cfg.Capabilities()
	if err != nil {
		return nil, err
	}
	p := r.req.Platform
	var cells []Cell
	for _, a := range platform.ArchitecturesFor(p) {
		if !caps.Supported(p, a, r.req.Type) {
			r.log.Warn().Stringer("arch", a).Msgf("%s is not supported for this architecture, skipping", r.req.Type)
			continue
		}
		cells = append(cells, Cell{Platform: p, Arch: a, OutDir: r.cfg.CellOutDir(p, a)})
	}
	if len(cells) == 0 {
		return nil, &builderr.UnsupportedPlatformError{
			Platform: string(p),
			Type:     string(r.req.Type),
			Reason:   "no buildable architecture",
		}
	}
	return cells, nil
}

func (r *run) build(ctx context.Context) (Result, error) {
	cells, err := r.cells()
	if err != nil {
		return Result{}, err
	}
	res := Result{Cells: cells}

	artifacts := make([]link.Artifact, len(cells))
	if r.cfg.Parallel > 1 && len(cells) > 1 {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Parallel)
		for i, cell := range cells {
			g.Go(func() error {
				art, err := r.buildCell(ctx, cell)
				artifacts[i] = art
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}
	} else {
		for i, cell := range cells {
			art, err := r.buildCell(ctx, cell)
			if err != nil {
				return Result{}, err
			}
			artifacts[i] = art
		}
	}

	res.Artifacts = artifacts
	if r.needsMerge() {
		merged, err := r.merge(ctx, cells, artifacts)
		if err != nil {
			return Result{}, err
		}
		res.Artifacts = []link.Artifact{merged}
	}

	if res.Outputs, err = r.collect(cells, res.Artifacts); err != nil {
		return Result{}, err
	}

	if r.cfg.Archive {
		res.Archive = r.req.OutputRoot + ".tar.gz"
		r.log.Info().Str("tar_file", res.Archive).Msg("creating output archive")
		if err := buildutil.TarGzip(ctx, r.runner, r.req.OutputRoot, res.Archive); err != nil {
			return Result{}, err
		}
	}
	r.log.Info().Str("dir", r.req.OutputRoot).Msg("build finished")
	return res, nil
}

// buildCell generates, builds and links a single cell.
func (r *run) buildCell(ctx context.Context, cell Cell) (link.Artifact, error) {
	log := r.log.With().Stringer("arch", cell.Arch).Logger()
	log.Info().Msg("building cell")

	gen := &gn.Generator{Cfg: r.cfg, Runner: r.runner}
	conf, err := gen.Generate(ctx, cell.Platform, cell.Arch, gn.ArgsFor(cell.Platform, cell.Arch, r.req.Type))
	if err != nil {
		return link.Artifact{}, err
	}
	exec := &ninja.Executor{Cfg: r.cfg, Runner: r.runner}
	if err := exec.Execute(ctx, conf, r.req.Target); err != nil {
		return link.Artifact{}, err
	}

	in := link.Input{
		Target:   r.req.Target,
		Platform: cell.Platform,
		Arch:     cell.Arch,
		OutDir:   conf.OutDir,
		Exclude:  platform.ExcludeObjectsFor(cell.Platform),
	}
	if IsExecutable(r.req.Target) {
		return link.BuiltExecutable(in)
	}
	if in.Toolchain, err = r.resolver.Resolve(ctx, cell.Platform, cell.Arch); err != nil {
		return link.Artifact{}, err
	}
	linker := &link.Linker{Log: log, Runner: r.runner}
	art, err := linker.Link(ctx, in, r.req.Type)
	if err != nil {
		return link.Artifact{}, err
	}
	log.Info().Str("artifact", art.Path).Msg("cell built")
	return art, nil
}

// needsMerge reports whether the per-arch libraries are combined into one.
// Android ships one library per ABI.
func (r *run) needsMerge() bool {
	p := r.req.Platform
	return p.MultiArch() && p != platform.Android && !IsExecutable(r.req.Target)
}

func (r *run) merge(ctx context.Context, cells []Cell, artifacts []link.Artifact) (link.Artifact, error) {
	p := r.req.Platform
	tc, err := r.resolver.Resolve(ctx, p, cells[0].Arch)
	if err != nil {
		return link.Artifact{}, err
	}
	inputs := make([]string, len(artifacts))
	for i, art := range artifacts {
		inputs[i] = art.Path
	}
	name := link.Name(r.req.Target, p, platform.HostArch, r.req.Type)
	r.log.Info().Int("archs", len(inputs)).Str("output", name).Msg("merging architectures")
	return link.Merge(ctx, r.runner, tc.Merger, inputs, r.cfg.MergedOutDir(p), name)
}
