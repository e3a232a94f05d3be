// Package link turns the objects and archives of a built cell into the
// requested library artifact.
//
// Each platform has a Strategy that synthesizes the link or package
// command as a Plan. A Linker runs plans.
package link

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/line/stellite/pkg/stellitebuild/buildconf"
	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/stellitebuild/buildutil"
	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
	"github.com/line/stellite/pkg/stellitebuild/platform"
	"github.com/line/stellite/pkg/stellitebuild/toolchain"
)

// Role describes how an artifact was produced.
type Role int

const (
	PerArch Role = iota
	Merged
	Executable
	Copied
)

func (r Role) String() string {
	switch r {
	case PerArch:
		return "per-arch"
	case Merged:
		return "merged"
	case Executable:
		return "executable"
	case Copied:
		return "copied"
	}
	return "unknown"
}

// Artifact is a deliverable produced by the build.
type Artifact struct {
	Path string
	Role Role
}

// Input describes one cell to link.
type Input struct {
	Target    string
	Platform  platform.Platform
	Arch      platform.Arch
	OutDir    string
	Toolchain toolchain.Paths

	// Exclude lists file names never passed to the linker.
	Exclude []string
}

// Plan is a synthesized link command.
//
// A Plan with no Tool copies Inputs into the Output directory instead.
type Plan struct {
	Tool   string
	Args   []string
	Dir    string
	Output string

	// Inputs are the object and archive files the plan consumes.
	Inputs []string
}

// Argv returns the full command line of the plan.
func (p Plan) Argv() []string {
	return append([]string{p.Tool}, p.Args...)
}

// Strategy synthesizes the link commands of a platform.
type Strategy interface {
	// Plan computes the command producing an artifact of type t.
	// It reads the output directory but runs nothing.
	Plan(in Input, t platform.ArtifactType) (Plan, error)
}

var strategies = map[platform.Platform]Strategy{
	platform.Linux:   &linuxStrategy{base{platform.Linux}},
	platform.Mac:     &macStrategy{base{platform.Mac}},
	platform.IOS:     &iosStrategy{base{platform.IOS}},
	platform.Android: &androidStrategy{base{platform.Android}},
	platform.Windows: &windowsStrategy{base{platform.Windows}},
}

// For returns the strategy of p.
func For(p platform.Platform) Strategy {
	s, ok := strategies[p]
	if !ok {
		panic("link: unknown platform " + string(p))
	}
	return s
}

// Name returns the file name of the library artifact of target.
// For iOS, HostArch names the merged library. Windows artifacts keep the
// names ninja gave them, so Name reports "" for it.
func Name(target string, p platform.Platform, a platform.Arch, t platform.ArtifactType) string {
	static := t == platform.StaticLibrary
	switch p {
	case platform.Linux:
		if static {
			return "lib" + target + ".a"
		}
		return "lib" + target + ".so"
	case platform.Mac:
		if static {
			return "lib" + target + ".a"
		}
		return "lib" + target + "_mac.dylib"
	case platform.IOS:
		ext := ".dylib"
		if static {
			ext = ".a"
		}
		if a == platform.HostArch {
			return "lib" + target + ext
		}
		return "lib" + target + "_" + string(a) + ext
	case platform.Android:
		if static {
			return "lib" + target + "_android_" + string(a) + ".a"
		}
		return "lib" + target + "_android_" + string(a) + ".so"
	}
	return ""
}

// ScanObjects walks root and returns the files whose base name matches
// any of patterns and is not in exclude, sorted lexicographically.
func ScanObjects(root string, patterns, exclude []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if slices.Contains(exclude, name) {
			return nil
		}
		for _, pattern := range patterns {
			if ok, err := filepath.Match(pattern, name); err != nil {
				return err
			} else if ok {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", root)
	}
	slices.Sort(files)
	return files, nil
}

// base holds the behavior shared by every strategy.
type base struct {
	platform platform.Platform
}

// output is the path of the artifact of type t.
func (b base) output(in Input, t platform.ArtifactType) string {
	return filepath.Join(in.OutDir, Name(in.Target, b.platform, in.Arch, t))
}

// objects scans root for link inputs. The cell's own artifacts are never
// inputs, so a second link of the same cell sees the same files.
func (b base) objects(in Input, root string, patterns ...string) ([]string, error) {
	exclude := slices.Clone(in.Exclude)
	for _, t := range []platform.ArtifactType{platform.StaticLibrary, platform.SharedLibrary} {
		if name := Name(in.Target, b.platform, in.Arch, t); name != "" {
			exclude = append(exclude, name)
		}
	}
	files, err := ScanObjects(root, patterns, exclude)
	if err != nil {
		return nil, &builderr.LinkFailedError{Dir: in.OutDir, Err: err}
	}
	if len(files) == 0 {
		return nil, &builderr.LinkFailedError{
			Dir: in.OutDir,
			Err: errors.Newf("nothing to link: no %s in %s", strings.Join(patterns, ", "), root),
		}
	}
	return files, nil
}

func requireTool(what, path string) error {
	if path == "" {
		return &builderr.ToolchainNotFoundError{What: what}
	}
	return nil
}

func unsupportedType(p platform.Platform, t platform.ArtifactType) error {
	return &builderr.UnsupportedPlatformError{Platform: string(p), Type: string(t)}
}

// Linker runs link plans.
type Linker struct {
	Log    zerolog.Logger
	Runner cmdexec.Runner
}

// Static links a static library.
func (l *Linker) Static(ctx context.Context, in Input) (Artifact, error) {
	return l.Link(ctx, in, platform.StaticLibrary)
}

// Shared links a shared library.
func (l *Linker) Shared(ctx context.Context, in Input) (Artifact, error) {
	return l.Link(ctx, in, platform.SharedLibrary)
}

// Link plans and runs the link of an artifact of type t.
func (l *Linker) Link(ctx context.Context, in Input, t platform.ArtifactType) (Artifact, error) {
	plan, err := For(in.Platform).Plan(in, t)
	if err != nil {
		return Artifact{}, err
	}

	log := l.Log.With().Str("platform", string(in.Platform)).Stringer("arch", in.Arch).Logger()
	if plan.Tool == "" {
		ev := log.Info().Str("dir", plan.Output).Int("files", len(plan.Inputs))
		if vs := in.Toolchain.Windows; vs != nil {
			ev = ev.Str("vs_path", vs.VSPath).Str("sdk_path", vs.SDKPath)
		}
		ev.Msg("packaging outputs")
		if err := buildutil.RecreateDir(plan.Output); err != nil {
			return Artifact{}, &builderr.LinkFailedError{Dir: plan.Dir, Err: err}
		}
		if err := buildutil.CopyInto(plan.Output, plan.Inputs...); err != nil {
			return Artifact{}, &builderr.LinkFailedError{Dir: plan.Dir, Err: err}
		}
		return Artifact{Path: plan.Output, Role: Copied}, nil
	}

	log.Info().Str("output", filepath.Base(plan.Output)).Int("inputs", len(plan.Inputs)).Msgf("linking %s", t)
	if err := l.Runner.Run(ctx, cmdexec.Command(plan.Dir, plan.Argv()...)); err != nil {
		return Artifact{}, &builderr.LinkFailedError{Args: plan.Argv(), Dir: plan.Dir, Err: err}
	}
	return Artifact{Path: plan.Output, Role: PerArch}, nil
}

// BuiltExecutable returns the executable ninja built for an executable target.
func BuiltExecutable(in Input) (Artifact, error) {
	name := in.Target + buildconf.Exe(in.Platform)
	path := filepath.Join(in.OutDir, name)
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		return Artifact{}, &builderr.LinkFailedError{
			Dir: in.OutDir,
			Err: errors.Newf("executable %s was not built", name),
		}
	}
	return Artifact{Path: path, Role: Executable}, nil
}
