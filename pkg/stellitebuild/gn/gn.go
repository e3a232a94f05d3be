// Package gn writes the gn build arguments of a build cell and generates
// its ninja files.
package gn

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/line/stellite/pkg/stellitebuild/buildconf"
	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
	"github.com/line/stellite/pkg/stellitebuild/platform"
	"github.com/line/stellite/pkg/xos"
)

// Arg is a single gn build argument. Value is a gn literal.
type Arg struct {
	Key   string
	Value string
}

// Args is an ordered list of gn build arguments.
type Args []Arg

// Str returns a gn string literal.
func Str(s string) string { return strconv.Quote(s) }

// Bool returns a gn boolean literal.
func Bool(b bool) string { return strconv.FormatBool(b) }

// Int returns a gn integer literal.
func Int(n int) string { return strconv.Itoa(n) }

// Get returns the value of key.
func (a Args) Get(key string) (string, bool) {
	for _, arg := range a {
		if arg.Key == key {
			return arg.Value, true
		}
	}
	return "", false
}

// Set returns a copy of a with key set to value.
// An existing key keeps its position.
func (a Args) Set(key, value string) Args {
	out := append(Args(nil), a...)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Arg{Key: key, Value: value})
}

// Render renders the arguments in args.gn syntax.
func (a Args) Render() string {
	var b strings.Builder
	for _, arg := range a {
		b.WriteString(arg.Key)
		b.WriteString(" = ")
		b.WriteString(arg.Value)
		b.WriteByte('\n')
	}
	return b.String()
}

// ArgsFor returns the build arguments of a cell.
func ArgsFor(p platform.Platform, a platform.Arch, t platform.ArtifactType) Args {
	spec := platform.Spec(p, a)
	switch p {
	case platform.Linux, platform.Mac:
		return Args{
			{"is_component_build", Bool(false)},
			{"disable_file_support", Bool(true)},
			{"disable_ftp_support", Bool(true)},
			{"target_cpu", Str(spec.GNCPU)},
			{"target_os", Str(string(p))},
		}
	case platform.IOS:
		return Args{
			{"disable_file_support", Bool(true)},
			{"disable_ftp_support", Bool(true)},
			{"enable_dsyms", Bool(false)},
			{"enable_stripping", "enable_dsyms"},
			{"ios_enable_code_signing", Bool(false)},
			{"is_component_build", Bool(false)},
			{"is_debug", Bool(false)},
			{"is_official_build", Bool(false)},
			{"symbol_level", Int(1)},
			{"target_cpu", Str(spec.GNCPU)},
			{"target_os", Str("ios")},
			{"use_xcode_clang", "is_official_build"},
		}
	case platform.Android:
		args := Args{
			{"disable_file_support", Bool(true)},
			{"disable_ftp_support", Bool(true)},
			{"is_clang", Bool(true)},
			{"is_component_build", Bool(false)},
			{"is_debug", Bool(false)},
			{"symbol_level", Int(1)},
			{"target_cpu", Str(spec.GNCPU)},
			{"target_os", Str("android")},
		}
		if spec.ARMVersion != 0 {
			args = append(args, Arg{"arm_version", Int(spec.ARMVersion)})
		}
		return args
	case platform.Windows:
		return Args{
			{"is_component_build", Bool(t == platform.SharedLibrary)},
			{"is_debug", Bool(false)},
			{"symbol_level", Int(0)},
			{"target_cpu", Str(spec.GNCPU)},
			{"target_os", Str("win")},
		}
	}
	panic("gn: unknown platform " + string(p))
}

// Config is a generated build configuration.
type Config struct {
	Platform platform.Platform
	Arch     platform.Arch
	OutDir   string
	Args     Args
}

// Generator runs gn over the build workspace.
type Generator struct {
	Cfg    *buildconf.Config
	Runner cmdexec.Runner
}

// Generate writes args.gn into the cell's output directory, replacing any
// previous content, and runs gn to produce the ninja files.
func (g *Generator) Generate(ctx context.Context, p platform.Platform, a platform.Arch, args Args) (Config, error) {
	conf := Config{
		Platform: p,
		Arch:     a,
		OutDir:   g.Cfg.CellOutDir(p, a),
		Args:     args,
	}
	if err := os.MkdirAll(conf.OutDir, 0755); err != nil {
		return Config{}, errors.WithStack(err)
	}
	argsFile := filepath.Join(conf.OutDir, "args.gn")
	if err := xos.WriteFile(argsFile, []byte(args.Render()), 0644); err != nil {
		return Config{}, errors.Wrap(err, "write args.gn")
	}

	cmd := []string{"gn"}
	if p == platform.IOS {
		cmd = append(cmd, "--check")
	}
	cmd = append(cmd, "gen", conf.OutDir)

	g.Cfg.Log.Info().Str("platform", string(p)).Stringer("arch", a).Msg("generating ninja files")
	if err := g.Runner.Run(ctx, cmdexec.Command(g.Cfg.WorkspaceSrcDir(p), cmd...)); err != nil {
		return Config{}, err
	}
	return conf, nil
}
