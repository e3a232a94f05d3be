package gn

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"

	"github.com/line/stellite/internal/testutil"
	"github.com/line/stellite/pkg/stellitebuild/buildconf"
	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
	"github.com/line/stellite/pkg/stellitebuild/platform"
)

func TestArgsFor(t *testing.T) {
	c := qt.New(t)

	c.Assert(ArgsFor(platform.Linux, platform.HostArch, platform.StaticLibrary).Render(), qt.Equals, `is_component_build = false
disable_file_support = true
disable_ftp_support = true
target_cpu = "x64"
target_os = "linux"
`)

	c.Assert(ArgsFor(platform.IOS, "arm64", platform.SharedLibrary).Render(), qt.Equals, `disable_file_support = true
disable_ftp_support = true
enable_dsyms = false
enable_stripping = enable_dsyms
ios_enable_code_signing = false
is_component_build = false
is_debug = false
is_official_build = false
symbol_level = 1
target_cpu = "arm64"
target_os = "ios"
use_xcode_clang = is_official_build
`)

	tests := []struct {
		p    platform.Platform
		a    platform.Arch
		t    platform.ArtifactType
		key  string
		want string
		ok   bool
	}{
		{platform.Android, "armv6", platform.StaticLibrary, "target_cpu", `"arm"`, true},
		{platform.Android, "armv6", platform.StaticLibrary, "arm_version", "6", true},
		{platform.Android, "armv7", platform.StaticLibrary, "arm_version", "7", true},
		{platform.Android, "arm64", platform.StaticLibrary, "arm_version", "", false},
		{platform.Android, "x64", platform.SharedLibrary, "target_cpu", `"x64"`, true},
		{platform.Mac, platform.HostArch, platform.StaticLibrary, "target_os", `"mac"`, true},
		{platform.Windows, platform.HostArch, platform.StaticLibrary, "is_component_build", "false", true},
		{platform.Windows, platform.HostArch, platform.SharedLibrary, "is_component_build", "true", true},
		{platform.Windows, platform.HostArch, platform.SharedLibrary, "target_os", `"win"`, true},
	}
	for _, test := range tests {
		got, ok := ArgsFor(test.p, test.a, test.t).Get(test.key)
		c.Check(ok, qt.Equals, test.ok, qt.Commentf("%s/%s %s", test.p, test.a, test.key))
		c.Check(got, qt.Equals, test.want, qt.Commentf("%s/%s %s", test.p, test.a, test.key))
	}
}

func TestArgsSet(t *testing.T) {
	c := qt.New(t)
	args := Args{{"a", "1"}, {"b", "2"}}
	got := args.Set("a", "3").Set("c", Str("x"))
	c.Assert(got.Render(), qt.Equals, "a = 3\nb = 2\nc = \"x\"\n")
	c.Assert(args.Render(), qt.Equals, "a = 1\nb = 2\n")
}

func newGenerator(c *qt.C, fake *cmdexec.Fake) *Generator {
	cfg := buildconf.Default(c.TempDir(), testutil.Logger(c))
	return &Generator{Cfg: cfg, Runner: fake}
}

func TestGenerate(t *testing.T) {
	c := qt.New(t)
	fake := &cmdexec.Fake{}
	g := newGenerator(c, fake)

	conf, err := g.Generate(context.Background(), platform.Android, "armv7", ArgsFor(platform.Android, "armv7", platform.StaticLibrary))
	c.Assert(err, qt.IsNil)
	c.Assert(conf.OutDir, qt.Equals, filepath.Join(g.Cfg.ProjectDir, "build_android", "src", "out_android_armv7"))
	c.Assert(fake.Argv(), qt.DeepEquals, [][]string{{"gn", "gen", conf.OutDir}})
	c.Assert(fake.Calls()[0].Dir, qt.Equals, g.Cfg.WorkspaceSrcDir(platform.Android))

	data, err := os.ReadFile(filepath.Join(conf.OutDir, "args.gn"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, conf.Args.Render())
}

func TestGenerateReplacesArgs(t *testing.T) {
	c := qt.New(t)
	fake := &cmdexec.Fake{}
	g := newGenerator(c, fake)
	ctx := context.Background()

	_, err := g.Generate(ctx, platform.Windows, platform.HostArch, ArgsFor(platform.Windows, platform.HostArch, platform.SharedLibrary))
	c.Assert(err, qt.IsNil)
	conf, err := g.Generate(ctx, platform.Windows, platform.HostArch, Args{{"is_debug", "true"}})
	c.Assert(err, qt.IsNil)

	data, err := os.ReadFile(filepath.Join(conf.OutDir, "args.gn"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "is_debug = true\n")
	c.Assert(filepath.Base(conf.OutDir), qt.Equals, "out_windows")
}

func TestGenerateIOSChecks(t *testing.T) {
	c := qt.New(t)
	fake := &cmdexec.Fake{}
	g := newGenerator(c, fake)

	conf, err := g.Generate(context.Background(), platform.IOS, "x86", ArgsFor(platform.IOS, "x86", platform.StaticLibrary))
	c.Assert(err, qt.IsNil)
	c.Assert(fake.Argv(), qt.DeepEquals, [][]string{{"gn", "--check", "gen", conf.OutDir}})
}

func TestGenerateFailure(t *testing.T) {
	c := qt.New(t)
	fake := &cmdexec.Fake{Handle: func(cmdexec.Cmd) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}}
	g := newGenerator(c, fake)

	_, err := g.Generate(context.Background(), platform.Linux, platform.HostArch, ArgsFor(platform.Linux, platform.HostArch, platform.StaticLibrary))
	var cmdErr *builderr.ExternalCommandFailedError
	c.Assert(errors.As(err, &cmdErr), qt.IsTrue)
	c.Assert(cmdErr.Args[0], qt.Equals, "gn")
}
