package stellitebuild

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	qt "github.com/frankban/quicktest"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/goleak"

	"github.com/line/stellite/internal/testutil"
	"github.com/line/stellite/pkg/stellitebuild/buildconf"
	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
	"github.com/line/stellite/pkg/stellitebuild/depsync"
	"github.com/line/stellite/pkg/stellitebuild/link"
	"github.com/line/stellite/pkg/stellitebuild/platform"
	"github.com/line/stellite/pkg/xos"
)

const testTag = "58.0.3029.81"

var (
	linuxHost  = platform.Host{OS: "linux", Arch: "amd64", Release: xos.OSRelease{"ID": "ubuntu"}}
	darwinHost = platform.Host{OS: "darwin", Arch: "amd64"}
)

type project struct {
	c    *qt.C
	cfg  *buildconf.Config
	fake *cmdexec.Fake
	orch *Orchestrator
}

// newProject creates a project whose chromium checkout for p is at the
// pinned tag. Commands are recorded; ninja and the link tools create the
// files the real tools would.
func newProject(c *qt.C, p platform.Platform, host platform.Host) *project {
	dir := testutil.TxtarDir(c, `
-- chromium.tag --
`+testTag+`
-- stellite/include/stellite.h --
-- trident/include/trident.h --
-- trident/include/trident_types.h --
-- third_party/depot_tools/gclient --
`)
	cfg := buildconf.Default(dir, testutil.Logger(c))
	cfg.Jobs = 2

	files := map[string]bool{
		".gclient": true,
		"src/DEPS": true,
		"src/.gn":  true,
	}
	files["src/third_party/llvm-build/Release+Asserts/bin/clang++"] = true
	for _, d := range platform.DependencyDirectoriesFor(p) {
		files["src/"+d+"/BUILD.gn"] = true
	}
	if p == platform.Android {
		ndk := "src/third_party/android_tools/ndk/"
		for _, a := range platform.ArchitecturesFor(p) {
			spec := platform.Spec(p, a)
			bin := ndk + "toolchains/" + spec.NDKToolchain + "/prebuilt/linux-x86_64/bin/"
			files[bin+spec.ABITarget+"-gcc"] = true
			files[bin+spec.ABITarget+"-ar"] = true
			files[ndk+"platforms/"+spec.NDKPlatform+"/"+spec.NDKLibDir+"/crtbegin_so.o"] = true
			files[ndk+"sources/cxx-stl/llvm-libc++/libs/"+spec.ABI+"/libc++_shared.so"] = true
		}
	}
	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(files)) {
		b.WriteString("-- " + name + " --\n")
	}
	testutil.WriteTxtar(c, cfg.ChromiumDir(p), b.String())

	_, err := git.PlainInit(cfg.ChromiumSrcDir(p), false)
	c.Assert(err, qt.IsNil)
	setBranch(c, cfg.ChromiumSrcDir(p), depsync.BranchFor(testTag))

	pr := &project{c: c, cfg: cfg}
	pr.fake = &cmdexec.Fake{
		Paths:  map[string]string{"ar": "/usr/bin/ar", "libtool": "/usr/bin/libtool", "lipo": "/usr/bin/lipo"},
		Handle: pr.handle,
	}
	pr.orch = &Orchestrator{Cfg: cfg, Runner: pr.fake, Host: host}
	return pr
}

// setBranch points HEAD of the repository at dir to branch.
func setBranch(c *qt.C, dir, branch string) {
	repo, err := git.PlainOpen(dir)
	c.Assert(err, qt.IsNil)
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	c.Assert(repo.Storer.SetReference(head), qt.IsNil)
}

func (pr *project) touch(path string) {
	pr.c.Assert(os.MkdirAll(filepath.Dir(path), 0755), qt.IsNil)
	pr.c.Assert(os.WriteFile(path, []byte(filepath.Base(path)), 0644), qt.IsNil)
}

func (pr *project) handle(cmd cmdexec.Cmd) ([]byte, error) {
	args := cmd.Args
	tool := filepath.Base(args[0])
	switch {
	case tool == "ninja":
		out, target := args[len(args)-2], args[len(args)-1]
		pr.touch(filepath.Join(out, target))
		pr.touch(filepath.Join(out, "obj", "net", "libnet.a"))
		pr.touch(filepath.Join(out, "obj", "net", "net.o"))
		pr.touch(filepath.Join(out, "lib.java", "base_java.jar"))
	case tool == "xcrun":
		return []byte("/sdk/" + args[2] + "\n"), nil
	case strings.HasSuffix(tool, "-gcc"):
		return []byte("/ndk/libgcc.a\n"), nil
	case tool == "ar" || strings.HasSuffix(tool, "-ar"):
		pr.touch(args[2])
	default:
		for i, a := range args {
			if (a == "-o" || a == "-output") && i+1 < len(args) {
				pr.touch(args[i+1])
			}
		}
	}
	return nil, nil
}

// tools returns the base names of the commands run, in order.
func (pr *project) tools() []string {
	var tools []string
	for _, argv := range pr.fake.Argv() {
		tools = append(tools, filepath.Base(argv[0]))
	}
	return tools
}

func TestScenarioLinuxExecutable(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.Linux, linuxHost)

	res, err := pr.orch.Run(context.Background(), Build, Request{
		Target:   QuicServer,
		Platform: platform.Linux,
		Type:     platform.StaticLibrary,
	})
	c.Assert(err, qt.IsNil)

	out := pr.cfg.CellOutDir(platform.Linux, platform.HostArch)
	c.Assert(pr.fake.Argv(), qt.DeepEquals, [][]string{
		{"gn", "gen", out},
		{"ninja", "-C", out, "quic_server"},
	})
	c.Assert(res.Cells, qt.DeepEquals, []Cell{{Platform: platform.Linux, Arch: platform.HostArch, OutDir: out}})
	c.Assert(res.Artifacts, qt.DeepEquals, []link.Artifact{{Path: filepath.Join(out, "quic_server"), Role: link.Executable}})
	c.Assert(testutil.Files(c, pr.cfg.OutDir), qt.DeepEquals, []string{"quic_server"})
	c.Assert(res.Outputs, qt.DeepEquals, []string{filepath.Join(pr.cfg.OutDir, "quic_server")})
}

func TestScenarioAndroidStatic(t *testing.T) {
	for _, parallel := range []int{0, 3} {
		t.Run("parallel="+strconv.Itoa(parallel), func(t *testing.T) {
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
			c := qt.New(t)
			pr := newProject(c, platform.Android, linuxHost)
			pr.cfg.Parallel = parallel

			res, err := pr.orch.Run(context.Background(), Build, Request{
				Target:   TridentHTTPClient,
				Platform: platform.Android,
				Type:     platform.StaticLibrary,
			})
			c.Assert(err, qt.IsNil)

			archs := platform.ArchitecturesFor(platform.Android)
			c.Assert(res.Cells, qt.HasLen, len(archs))
			c.Assert(res.Artifacts, qt.HasLen, len(archs))
			for i, a := range archs {
				c.Assert(res.Cells[i].Arch, qt.Equals, a)
				c.Assert(res.Artifacts[i], qt.DeepEquals, link.Artifact{
					Path: filepath.Join(pr.cfg.CellOutDir(platform.Android, a), "libtrident_http_client_android_"+string(a)+".a"),
					Role: link.PerArch,
				})
			}

			c.Assert(testutil.Files(c, pr.cfg.OutDir), qt.DeepEquals, []string{
				"android_common/base_java.jar",
				"android_common/trident.h",
				"android_common/trident_types.h",
				"arm64/libtrident_http_client_android_arm64.a",
				"armv6/libtrident_http_client_android_armv6.a",
				"armv7/libtrident_http_client_android_armv7.a",
				"x64/libtrident_http_client_android_x64.a",
				"x86/libtrident_http_client_android_x86.a",
			})

			count := map[string]int{}
			for _, tool := range pr.tools() {
				count[tool]++
			}
			c.Assert(count["gn"], qt.Equals, 5)
			c.Assert(count["ninja"], qt.Equals, 5)
			c.Assert(count["lipo"], qt.Equals, 0)
			c.Assert(count["git"], qt.Equals, 0)
			c.Assert(count["gclient"], qt.Equals, 0)
		})
	}
}

func TestIOSMergesAllArchitectures(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.IOS, darwinHost)

	res, err := pr.orch.Run(context.Background(), Build, Request{
		Target:   StelliteHTTPClient,
		Platform: platform.IOS,
		Type:     platform.StaticLibrary,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Cells, qt.HasLen, 4)

	merged := filepath.Join(pr.cfg.MergedOutDir(platform.IOS), "libstellite_http_client.a")
	c.Assert(res.Artifacts, qt.DeepEquals, []link.Artifact{{Path: merged, Role: link.Merged}})

	var lipo []string
	for _, argv := range pr.fake.Argv() {
		if argv[0] == "/usr/bin/lipo" {
			lipo = argv
		}
	}
	want := []string{"/usr/bin/lipo", "-create"}
	for _, a := range platform.ArchitecturesFor(platform.IOS) {
		want = append(want, filepath.Join(pr.cfg.CellOutDir(platform.IOS, a), "libstellite_http_client_"+string(a)+".a"))
	}
	want = append(want, "-output", merged)
	c.Assert(lipo, qt.DeepEquals, want)

	c.Assert(testutil.Files(c, pr.cfg.OutDir), qt.DeepEquals, []string{"libstellite_http_client.a", "stellite.h"})
}

func TestIOSSharedSkipsUnsupportedArch(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.IOS, darwinHost)

	res, err := pr.orch.Run(context.Background(), Build, Request{
		Target:   TridentHTTPClient,
		Platform: platform.IOS,
		Type:     platform.SharedLibrary,
	})
	c.Assert(err, qt.IsNil)

	var archs []platform.Arch
	for _, cell := range res.Cells {
		archs = append(archs, cell.Arch)
	}
	c.Assert(archs, qt.DeepEquals, []platform.Arch{"x86", "arm", "arm64"})

	argv := pr.fake.Argv()
	lipo := argv[len(argv)-1]
	c.Assert(lipo[0], qt.Equals, "/usr/bin/lipo")
	c.Assert(lipo[2:5], qt.HasLen, 3)
	c.Assert(lipo[5:], qt.DeepEquals, []string{"-output", filepath.Join(pr.cfg.MergedOutDir(platform.IOS), "libtrident_http_client.dylib")})
	c.Assert(testutil.Files(c, pr.cfg.OutDir), qt.DeepEquals, []string{"libtrident_http_client.dylib", "trident.h", "trident_types.h"})
}

func TestHostGateRunsNothing(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.IOS, linuxHost)

	for _, action := range Actions {
		_, err := pr.orch.Run(context.Background(), action, Request{
			Target:   TridentHTTPClient,
			Platform: platform.IOS,
			Type:     platform.StaticLibrary,
		})
		var unsupported *builderr.UnsupportedPlatformError
		c.Assert(errors.As(err, &unsupported), qt.IsTrue)
		c.Assert(unsupported.Platform, qt.Equals, "ios")
	}
	c.Assert(pr.fake.Calls(), qt.HasLen, 0)
	c.Assert(pr.cfg.BuildspaceDir(platform.IOS), qt.Not(qt.Satisfies), exists)
	c.Assert(pr.cfg.OutDir, qt.Not(qt.Satisfies), exists)
}

func TestAndroidNeedsUbuntu(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.Android, platform.Host{OS: "linux", Arch: "amd64", Release: xos.OSRelease{"ID": "fedora"}})

	_, err := pr.orch.Run(context.Background(), Build, Request{
		Target:   TridentHTTPClient,
		Platform: platform.Android,
		Type:     platform.StaticLibrary,
	})
	c.Assert(err, qt.ErrorMatches, `unsupported platform "android": requires an ubuntu-family linux host`)
	c.Assert(pr.fake.Calls(), qt.HasLen, 0)
}

func TestClean(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.Linux, linuxHost)
	out := pr.cfg.CellOutDir(platform.Linux, platform.HostArch)
	pr.touch(filepath.Join(out, "obj", "stale.a"))

	res, err := pr.orch.Run(context.Background(), Clean, Request{
		Target:   TridentHTTPClient,
		Platform: platform.Linux,
		Type:     platform.StaticLibrary,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Cells, qt.HasLen, 0)
	c.Assert(out, qt.Not(qt.Satisfies), exists)
	// The checkout is at the pinned tag, so nothing is re-synced.
	c.Assert(pr.fake.Calls(), qt.HasLen, 0)
}

func TestCleanBuild(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.Linux, linuxHost)
	out := pr.cfg.CellOutDir(platform.Linux, platform.HostArch)
	pr.touch(filepath.Join(out, "obj", "old", "libold.a"))

	res, err := pr.orch.Run(context.Background(), CleanBuild, Request{
		Target:   StelliteHTTPClient,
		Platform: platform.Linux,
		Type:     platform.StaticLibrary,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Artifacts, qt.DeepEquals, []link.Artifact{{Path: filepath.Join(out, "libstellite_http_client.a"), Role: link.PerArch}})

	argv := pr.fake.Argv()
	c.Assert(argv[len(argv)-1], qt.DeepEquals, []string{
		"/usr/bin/ar", "rsc", filepath.Join(out, "libstellite_http_client.a"),
		filepath.Join(out, "obj", "net", "libnet.a"),
	})
	c.Assert(testutil.Files(c, pr.cfg.OutDir), qt.DeepEquals, []string{"libstellite_http_client.a", "stellite.h"})
}

func TestCleanRetagThenBuild(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.Linux, linuxHost)
	src := pr.cfg.ChromiumSrcDir(platform.Linux)
	setBranch(c, src, "chromium_57.0.2987.0")
	handle := pr.fake.Handle
	pr.fake.Handle = func(cmd cmdexec.Cmd) ([]byte, error) {
		if strings.Join(cmd.Args, " ") == "git checkout "+depsync.BranchFor(testTag) {
			setBranch(c, src, depsync.BranchFor(testTag))
			return nil, nil
		}
		return handle(cmd)
	}
	stale := filepath.Join(pr.cfg.WorkspaceSrcDir(platform.Linux), "base", "from_old_tag.cc")
	pr.touch(stale)

	req := Request{Target: StelliteHTTPClient, Platform: platform.Linux, Type: platform.StaticLibrary}
	_, err := pr.orch.Run(context.Background(), Clean, req)
	c.Assert(err, qt.IsNil)
	c.Assert(pr.tools(), qt.DeepEquals, []string{"git", "git", "git", "gclient"})
	c.Assert(stale, qt.Not(qt.Satisfies), exists)

	pr.fake.Reset()
	_, err = pr.orch.Run(context.Background(), Build, req)
	c.Assert(err, qt.IsNil)
	c.Assert(pr.tools(), qt.DeepEquals, []string{"gn", "ninja", "ar"})
	c.Assert(stale, qt.Not(qt.Satisfies), exists)
	c.Assert(filepath.Join(pr.cfg.WorkspaceSrcDir(platform.Linux), "base", "BUILD.gn"), qt.Satisfies, exists)
}

func TestArchive(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.Linux, linuxHost)
	pr.cfg.Archive = true
	outRoot := filepath.Join(c.TempDir(), "dist")

	res, err := pr.orch.Run(context.Background(), Build, Request{
		Target:     StelliteQuicServer,
		Platform:   platform.Linux,
		Type:       platform.SharedLibrary,
		OutputRoot: outRoot,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Archive, qt.Equals, outRoot+".tar.gz")

	argv := pr.fake.Argv()
	c.Assert(argv[len(argv)-1], qt.DeepEquals, []string{"tar", "-czf", outRoot + ".tar.gz", "-C", outRoot, "."})
	c.Assert(testutil.Files(c, outRoot), qt.DeepEquals, []string{"stellite_quic_server"})
}

func TestCellFailureStopsBuild(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.Android, linuxHost)
	handle := pr.fake.Handle
	pr.fake.Handle = func(cmd cmdexec.Cmd) ([]byte, error) {
		if cmd.Args[0] == "ninja" && strings.HasSuffix(cmd.Args[2], "_arm64") {
			return nil, errors.New("ninja: build stopped: subcommand failed.")
		}
		return handle(cmd)
	}

	_, err := pr.orch.Run(context.Background(), Build, Request{
		Target:   TridentHTTPClient,
		Platform: platform.Android,
		Type:     platform.StaticLibrary,
	})
	var cmdErr *builderr.ExternalCommandFailedError
	c.Assert(errors.As(err, &cmdErr), qt.IsTrue)
	c.Assert(cmdErr.Args[0], qt.Equals, "ninja")
	c.Assert(pr.cfg.OutDir, qt.Not(qt.Satisfies), exists)
}

func TestUnknownTarget(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.Linux, linuxHost)
	_, err := pr.orch.Run(context.Background(), Build, Request{
		Target:   "chrome",
		Platform: platform.Linux,
		Type:     platform.StaticLibrary,
	})
	c.Assert(err, qt.ErrorMatches, `unknown target "chrome"`)
	c.Assert(pr.fake.Calls(), qt.HasLen, 0)
}

func TestIOSRejectsExecutableTargets(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.IOS, darwinHost)
	for _, target := range []string{QuicServer, StelliteQuicServer} {
		_, err := pr.orch.Run(context.Background(), Build, Request{
			Target:   target,
			Platform: platform.IOS,
			Type:     platform.StaticLibrary,
		})
		var unsupported *builderr.UnsupportedPlatformError
		c.Assert(errors.As(err, &unsupported), qt.IsTrue)
		c.Assert(err, qt.ErrorMatches, `unsupported platform "ios": executable target `+target+` cannot be merged across architectures`)
	}
	c.Assert(pr.fake.Calls(), qt.HasLen, 0)
	c.Assert(pr.cfg.OutDir, qt.Not(qt.Satisfies), exists)
}

func TestAndroidExecutablePerArch(t *testing.T) {
	c := qt.New(t)
	pr := newProject(c, platform.Android, linuxHost)

	res, err := pr.orch.Run(context.Background(), Build, Request{
		Target:   QuicServer,
		Platform: platform.Android,
		Type:     platform.StaticLibrary,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Artifacts, qt.HasLen, len(platform.ArchitecturesFor(platform.Android)))

	var want []string
	for _, a := range platform.ArchitecturesFor(platform.Android) {
		want = append(want, string(a)+"/quic_server")
	}
	want = append(want, "android_common/base_java.jar")
	slices.Sort(want)
	c.Assert(testutil.Files(c, pr.cfg.OutDir), qt.DeepEquals, want)
}

func TestParseAction(t *testing.T) {
	c := qt.New(t)
	a, err := ParseAction("clean_build")
	c.Assert(err, qt.IsNil)
	c.Assert(a, qt.Equals, CleanBuild)
	_, err = ParseAction("configure")
	c.Assert(err, qt.ErrorMatches, `unknown action "configure"`)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
