// Package toolchain locates the compilers, archivers and SDKs used to link
// the final artifacts.
package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/line/stellite/pkg/stellitebuild/buildconf"
	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/stellitebuild/buildutil"
	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
	"github.com/line/stellite/pkg/stellitebuild/platform"
)

// Paths are the resolved tools for one (platform, arch) pair.
// Fields not used by a platform are empty.
type Paths struct {
	// Compiler is the clang++ driver used for shared links.
	Compiler string

	// Archiver is ar or libtool.
	Archiver string

	// Merger is the universal binary tool (lipo).
	Merger string

	// Sysroot is the SDK root passed to the linker.
	Sysroot string

	// ExtraLibDirs are passed as -L to shared links.
	ExtraLibDirs []string

	// GCCToolchain is the NDK prebuilt toolchain directory.
	GCCToolchain string

	// LibGCC is the path of the NDK libgcc archive.
	LibGCC string

	// Windows is set for the windows platform.
	Windows *WindowsToolchain
}

// Resolver resolves toolchains, caching the result per (platform, arch).
// It is safe for concurrent use.
type Resolver struct {
	Cfg    *buildconf.Config
	Runner cmdexec.Runner
	Host   platform.Host

	mu    sync.Mutex
	cache map[cacheKey]Paths
}

type cacheKey struct {
	p platform.Platform
	a platform.Arch
}

// Resolve returns the toolchain for (p, a).
func (r *Resolver) Resolve(ctx context.Context, p platform.Platform, a platform.Arch) (Paths, error) {
	key := cacheKey{p, a}
	r.mu.Lock()
	if tc, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return tc, nil
	}
	r.mu.Unlock()

	spec := platform.Spec(p, a)
	var (
		tc  Paths
		err error
	)
	switch p {
	case platform.Linux:
		tc, err = r.linux()
	case platform.Mac:
		tc, err = r.apple(ctx, "macosx")
	case platform.IOS:
		sdk := "iphoneos"
		if spec.Simulator {
			sdk = "iphonesimulator"
		}
		tc, err = r.apple(ctx, sdk)
		if err == nil {
			tc.Merger, err = r.lookPath("lipo")
		}
	case platform.Android:
		tc, err = r.android(ctx, spec)
	case platform.Windows:
		tc, err = r.windows(ctx)
	default:
		return Paths{}, &builderr.UnsupportedPlatformError{Platform: string(p)}
	}
	if err != nil {
		return Paths{}, err
	}

	r.mu.Lock()
	if r.cache == nil {
		r.cache = make(map[cacheKey]Paths)
	}
	r.cache[key] = tc
	r.mu.Unlock()

	r.Cfg.Log.Debug().Str("platform", string(p)).Str("arch", a.String()).
		Str("compiler", tc.Compiler).Str("archiver", tc.Archiver).Str("sysroot", tc.Sysroot).
		Msg("resolved toolchain")
	return tc, nil
}

// clang returns the clang++ shipped in the chromium checkout.
func (r *Resolver) clang(p platform.Platform) (string, error) {
	path := filepath.Join(r.Cfg.ChromiumSrcDir(p), "third_party", "llvm-build", "Release+Asserts", "bin", "clang++")
	if !buildutil.Exists(path) {
		return "", &builderr.ToolchainNotFoundError{What: "clang++", Path: path}
	}
	return path, nil
}

func (r *Resolver) lookPath(name string) (string, error) {
	path, err := r.Runner.LookPath(name)
	if err != nil {
		r.Cfg.Log.Debug().Err(err).Msgf("lookup of %s failed", name)
		return "", &builderr.ToolchainNotFoundError{What: name, Path: "$PATH"}
	}
	return path, nil
}

func (r *Resolver) linux() (tc Paths, err error) {
	if tc.Compiler, err = r.clang(platform.Linux); err != nil {
		return Paths{}, err
	}
	if tc.Archiver, err = r.lookPath("ar"); err != nil {
		return Paths{}, err
	}
	return tc, nil
}

// apple resolves the toolchain for mac and ios, querying xcrun for the
// SDK root.
func (r *Resolver) apple(ctx context.Context, sdk string) (tc Paths, err error) {
	p := platform.Mac
	if sdk != "macosx" {
		p = platform.IOS
	}
	if tc.Compiler, err = r.clang(p); err != nil {
		return Paths{}, err
	}
	if tc.Archiver, err = r.lookPath("libtool"); err != nil {
		return Paths{}, err
	}
	if tc.Sysroot, err = r.sdkPath(ctx, sdk); err != nil {
		return Paths{}, err
	}
	return tc, nil
}

func (r *Resolver) sdkPath(ctx context.Context, sdk string) (string, error) {
	out, err := r.Runner.Output(ctx, cmdexec.Command("", "xcrun", "-sdk", sdk, "--show-sdk-path"))
	path := strings.TrimSpace(string(out))
	if err != nil || path == "" {
		r.Cfg.Log.Debug().Err(err).Msgf("xcrun could not locate the %s sdk", sdk)
		return "", &builderr.ToolchainNotFoundError{What: sdk + " sdk"}
	}
	return path, nil
}

// NDKDir is the Android NDK inside the chromium checkout.
func (r *Resolver) NDKDir() string {
	return filepath.Join(r.Cfg.ChromiumSrcDir(platform.Android), "third_party", "android_tools", "ndk")
}

func (r *Resolver) android(ctx context.Context, spec platform.ArchSpec) (tc Paths, err error) {
	ndk := r.NDKDir()
	if !buildutil.IsDir(ndk) {
		return Paths{}, &builderr.ToolchainNotFoundError{What: "android ndk", Path: ndk}
	}
	if tc.Compiler, err = r.clang(platform.Android); err != nil {
		return Paths{}, err
	}

	tc.GCCToolchain = filepath.Join(ndk, "toolchains", spec.NDKToolchain, "prebuilt", r.Host.NDKHostTag())
	bin := filepath.Join(tc.GCCToolchain, "bin")
	if !buildutil.IsDir(bin) {
		return Paths{}, &builderr.ToolchainNotFoundError{What: spec.NDKToolchain + " toolchain", Path: bin}
	}

	// The gcc driver is the one binary named <triple>-gcc; the other tools
	// share its prefix.
	gcc, err := FindTool(bin, "-gcc")
	if err != nil {
		return Paths{}, err
	}
	prefix := strings.TrimSuffix(gcc, "-gcc")
	tc.Archiver = prefix + "-ar"
	if !buildutil.Exists(tc.Archiver) {
		return Paths{}, &builderr.ToolchainNotFoundError{What: "ndk archiver", Path: tc.Archiver}
	}

	tc.Sysroot = filepath.Join(ndk, "platforms", filepath.FromSlash(spec.NDKPlatform))
	if !buildutil.IsDir(tc.Sysroot) {
		return Paths{}, &builderr.ToolchainNotFoundError{What: "ndk sysroot", Path: tc.Sysroot}
	}

	libcxx := filepath.Join(ndk, "sources", "cxx-stl", "llvm-libc++", "libs", spec.ABI)
	if !buildutil.IsDir(libcxx) {
		return Paths{}, &builderr.ToolchainNotFoundError{What: "libc++ for " + spec.ABI, Path: libcxx}
	}
	tc.ExtraLibDirs = []string{libcxx}

	out, err := r.Runner.Output(ctx, cmdexec.Command(bin, gcc, "-print-libgcc-file-name"))
	if err != nil {
		return Paths{}, errors.Wrap(err, "locate libgcc")
	}
	tc.LibGCC = strings.TrimSpace(string(out))
	if tc.LibGCC == "" {
		return Paths{}, &builderr.ToolchainNotFoundError{What: "libgcc", Path: bin}
	}
	return tc, nil
}

// FindTool returns the single entry of dir whose name ends in suffix.
func FindTool(dir, suffix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", &builderr.ToolchainNotFoundError{What: "*" + suffix, Path: dir}
	}
	var matches []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) != 1 {
		return "", &builderr.AmbiguousOrMissingToolError{Dir: dir, Suffix: suffix, Matches: matches}
	}
	return filepath.Join(dir, matches[0]), nil
}
