package buildconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/rs/zerolog"

	"github.com/line/stellite/pkg/option"
	"github.com/line/stellite/pkg/stellitebuild/platform"
)

func TestDefaultLayout(t *testing.T) {
	c := qt.New(t)
	cfg := Default("/proj", zerolog.Nop())

	c.Assert(cfg.DepotToolsDir(), qt.Equals, filepath.FromSlash("/proj/third_party/depot_tools"))
	c.Assert(cfg.ChromiumDir(platform.Android), qt.Equals, filepath.FromSlash("/proj/third_party/chromium_android"))
	c.Assert(cfg.WorkspaceSrcDir(platform.IOS), qt.Equals, filepath.FromSlash("/proj/build_ios/src"))
	c.Assert(cfg.CellOutDir(platform.Linux, platform.HostArch), qt.Equals, filepath.FromSlash("/proj/build_linux/src/out_linux"))
	c.Assert(cfg.CellOutDir(platform.Android, "arm64"), qt.Equals, filepath.FromSlash("/proj/build_android/src/out_android_arm64"))
	c.Assert(cfg.MergedOutDir(platform.IOS), qt.Equals, filepath.FromSlash("/proj/build_ios/src/out_ios_all"))
	c.Assert(cfg.TagFile(), qt.Equals, filepath.FromSlash("/proj/chromium.tag"))

	cfg.ChromiumPath = option.Some("/src/chromium")
	c.Assert(cfg.ChromiumDir(platform.Android), qt.Equals, "/src/chromium")
	c.Assert(cfg.ChromiumSrcDir(platform.Android), qt.Equals, filepath.FromSlash("/src/chromium/src"))
}

func TestJobCount(t *testing.T) {
	c := qt.New(t)
	cfg := Default("/proj", zerolog.Nop())
	c.Assert(cfg.JobCount() > 0, qt.IsTrue)
	c.Assert(cfg.JobCount()%4, qt.Equals, 0)
	cfg.Jobs = 3
	c.Assert(cfg.JobCount(), qt.Equals, 3)
}

func TestLoadMissingFile(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()

	cfg, err := Load(dir, zerolog.Nop())
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.CacheDir, qt.Equals, filepath.Join(dir, "third_party"))
	c.Assert(cfg.DepotToolsURL, qt.Equals, DefaultDepotToolsURL)
	c.Assert(cfg.ChromiumPath.IsPresent(), qt.IsFalse)
}

func TestLoadFile(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	err := os.WriteFile(filepath.Join(dir, FileName), []byte(`
cache_dir = "cache"
chromium_path = "/chromium"
jobs = 8
parallel = 2
timeout = "90m"
strict_patches = true

[capabilities]
allow = ["ios/x64/shared_library"]
skip = ["android/armv6/static_library"]
`), 0644)
	c.Assert(err, qt.IsNil)

	cfg, err := Load(dir, zerolog.Nop())
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.CacheDir, qt.Equals, filepath.Join(dir, "cache"))
	c.Assert(cfg.OutDir, qt.Equals, filepath.Join(dir, "output"))
	c.Assert(cfg.ChromiumPath, qt.Equals, option.Some("/chromium"))
	c.Assert(cfg.Jobs, qt.Equals, 8)
	c.Assert(cfg.Parallel, qt.Equals, 2)
	c.Assert(cfg.Timeout, qt.Equals, 90*time.Minute)
	c.Assert(cfg.StrictPatches, qt.IsTrue)

	caps, err := cfg.Capabilities()
	c.Assert(err, qt.IsNil)
	c.Assert(caps.Supported(platform.IOS, "x64", platform.SharedLibrary), qt.IsTrue)
	c.Assert(caps.Supported(platform.Android, "armv6", platform.StaticLibrary), qt.IsFalse)
}

func TestLoadInvalidFile(t *testing.T) {
	c := qt.New(t)
	dir := c.TempDir()
	err := os.WriteFile(filepath.Join(dir, FileName), []byte("jobs = [\n"), 0644)
	c.Assert(err, qt.IsNil)

	_, err = Load(dir, zerolog.Nop())
	c.Assert(err, qt.ErrorMatches, "(?s)unable to parse .*")
}
