package buildconf

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/line/stellite/pkg/option"
	"github.com/line/stellite/pkg/stellitebuild/platform"
)

// DefaultDepotToolsURL is where depot_tools is cloned from when missing.
const DefaultDepotToolsURL = "https://chromium.googlesource.com/chromium/tools/depot_tools.git"

// Config is the configuration shared by every stage of a build.
// It is created once per invocation and passed explicitly.
type Config struct {
	// Logger to use.
	Log zerolog.Logger

	// ProjectDir is the root of the stellite checkout. It holds chromium.tag,
	// patches/, modified_files/ and the project sources.
	ProjectDir string

	// CacheDir holds depot_tools and the chromium checkouts.
	// Defaults to <ProjectDir>/third_party.
	CacheDir string

	// OutDir is where the final artifacts are collected.
	// Defaults to <ProjectDir>/output.
	OutDir string

	// ChromiumPath overrides the location of the chromium checkout.
	ChromiumPath option.Option[string]

	// Jobs is the parallelism hint passed to gclient. Zero means 4 per CPU.
	Jobs int

	// Parallel is the number of build cells run concurrently. Values below 2
	// build cells one at a time.
	Parallel int

	// Timeout bounds every external command. Zero means no timeout.
	Timeout time.Duration

	// StrictPatches makes a patch that fails to apply fatal.
	StrictPatches bool

	// Verbose passes -v to ninja.
	Verbose bool

	// Archive tars the output directory once collected.
	Archive bool

	// DepotToolsURL is the git remote depot_tools is cloned from.
	DepotToolsURL string

	// SourceDirs are the project directories linked into the workspace.
	SourceDirs []string

	// SkipCells and AllowCells override the build capability table,
	// as "platform/arch/type" entries.
	SkipCells  []string
	AllowCells []string
}

// Default returns the configuration for a project rooted at projectDir.
func Default(projectDir string, log zerolog.Logger) *Config {
	return &Config{
		Log:           log,
		ProjectDir:    projectDir,
		CacheDir:      filepath.Join(projectDir, "third_party"),
		OutDir:        filepath.Join(projectDir, "output"),
		DepotToolsURL: DefaultDepotToolsURL,
		SourceDirs:    []string{"stellite", "trident"},
	}
}

func (cfg *Config) DepotToolsDir() string {
	return filepath.Join(cfg.CacheDir, "depot_tools")
}

// ChromiumDir is the root of the chromium checkout for p.
func (cfg *Config) ChromiumDir(p platform.Platform) string {
	return cfg.ChromiumPath.GetOrElse(func() string {
		return filepath.Join(cfg.CacheDir, "chromium_"+string(p))
	})
}

// ChromiumSrcDir is the src directory of the chromium checkout for p.
func (cfg *Config) ChromiumSrcDir(p platform.Platform) string {
	return filepath.Join(cfg.ChromiumDir(p), "src")
}

// BuildspaceDir is the trimmed workspace the build runs in.
func (cfg *Config) BuildspaceDir(p platform.Platform) string {
	return filepath.Join(cfg.ProjectDir, "build_"+string(p))
}

func (cfg *Config) WorkspaceSrcDir(p platform.Platform) string {
	return filepath.Join(cfg.BuildspaceDir(p), "src")
}

// CellOutDir is the gn output directory of one build cell.
func (cfg *Config) CellOutDir(p platform.Platform, a platform.Arch) string {
	name := "out_" + string(p)
	if a != platform.HostArch {
		name += "_" + string(a)
	}
	return filepath.Join(cfg.WorkspaceSrcDir(p), name)
}

// MergedOutDir is where the architecture-merged artifact of p is written.
func (cfg *Config) MergedOutDir(p platform.Platform) string {
	return filepath.Join(cfg.WorkspaceSrcDir(p), "out_"+string(p)+"_all")
}

func (cfg *Config) TagFile() string {
	return filepath.Join(cfg.ProjectDir, "chromium.tag")
}

func (cfg *Config) ModifiedFilesDir() string {
	return filepath.Join(cfg.ProjectDir, "modified_files")
}

func (cfg *Config) PatchesDir() string {
	return filepath.Join(cfg.ProjectDir, "patches")
}

// JobCount is the parallelism hint for external tools.
func (cfg *Config) JobCount() int {
	if cfg.Jobs > 0 {
		return cfg.Jobs
	}
	return runtime.NumCPU() * 4
}

// Capabilities returns the capability table with the configured overrides.
func (cfg *Config) Capabilities() (*platform.Capabilities, error) {
	caps := platform.DefaultCapabilities()
	if err := caps.Apply(cfg.SkipCells, cfg.AllowCells); err != nil {
		return nil, err
	}
	return caps, nil
}

// Exe returns the executable file suffix for p.
func Exe(p platform.Platform) string {
	if p == platform.Windows {
		return ".exe"
	}
	return ""
}
