package buildconf

import (
	"io/fs"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/line/stellite/pkg/option"
)

// FileName is the optional project configuration file.
const FileName = "stellite-build.toml"

// fileConfig mirrors the keys accepted in FileName.
type fileConfig struct {
	CacheDir      string        `koanf:"cache_dir"`
	OutDir        string        `koanf:"out_dir"`
	ChromiumPath  string        `koanf:"chromium_path"`
	Jobs          int           `koanf:"jobs"`
	Parallel      int           `koanf:"parallel"`
	Timeout       time.Duration `koanf:"timeout"`
	StrictPatches bool          `koanf:"strict_patches"`
	Verbose       bool          `koanf:"verbose"`
	Archive       bool          `koanf:"archive"`
	DepotToolsURL string        `koanf:"depot_tools_url"`
	SourceDirs    []string      `koanf:"source_dirs"`
	SkipCells     []string      `koanf:"capabilities.skip"`
	AllowCells    []string      `koanf:"capabilities.allow"`
}

var tomlParser = toml.Parser()

// Load returns the default configuration for projectDir with the values of
// its FileName applied, if the file exists. Relative paths in the file are
// resolved against projectDir.
func Load(projectDir string, log zerolog.Logger) (*Config, error) {
	cfg := Default(projectDir, log)

	k := koanf.New(".")
	path := filepath.Join(projectDir, FileName)
	if err := k.Load(file.Provider(path), tomlParser); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "unable to parse %s", path)
	}

	var fc fileConfig
	err := k.UnmarshalWithConf("", &fc, koanf.UnmarshalConf{
		Tag:       "koanf",
		FlatPaths: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to unmarshal %s", path)
	}

	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(projectDir, p)
	}
	if fc.CacheDir != "" {
		cfg.CacheDir = abs(fc.CacheDir)
	}
	if fc.OutDir != "" {
		cfg.OutDir = abs(fc.OutDir)
	}
	if fc.ChromiumPath != "" {
		cfg.ChromiumPath = option.Some(abs(fc.ChromiumPath))
	}
	if fc.DepotToolsURL != "" {
		cfg.DepotToolsURL = fc.DepotToolsURL
	}
	if len(fc.SourceDirs) > 0 {
		cfg.SourceDirs = fc.SourceDirs
	}
	cfg.Jobs = fc.Jobs
	cfg.Parallel = fc.Parallel
	cfg.Timeout = fc.Timeout
	cfg.StrictPatches = fc.StrictPatches
	cfg.Verbose = fc.Verbose
	cfg.Archive = fc.Archive
	cfg.SkipCells = fc.SkipCells
	cfg.AllowCells = fc.AllowCells

	log.Debug().Str("path", path).Msg("loaded project config")
	return cfg, nil
}
