package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/stellitebuild/cmdexec"
	"github.com/line/stellite/pkg/stellitebuild/platform"
)

// WindowsToolchain is the Visual Studio installation reported by the
// chromium toolchain locator.
type WindowsToolchain struct {
	VSPath      string
	VSVersion   string
	SDKPath     string
	WDKDir      string
	RuntimeDirs []string
}

// WinToolchainEnv disables the hermetic toolchain download in depot_tools,
// making the locator report the locally installed Visual Studio.
const WinToolchainEnv = "DEPOT_TOOLS_WIN_TOOLCHAIN=0"

func (r *Resolver) windows(ctx context.Context) (Paths, error) {
	src := r.Cfg.ChromiumSrcDir(platform.Windows)
	python := filepath.Join(r.Cfg.DepotToolsDir(), "python276_bin", "python.exe")
	script := filepath.Join(src, "build", "vs_toolchain.py")

	cmd := cmdexec.Command(src, python, script, "get_toolchain_dir").WithEnv(WinToolchainEnv)
	out, err := r.Runner.Output(ctx, cmd)
	if err != nil {
		return Paths{}, errors.Wrap(err, "locate visual studio toolchain")
	}

	wt, err := ParseWindowsToolchain(out)
	if err != nil {
		return Paths{}, err
	}
	return Paths{Windows: wt}, nil
}

// ParseWindowsToolchain parses the key=value lines printed by
// vs_toolchain.py. Keys and values are trimmed, unquoted and lowercased.
func ParseWindowsToolchain(out []byte) (*WindowsToolchain, error) {
	kv := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), "=")
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := strings.ToLower(strings.Trim(strings.TrimSpace(parts[1]), `"`))
		kv[key] = val
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read toolchain locator output")
	}

	wt := &WindowsToolchain{
		VSPath:    kv["vs_path"],
		VSVersion: kv["vs_version"],
		SDKPath:   kv["sdk_path"],
		WDKDir:    kv["wdk_dir"],
	}
	if wt.VSPath == "" {
		return nil, &builderr.ToolchainNotFoundError{What: "visual studio (vs_path)"}
	}
	if wt.SDKPath == "" {
		return nil, &builderr.ToolchainNotFoundError{What: "windows sdk (sdk_path)"}
	}
	for _, d := range strings.Split(kv["runtime_dirs"], ";") {
		if d = strings.TrimSpace(d); d != "" {
			wt.RuntimeDirs = append(wt.RuntimeDirs, d)
		}
	}
	return wt, nil
}
