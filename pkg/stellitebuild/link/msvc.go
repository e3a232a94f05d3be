package link

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/stellitebuild/platform"
)

// PackageDir is the directory below the output directory the Windows
// outputs are collected into.
const PackageDir = "package"

type windowsStrategy struct{ base }

// Plan copies the libraries ninja produced; the Windows toolchain links
// them itself. It still requires the Visual Studio toolchain ninja used.
func (s *windowsStrategy) Plan(in Input, t platform.ArtifactType) (Plan, error) {
	if in.Toolchain.Windows == nil {
		return Plan{}, &builderr.ToolchainNotFoundError{What: "visual studio toolchain"}
	}
	var pattern string
	switch t {
	case platform.StaticLibrary:
		pattern = "*.lib"
	case platform.SharedLibrary:
		pattern = "*.dll"
	default:
		return Plan{}, unsupportedType(platform.Windows, t)
	}

	out := filepath.Join(in.OutDir, PackageDir)
	files, err := s.objects(in, in.OutDir, pattern)
	if err != nil {
		return Plan{}, err
	}
	// Skip what a previous run packaged.
	var inputs []string
	for _, f := range files {
		if !strings.HasPrefix(f, out+string(filepath.Separator)) {
			inputs = append(inputs, f)
		}
	}
	if len(inputs) == 0 {
		return Plan{}, &builderr.LinkFailedError{
			Dir: in.OutDir,
			Err: errors.Newf("nothing to package: no %s in %s", pattern, in.OutDir),
		}
	}
	return Plan{Dir: in.OutDir, Output: out, Inputs: inputs}, nil
}
