package link

import (
	"github.com/line/stellite/pkg/stellitebuild/platform"
)

type linuxStrategy struct{ base }

func (s *linuxStrategy) Plan(in Input, t platform.ArtifactType) (Plan, error) {
	archives, err := s.objects(in, in.OutDir, "*.a")
	if err != nil {
		return Plan{}, err
	}
	out := s.output(in, t)

	switch t {
	case platform.StaticLibrary:
		if err := requireTool("ar", in.Toolchain.Archiver); err != nil {
			return Plan{}, err
		}
		args := append([]string{"rsc", out}, archives...)
		return Plan{Tool: in.Toolchain.Archiver, Args: args, Dir: in.OutDir, Output: out, Inputs: archives}, nil

	case platform.SharedLibrary:
		if err := requireTool("clang++", in.Toolchain.Compiler); err != nil {
			return Plan{}, err
		}
		args := []string{
			"-shared",
			"-Wl,--fatal-warnings",
			"-fPIC",
			"-Wl,-z,noexecstack",
			"-Wl,-z,now",
			"-Wl,-z,relro",
			"-Wl,--no-as-needed",
			"-lpthread",
			"-Wl,--as-needed",
			"-fuse-ld=gold",
			"-Wl,--icf=all",
			"-pthread",
			"-m64",
			"-Wl,--export-dynamic",
			"-o", out,
			"-Wl,-soname=" + Name(in.Target, platform.Linux, in.Arch, t),
		}
		args = append(args, archives...)
		return Plan{Tool: in.Toolchain.Compiler, Args: args, Dir: in.OutDir, Output: out, Inputs: archives}, nil
	}
	return Plan{}, unsupportedType(platform.Linux, t)
}
