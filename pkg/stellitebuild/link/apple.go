package link

import (
	"github.com/line/stellite/pkg/stellitebuild/platform"
)

var (
	macFrameworks = []string{
		"AppKit",
		"ApplicationServices",
		"Carbon",
		"CoreFoundation",
		"Foundation",
		"IOKit",
		"Security",
		"SystemConfiguration",
	}
	iosFrameworks = []string{
		"CFNetwork",
		"CoreFoundation",
		"CoreGraphics",
		"CoreText",
		"Foundation",
		"MobileCoreServices",
		"Security",
		"SystemConfiguration",
		"UIKit",
	}
)

// iosMinVersion is the deployment target of iOS shared libraries.
const iosMinVersion = "9.0"

func frameworks(names []string) []string {
	args := make([]string, 0, 2*len(names))
	for _, name := range names {
		args = append(args, "-framework", name)
	}
	return args
}

func forceLoad(archives []string) []string {
	args := make([]string, len(archives))
	for i, a := range archives {
		args[i] = "-Wl,-force_load," + a
	}
	return args
}

// libtoolPlan is the static archive plan shared by mac and iOS.
func (b base) libtoolPlan(in Input) (Plan, error) {
	archives, err := b.objects(in, in.OutDir, "*.a")
	if err != nil {
		return Plan{}, err
	}
	if err := requireTool("libtool", in.Toolchain.Archiver); err != nil {
		return Plan{}, err
	}
	out := b.output(in, platform.StaticLibrary)
	args := append([]string{"-static"}, archives...)
	args = append(args, "-o", out)
	return Plan{Tool: in.Toolchain.Archiver, Args: args, Dir: in.OutDir, Output: out, Inputs: archives}, nil
}

type macStrategy struct{ base }

func (s *macStrategy) Plan(in Input, t platform.ArtifactType) (Plan, error) {
	switch t {
	case platform.StaticLibrary:
		return s.libtoolPlan(in)
	case platform.SharedLibrary:
		archives, err := s.objects(in, in.OutDir, "*.a")
		if err != nil {
			return Plan{}, err
		}
		if err := requireTool("clang++", in.Toolchain.Compiler); err != nil {
			return Plan{}, err
		}
		if err := requireTool("macosx sdk", in.Toolchain.Sysroot); err != nil {
			return Plan{}, err
		}
		name := Name(in.Target, platform.Mac, in.Arch, t)
		out := s.output(in, t)
		args := []string{
			"-shared",
			"-Wl,-search_paths_first",
			"-Wl,-dead_strip",
			"-isysroot", in.Toolchain.Sysroot,
			"-arch", platform.Spec(platform.Mac, in.Arch).ClangArch,
		}
		args = append(args, forceLoad(archives)...)
		args = append(args,
			"-o", out,
			"-install_name", "@loader_path/"+name,
			"-stdlib=libc++",
			"-lresolv",
			"-lbsm",
		)
		args = append(args, frameworks(macFrameworks)...)
		return Plan{Tool: in.Toolchain.Compiler, Args: args, Dir: in.OutDir, Output: out, Inputs: archives}, nil
	}
	return Plan{}, unsupportedType(platform.Mac, t)
}

type iosStrategy struct{ base }

func (s *iosStrategy) Plan(in Input, t platform.ArtifactType) (Plan, error) {
	switch t {
	case platform.StaticLibrary:
		return s.libtoolPlan(in)
	case platform.SharedLibrary:
		archives, err := s.objects(in, in.OutDir, "*.a")
		if err != nil {
			return Plan{}, err
		}
		if err := requireTool("clang++", in.Toolchain.Compiler); err != nil {
			return Plan{}, err
		}
		if err := requireTool("iphoneos sdk", in.Toolchain.Sysroot); err != nil {
			return Plan{}, err
		}
		name := Name(in.Target, platform.IOS, in.Arch, t)
		out := s.output(in, t)
		args := []string{
			"-shared",
			"-Wl,-search_paths_first",
			"-Wl,-dead_strip",
			"-miphoneos-version-min=" + iosMinVersion,
			"-isysroot", in.Toolchain.Sysroot,
			"-arch", platform.Spec(platform.IOS, in.Arch).ClangArch,
			"-install_name", "@loader_path/" + name,
		}
		args = append(args, forceLoad(archives)...)
		args = append(args,
			"-o", out,
			"-stdlib=libc++",
			"-lresolv",
		)
		args = append(args, frameworks(iosFrameworks)...)
		return Plan{Tool: in.Toolchain.Compiler, Args: args, Dir: in.OutDir, Output: out, Inputs: archives}, nil
	}
	return Plan{}, unsupportedType(platform.IOS, t)
}
