package link

import (
	"path/filepath"
	"slices"

	"github.com/line/stellite/pkg/stellitebuild/platform"
)

const (
	crtBegin = "crtbegin_so.o"
	crtEnd   = "crtend_so.o"
)

var (
	// androidExcludeLibs are static libraries whose symbols must not be
	// re-exported from the shared library.
	androidExcludeLibs = []string{
		"libgcc.a",
		"libc++_static.a",
		"libvpx_assembly_arm.a",
	}

	// androidWrapped are routed through the heap instrumentation wrappers.
	androidWrapped = []string{
		"calloc",
		"free",
		"malloc",
		"memalign",
		"posix_memalign",
		"pvalloc",
		"realloc",
		"valloc",
	}
)

type androidStrategy struct{ base }

func (s *androidStrategy) Plan(in Input, t platform.ArtifactType) (Plan, error) {
	switch t {
	case platform.StaticLibrary:
		return s.static(in)
	case platform.SharedLibrary:
		return s.shared(in)
	}
	return Plan{}, unsupportedType(platform.Android, t)
}

func (s *androidStrategy) static(in Input) (Plan, error) {
	objs, err := s.objects(in, in.OutDir, "*.o")
	if err != nil {
		return Plan{}, err
	}
	if err := requireTool("android ar", in.Toolchain.Archiver); err != nil {
		return Plan{}, err
	}
	out := s.output(in, platform.StaticLibrary)
	args := append([]string{"rsc", out}, objs...)
	return Plan{Tool: in.Toolchain.Archiver, Args: args, Dir: in.OutDir, Output: out, Inputs: objs}, nil
}

func (s *androidStrategy) shared(in Input) (Plan, error) {
	tc := in.Toolchain
	for _, tool := range []struct{ what, path string }{
		{"clang++", tc.Compiler},
		{"android sysroot", tc.Sysroot},
		{"android gcc toolchain", tc.GCCToolchain},
		{"libgcc", tc.LibGCC},
	} {
		if err := requireTool(tool.what, tool.path); err != nil {
			return Plan{}, err
		}
	}
	if len(tc.ExtraLibDirs) == 0 {
		return Plan{}, requireTool("libc++", "")
	}

	// The C runtime objects are placed explicitly, never by the scan.
	scan := in
	scan.Exclude = append(slices.Clone(in.Exclude), crtBegin, crtEnd)
	objs, err := s.objects(scan, filepath.Join(in.OutDir, "obj"), "*.o")
	if err != nil {
		return Plan{}, err
	}

	spec := platform.Spec(platform.Android, in.Arch)
	libDir := filepath.Join(tc.Sysroot, filepath.FromSlash(spec.NDKLibDir))
	out := s.output(in, platform.SharedLibrary)

	args := []string{
		"-Wl,-shared",
		"-Wl,--fatal-warnings",
		"-fPIC",
		"-Wl,-z,noexecstack",
		"-Wl,-z,now",
		"-Wl,-z,relro",
		"-Wl,-z,defs",
		"-Wl,--as-needed",
		"--gcc-toolchain=" + tc.GCCToolchain,
		"-fuse-ld=gold",
		"-Wl,--icf=all",
		"-Wl,--build-id=sha1",
		"-Wl,--no-undefined",
	}
	for _, lib := range androidExcludeLibs {
		args = append(args, "-Wl,--exclude-libs="+lib)
	}
	args = append(args,
		"--target="+spec.ABITarget,
		"-nostdlib",
		"-Wl,--warn-shared-textrel",
		"--sysroot="+tc.Sysroot,
		"-Wl,-O1",
		"-Wl,--gc-sections",
	)
	for _, fn := range androidWrapped {
		args = append(args, "-Wl,-wrap,"+fn)
	}

	args = append(args, filepath.Join(libDir, crtBegin))
	args = append(args, objs...)
	args = append(args, filepath.Join(libDir, crtEnd))

	for _, dir := range tc.ExtraLibDirs {
		args = append(args, "-L"+dir)
	}
	args = append(args,
		"-lc++_shared",
		"-lc++abi",
		"-landroid_support",
		tc.LibGCC,
		"-lc",
		"-ldl",
		"-lm",
		"-llog",
	)
	// The arm32 libc++ lacks the unwinder symbols.
	if spec.ARMVersion != 0 {
		args = append(args, "-lunwind")
	}
	args = append(args, "-o", out)

	return Plan{Tool: tc.Compiler, Args: args, Dir: in.OutDir, Output: out, Inputs: objs}, nil
}
