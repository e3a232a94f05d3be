package platform

import (
	"fmt"
	"slices"
	"strings"
)

// ArchSpec holds the toolchain selection keys for one architecture.
type ArchSpec struct {
	Arch Arch

	// GNCPU is the target_cpu value passed to gn.
	GNCPU string

	// ClangArch is the -arch value for Apple toolchains.
	ClangArch string

	// Simulator is set for iOS architectures built against the simulator SDK.
	Simulator bool

	// Android NDK selection keys.
	ABI          string // e.g. "armeabi-v7a"
	NDKToolchain string // toolchain directory name, e.g. "arm-linux-androideabi-4.9"
	NDKPlatform  string // sysroot relative to <ndk>/platforms
	NDKLibDir    string // library dir relative to the sysroot
	ABITarget    string // clang --target value
	ARMVersion   int    // arm_version gn arg; 0 if not applicable
}

var archSpecs = map[Platform][]ArchSpec{
	Linux:   {{Arch: HostArch, GNCPU: "x64"}},
	Mac:     {{Arch: HostArch, GNCPU: "x64", ClangArch: "x86_64"}},
	Windows: {{Arch: HostArch, GNCPU: "x64"}},
	Android: {
		{
			Arch: "armv6", GNCPU: "arm", ABI: "armeabi",
			NDKToolchain: "arm-linux-androideabi-4.9", NDKPlatform: "android-16/arch-arm",
			NDKLibDir: "usr/lib", ABITarget: "arm-linux-androideabi", ARMVersion: 6,
		},
		{
			Arch: "armv7", GNCPU: "arm", ABI: "armeabi-v7a",
			NDKToolchain: "arm-linux-androideabi-4.9", NDKPlatform: "android-16/arch-arm",
			NDKLibDir: "usr/lib", ABITarget: "arm-linux-androideabi", ARMVersion: 7,
		},
		{
			Arch: "arm64", GNCPU: "arm64", ABI: "arm64-v8a",
			NDKToolchain: "aarch64-linux-android-4.9", NDKPlatform: "android-21/arch-arm64",
			NDKLibDir: "usr/lib", ABITarget: "aarch64-linux-android",
		},
		{
			Arch: "x86", GNCPU: "x86", ABI: "x86",
			NDKToolchain: "x86-4.9", NDKPlatform: "android-16/arch-x86",
			NDKLibDir: "usr/lib", ABITarget: "i686-linux-androideabi",
		},
		{
			Arch: "x64", GNCPU: "x64", ABI: "x86_64",
			NDKToolchain: "x86_64-4.9", NDKPlatform: "android-21/arch-x86_64",
			NDKLibDir: "usr/lib64", ABITarget: "x86_64-linux-androideabi",
		},
	},
	IOS: {
		{Arch: "x86", GNCPU: "x86", ClangArch: "i386", Simulator: true},
		{Arch: "x64", GNCPU: "x64", ClangArch: "x86_64", Simulator: true},
		{Arch: "arm", GNCPU: "arm", ClangArch: "armv7"},
		{Arch: "arm64", GNCPU: "arm64", ClangArch: "arm64"},
	},
}

// ArchitecturesFor returns the ordered architectures of p.
// Single-architecture platforms report []Arch{HostArch}.
func ArchitecturesFor(p Platform) []Arch {
	specs := mustSpecs(p)
	archs := make([]Arch, len(specs))
	for i, s := range specs {
		archs[i] = s.Arch
	}
	return archs
}

// Spec returns the selection keys for (p, a).
// It panics if the architecture is not part of the platform.
func Spec(p Platform, a Arch) ArchSpec {
	for _, s := range mustSpecs(p) {
		if s.Arch == a {
			return s
		}
	}
	panic(fmt.Sprintf("platform: unknown architecture %q for %s", a, p))
}

func mustSpecs(p Platform) []ArchSpec {
	specs, ok := archSpecs[p]
	if !ok {
		panic(fmt.Sprintf("platform: unknown platform %q", p))
	}
	return specs
}

var commonDependencyDirs = []string{
	"base",
	"build",
	"build_overrides",
	"buildtools",
	"components/url_matcher",
	"crypto",
	"net",
	"sdch",
	"testing",
	"third_party/apple_apsl",
	"third_party/binutils",
	"third_party/boringssl",
	"third_party/brotli",
	"third_party/ced",
	"third_party/closure_compiler",
	"third_party/drmemory",
	"third_party/icu",
	"third_party/instrumented_libraries",
	"third_party/libxml",
	"third_party/llvm-build",
	"third_party/modp_b64",
	"third_party/protobuf",
	"third_party/pyftpdlib",
	"third_party/pywebsocket",
	"third_party/re2",
	"third_party/tcmalloc",
	"third_party/tlslite",
	"third_party/yasm",
	"third_party/zlib",
	"tools",
	"url",
}

// Java, test framework and NDK directories only the Android build reads.
var androidExtraDirs = []string{
	"v8",
	"third_party/WebKit",
	"third_party/accessibility_test_framework",
	"third_party/android_async_task",
	"third_party/android_crazy_linker",
	"third_party/android_data_chart",
	"third_party/android_media",
	"third_party/android_opengl",
	"third_party/android_platform",
	"third_party/android_protobuf",
	"third_party/android_support_test_runner",
	"third_party/android_swipe_refresh",
	"third_party/android_tools",
	"third_party/apache_velocity",
	"third_party/ashmem",
	"third_party/bouncycastle",
	"third_party/byte_buddy",
	"third_party/catapult",
	"third_party/guava",
	"third_party/hamcrest",
	"third_party/icu4j",
	"third_party/ijar",
	"third_party/intellij",
	"third_party/jsr-305",
	"third_party/junit",
	"third_party/mockito",
	"third_party/objenesis",
	"third_party/ow2_asm",
	"third_party/robolectric",
	"third_party/sqlite4java",
}

// DependencyDirectoriesFor returns the sorted, slash-separated directories
// of the upstream tree that must be copied into the build workspace for p.
func DependencyDirectoriesFor(p Platform) []string {
	mustSpecs(p)
	dirs := slices.Clone(commonDependencyDirs)
	if p == Android {
		dirs = append(dirs, androidExtraDirs...)
	}
	for i, d := range dirs {
		dirs[i] = strings.TrimSuffix(d, "/")
	}
	slices.Sort(dirs)
	return slices.Compact(dirs)
}

var excludeObjects = map[Platform][]string{
	Linux:   {"libprotobuf_full.a"},
	Mac:     {"libprotobuf_full.a"},
	IOS:     {"libprotobuf_full.a"},
	Android: {},
	Windows: {},
}

// ExcludeObjectsFor returns the object and archive file names that must
// never be passed to the linker on p.
func ExcludeObjectsFor(p Platform) []string {
	mustSpecs(p)
	return slices.Clone(excludeObjects[p])
}
