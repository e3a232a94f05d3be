// Package platform describes the target platforms, their architectures and
// the per-platform data the build pipeline needs.
package platform

import (
	"github.com/line/stellite/pkg/stellitebuild/builderr"
)

// Platform is a target platform.
type Platform string

const (
	Linux   Platform = "linux"
	Android Platform = "android"
	IOS     Platform = "ios"
	Mac     Platform = "mac"
	Windows Platform = "windows"
)

// All lists every supported platform.
var All = []Platform{Linux, Android, IOS, Mac, Windows}

// Parse parses a platform name.
func Parse(s string) (Platform, error) {
	for _, p := range All {
		if string(p) == s {
			return p, nil
		}
	}
	return "", &builderr.UnsupportedPlatformError{Platform: s, Reason: "unknown platform"}
}

func (p Platform) String() string { return string(p) }

// MultiArch reports whether the platform builds more than one architecture.
func (p Platform) MultiArch() bool {
	return len(ArchitecturesFor(p)) > 1
}

// Mobile reports whether the platform needs target OS metadata in the
// dependency sync configuration.
func (p Platform) Mobile() bool {
	return p == Android || p == IOS
}

// Arch is an architecture within a platform.
type Arch string

// HostArch is the implicit architecture of single-architecture platforms.
// It never appears in directory or file names.
const HostArch Arch = ""

func (a Arch) String() string {
	if a == HostArch {
		return "host"
	}
	return string(a)
}

// ArtifactType is the kind of library being produced.
type ArtifactType string

const (
	StaticLibrary ArtifactType = "static_library"
	SharedLibrary ArtifactType = "shared_library"
)

// ParseArtifactType parses an artifact type name.
func ParseArtifactType(s string) (ArtifactType, error) {
	switch ArtifactType(s) {
	case StaticLibrary, SharedLibrary:
		return ArtifactType(s), nil
	}
	return "", &builderr.UnsupportedPlatformError{Type: s, Reason: "unknown target type"}
}
