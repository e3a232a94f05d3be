package platform

import (
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/xos"
)

// Host describes the machine running the build.
type Host struct {
	OS      string // GOOS
	Arch    string // GOARCH
	Release xos.OSRelease
}

// DetectHost describes the current machine.
func DetectHost() Host {
	h := Host{OS: runtime.GOOS, Arch: runtime.GOARCH}
	if h.OS == "linux" {
		rel, err := xos.ReadOSRelease()
		if err != nil {
			log.Warn().Err(err).Msg("could not read os-release")
		}
		h.Release = rel
	}
	return h
}

// Platform returns the platform matching the host OS, if any.
func (h Host) Platform() (Platform, bool) {
	switch h.OS {
	case "linux":
		return Linux, true
	case "darwin":
		return Mac, true
	case "windows":
		return Windows, true
	}
	return "", false
}

// NDKHostTag is the prebuilt directory suffix used by NDK toolchains,
// e.g. "linux-x86_64".
func (h Host) NDKHostTag() string {
	arch := h.Arch
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "386":
		arch = "x86"
	}
	return h.OS + "-" + arch
}

// CheckHost reports whether target can be built on h.
func CheckHost(target Platform, h Host) error {
	fail := func(reason string) error {
		return &builderr.UnsupportedPlatformError{Platform: string(target), Reason: reason}
	}
	switch target {
	case IOS, Mac:
		if h.OS != "darwin" {
			return fail("requires a macOS host")
		}
	case Linux:
		if h.OS != "linux" {
			return fail("requires a linux host")
		}
	case Android:
		if h.OS != "linux" || !h.Release.IsFamily("ubuntu") {
			return fail("requires an ubuntu-family linux host")
		}
	case Windows:
		if h.OS != "windows" {
			return fail("requires a windows host")
		}
	default:
		return fail("unknown platform")
	}
	return nil
}
