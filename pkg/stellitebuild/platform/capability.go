package platform

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/line/stellite/pkg/stellitebuild/builderr"
)

type capKey struct {
	Platform Platform
	Arch     Arch
	Type     ArtifactType
}

// Capabilities records which (platform, arch, type) cells cannot be built.
// Cells not listed are buildable.
type Capabilities struct {
	skip map[capKey]bool
}

// DefaultCapabilities returns the built-in table. It skips the x64
// simulator shared library, which can be re-enabled with Apply.
func DefaultCapabilities() *Capabilities {
	c := &Capabilities{skip: make(map[capKey]bool)}
	c.skip[capKey{IOS, "x64", SharedLibrary}] = true
	return c
}

// Supported reports whether the cell should be built.
func (c *Capabilities) Supported(p Platform, a Arch, t ArtifactType) bool {
	return !c.skip[capKey{p, a, t}]
}

// Set marks a cell as supported or skipped.
func (c *Capabilities) Set(p Platform, a Arch, t ArtifactType, supported bool) {
	Spec(p, a) // validate
	if c.skip == nil {
		c.skip = make(map[capKey]bool)
	}
	if supported {
		delete(c.skip, capKey{p, a, t})
	} else {
		c.skip[capKey{p, a, t}] = true
	}
}

// Apply applies "platform/arch/type" overrides: entries in skip are marked
// unsupported, then entries in allow are marked supported.
func (c *Capabilities) Apply(skip, allow []string) error {
	for _, list := range []struct {
		entries   []string
		supported bool
	}{{skip, false}, {allow, true}} {
		for _, s := range list.entries {
			p, a, t, err := parseCapKey(s)
			if err != nil {
				return err
			}
			c.Set(p, a, t, list.supported)
		}
	}
	return nil
}

// Buildable returns the architectures of p that are built for t, in order.
func (c *Capabilities) Buildable(p Platform, t ArtifactType) []Arch {
	var archs []Arch
	for _, a := range ArchitecturesFor(p) {
		if c.Supported(p, a, t) {
			archs = append(archs, a)
		}
	}
	return archs
}

func parseCapKey(s string) (Platform, Arch, ArtifactType, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return "", "", "", errors.Newf("invalid capability %q: want platform/arch/type", s)
	}
	p, err := Parse(parts[0])
	if err != nil {
		return "", "", "", err
	}
	t, err := ParseArtifactType(parts[2])
	if err != nil {
		return "", "", "", err
	}
	a := Arch(parts[1])
	if a == "host" {
		a = HostArch
	}
	for _, known := range ArchitecturesFor(p) {
		if known == a {
			return p, a, t, nil
		}
	}
	return "", "", "", &builderr.UnsupportedPlatformError{
		Platform: string(p), Arch: parts[1], Reason: "unknown architecture",
	}
}
