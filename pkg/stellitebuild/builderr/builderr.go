// Package builderr defines the errors reported by the build pipeline.
//
// All of them are fatal to a build invocation. Callers match them with
// errors.As.
package builderr

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ToolchainNotFoundError is reported when a compiler, archiver or SDK
// cannot be located.
type ToolchainNotFoundError struct {
	What string // e.g. "clang++", "macosx sdk"
	Path string // where it was expected, if known
}

func (e *ToolchainNotFoundError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("toolchain not found: %s", e.What)
	}
	return fmt.Sprintf("toolchain not found: %s (expected at %s)", e.What, e.Path)
}

// AmbiguousOrMissingToolError is reported when a directory scan expected
// exactly one matching binary.
type AmbiguousOrMissingToolError struct {
	Dir     string
	Suffix  string
	Matches []string
}

func (e *AmbiguousOrMissingToolError) Error() string {
	if len(e.Matches) == 0 {
		return fmt.Sprintf("no tool matching *%s in %s", e.Suffix, e.Dir)
	}
	return fmt.Sprintf("ambiguous tool matching *%s in %s: %s",
		e.Suffix, e.Dir, strings.Join(e.Matches, ", "))
}

// DependencyTreeInvalidError is reported when a checkout lacks one of its
// expected markers.
type DependencyTreeInvalidError struct {
	Root    string
	Missing string
}

func (e *DependencyTreeInvalidError) Error() string {
	return fmt.Sprintf("invalid chromium checkout %s: missing %s", e.Root, e.Missing)
}

// UnsupportedPlatformError is reported for platform, architecture or
// artifact type combinations that cannot be built.
type UnsupportedPlatformError struct {
	Platform string
	Arch     string
	Type     string
	Reason   string
}

func (e *UnsupportedPlatformError) Error() string {
	var b strings.Builder
	b.WriteString("unsupported")
	if e.Platform != "" {
		b.WriteString(fmt.Sprintf(" platform %q", e.Platform))
	}
	if e.Arch != "" {
		b.WriteString(fmt.Sprintf(" arch %q", e.Arch))
	}
	if e.Type != "" {
		b.WriteString(fmt.Sprintf(" type %q", e.Type))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// ExternalCommandFailedError is reported when a delegated process fails.
type ExternalCommandFailedError struct {
	Args []string
	Dir  string
	Err  error
}

func (e *ExternalCommandFailedError) Error() string {
	return fmt.Sprintf("command failed: %s (in %s): %v", FormatCommand(e.Args), e.Dir, e.Err)
}

func (e *ExternalCommandFailedError) Unwrap() error { return e.Err }

// LinkFailedError is an ExternalCommandFailedError raised while linking
// or packaging an artifact.
type LinkFailedError struct {
	Args []string
	Dir  string
	Err  error
}

func (e *LinkFailedError) Error() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("link failed in %s: %v", e.Dir, e.Err)
	}
	return fmt.Sprintf("link failed: %s (in %s): %v", FormatCommand(e.Args), e.Dir, e.Err)
}

func (e *LinkFailedError) Unwrap() error { return e.Err }

// FormatCommand renders args as a shell command line.
func FormatCommand(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = fmt.Sprintf("%q", a)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}
