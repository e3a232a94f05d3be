package xos

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// OSRelease holds the fields of an os-release(5) file.
type OSRelease map[string]string

// osReleasePaths are checked in order; the first one that exists wins.
var osReleasePaths = []string{"/etc/os-release", "/usr/lib/os-release"}

// ReadOSRelease reads the host's os-release file.
// It reports an empty OSRelease (and no error) when none exists.
func ReadOSRelease() (OSRelease, error) {
	for _, p := range osReleasePaths {
		f, err := os.Open(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, errors.Wrapf(err, "open %s", p)
		}
		defer func() { _ = f.Close() }()
		return ParseOSRelease(f)
	}
	return OSRelease{}, nil
}

// ParseOSRelease parses KEY=value lines, stripping surrounding quotes.
func ParseOSRelease(r io.Reader) (OSRelease, error) {
	rel := make(OSRelease)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		rel[key] = strings.Trim(val, `"'`)
	}
	return rel, errors.Wrap(sc.Err(), "read os-release")
}

// IsFamily reports whether the release is id or lists id in ID_LIKE.
func (r OSRelease) IsFamily(id string) bool {
	if strings.EqualFold(r["ID"], id) {
		return true
	}
	for _, like := range strings.Fields(r["ID_LIKE"]) {
		if strings.EqualFold(like, id) {
			return true
		}
	}
	return false
}
