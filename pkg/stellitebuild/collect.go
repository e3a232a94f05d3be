package stellitebuild

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/line/stellite/pkg/stellitebuild/buildutil"
	"github.com/line/stellite/pkg/stellitebuild/link"
	"github.com/line/stellite/pkg/stellitebuild/platform"
)

// AndroidCommonDir holds the architecture independent android outputs.
const AndroidCommonDir = "android_common"

// collect copies the deliverables into a freshly emptied output root and
// returns the copied file paths, sorted.
func (r *run) collect(cells []Cell, artifacts []link.Artifact) ([]string, error) {
	root := r.req.OutputRoot
	r.log.Info().Str("dir", root).Msg("collecting outputs")
	if err := buildutil.RecreateDir(root); err != nil {
		return nil, err
	}

	var outputs []string
	put := func(dir string, files ...string) error {
		if err := buildutil.CopyInto(dir, files...); err != nil {
			return errors.Wrap(err, "collect outputs")
		}
		for _, f := range files {
			outputs = append(outputs, filepath.Join(dir, filepath.Base(f)))
		}
		return nil
	}

	common := root
	if r.req.Platform == platform.Android {
		common = filepath.Join(root, AndroidCommonDir)
	}

	for i, art := range artifacts {
		dir := root
		if r.req.Platform == platform.Android {
			dir = filepath.Join(root, string(cells[i].Arch))
		}
		files := []string{art.Path}
		if art.Role == link.Copied {
			var err error
			if files, err = regularFiles(art.Path); err != nil {
				return nil, err
			}
		}
		if err := put(dir, files...); err != nil {
			return nil, err
		}
	}

	headers, err := r.headers()
	if err != nil {
		return nil, err
	}
	if err := put(common, headers...); err != nil {
		return nil, err
	}

	if r.req.Platform == platform.Android {
		jars, err := r.javaLibraries(cells[0])
		if err != nil {
			return nil, err
		}
		if err := put(common, jars...); err != nil {
			return nil, err
		}
	}

	slices.Sort(outputs)
	return outputs, nil
}

// headers lists the public headers shipped with the target.
func (r *run) headers() ([]string, error) {
	dir, ok := headerDirs[r.req.Target]
	if !ok {
		return nil, nil
	}
	files, err := regularFiles(filepath.Join(r.cfg.ProjectDir, dir, "include"))
	return files, errors.Wrapf(err, "collect %s headers", r.req.Target)
}

// javaLibraries lists the jars the android build produced. They do not
// depend on the architecture, so the first cell's are used.
func (r *run) javaLibraries(cell Cell) ([]string, error) {
	dir := filepath.Join(cell.OutDir, "lib.java")
	if !buildutil.IsDir(dir) {
		r.log.Debug().Str("dir", dir).Msg("no java libraries")
		return nil, nil
	}
	return link.ScanObjects(dir, []string{"*.jar"}, nil)
}

// regularFiles lists the regular files directly in dir.
func regularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
