// Package cmdexec runs the external tools the build pipeline delegates to.
package cmdexec

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"

	"github.com/line/stellite/pkg/stellitebuild/builderr"
)

// Cmd describes one external invocation.
type Cmd struct {
	Args []string
	Dir  string
	Env  []string // extra KEY=value pairs on top of the runner environment
}

// Command returns a Cmd running args in dir.
func Command(dir string, args ...string) Cmd {
	return Cmd{Args: args, Dir: dir}
}

// WithEnv returns a copy of c with the extra environment variables set.
func (c Cmd) WithEnv(kv ...string) Cmd {
	c.Env = append(append([]string(nil), c.Env...), kv...)
	return c
}

func (c Cmd) String() string {
	return builderr.FormatCommand(c.Args)
}

// Runner runs external commands.
//
// A non-zero exit is reported as *builderr.ExternalCommandFailedError.
type Runner interface {
	// Run runs the command, streaming its output.
	Run(ctx context.Context, cmd Cmd) error

	// Output runs the command and returns its standard output.
	Output(ctx context.Context, cmd Cmd) ([]byte, error)

	// LookPath resolves an executable name against the runner's PATH.
	LookPath(name string) (string, error)
}

// Exec is a Runner backed by os/exec.
type Exec struct {
	Log zerolog.Logger

	// PathPrefix is prepended to PATH for every invocation.
	PathPrefix []string

	// Timeout bounds every invocation. Zero means no timeout.
	Timeout time.Duration

	// Stdout and Stderr receive the output of Run. They default to os.Stderr,
	// keeping stdout free for tool output.
	Stdout, Stderr io.Writer
}

var _ Runner = (*Exec)(nil)

func (e *Exec) Run(ctx context.Context, cmd Cmd) error {
	stdout, stderr := e.Stdout, e.Stderr
	if stdout == nil {
		stdout = os.Stderr
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return e.run(ctx, cmd, stdout, stderr)
}

func (e *Exec) Output(ctx context.Context, cmd Cmd) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	err := e.run(ctx, cmd, &stdout, &stderr)
	if err != nil && stderr.Len() > 0 {
		e.Log.Debug().Str("stderr", stderr.String()).Msg("command output")
	}
	return stdout.Bytes(), err
}

func (e *Exec) run(ctx context.Context, cmd Cmd, stdout, stderr io.Writer) error {
	if len(cmd.Args) == 0 {
		return errors.New("cmdexec: empty command")
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	env := e.environ(cmd.Env)
	fail := func(err error) error {
		return &builderr.ExternalCommandFailedError{Args: cmd.Args, Dir: cmd.Dir, Err: err}
	}

	bin := cmd.Args[0]
	if !strings.ContainsRune(bin, filepath.Separator) && !strings.ContainsRune(bin, '/') {
		path, err := e.lookPath(cmd.Dir, env, bin)
		if err != nil {
			return fail(err)
		}
		bin = path
	}

	e.Log.Info().Str("dir", cmd.Dir).Msgf("running: %s", cmd)
	start := time.Now()

	c := exec.CommandContext(ctx, bin, cmd.Args[1:]...)
	c.Dir = cmd.Dir
	c.Env = env
	c.Stdout = stdout
	c.Stderr = stderr
	// nosemgrep
	if err := c.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Wrapf(ctxErr, "%v", err)
		}
		return fail(err)
	}
	e.Log.Debug().Dur("took", time.Since(start)).Msgf("finished: %s", cmd.Args[0])
	return nil
}

func (e *Exec) LookPath(name string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.WithStack(err)
	}
	return e.lookPath(wd, e.environ(nil), name)
}

func (e *Exec) lookPath(dir string, env []string, name string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errors.WithStack(err)
		}
		dir = wd
	}
	path, err := interp.LookPathDir(dir, expand.ListEnviron(env...), name)
	return path, errors.Wrapf(err, "look up %s", name)
}

// environ returns the process environment with PathPrefix applied and
// extra appended.
func (e *Exec) environ(extra []string) []string {
	env := os.Environ()
	if len(e.PathPrefix) > 0 {
		prefix := strings.Join(e.PathPrefix, string(os.PathListSeparator))
		found := false
		for i, kv := range env {
			if k, v, ok := strings.Cut(kv, "="); ok && strings.EqualFold(k, "PATH") {
				env[i] = k + "=" + prefix + string(os.PathListSeparator) + v
				found = true
			}
		}
		if !found {
			env = append(env, "PATH="+prefix)
		}
	}
	return append(env, extra...)
}
