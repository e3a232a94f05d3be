package cmdexec

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/line/stellite/pkg/stellitebuild/builderr"
)

// Fake is a Runner that records commands instead of running them.
// It is safe for concurrent use.
type Fake struct {
	// Handle, if set, is called for every command. A non-nil error is
	// reported as an ExternalCommandFailedError.
	Handle func(cmd Cmd) ([]byte, error)

	// Paths maps executable names to the path LookPath reports.
	// Names not present are reported as missing.
	Paths map[string]string

	mu    sync.Mutex
	calls []Cmd
}

var _ Runner = (*Fake)(nil)

func (f *Fake) Run(ctx context.Context, cmd Cmd) error {
	_, err := f.Output(ctx, cmd)
	return err
}

func (f *Fake) Output(ctx context.Context, cmd Cmd) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	handle := f.Handle
	f.mu.Unlock()

	if handle == nil {
		return nil, nil
	}
	out, err := handle(cmd)
	if err != nil {
		return out, &builderr.ExternalCommandFailedError{Args: cmd.Args, Dir: cmd.Dir, Err: err}
	}
	return out, nil
}

func (f *Fake) LookPath(name string) (string, error) {
	if p, ok := f.Paths[name]; ok {
		return p, nil
	}
	return "", errors.Newf("%s: executable file not found in $PATH", name)
}

// Calls returns the commands run so far.
func (f *Fake) Calls() []Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Argv returns the argument lists of the commands run so far.
func (f *Fake) Argv() [][]string {
	calls := f.Calls()
	argv := make([][]string, len(calls))
	for i, c := range calls {
		argv[i] = c.Args
	}
	return argv
}

// Reset forgets the recorded commands.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
