// Command stellite-build builds the stellite libraries against a pinned
// chromium checkout.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/line/stellite/pkg/stellitebuild/builderr"
)

var verbosity int

var rootCmd = &cobra.Command{
	Use:           "stellite-build",
	Short:         "stellite-build builds stellite for every supported platform",
	SilenceErrors: true, // We'll handle displaying an error in our main func
	SilenceUsage:  true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbosity == 1 {
			level = zerolog.DebugLevel
		} else if verbosity >= 2 {
			level = zerolog.TraceLevel
		}
		log.Logger = log.Logger.Level(level)
	},
}

func main() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "verbose output")
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}

func fatal(args ...any) {
	red := color.New(color.FgRed)
	_, _ = red.Fprint(os.Stderr, "error: ")
	_, _ = red.Fprintln(os.Stderr, args...)
	for _, arg := range args {
		if err, ok := arg.(error); ok {
			if hint := failureHint(err); hint != "" {
				_, _ = fmt.Fprintln(os.Stderr, hint)
			}
		}
	}
	os.Exit(1)
}

func fatalf(format string, args ...any) {
	fatal(fmt.Sprintf(format, args...))
}

// failureHint describes how to rerun the command behind err by hand.
func failureHint(err error) string {
	var (
		argv []string
		dir  string
	)
	if le := (*builderr.LinkFailedError)(nil); errors.As(err, &le) && len(le.Args) > 0 {
		argv, dir = le.Args, le.Dir
	} else if ce := (*builderr.ExternalCommandFailedError)(nil); errors.As(err, &ce) {
		argv, dir = ce.Args, ce.Dir
	}
	if len(argv) == 0 {
		return ""
	}
	hint := "  command: " + builderr.FormatCommand(argv)
	if dir != "" {
		hint += "\n  directory: " + dir
	}
	return hint
}
