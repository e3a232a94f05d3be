package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/line/stellite/pkg/stellitebuild/buildconf"
	"github.com/line/stellite/pkg/stellitebuild/depsync"
)

func init() {
	var projectDir string
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Reports the chromium tag the project is pinned to",

		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if projectDir == "" {
				projectDir, _ = os.Getwd()
			}
			dir, err := filepath.Abs(projectDir)
			if err != nil {
				fatal(err)
			}
			s := &depsync.Synchronizer{Cfg: buildconf.Default(dir, log.Logger)}
			tag, err := s.ReadTag()
			if err != nil {
				fatalf("could not read the pinned chromium tag: %v", err)
			}
			fmt.Fprintln(os.Stdout, "chromium", tag)
		},
	}
	versionCmd.Flags().StringVar(&projectDir, "project-dir", "", "stellite project root (defaults to the working directory)")
	rootCmd.AddCommand(versionCmd)
}
