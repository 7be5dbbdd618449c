package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zoobzio/herald/internal/logging"
)

type globalFlags struct {
	logLevel string
	pretty   bool
}

func (g globalFlags) logger(w io.Writer) zerolog.Logger {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(g.logLevel)
	cfg.Pretty = g.pretty
	if w != nil {
		cfg.Output = w
	}
	return logging.New(cfg)
}

func newRootCmd(out io.Writer) *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "herald",
		Short:         "Watch a simulated quote feed through herald subscriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	root.PersistentFlags().BoolVar(&g.pretty, "pretty", false, "Human-readable log output")

	root.AddCommand(newWatchCmd(&g))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	})
	return root
}
