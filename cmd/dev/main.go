package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/mklimuk/devreg/cmd/dev/cmd"
)

func newLogger(debug bool) *slog.Logger {
	handler := log.NewWithOptions(os.Stdout, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          "dev",
	})
	handler.SetColorProfile(termenv.ANSI256)
	handler.SetLevel(log.InfoLevel)
	if debug {
		handler.SetLevel(log.DebugLevel)
		handler.SetReportCaller(true)
	}
	return slog.New(handler)
}

func main() {
	var debug bool
	root := &cobra.Command{
		Use:           "dev",
		Short:         "build, test and release tasks of the devreg module",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			slog.SetDefault(newLogger(debug))
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(
		cmd.BuildCmd(),
		cmd.ChangelogCmd(),
		cmd.TestCmd(),
		cmd.LintCmd(),
		cmd.IntegrationTestCmd(),
	)
	if err := root.Execute(); err != nil {
		slog.Error("dev command failed", "error", err)
		os.Exit(1)
	}
}
