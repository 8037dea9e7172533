package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ttrace-dev/ttrace/internal/config"
	"github.com/ttrace-dev/ttrace/internal/instrument"
)

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Print the runtime recorder stub",
	Long: `Stub prints the self-installing recorder that instrumented files carry.
Useful for loading the recorder ahead of time (for example from a test setup
file) so that every later stub becomes a no-op.`,
	Args: cobra.NoArgs,
	RunE: stubExecution,
}

func stubExecution(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	opts := instrument.Options{
		SuiteName: cfg.Instrument.Suite,
		MaxVars:   cfg.Instrument.MaxVars,
		TraceRoot: cfg.Trace.Root,
	}
	if cmd.Flags().Changed("suite") {
		opts.SuiteName, _ = cmd.Flags().GetString("suite")
	}
	if cmd.Flags().Changed("trace-root") {
		opts.TraceRoot, _ = cmd.Flags().GetString("trace-root")
	}
	fmt.Print(instrument.StubSource(opts))
	return nil
}

func init() {
	stubCmd.Flags().String("suite", config.DefaultSuite, "default suite name baked into the stub")
	stubCmd.Flags().String("trace-root", "", "directory the stub writes .trace into")
}
