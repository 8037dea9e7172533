// Package main implements the ttrace CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is overridden at build time via -ldflags.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "ttrace",
	Short: "Execution trace instrumentation for JavaScript",
	Long: `ttrace rewrites JavaScript source so that running it records every step
of execution: which line ran, what the variables in scope held, and which
suite and test the step belonged to. Steps land as JSON files under
.trace/<suite>/<test>/ and can be replayed afterwards with "ttrace steps".`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.Version = Version

	rootCmd.AddCommand(instrumentCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(stubCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

// newLogger builds the CLI logger. Output goes to stderr so piped command
// output stays clean.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}
