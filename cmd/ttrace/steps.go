package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ttrace-dev/ttrace/internal/trace"
)

var stepsCmd = &cobra.Command{
	Use:   "steps [flags] [dir]",
	Short: "Replay a recorded trace step by step",
	Long: `Steps reads the step files under a .trace directory (default ./.trace) and
prints them in execution order. Filter to a single suite or test with --suite
and --test, or dump the raw steps with --json for further processing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: stepsExecution,
}

func init() {
	stepsCmd.Flags().String("suite", "", "only show steps from this suite")
	stepsCmd.Flags().String("test", "", "only show steps from this test")
	stepsCmd.Flags().Bool("json", false, "print steps as a JSON array instead of formatted text")
}

func stepsExecution(cmd *cobra.Command, args []string) error {
	dir := filepath.Join(".", trace.TraceRoot)
	if len(args) == 1 {
		dir = args[0]
	}
	suiteFilter, _ := cmd.Flags().GetString("suite")
	testFilter, _ := cmd.Flags().GetString("test")
	asJSON, _ := cmd.Flags().GetBool("json")

	steps, err := trace.ReadDir(dir)
	if err != nil {
		return err
	}
	if suiteFilter != "" || testFilter != "" {
		filtered := steps[:0]
		for _, s := range steps {
			if suiteFilter != "" && s.Suite != suiteFilter {
				continue
			}
			if testFilter != "" && s.Test != testFilter {
				continue
			}
			filtered = append(filtered, s)
		}
		steps = filtered
	}
	if len(steps) == 0 {
		return fmt.Errorf("no steps found under %s", dir)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(steps)
	}

	printSteps(steps)
	return nil
}

func printSteps(steps []trace.Step) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	faint := color.New(color.Faint)

	lastContext := ""
	for _, s := range steps {
		ctx := s.Suite + " › " + s.Test
		if ctx != lastContext {
			lastContext = ctx
			bold.Println(ctx) //nolint:errcheck
		}
		cyan.Printf("  #%d %s:%d", s.StepNumber, s.File, s.Line) //nolint:errcheck
		if s.SourceLine != nil {
			faint.Printf("  %s", *s.SourceLine) //nolint:errcheck
		}
		fmt.Println()
		if len(s.Vars) > 0 {
			fmt.Printf("      %s\n", formatVars(s.Vars))
		}
	}
}

// formatVars renders a vars map as name=value pairs in name order.
func formatVars(vars map[string]any) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		val, err := json.Marshal(vars[name])
		if err != nil {
			val = []byte("?")
		}
		parts = append(parts, name+"="+string(val))
	}
	return strings.Join(parts, " ")
}
