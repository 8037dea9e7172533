package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ttrace-dev/ttrace/internal/config"
	"github.com/ttrace-dev/ttrace/internal/instrument"
)

var instrumentCmd = &cobra.Command{
	Use:   "instrument [flags] <path>...",
	Short: "Rewrite JavaScript files to record an execution trace",
	Long: `Instrument parses each JavaScript input, inserts recorder calls and the
runtime recorder stub, and writes the result next to the input (or into
--out-dir). Directories are walked recursively for .js files; previously
instrumented output is recognized and left unchanged, so re-running over the
same tree is safe.`,
	Args: cobra.MinimumNArgs(1),
	RunE: instrumentExecution,
}

func init() {
	instrumentCmd.Flags().String("suite", config.DefaultSuite, "default suite name for steps outside any describe group")
	instrumentCmd.Flags().Int("max-vars", config.DefaultMaxVars, "maximum variables captured per step (0 disables step recording)")
	instrumentCmd.Flags().String("out-dir", "", "write instrumented files into this directory instead of next to the inputs")
	instrumentCmd.Flags().String("suffix", ".instrumented.js", "suffix replacing .js on output file names")
	instrumentCmd.Flags().String("trace-root", "", "directory instrumented programs write .trace into (default from ttrace.toml)")
	instrumentCmd.Flags().Bool("stdout", false, "print instrumented code to stdout instead of writing a file (single input only)")
	instrumentCmd.Flags().String("run-id", "", "namespace trace output under runs/<id> so concurrent runs never collide (\"auto\" generates a UUID)")
	instrumentCmd.Flags().Bool("watch", false, "keep running and re-instrument inputs as they change")
}

func instrumentExecution(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

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
	if cmd.Flags().Changed("max-vars") {
		opts.MaxVars, _ = cmd.Flags().GetInt("max-vars")
	}
	if cmd.Flags().Changed("trace-root") {
		opts.TraceRoot, _ = cmd.Flags().GetString("trace-root")
	}
	outDir, _ := cmd.Flags().GetString("out-dir")
	if outDir == "" {
		outDir = cfg.Instrument.OutDir
	}
	suffix, _ := cmd.Flags().GetString("suffix")
	toStdout, _ := cmd.Flags().GetBool("stdout")
	runID, _ := cmd.Flags().GetString("run-id")
	watch, _ := cmd.Flags().GetBool("watch")

	if runID != "" {
		opts.TraceRoot = runTraceRoot(opts.TraceRoot, runID)
		logger.Info("Namespacing trace output", zap.String("trace_root", opts.TraceRoot))
	}

	files, err := expandInputs(args, suffix)
	if err != nil {
		return err
	}
	files, err = filterInputs(files, cfg.Instrument.Include, cfg.Instrument.Exclude)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no JavaScript files found under %s", strings.Join(args, ", "))
	}
	if toStdout && len(files) != 1 {
		return fmt.Errorf("--stdout requires exactly one input file, got %d", len(files))
	}

	if watch {
		if toStdout {
			return fmt.Errorf("--watch and --stdout are mutually exclusive")
		}
		if err := instrumentAll(logger, files, opts, outDir, suffix, false); err != nil {
			logger.Warn("Initial pass failed", zap.Error(err))
		}
		return watchAndInstrument(cmd.Context(), logger, files, opts, outDir, suffix)
	}
	return instrumentAll(logger, files, opts, outDir, suffix, toStdout)
}

// expandInputs resolves the path arguments into a sorted list of JavaScript
// files. Directories are walked recursively; node_modules, hidden directories
// and files already carrying the output suffix are skipped.
func expandInputs(args []string, suffix string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if name == "node_modules" || (strings.HasPrefix(name, ".") && path != arg) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(name, ".js") || strings.HasSuffix(name, suffix) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

// filterInputs applies the manifest's include and exclude glob patterns.
// Patterns are matched against both the base name and the slash-separated
// path, so "*.test.js" and "src/*.js" both behave as expected.
func filterInputs(files, include, exclude []string) ([]string, error) {
	matches := func(patterns []string, path string) (bool, error) {
		base := filepath.Base(path)
		slashed := filepath.ToSlash(path)
		for _, p := range patterns {
			if ok, err := filepath.Match(p, base); err != nil {
				return false, fmt.Errorf("bad glob pattern %q: %w", p, err)
			} else if ok {
				return true, nil
			}
			if ok, _ := filepath.Match(p, slashed); ok {
				return true, nil
			}
		}
		return false, nil
	}

	var out []string
	for _, f := range files {
		if len(include) > 0 {
			ok, err := matches(include, f)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if len(exclude) > 0 {
			skip, err := matches(exclude, f)
			if err != nil {
				return nil, err
			}
			if skip {
				continue
			}
		}
		out = append(out, f)
	}
	return out, nil
}

// runTraceRoot namespaces the trace root under runs/<id>. The literal id
// "auto" is replaced with a fresh UUID.
func runTraceRoot(root, id string) string {
	if id == "auto" {
		id = uuid.NewString()
	}
	return filepath.Join(root, "runs", id)
}

// outputPath computes where the instrumented version of src is written.
func outputPath(src, outDir, suffix string) string {
	name := strings.TrimSuffix(filepath.Base(src), ".js") + suffix
	if outDir != "" {
		return filepath.Join(outDir, name)
	}
	return filepath.Join(filepath.Dir(src), name)
}

// instrumentAll processes the files in parallel and prints a colored summary.
func instrumentAll(logger *zap.Logger, files []string, opts instrument.Options, outDir, suffix string, toStdout bool) error {
	if outDir != "" && !toStdout {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", outDir, err)
		}
	}

	var (
		mu    sync.Mutex
		total instrument.Stats
	)
	start := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for _, file := range files {
		g.Go(func() error {
			src, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			result, err := instrument.File(file, string(src), opts)
			if err != nil {
				return err
			}
			logger.Debug("Instrumented file",
				zap.String("file", file),
				zap.Int("steps", result.Stats.StepsInserted),
				zap.Int("functions", result.Stats.FunctionsInstrumented))
			if toStdout {
				fmt.Print(result.Code)
			} else {
				out := outputPath(file, outDir, suffix)
				if err := os.WriteFile(out, []byte(result.Code), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
			}
			mu.Lock()
			total.Add(result.Stats)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if !toStdout {
		printSummary(len(files), total, time.Since(start))
	}
	return nil
}

func printSummary(fileCount int, stats instrument.Stats, elapsed time.Duration) {
	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(os.Stderr, "✓ %d file(s) instrumented in %s\n", fileCount, elapsed.Round(time.Millisecond)) //nolint:errcheck
	fmt.Fprintf(os.Stderr, "  steps: %d  functions: %d  suites: %d  tests: %d\n",
		stats.StepsInserted, stats.FunctionsInstrumented, stats.SuitesWrapped, stats.TestsTagged)
	skipped := stats.SkippedNoLocation + stats.SkippedUnsupported
	if skipped > 0 {
		yellow := color.New(color.FgYellow)
		yellow.Fprintf(os.Stderr, "  skipped: %d (no location: %d, unsupported: %d)\n", //nolint:errcheck
			skipped, stats.SkippedNoLocation, stats.SkippedUnsupported)
	}
}

// watchAndInstrument re-instruments inputs whenever they change on disk.
// Rapid saves are debounced so editors that write twice trigger one pass.
func watchAndInstrument(ctx context.Context, logger *zap.Logger, files []string, opts instrument.Options, outDir, suffix string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close() //nolint:errcheck

	watched := make(map[string]struct{}, len(files))
	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	// Watch directories, not files: most editors replace the file on save,
	// which drops a file-level watch.
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	logger.Info("Watching for changes", zap.Int("files", len(files)), zap.Int("dirs", len(dirs)))

	const debounce = 300 * time.Millisecond
	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		changed := make([]string, 0, len(pending))
		for f := range pending {
			changed = append(changed, f)
		}
		clear(pending)
		sort.Strings(changed)
		if err := instrumentAll(logger, changed, opts, outDir, suffix, false); err != nil {
			logger.Warn("Re-instrumentation failed", zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Watch stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, ok := watched[abs]; !ok {
				continue
			}
			logger.Debug("Change detected", zap.String("file", abs), zap.String("op", event.Op.String()))
			pending[abs] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			flush()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", zap.Error(err))
		}
	}
}
