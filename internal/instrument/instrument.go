// Package instrument rewrites JavaScript source so that running it leaves a
// sequential trace of variable state on disk.
//
// The transformation inserts calls to a runtime recorder around statements,
// branches and function entries. Each call carries the source position, the
// surrounding source text and a snapshot object whose properties read the
// captured variables lazily, so a name that is out of reach at runtime costs
// an undefined instead of an exception. A self-installing recorder stub is
// prepended to every transformed file; the first stub loaded by a process
// wins and writes one JSON file per step under <root>/.trace/<suite>/<test>/.
//
// Transforming already-instrumented output is safe: synthesized statements
// are recognized by shape and left alone, so the pass is idempotent.
//
// Usage:
//
//	result, err := instrument.File("app.js", source, instrument.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Code)
package instrument

import (
	"fmt"

	"github.com/t14raptor/go-fast/ast"
	"github.com/t14raptor/go-fast/generator"
	"github.com/t14raptor/go-fast/parser"
)

// Names the synthesized code lives under at runtime. Everything starts with
// the same prefix so instrumented output can be told apart from user code by
// shape alone.
const (
	recorderFn     = "__ttRecord"
	pushSuiteFn    = "__ttPushSuite"
	popSuiteFn     = "__ttPopSuite"
	setTestFn      = "__ttSetTest"
	suiteFn        = "__ttSuite"
	testFn         = "__ttTest"
	installedGuard = "__ttRecorderInstalled"
	runtimePrefix  = "__tt"
)

// Defaults applied by DefaultOptions.
const (
	DefaultSuiteName = "DefaultSuite"
	DefaultTestName  = "UnknownTest"
	DefaultMaxVars   = 10
)

// Options configures a transformation pass.
type Options struct {
	// SuiteName is the fallback suite recorded for steps taken outside any
	// describe group. Empty means DefaultSuiteName.
	SuiteName string

	// MaxVars caps how many variables a single step captures. Zero or
	// negative disables step recording entirely while keeping the stub and
	// the suite/test rewrites, which is why the zero value of Options is not
	// a useful default; start from DefaultOptions.
	MaxVars int

	// TraceRoot is the directory the runtime writes .trace into. Empty means
	// the process working directory.
	TraceRoot string
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		SuiteName: DefaultSuiteName,
		MaxVars:   DefaultMaxVars,
		TraceRoot: ".",
	}
}

func (o Options) withDefaults() Options {
	if o.SuiteName == "" {
		o.SuiteName = DefaultSuiteName
	}
	if o.TraceRoot == "" {
		o.TraceRoot = "."
	}
	return o
}

// Stats reports what one transformation pass did.
type Stats struct {
	StepsInserted         int  // recorder calls spliced in
	FunctionsInstrumented int  // function bodies given an entry step
	SuitesWrapped         int  // describe callbacks bracketed with push/pop
	TestsTagged           int  // it/test callbacks given a name announcement
	StubInstalled         bool // recorder stub prepended to this file
	SkippedNoLocation     int  // insertion points without position metadata
	SkippedUnsupported    int  // shapes the pass declines to rewrite
	SkippedInstrumented   int  // statements recognized as prior output
}

// Total returns the number of instrumentation points inserted.
func (s *Stats) Total() int {
	return s.StepsInserted
}

// Add accumulates another pass's stats, for multi-file summaries.
func (s *Stats) Add(o Stats) {
	s.StepsInserted += o.StepsInserted
	s.FunctionsInstrumented += o.FunctionsInstrumented
	s.SuitesWrapped += o.SuitesWrapped
	s.TestsTagged += o.TestsTagged
	s.StubInstalled = s.StubInstalled || o.StubInstalled
	s.SkippedNoLocation += o.SkippedNoLocation
	s.SkippedUnsupported += o.SkippedUnsupported
	s.SkippedInstrumented += o.SkippedInstrumented
}

// Result is the outcome of instrumenting one file.
type Result struct {
	Code  string
	Stats Stats
}

// Transform instruments a parsed program in place. src must be the exact
// source the program was parsed from; it supplies line numbers and the
// per-step source text. filePath is recorded verbatim in every step.
func Transform(program *ast.Program, src, filePath string, opts Options) Stats {
	opts = opts.withDefaults()
	r := newRewriter(src, filePath, opts)
	r.rewriteProgram(program)
	return r.stats
}

// File parses, instruments and regenerates one source file.
func File(filePath, src string, opts Options) (*Result, error) {
	program, err := parser.ParseFile(src)
	if err != nil {
		return nil, NewInstrumentError(filePath, 0, 0, fmt.Sprintf("failed to parse: %v", err))
	}
	stats := Transform(program, src, filePath, opts)
	return &Result{Code: generator.Generate(program), Stats: stats}, nil
}
