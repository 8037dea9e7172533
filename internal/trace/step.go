// Package trace defines the on-disk contract for execution-trace steps.
//
// Instrumented programs write one JSON file per recorded step under
// <root>/.trace/<suite>/<sanitizedTest>/<stepNumber>.json. This package is
// the Go-side mirror of that contract: the Step record, the path layout, the
// test-name sanitizer, and a reader that loads steps back in execution order.
// The JavaScript recorder stub injected by the instrument package produces
// exactly this shape; keep the two in sync.
package trace

// TraceRoot is the fixed directory name, relative to the output root, under
// which all step files are written.
const TraceRoot = ".trace"

// DefaultTest is the sentinel test name used when a step is recorded outside
// any test-case callback.
const DefaultTest = "UnknownTest"

// Step is one recorded snapshot of program state at one instrumented point.
//
// Field order and JSON names match the recorder stub's output byte-for-byte
// semantics:
//   - StepNumber is process-local, monotonically increasing, starts at 1
//     after a reset.
//   - SourceLine is the trimmed literal text of the instrumented source line,
//     or null when unavailable.
//   - Vars maps identifier name to captured value; a name whose capture
//     failed is simply absent (JSON.stringify drops undefined properties).
//   - Suite is the slash-joined path of grouping names active at runtime.
//   - TS is a millisecond UNIX timestamp.
type Step struct {
	StepNumber int            `json:"stepNumber"`
	File       string         `json:"file"`
	Line       int            `json:"line"`
	SourceLine *string        `json:"sourceLine"`
	Vars       map[string]any `json:"vars"`
	Suite      string         `json:"suite"`
	Test       string         `json:"test"`
	TS         int64          `json:"ts"`
}
