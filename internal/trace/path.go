package trace

import (
	"path/filepath"
	"regexp"
)

// Characters that may not appear in a step directory name: whitespace, both
// slashes, and the usual Windows-hostile set, plus "." so that test titles
// cannot smuggle relative-path segments.
var unsafeChars = regexp.MustCompile(`[\s\\/?:*|"<>.]`)

var underscoreRuns = regexp.MustCompile(`_+`)

// SanitizeName maps an arbitrary suite or test name to a path-safe directory
// name: every path-unsafe character becomes "_" and runs of "_" collapse to
// one. The recorder stub applies the identical transformation at runtime, so
// a directory produced by an instrumented run can be located from Go with
// SanitizeName alone.
func SanitizeName(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	return underscoreRuns.ReplaceAllString(s, "_")
}

// StepDir returns the directory that holds the step files for one test case:
// <root>/.trace/<suite path>/<sanitized test>. The suite path is already
// slash-joined from sanitized segments (the stub sanitizes each segment when
// it is pushed), so its segments become nested directories as-is.
func StepDir(root, suite, test string) string {
	return filepath.Join(root, TraceRoot, filepath.FromSlash(suite), SanitizeName(test))
}
