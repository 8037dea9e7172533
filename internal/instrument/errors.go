// Package instrument - error types for the instrumentation engine.
//
// Errors carry a source position (file:line:column) when one is known and an
// optional suggestion for resolving the problem.
//
// Example output:
//
//	app.js:12:3: failed to parse: unexpected token
package instrument

import "fmt"

// InstrumentError represents an instrumentation failure with source context.
//
// Fields:
//   - File: source file path where the error occurred
//   - Line, Column: 1-indexed position, zero when unknown
//   - Message: human-readable description
//   - Suggestion: optional hint for fixing the error (empty if none)
//
// Immutable after creation, safe for concurrent use.
//
//nolint:revive // InstrumentError is clear and descriptive despite stuttering
type InstrumentError struct {
	File       string
	Line       int
	Column     int
	Message    string
	Suggestion string
}

// Error implements the error interface.
//
// Format: file:line:column: message, with the position omitted when unknown.
// A non-empty Suggestion is appended on its own line.
func (e *InstrumentError) Error() string {
	var result string
	if e.Line > 0 {
		result = fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	} else {
		result = fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}

// NewInstrumentError creates an error with an optional source position.
// Pass zero line/column when the position is unknown.
//
//nolint:revive // NewInstrumentError mirrors the type name on purpose
func NewInstrumentError(file string, line, column int, msg string) *InstrumentError {
	return &InstrumentError{
		File:    file,
		Line:    line,
		Column:  column,
		Message: msg,
	}
}
