package trace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStep drops a raw step file into dir, creating the directory first.
func writeStep(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestReadDir_SortsByStepNumber(t *testing.T) {
	root := t.TempDir()
	dir := StepDir(root, "Math", "adds")

	writeStep(t, dir, "2.json", `{"stepNumber":2,"file":"a.js","line":3,"vars":{"x":5},"suite":"Math","test":"adds","ts":1700000000002}`)
	writeStep(t, dir, "10.json", `{"stepNumber":10,"file":"a.js","line":7,"vars":{},"suite":"Math","test":"adds","ts":1700000000010}`)
	writeStep(t, dir, "1.json", `{"stepNumber":1,"file":"a.js","line":1,"vars":{"x":1},"suite":"Math","test":"adds","ts":1700000000001}`)

	steps, err := ReadDir(filepath.Join(root, TraceRoot))
	require.NoError(t, err)
	require.Len(t, steps, 3)

	// Numeric order, not lexical: 1, 2, 10.
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Equal(t, 2, steps[1].StepNumber)
	assert.Equal(t, 10, steps[2].StepNumber)
	assert.Equal(t, "Math", steps[0].Suite)
	assert.Equal(t, float64(5), steps[1].Vars["x"])
}

func TestReadDir_WalksSuiteTree(t *testing.T) {
	root := t.TempDir()
	writeStep(t, StepDir(root, "Outer/Inner", "one"), "1.json",
		`{"stepNumber":1,"file":"a.js","line":1,"vars":{},"suite":"Outer/Inner","test":"one","ts":1}`)
	writeStep(t, StepDir(root, "Outer", "two"), "2.json",
		`{"stepNumber":2,"file":"a.js","line":2,"vars":{},"suite":"Outer","test":"two","ts":2}`)

	steps, err := ReadDir(filepath.Join(root, TraceRoot))
	require.NoError(t, err)
	assert.Len(t, steps, 2)
}

func TestReadDir_IgnoresForeignFiles(t *testing.T) {
	root := t.TempDir()
	dir := StepDir(root, "S", "t")
	writeStep(t, dir, "1.json", `{"stepNumber":1,"file":"a.js","line":1,"vars":{},"suite":"S","test":"t","ts":1}`)
	writeStep(t, dir, "notes.txt", "not a step")
	writeStep(t, dir, "meta.json", `{"anything": true}`)
	writeStep(t, dir, "0.json", `{}`)
	writeStep(t, dir, "-3.json", `{}`)

	steps, err := ReadDir(filepath.Join(root, TraceRoot))
	require.NoError(t, err)
	assert.Len(t, steps, 1)
}

func TestReadDir_CorruptStepIsAnError(t *testing.T) {
	root := t.TempDir()
	dir := StepDir(root, "S", "t")
	writeStep(t, dir, "1.json", `{"stepNumber":`)

	_, err := ReadDir(filepath.Join(root, TraceRoot))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1.json")
}

func TestReadDir_SourceLineNullable(t *testing.T) {
	root := t.TempDir()
	dir := StepDir(root, "S", "t")
	writeStep(t, dir, "1.json", `{"stepNumber":1,"file":"a.js","line":1,"sourceLine":null,"vars":{},"suite":"S","test":"t","ts":1}`)
	writeStep(t, dir, "2.json", `{"stepNumber":2,"file":"a.js","line":2,"sourceLine":"var x = 1;","vars":{},"suite":"S","test":"t","ts":2}`)

	steps, err := ReadDir(filepath.Join(root, TraceRoot))
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Nil(t, steps[0].SourceLine)
	require.NotNil(t, steps[1].SourceLine)
	assert.Equal(t, "var x = 1;", *steps[1].SourceLine)
}
