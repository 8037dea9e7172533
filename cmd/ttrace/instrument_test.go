package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("src", "app.instrumented.js"),
		outputPath(filepath.Join("src", "app.js"), "", ".instrumented.js"))
	assert.Equal(t, filepath.Join("build", "app.instrumented.js"),
		outputPath(filepath.Join("src", "app.js"), "build", ".instrumented.js"))
	assert.Equal(t, filepath.Join(".", "app.traced.js"),
		outputPath("app.js", "", ".traced.js"))
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(rel string) {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("var x = 1;\n"), 0o644))
	}
	mustWrite("app.js")
	mustWrite("lib/util.js")
	mustWrite("lib/util.instrumented.js")
	mustWrite("node_modules/dep/index.js")
	mustWrite("notes.txt")

	files, err := expandInputs([]string{dir}, ".instrumented.js")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "app.js"),
		filepath.Join(dir, "lib", "util.js"),
	}, files)
}

func TestExpandInputs_ExplicitFileAndMissing(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "one.js")
	require.NoError(t, os.WriteFile(file, []byte(""), 0o644))

	files, err := expandInputs([]string{file, file}, ".instrumented.js")
	require.NoError(t, err)
	assert.Equal(t, []string{file}, files)

	_, err = expandInputs([]string{filepath.Join(dir, "missing.js")}, ".instrumented.js")
	require.Error(t, err)
}

func TestRunTraceRoot(t *testing.T) {
	assert.Equal(t, filepath.Join(".trace", "runs", "ci-42"), runTraceRoot(".trace", "ci-42"))

	got := runTraceRoot(".trace", "auto")
	assert.Equal(t, filepath.Join(".trace", "runs"), filepath.Dir(got))
	_, err := uuid.Parse(filepath.Base(got))
	require.NoError(t, err)
	assert.NotEqual(t, got, runTraceRoot(".trace", "auto"))
}

func TestFilterInputs(t *testing.T) {
	files := []string{
		"src/app.js",
		"src/app.test.js",
		"vendor/lib.js",
	}

	got, err := filterInputs(files, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, files, got)

	got, err = filterInputs(files, []string{"*.test.js"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.test.js"}, got)

	got, err = filterInputs(files, nil, []string{"vendor/*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.js", "src/app.test.js"}, got)

	got, err = filterInputs(files, []string{"src/*"}, []string{"*.test.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.js"}, got)

	_, err = filterInputs(files, []string{"["}, nil)
	require.Error(t, err)
}
