package instrument

import (
	"reflect"
	"strings"
	"testing"

	"github.com/t14raptor/go-fast/parser"
)

// TestJSString escapes everything that would break a single-line literal.
func TestJSString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`plain`, `"plain"`},
		{`say "hi"`, `"say \"hi\""`},
		{`back\slash`, `"back\\slash"`},
		{"two\nlines", `"two\nlines"`},
		{"tab\there", `"tab\there"`},
		{"sep here", `"sep here"`},
		{"", `""`},
	}
	for _, tc := range cases {
		if got := jsString(tc.in); got != tc.want {
			t.Errorf("jsString(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

// TestCapNames sorts, deduplicates and truncates.
func TestCapNames(t *testing.T) {
	got := capNames([]string{"zed", "alpha", "zed", "mid", "beta"}, 3)
	want := []string{"alpha", "beta", "mid"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("capNames = %v, want %v", got, want)
	}

	if got := capNames(nil, 5); len(got) != 0 {
		t.Errorf("capNames(nil) = %v, want empty", got)
	}

	// A negative cap means no limit.
	got = capNames([]string{"b", "a"}, -1)
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("uncapped capNames = %v", got)
	}
}

// TestSnapshotLiteral renders parseable thunk objects whose properties read
// their variables inside a try/catch.
func TestSnapshotLiteral(t *testing.T) {
	src := snapshotLiteral([]string{"a", "b"})
	if !strings.Contains(src, `"a": () =>`) || !strings.Contains(src, `"b": () =>`) {
		t.Errorf("snapshot literal missing thunks: %s", src)
	}
	if !strings.Contains(src, "catch") {
		t.Errorf("thunks are not failure tolerant: %s", src)
	}
	if _, err := parser.ParseFile("var s = " + src + ";"); err != nil {
		t.Errorf("snapshot literal does not parse: %v\n%s", err, src)
	}

	if got := snapshotLiteral(nil); got != "{ }" {
		t.Errorf("empty snapshot literal = %q", got)
	}
}

// TestParseSyntheticStmt marks what it produces so later passes skip it.
func TestParseSyntheticStmt(t *testing.T) {
	r := newRewriter("", "test.js", DefaultOptions())

	st, ok := r.parseSyntheticStmt(`__ttPopSuite();`)
	if !ok {
		t.Fatalf("snippet did not parse")
	}
	if !r.isSynthetic(st.Stmt) {
		t.Errorf("synthesized statement not marked")
	}

	if _, ok := r.parseSyntheticStmt("var = broken"); ok {
		t.Errorf("broken snippet should not produce a statement")
	}
}
