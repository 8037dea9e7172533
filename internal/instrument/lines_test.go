package instrument

import "testing"

// TestLineIndex_LineAt maps byte offsets back to 1-indexed lines.
func TestLineIndex_LineAt(t *testing.T) {
	src := "first\nsecond\nthird"
	li := newLineIndex(src)

	cases := []struct {
		offset int
		want   int
	}{
		{0, 1},
		{4, 1},
		{5, 1},  // the newline itself belongs to line 1
		{6, 2},  // 's' of second
		{13, 3}, // 't' of third
		{99, 3}, // past the end clamps to the last line
		{-1, 1},
	}
	for _, tc := range cases {
		if got := li.lineAt(tc.offset); got != tc.want {
			t.Errorf("lineAt(%d) = %d, want %d", tc.offset, got, tc.want)
		}
	}
}

// TestLineIndex_Text recovers trimmed line text.
func TestLineIndex_Text(t *testing.T) {
	src := "  var x = 1;  \nvar y = 2;\n"
	li := newLineIndex(src)

	if got, ok := li.text(1); !ok || got != "var x = 1;" {
		t.Errorf("text(1) = %q, %v", got, ok)
	}
	if got, ok := li.text(2); !ok || got != "var y = 2;" {
		t.Errorf("text(2) = %q, %v", got, ok)
	}
	if _, ok := li.text(0); ok {
		t.Errorf("text(0) should not exist")
	}
	if _, ok := li.text(99); ok {
		t.Errorf("text(99) should not exist")
	}
}

// TestLineIndex_EmptySource keeps the degenerate case stable.
func TestLineIndex_EmptySource(t *testing.T) {
	li := newLineIndex("")
	if got := li.lineAt(0); got != 1 {
		t.Errorf("lineAt(0) on empty source = %d, want 1", got)
	}
	if got, ok := li.text(1); !ok || got != "" {
		t.Errorf("text(1) on empty source = %q, %v", got, ok)
	}
}
