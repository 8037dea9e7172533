package instrument

import (
	"reflect"
	"sort"
	"strings"
)

// lineIndex maps byte offsets in a source file to 1-indexed line numbers and
// recovers the text of individual lines. Built once per file, read-only after.
type lineIndex struct {
	src    string
	starts []int // byte offset of the first character of each line
}

func newLineIndex(src string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{src: src, starts: starts}
}

// lineAt returns the 1-indexed line containing the given 0-based byte offset.
// Offsets past the end of the source map to the last line.
func (li *lineIndex) lineAt(offset int) int {
	if offset < 0 {
		return 1
	}
	// First line start strictly past the offset; the offset then lies on the
	// line before it.
	i := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset })
	if i < 1 {
		return 1
	}
	return i
}

// text returns the trimmed text of the 1-indexed line, or ok=false when the
// line does not exist.
func (li *lineIndex) text(line int) (string, bool) {
	if line < 1 || line > len(li.starts) {
		return "", false
	}
	start := li.starts[line-1]
	end := len(li.src)
	if line < len(li.starts) {
		end = li.starts[line]
	}
	return strings.TrimSpace(li.src[start:end]), true
}

// nodeOffset returns the 0-based byte offset of a node's first character.
// Parser positions are 1-indexed, resolved through the node's Idx0 method via
// reflection so that nodes without position metadata simply report ok=false
// instead of failing.
func nodeOffset(n any) (int, bool) {
	return callIdx(n, "Idx0")
}

// nodeEndOffset returns the 0-based byte offset just past a node's last
// character.
func nodeEndOffset(n any) (int, bool) {
	return callIdx(n, "Idx1")
}

func callIdx(n any, method string) (int, bool) {
	if n == nil {
		return 0, false
	}
	v := reflect.ValueOf(n)
	if !v.IsValid() {
		return 0, false
	}
	m := v.MethodByName(method)
	if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
		return 0, false
	}
	out := m.Call(nil)[0]
	if !out.CanInt() {
		return 0, false
	}
	idx := int(out.Int())
	if idx <= 0 {
		return 0, false
	}
	return idx - 1, true
}
