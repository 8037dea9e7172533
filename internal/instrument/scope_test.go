package instrument

import (
	"testing"

	"github.com/t14raptor/go-fast/parser"
)

// TestScope_Hoisting verifies the hoisting pass collects top-level bindings
// of every declaration kind without crossing into function bodies.
func TestScope_Hoisting(t *testing.T) {
	input := `var a = 1;
let b = 2;
const c = 3;
function helper(x) {
  var inner = 4;
}
class Point {}
`

	program, err := parser.ParseFile(input)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sc := newScope(nil)
	sc.declareHoisted(program.Body)
	visible := sc.visible()

	for _, want := range []string{"a", "b", "c", "helper", "Point"} {
		if _, ok := visible[want]; !ok {
			t.Errorf("top-level scope missing %q", want)
		}
	}
	for _, leak := range []string{"inner", "x"} {
		if _, ok := visible[leak]; ok {
			t.Errorf("function-local binding %q leaked into the top-level scope", leak)
		}
	}
}

// TestScope_DestructuredBindings verifies destructuring patterns contribute
// each bound name.
func TestScope_DestructuredBindings(t *testing.T) {
	input := `var { width, height } = box;
var [first, second] = pair;
`

	program, err := parser.ParseFile(input)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sc := newScope(nil)
	sc.declareHoisted(program.Body)
	visible := sc.visible()

	for _, want := range []string{"width", "height", "first", "second"} {
		if _, ok := visible[want]; !ok {
			t.Errorf("destructured binding %q not declared", want)
		}
	}
}

// TestScope_ChainVisibility verifies child scopes see their ancestors'
// bindings and parents never see their children's.
func TestScope_ChainVisibility(t *testing.T) {
	outer := newScope(nil)
	outer.declare("a")
	inner := newScope(outer)
	inner.declare("b")

	vis := inner.visible()
	if _, ok := vis["a"]; !ok {
		t.Errorf("inner scope cannot see outer binding")
	}
	if _, ok := vis["b"]; !ok {
		t.Errorf("inner scope cannot see its own binding")
	}
	if _, ok := outer.visible()["b"]; ok {
		t.Errorf("outer scope sees inner binding")
	}
}

// TestScope_CatchParameter verifies catch bodies capture the exception
// binding while code after the try does not.
func TestScope_CatchParameter(t *testing.T) {
	input := `try {
  risky();
} catch (err) {
  var msg = err.message;
}
var after = 1;
`

	program, _ := parseAndTransform(t, input, DefaultOptions())
	body := userStatements(t, program)

	sawCatchStep := false
	for _, call := range findRecorderCalls(body) {
		keys := snapshotKeys(t, call)
		for _, k := range keys {
			if k == "err" {
				sawCatchStep = true
			}
		}
	}
	if !sawCatchStep {
		t.Errorf("no step captured the catch parameter")
	}

	// The step following the trailing statement sits outside the catch scope.
	last := findRecorderCalls(body)
	keys := snapshotKeys(t, last[len(last)-1])
	for _, k := range keys {
		if k == "err" {
			t.Errorf("catch parameter leaked past the catch block: %v", keys)
		}
	}
}
