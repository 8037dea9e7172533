package instrument

import (
	"github.com/t14raptor/go-fast/ast"
)

// scope tracks the variable names visible at a point in the program. Scopes
// form a chain from the innermost function out to the program scope.
//
// The model resolves bindings at function granularity: var, let and const all
// land in the nearest function (or program) scope, and catch parameters get a
// dedicated child scope. That over-approximates visibility for block-scoped
// bindings captured before their declaration, which the recorder tolerates
// because every captured name is read through a failure-tolerant accessor.
type scope struct {
	parent *scope
	names  map[string]struct{}
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]struct{})}
}

func (s *scope) declare(name string) {
	if name == "" {
		return
	}
	s.names[name] = struct{}{}
}

// visible returns a fresh set holding every name declared in this scope or
// any enclosing scope.
func (s *scope) visible() map[string]struct{} {
	out := make(map[string]struct{})
	for cur := s; cur != nil; cur = cur.parent {
		for name := range cur.names {
			out[name] = struct{}{}
		}
	}
	return out
}

// declareHoisted walks a statement list and declares every binding it
// introduces: variable declarations, function declarations, class
// declarations. Descent stops at function boundaries so inner bindings stay
// in their own scope.
func (s *scope) declareHoisted(list []ast.Statement) {
	for i := range list {
		s.declareHoistedStmt(list[i].Stmt)
	}
}

func (s *scope) declareHoistedStmt(st ast.Stmt) {
	walkNode(st, func(n any) bool {
		switch node := n.(type) {
		case *ast.FunctionDeclaration:
			if name, ok := declaredName(node.Function); ok {
				s.declare(name)
			}
			return false
		case *ast.ClassDeclaration:
			if name, ok := declaredName(node.Class); ok {
				s.declare(name)
			}
			return false
		case *ast.FunctionLiteral, *ast.ArrowFunctionLiteral:
			// Function expressions bind nothing in the enclosing scope.
			return false
		case *ast.VariableDeclaration:
			for i := range node.List {
				s.declareBindingTarget(node.List[i].Target)
			}
			return false
		}
		return true
	})
}

// declareBindingTarget declares every identifier appearing in a binding
// target. Destructuring patterns contribute each bound name; computed keys
// and default-value expressions may contribute extra names, which the
// failure-tolerant capture model absorbs.
func (s *scope) declareBindingTarget(target any) {
	for name := range identifierNames(target) {
		s.declare(name)
	}
}

// declareParams declares the parameter bindings of a function or arrow
// literal into s.
func (s *scope) declareParams(fn any) {
	params, ok := fieldValue(fn, "ParameterList")
	if !ok || params == nil {
		return
	}
	list, ok := fieldValue(params, "List")
	if !ok {
		return
	}
	s.declareBindingTarget(list)
}
