package instrument

import (
	"reflect"

	"github.com/t14raptor/go-fast/ast"
)

// walkNode calls visit for every AST node reachable from n, descending into
// exported struct fields, slices and interface values. visit returning false
// stops descent below that node.
//
// The walker is reflection-based so it keeps working across the full node
// vocabulary of the parser, including kinds this package has no special
// handling for.
func walkNode(n any, visit func(any) bool) {
	if n == nil {
		return
	}
	walkValue(reflect.ValueOf(n), visit)
}

func walkValue(v reflect.Value, visit func(any) bool) {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		if v.Elem().Kind() == reflect.Struct {
			if !visit(v.Interface()) {
				return
			}
			walkStructFields(v.Elem(), visit)
			return
		}
		walkValue(v.Elem(), visit)
	case reflect.Interface:
		if v.IsNil() {
			return
		}
		walkValue(v.Elem(), visit)
	case reflect.Struct:
		// Identifiers sometimes appear as plain struct values rather than
		// pointers; surface them to the visitor anyway.
		if v.CanInterface() {
			if id, ok := v.Interface().(ast.Identifier); ok {
				if !visit(&id) {
					return
				}
			}
		}
		walkStructFields(v, visit)
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walkValue(v.Index(i), visit)
		}
	}
}

func walkStructFields(v reflect.Value, visit func(any) bool) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).IsExported() {
			walkValue(v.Field(i), visit)
		}
	}
}

// identifierNames collects the distinct identifier names appearing anywhere
// in the subtree rooted at n. Descent does not stop at nested functions; the
// caller filters the result as needed.
func identifierNames(n any) map[string]struct{} {
	names := make(map[string]struct{})
	walkNode(n, func(node any) bool {
		if id, ok := node.(*ast.Identifier); ok {
			names[string(id.Name)] = struct{}{}
		}
		return true
	})
	return names
}

// hasIdentifier reports whether an identifier with the given name appears
// anywhere in the subtree rooted at n.
func hasIdentifier(n any, name string) bool {
	found := false
	walkNode(n, func(node any) bool {
		if found {
			return false
		}
		if id, ok := node.(*ast.Identifier); ok && string(id.Name) == name {
			found = true
			return false
		}
		return true
	})
	return found
}

// findOuterFunctions calls fn for each function or arrow literal in the
// subtree rooted at n without descending into their bodies. Subtrees rooted
// at skip are not visited; pass nil to visit everything.
func findOuterFunctions(n any, skip any, fn func(node any)) {
	walkNode(n, func(node any) bool {
		if skip != nil && node == skip {
			return false
		}
		switch node.(type) {
		case *ast.FunctionLiteral, *ast.ArrowFunctionLiteral:
			fn(node)
			return false
		}
		return true
	})
}

// fieldValue returns the named exported field of a struct (or pointer to
// struct), resolved by reflection.
func fieldValue(n any, name string) (any, bool) {
	if n == nil {
		return nil, false
	}
	v := reflect.ValueOf(n)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	f := v.FieldByName(name)
	if !f.IsValid() || !f.CanInterface() {
		return nil, false
	}
	return f.Interface(), true
}

// declaredName extracts the name bound by a declaration node (function or
// class) by resolving its Name field reflectively. Supports both pointer and
// value identifier fields.
func declaredName(n any) (string, bool) {
	f, ok := fieldValue(n, "Name")
	if !ok || f == nil {
		return "", false
	}
	switch id := f.(type) {
	case *ast.Identifier:
		if id == nil {
			return "", false
		}
		return string(id.Name), true
	case ast.Identifier:
		return string(id.Name), true
	}
	// Some node kinds nest the identifier one level deeper.
	if inner, ok := fieldValue(f, "Name"); ok {
		if s, ok := inner.(string); ok {
			return s, true
		}
	}
	return "", false
}
