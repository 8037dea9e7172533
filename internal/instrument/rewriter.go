package instrument

import (
	"reflect"
	"strings"

	"github.com/t14raptor/go-fast/ast"
)

// rewriter carries the per-file state of one transformation pass: scope
// bookkeeping, the source line index, the set of statements synthesized
// during this run and the accumulated stats.
//
// Not safe for concurrent use; build one rewriter per file.
type rewriter struct {
	file  string
	opts  Options
	lines *lineIndex
	stats Stats

	// Statements synthesized during this run. Statements surviving from a
	// previous run are recognized by shape instead (isSynthetic).
	synthetic map[ast.Stmt]struct{}

	// Function nodes already instrumented this run, so overlapping discovery
	// paths (statement recursion vs expression scanning) never instrument a
	// body twice.
	seenFns map[any]struct{}
}

func newRewriter(src, file string, opts Options) *rewriter {
	return &rewriter{
		file:      file,
		opts:      opts,
		lines:     newLineIndex(src),
		synthetic: make(map[ast.Stmt]struct{}),
		seenFns:   make(map[any]struct{}),
	}
}

func (r *rewriter) markSynthetic(st ast.Stmt) {
	if st != nil {
		r.synthetic[st] = struct{}{}
	}
}

// isSynthetic reports whether a statement was synthesized by this run or by a
// previous transformation of the same file. Previous-run output is recognized
// by shape: calls to runtime entry points, the install-guard declaration, and
// the guarded install block.
func (r *rewriter) isSynthetic(st ast.Stmt) bool {
	if _, ok := r.synthetic[st]; ok {
		return true
	}
	switch s := st.(type) {
	case *ast.ExpressionStatement:
		if name, ok := calleeName(s); ok && strings.HasPrefix(name, runtimePrefix) {
			return true
		}
	case *ast.VariableDeclaration:
		for i := range s.List {
			if id, ok := s.List[i].Target.Target.(*ast.Identifier); ok && strings.HasPrefix(string(id.Name), runtimePrefix) {
				return true
			}
		}
	case *ast.IfStatement:
		if s.Test != nil && hasIdentifier(s.Test.Expr, installedGuard) {
			return true
		}
	}
	return false
}

// calleeName returns the plain identifier a statement-level call invokes.
func calleeName(s *ast.ExpressionStatement) (string, bool) {
	call, ok := s.Expression.Expr.(*ast.CallExpression)
	if !ok {
		return "", false
	}
	id, ok := call.Callee.Expr.(*ast.Identifier)
	if !ok {
		return "", false
	}
	return string(id.Name), true
}

func (r *rewriter) isRecorderCall(st ast.Stmt) bool {
	s, ok := st.(*ast.ExpressionStatement)
	if !ok {
		return false
	}
	name, ok := calleeName(s)
	return ok && name == recorderFn
}

// isPriorRecorderCall reports whether st is a recorder call left over from a
// previous transformation of the same file.
func (r *rewriter) isPriorRecorderCall(st ast.Stmt) bool {
	if _, ok := r.synthetic[st]; ok {
		return false
	}
	return r.isRecorderCall(st)
}

// blockStartsWith reports whether the leading synthesized statements of a
// block include a call to the named runtime entry point.
func (r *rewriter) blockStartsWith(block *ast.BlockStatement, callee string) bool {
	for i := range block.List {
		st := block.List[i].Stmt
		if !r.isSynthetic(st) {
			return false
		}
		if s, ok := st.(*ast.ExpressionStatement); ok {
			if name, ok := calleeName(s); ok && name == callee {
				return true
			}
		}
	}
	return false
}

// rewriteProgram instruments a whole file: hoists top-level bindings, rewrites
// the statement list and prepends the recorder stub.
func (r *rewriter) rewriteProgram(p *ast.Program) {
	sc := newScope(nil)
	sc.declareHoisted(p.Body)
	p.Body = r.rewriteList(p.Body, sc)
	r.injectStub(p)
}

// rewriteList rewrites a statement list in place order, splicing recorder
// calls around the statements that warrant them.
func (r *rewriter) rewriteList(list []ast.Statement, sc *scope) []ast.Statement {
	out := make([]ast.Statement, 0, len(list)+4)
	for i := range list {
		if r.isSynthetic(list[i].Stmt) {
			if _, thisRun := r.synthetic[list[i].Stmt]; !thisRun {
				r.stats.SkippedInstrumented++
			}
			out = append(out, list[i])
			continue
		}
		// Only recorder calls surviving from a previous run suppress new
		// ones. A neighbor synthesized during this run (a function entry
		// step, say) records a different point and must not swallow the
		// statement's own step.
		followedByRecorder := i+1 < len(list) && r.isPriorRecorderCall(list[i+1].Stmt)
		precededByRecorder := i > 0 && r.isPriorRecorderCall(list[i-1].Stmt)
		out = append(out, r.rewriteStmt(list[i], sc, followedByRecorder, precededByRecorder)...)
	}
	return out
}

func one(wrapped ast.Statement) []ast.Statement {
	return []ast.Statement{wrapped}
}

func (r *rewriter) rewriteStmt(wrapped ast.Statement, sc *scope, followedByRecorder, precededByRecorder bool) []ast.Statement {
	switch st := wrapped.Stmt.(type) {
	case *ast.BlockStatement:
		st.List = r.rewriteList(st.List, sc)
		return one(wrapped)

	case *ast.FunctionDeclaration:
		r.instrumentFunction(st.Function, sc)
		return one(wrapped)

	case *ast.ClassDeclaration:
		findOuterFunctions(st.Class, nil, func(fn any) { r.instrumentFunction(fn, sc) })
		return one(wrapped)

	case *ast.IfStatement:
		return r.rewriteIf(wrapped, st, sc, precededByRecorder)

	case *ast.ThrowStatement:
		return r.rewriteThrow(wrapped, st, sc, precededByRecorder)

	case *ast.TryStatement:
		r.rewriteTry(st, sc)
		return one(wrapped)

	case *ast.SwitchStatement:
		if disc, ok := fieldValue(st, "Discriminant"); ok {
			r.instrumentExprFunctions(disc, sc)
		}
		for i := range st.Body {
			r.instrumentExprFunctions(st.Body[i].Test, sc)
			st.Body[i].Consequent = r.rewriteList(st.Body[i].Consequent, sc)
		}
		return one(wrapped)

	case *ast.ForStatement, *ast.WhileStatement, *ast.DoWhileStatement,
		*ast.ForInStatement, *ast.ForOfStatement, *ast.WithStatement,
		*ast.LabelledStatement:
		r.rewriteEmbeddedBody(wrapped.Stmt, sc)
		return one(wrapped)

	case *ast.ReturnStatement:
		r.instrumentExprFunctions(st, sc)
		return one(wrapped)

	case *ast.ExpressionStatement:
		if out, handled := r.rewriteGroupingCall(wrapped, st, sc); handled {
			return out
		}
		return r.genericStatement(wrapped, sc, followedByRecorder)

	case *ast.VariableDeclaration:
		return r.genericStatement(wrapped, sc, followedByRecorder)

	default:
		// Break, continue, empty, debugger, module-structure statements and
		// any kind this pass has no policy for: left alone, apart from
		// function literals hiding inside them.
		r.instrumentExprFunctions(wrapped.Stmt, sc)
		return one(wrapped)
	}
}

// genericStatement appends a recorder call after a plain statement, capturing
// the visible scope plus every name the statement itself mentions.
func (r *rewriter) genericStatement(wrapped ast.Statement, sc *scope, followedByRecorder bool) []ast.Statement {
	names := r.statementNames(wrapped.Stmt, sc)
	r.instrumentExprFunctions(wrapped.Stmt, sc)
	if followedByRecorder {
		r.stats.SkippedInstrumented++
		return one(wrapped)
	}
	line, ok := r.nodeLine(wrapped.Stmt)
	if !ok {
		r.stats.SkippedNoLocation++
		return one(wrapped)
	}
	call, ok := r.recorderCall(line, names)
	if !ok {
		return one(wrapped)
	}
	return []ast.Statement{wrapped, call}
}

// rewriteIf places one recorder call before the if-statement to capture the
// pre-condition state, then recurses into both branches. else-if chains are
// flattened into else { record; if ... } so each nested condition gets its
// own pre-condition step.
func (r *rewriter) rewriteIf(wrapped ast.Statement, st *ast.IfStatement, sc *scope, precededByRecorder bool) []ast.Statement {
	out := make([]ast.Statement, 0, 2)
	if !precededByRecorder {
		if line, ok := r.nodeLine(st); ok {
			if call, ok := r.recorderCall(line, r.statementNames(st, sc)); ok {
				out = append(out, call)
			}
		} else {
			r.stats.SkippedNoLocation++
		}
	}
	if st.Test != nil {
		r.instrumentExprFunctions(st.Test.Expr, sc)
	}
	if st.Consequent != nil {
		block := ensureBlockStmt(st.Consequent)
		block.List = r.rewriteList(block.List, sc)
	}
	if st.Alternate != nil {
		if nested, ok := st.Alternate.Stmt.(*ast.IfStatement); ok {
			stmts := r.rewriteIf(ast.Statement{Stmt: nested}, nested, sc, false)
			if len(stmts) == 1 {
				st.Alternate.Stmt = stmts[0].Stmt
			} else {
				st.Alternate.Stmt = &ast.BlockStatement{List: stmts}
			}
		} else {
			block := ensureBlockStmt(st.Alternate)
			if !r.blockStartsWith(block, recorderFn) {
				if line, ok := r.elseLine(st, block); ok {
					if call, ok := r.recorderCall(line, r.statementNames(block, sc)); ok {
						block.List = append([]ast.Statement{call}, block.List...)
					}
				} else {
					r.stats.SkippedNoLocation++
				}
			}
			block.List = r.rewriteList(block.List, sc)
		}
	}
	return append(out, wrapped)
}

// elseLine resolves the line an else-branch step should report: the else
// block's own start, falling back to one line past the consequent.
func (r *rewriter) elseLine(st *ast.IfStatement, block *ast.BlockStatement) (int, bool) {
	if line, ok := r.nodeLine(block); ok {
		return line, true
	}
	if st.Consequent != nil {
		if off, ok := nodeEndOffset(st.Consequent.Stmt); ok {
			return r.lines.lineAt(off) + 1, true
		}
	}
	return 0, false
}

// rewriteThrow places a recorder call before the throw so the state feeding
// the exception is on record before control unwinds.
func (r *rewriter) rewriteThrow(wrapped ast.Statement, st *ast.ThrowStatement, sc *scope, precededByRecorder bool) []ast.Statement {
	names := r.statementNames(st, sc)
	r.instrumentExprFunctions(st, sc)
	if precededByRecorder {
		return one(wrapped)
	}
	line, ok := r.nodeLine(st)
	if !ok {
		r.stats.SkippedNoLocation++
		return one(wrapped)
	}
	call, ok := r.recorderCall(line, names)
	if !ok {
		return one(wrapped)
	}
	return []ast.Statement{call, wrapped}
}

func (r *rewriter) rewriteTry(st *ast.TryStatement, sc *scope) {
	if st.Body != nil {
		st.Body.List = r.rewriteList(st.Body.List, sc)
	}
	if st.Catch != nil && st.Catch.Body != nil {
		cs := newScope(sc)
		if st.Catch.Parameter != nil {
			cs.declareBindingTarget(st.Catch.Parameter)
		}
		st.Catch.Body.List = r.rewriteList(st.Catch.Body.List, cs)
	}
	if st.Finally != nil {
		st.Finally.List = r.rewriteList(st.Finally.List, sc)
	}
}

// rewriteEmbeddedBody handles statements that embed a single body statement
// (loops, with, labels): the body is normalized to a block and rewritten, and
// function literals in the header expressions are instrumented. A body that
// cannot be resolved is counted as unsupported rather than dropped silently.
func (r *rewriter) rewriteEmbeddedBody(node any, sc *scope) {
	var body *ast.Statement
	if f, ok := fieldValue(node, "Body"); ok {
		body, _ = f.(*ast.Statement)
	}
	if body == nil {
		if f, ok := fieldValue(node, "Statement"); ok {
			body, _ = f.(*ast.Statement)
		}
	}
	if body != nil {
		block := ensureBlockStmt(body)
		block.List = r.rewriteList(block.List, sc)
	} else {
		r.stats.SkippedUnsupported++
	}
	findOuterFunctions(node, body, func(fn any) { r.instrumentFunction(fn, sc) })
}

// instrumentExprFunctions instruments every function literal appearing in an
// expression position under n without touching n itself.
func (r *rewriter) instrumentExprFunctions(n any, sc *scope) {
	findOuterFunctions(n, nil, func(fn any) { r.instrumentFunction(fn, sc) })
}

// ensureBlockStmt normalizes a statement slot to a block, wrapping a bare
// statement body in a one-element block so recorder calls have somewhere to
// live.
func ensureBlockStmt(w *ast.Statement) *ast.BlockStatement {
	if b, ok := w.Stmt.(*ast.BlockStatement); ok {
		return b
	}
	b := &ast.BlockStatement{List: []ast.Statement{{Stmt: w.Stmt}}}
	w.Stmt = b
	return b
}

// instrumentFunction instruments one function or arrow literal: a recorder
// call capturing the entry state as the first body statement, then the body
// rewritten under the function's own scope.
func (r *rewriter) instrumentFunction(fn any, sc *scope) {
	if fn == nil {
		return
	}
	if _, ok := r.seenFns[fn]; ok {
		return
	}
	r.seenFns[fn] = struct{}{}

	_, isArrow := fn.(*ast.ArrowFunctionLiteral)
	body, ok := r.functionBlock(fn)
	if !ok {
		r.stats.SkippedUnsupported++
		return
	}

	inner := newScope(sc)
	inner.declareParams(fn)
	inner.declareHoisted(body.List)
	if name, ok := declaredName(fn); ok {
		inner.declare(name)
	}

	if !r.blockStartsWith(body, recorderFn) {
		if line, ok := r.nodeLine(fn); ok {
			names := setToNames(inner.visible())
			if !isArrow {
				// Arrows have no arguments object of their own.
				names = append(names, "arguments")
			}
			if call, ok := r.recorderCall(line, names); ok {
				body.List = append([]ast.Statement{call}, body.List...)
				r.stats.FunctionsInstrumented++
			}
		} else {
			r.stats.SkippedNoLocation++
		}
	}
	body.List = r.rewriteList(body.List, inner)
}

// functionBlock resolves the block body of a function or arrow literal.
// Expression-bodied arrows are normalized to a return block first; ok=false
// means the body could not be reached and the function is skipped.
func (r *rewriter) functionBlock(fn any) (*ast.BlockStatement, bool) {
	switch f := fn.(type) {
	case *ast.FunctionLiteral:
		if f == nil || f.Body == nil {
			return nil, false
		}
		return f.Body, true
	case *ast.ArrowFunctionLiteral:
		if f == nil {
			return nil, false
		}
		return r.arrowBlock(f)
	}
	return nil, false
}

// arrowBlock resolves an arrow function's body through reflection: the field
// layout of concise bodies is unwrapped until a block statement or a bare
// expression surfaces. A bare expression is coerced into { return expr; } and
// written back through the innermost settable slot.
func (r *rewriter) arrowBlock(arrow *ast.ArrowFunctionLiteral) (*ast.BlockStatement, bool) {
	cur := reflect.ValueOf(arrow).Elem().FieldByName("Body")
	if !cur.IsValid() {
		return nil, false
	}
	var slots []reflect.Value
	if cur.CanSet() {
		slots = append(slots, cur)
	}
	for depth := 0; depth < 6; depth++ {
		switch cur.Kind() {
		case reflect.Pointer, reflect.Interface:
			if cur.IsNil() {
				return nil, false
			}
			if b, ok := cur.Interface().(*ast.BlockStatement); ok {
				return b, true
			}
			cur = cur.Elem()
			continue
		case reflect.Struct:
			if cur.CanAddr() {
				if b, ok := cur.Addr().Interface().(*ast.BlockStatement); ok {
					return b, true
				}
			}
			f := cur.FieldByName("Stmt")
			if !f.IsValid() {
				f = cur.FieldByName("Expr")
			}
			if !f.IsValid() && cur.NumField() == 1 {
				f = cur.Field(0)
			}
			if !f.IsValid() {
				return nil, false
			}
			if f.CanSet() {
				slots = append(slots, f)
			}
			cur = f
			continue
		}
		break
	}
	if !cur.IsValid() || !cur.CanInterface() {
		return nil, false
	}
	expr, ok := cur.Interface().(ast.Expr)
	if !ok {
		return nil, false
	}
	block, ok := returnBlock(expr)
	if !ok {
		return nil, false
	}
	bv := reflect.ValueOf(block)
	for i := len(slots) - 1; i >= 0; i-- {
		if bv.Type().AssignableTo(slots[i].Type()) {
			slots[i].Set(bv)
			return block, true
		}
	}
	return nil, false
}

// rewriteGroupingCall recognizes top-level describe/it/test calls and rewrites
// their callbacks: describe bodies are bracketed with suite push/pop, it and
// test bodies start by announcing the test name. Malformed calls (wrong
// arity, non-literal title, no function callback) fall through to the generic
// statement policy untouched.
func (r *rewriter) rewriteGroupingCall(wrapped ast.Statement, st *ast.ExpressionStatement, sc *scope) ([]ast.Statement, bool) {
	call, ok := st.Expression.Expr.(*ast.CallExpression)
	if !ok {
		return nil, false
	}
	name, ok := calleeName(st)
	if !ok {
		return nil, false
	}
	isGroup := name == "describe"
	isTest := name == "it" || name == "test"
	if !isGroup && !isTest {
		return nil, false
	}
	if len(call.ArgumentList) < 2 {
		r.stats.SkippedUnsupported++
		return nil, false
	}
	lit, ok := call.ArgumentList[0].Expr.(*ast.StringLiteral)
	if !ok {
		r.stats.SkippedUnsupported++
		return nil, false
	}
	title := string(lit.Value)
	fn := call.ArgumentList[1].Expr
	switch fn.(type) {
	case *ast.FunctionLiteral, *ast.ArrowFunctionLiteral:
	default:
		r.stats.SkippedUnsupported++
		return nil, false
	}
	body, ok := r.functionBlock(fn)
	if !ok {
		r.stats.SkippedUnsupported++
		return nil, false
	}

	r.instrumentFunction(fn, sc)

	if isGroup {
		if !r.blockStartsWith(body, pushSuiteFn) {
			push, okPush := r.suitePushCall(title)
			pop, okPop := r.suitePopCall()
			if okPush && okPop {
				body.List = append([]ast.Statement{push}, body.List...)
				body.List = append(body.List, pop)
				r.stats.SuitesWrapped++
			}
		}
	} else {
		if !r.blockStartsWith(body, setTestFn) {
			if set, ok := r.setTestCall(title); ok {
				body.List = append([]ast.Statement{set}, body.List...)
				r.stats.TestsTagged++
			}
		}
	}
	return one(wrapped), true
}

// statementNames computes the capture set for a statement: everything visible
// in scope plus every identifier the statement mentions, minus names the
// runtime owns and the pseudo-bindings arguments and undefined.
func (r *rewriter) statementNames(st any, sc *scope) []string {
	set := sc.visible()
	for name := range identifierNames(st) {
		set[name] = struct{}{}
	}
	delete(set, "arguments")
	delete(set, "undefined")
	for name := range set {
		if strings.HasPrefix(name, runtimePrefix) {
			delete(set, name)
		}
	}
	return setToNames(set)
}

func setToNames(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	return out
}

func (r *rewriter) nodeLine(n any) (int, bool) {
	off, ok := nodeOffset(n)
	if !ok {
		return 0, false
	}
	return r.lines.lineAt(off), true
}
