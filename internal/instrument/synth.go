package instrument

import (
	"fmt"
	"sort"
	"strings"

	"github.com/t14raptor/go-fast/ast"
	"github.com/t14raptor/go-fast/parser"
)

// Synthesized statements are produced by rendering a small JavaScript snippet
// and reparsing it rather than assembling AST nodes by hand. The parser is
// the single authority on node shape, so the generated tree always matches
// what it would produce for hand-written source.

// jsString renders s as a double-quoted JavaScript string literal. Control
// characters and the line separators U+2028/U+2029 are escaped so the result
// is always valid on a single source line.
func jsString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x2028 || r == 0x2029 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// snapshotLiteral renders the snapshot object for the given names. Each
// property is a thunk that reads the variable lazily inside its own
// try/catch, so a name that is not actually reachable at runtime resolves to
// undefined instead of throwing:
//
//	{ "x": () => { try { return x; } catch (e) { return undefined; } } }
//
// Arrow thunks keep the arguments object resolving against the instrumented
// function rather than the thunk itself.
func snapshotLiteral(names []string) string {
	var b strings.Builder
	b.WriteString("{ ")
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(jsString(name))
		b.WriteString(": () => { try { return ")
		b.WriteString(name)
		b.WriteString("; } catch (e) { return undefined; } }")
	}
	if len(names) > 0 {
		b.WriteString(" ")
	}
	b.WriteString("}")
	return b.String()
}

// capNames sorts names, removes duplicates and truncates to max entries.
// Sorting before the cut keeps the captured set deterministic.
func capNames(names []string, max int) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	if max >= 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// parseSyntheticStmt parses a single-statement snippet and returns its first
// statement, marked as synthesized so later passes leave it alone.
func (r *rewriter) parseSyntheticStmt(src string) (ast.Statement, bool) {
	prog, err := parser.ParseFile(src)
	if err != nil || len(prog.Body) == 0 {
		return ast.Statement{}, false
	}
	st := prog.Body[0]
	r.markSynthetic(st.Stmt)
	return st, true
}

// recorderCall builds a recorder call statement for the given source line and
// captured names:
//
//	__ttRecord(file, line, snapshot, __ttSuite(def), __ttTest(def), srcText)
//
// Returns ok=false when step recording is disabled (MaxVars <= 0) or the
// snippet fails to parse.
func (r *rewriter) recorderCall(line int, names []string) (ast.Statement, bool) {
	if r.opts.MaxVars <= 0 {
		return ast.Statement{}, false
	}
	names = capNames(names, r.opts.MaxVars)

	var b strings.Builder
	b.WriteString(recorderFn)
	b.WriteString("(")
	b.WriteString(jsString(r.file))
	fmt.Fprintf(&b, ", %d, ", line)
	b.WriteString(snapshotLiteral(names))
	fmt.Fprintf(&b, ", %s(%s), %s(%s), ", suiteFn, jsString(r.opts.SuiteName), testFn, jsString(DefaultTestName))
	if text, ok := r.lines.text(line); ok {
		b.WriteString(jsString(text))
	} else {
		b.WriteString("null")
	}
	b.WriteString(");")

	st, ok := r.parseSyntheticStmt(b.String())
	if ok {
		r.stats.StepsInserted++
	}
	return st, ok
}

// suitePushCall builds __ttPushSuite("<title>");
func (r *rewriter) suitePushCall(title string) (ast.Statement, bool) {
	return r.parseSyntheticStmt(pushSuiteFn + "(" + jsString(title) + ");")
}

// suitePopCall builds __ttPopSuite();
func (r *rewriter) suitePopCall() (ast.Statement, bool) {
	return r.parseSyntheticStmt(popSuiteFn + "();")
}

// setTestCall builds __ttSetTest("<title>");
func (r *rewriter) setTestCall(title string) (ast.Statement, bool) {
	return r.parseSyntheticStmt(setTestFn + "(" + jsString(title) + ");")
}

// returnBlock wraps an expression into a `{ return <expr>; }` block by
// parsing a placeholder function and grafting the expression into its return
// statement. Used to normalize expression-bodied arrows before insertion.
func returnBlock(expr ast.Expr) (*ast.BlockStatement, bool) {
	prog, err := parser.ParseFile("function __ttWrap() { return 0; }")
	if err != nil || len(prog.Body) == 0 {
		return nil, false
	}
	decl, ok := prog.Body[0].Stmt.(*ast.FunctionDeclaration)
	if !ok || decl.Function == nil || decl.Function.Body == nil || len(decl.Function.Body.List) != 1 {
		return nil, false
	}
	ret, ok := decl.Function.Body.List[0].Stmt.(*ast.ReturnStatement)
	if !ok || ret.Argument == nil {
		return nil, false
	}
	ret.Argument.Expr = expr
	return decl.Function.Body, true
}
