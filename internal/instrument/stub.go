package instrument

import (
	"strings"

	"github.com/t14raptor/go-fast/ast"
	"github.com/t14raptor/go-fast/parser"
)

// The recorder stub is the JavaScript runtime half of the instrumentation.
// It installs the recorder and suite/test bookkeeping on globalThis, guarded
// so that only the first instrumented file loaded by a process wins and every
// later stub becomes a no-op.
//
// Failure handling inside __ttRecord is asymmetric: reading or serializing a
// captured variable may fail per name (the name resolves to undefined), while
// failing to persist the step file aborts the run.
const stubTemplate = `var __ttRecorderInstalled = typeof globalThis.__ttRecord === "function";
if (!__ttRecorderInstalled) {
  globalThis.__ttDefaultSuite = "__TT_SUITE__";
  globalThis.__ttTraceRoot = "__TT_ROOT__";
  globalThis.__ttStepNumber = 0;
  globalThis.__ttSuiteStack = [];
  if (globalThis.__ttCurrentSuite === undefined) {
    globalThis.__ttCurrentSuite = globalThis.__ttDefaultSuite;
  }
  globalThis.__ttCurrentTest = null;
  globalThis.__ttSanitize = function (name) {
    return String(name).replace(/[\s\\/?:*|"<>.]/g, "_").replace(/_+/g, "_");
  };
  globalThis.__ttResetSteps = function () {
    globalThis.__ttStepNumber = 0;
  };
  globalThis.__ttPushSuite = function (name) {
    globalThis.__ttSuiteStack.push(globalThis.__ttSanitize(name));
    globalThis.__ttCurrentSuite = globalThis.__ttSuiteStack.join("/");
  };
  globalThis.__ttPopSuite = function () {
    globalThis.__ttSuiteStack.pop();
    globalThis.__ttCurrentSuite = globalThis.__ttSuiteStack.length > 0 ? globalThis.__ttSuiteStack.join("/") : globalThis.__ttDefaultSuite;
  };
  globalThis.__ttSetTest = function (name) {
    globalThis.__ttCurrentTest = name;
  };
  globalThis.__ttSuite = function (fallback) {
    var s = globalThis.__ttCurrentSuite;
    return s === undefined || s === null ? fallback : s;
  };
  globalThis.__ttTest = function (fallback) {
    var t = globalThis.__ttCurrentTest;
    return t === undefined || t === null ? fallback : t;
  };
  globalThis.__ttRecord = function (file, line, snapshot, suite, test, sourceLine) {
    var fs = require("fs");
    var path = require("path");
    globalThis.__ttStepNumber += 1;
    var vars = {};
    var keys = Object.keys(snapshot);
    for (var i = 0; i < keys.length; i++) {
      try {
        vars[keys[i]] = JSON.parse(JSON.stringify(snapshot[keys[i]]()));
      } catch (err) {
        vars[keys[i]] = undefined;
      }
    }
    var step = {
      stepNumber: globalThis.__ttStepNumber,
      file: file,
      line: line,
      sourceLine: sourceLine,
      vars: vars,
      suite: suite,
      test: test,
      ts: Date.now()
    };
    var dir = path.join(globalThis.__ttTraceRoot, ".trace", suite, globalThis.__ttSanitize(test));
    try {
      fs.mkdirSync(dir, { recursive: true });
    } catch (err) {
      if (err.code !== "EEXIST") {
        console.error("ttrace: cannot create " + dir + ": " + err);
        throw err;
      }
    }
    var out = path.join(dir, String(globalThis.__ttStepNumber) + ".json");
    try {
      fs.writeFileSync(out, JSON.stringify(step));
    } catch (err) {
      console.error("ttrace: cannot write " + out + ": " + err);
      throw err;
    }
  };
}
`

// StubSource returns the standalone recorder stub for the given options, for
// embedding in files that are loaded before any instrumented output.
func StubSource(opts Options) string {
	opts = opts.withDefaults()
	return stubSource(opts.SuiteName, opts.TraceRoot)
}

// stubSource renders the recorder stub with the configured default suite name
// and trace root substituted in.
func stubSource(suite, traceRoot string) string {
	return strings.NewReplacer(
		`"__TT_SUITE__"`, jsString(suite),
		`"__TT_ROOT__"`, jsString(traceRoot),
	).Replace(stubTemplate)
}

// hasRecorderStub reports whether the program already begins life with a
// recorder stub, recognized by a top-level declaration of the install guard.
func hasRecorderStub(program *ast.Program) bool {
	for i := range program.Body {
		decl, ok := program.Body[i].Stmt.(*ast.VariableDeclaration)
		if !ok {
			continue
		}
		for j := range decl.List {
			if id, ok := decl.List[j].Target.Target.(*ast.Identifier); ok && string(id.Name) == installedGuard {
				return true
			}
		}
	}
	return false
}

// injectStub prepends the recorder stub to the program unless one is already
// present.
func (r *rewriter) injectStub(program *ast.Program) {
	if hasRecorderStub(program) {
		return
	}
	prog, err := parser.ParseFile(stubSource(r.opts.SuiteName, r.opts.TraceRoot))
	if err != nil {
		// The template is a constant; a parse failure here means the template
		// itself is broken and there is nothing sensible to inject.
		return
	}
	for i := range prog.Body {
		r.markSynthetic(prog.Body[i].Stmt)
	}
	program.Body = append(prog.Body, program.Body...)
	r.stats.StubInstalled = true
}
