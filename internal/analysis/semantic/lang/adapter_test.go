package lang

import (
	"context"
	"errors"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/taintscan/api/schemas"
	"github.com/xkilldash9x/taintscan/internal/analysis/semantic/ast"
)

func parse(t *testing.T, path, src string, opts ...ParseOption) *Tree {
	t.Helper()
	a, ok := ForPath(path)
	require.True(t, ok, "no adapter for %s", path)
	tree, err := a.Parse(context.Background(), path, []byte(src), opts...)
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	return tree
}

func TestForPath(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		path string
		want schemas.Language
		ok   bool
	}{
		{"app/views.py", schemas.LanguagePython, true},
		{"web/index.JS", schemas.LanguageJavaScript, true},
		{"web/module.mjs", schemas.LanguageJavaScript, true},
		{"src/server.ts", schemas.LanguageTypeScript, true},
		{"src/App.tsx", schemas.LanguageTSX, true},
		{"cmd/main.go", schemas.LanguageGo, true},
		{"README.md", schemas.LanguageUnknown, false},
		{"Makefile", schemas.LanguageUnknown, false},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			a, ok := ForPath(tc.path)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, Detect(tc.path))
			if ok {
				assert.Equal(t, tc.want, a.Language())
			}
		})
	}
	assert.Len(t, Languages(), 5)
	assert.Equal(t, schemas.LanguageJavaScript, Family(schemas.LanguageTSX))
	assert.Equal(t, schemas.LanguagePython, Family(schemas.LanguagePython))
}

func TestParse_Python(t *testing.T) {
	t.Parallel()
	src := "q = \"SELECT * FROM t WHERE id=\" + request.args.get('id')\ncursor.execute(q)\n"
	tree := parse(t, "app.py", src)

	require.Len(t, tree.Root.Children, 2)
	assign := tree.Root.Children[0]
	require.Equal(t, ast.KindAssign, assign.Kind)
	assert.Equal(t, "q", assign.Child(0).Text)
	require.Equal(t, ast.KindBinaryOp, assign.Child(1).Kind)
	assert.Equal(t, "+", assign.Child(1).Op)

	rhs := assign.Child(1).Child(1)
	require.Equal(t, ast.KindCall, rhs.Kind)
	assert.Equal(t, "request.args.get", ast.Path(rhs.Callee()))

	sink := tree.Root.Children[1]
	require.Equal(t, ast.KindCall, sink.Kind)
	assert.Equal(t, "cursor.execute", ast.Path(sink.Callee()))
	assert.Equal(t, 2, sink.Span.Line)
	assert.Equal(t, "cursor.execute(q)", tree.Line(2))
	assert.Equal(t, "", tree.Line(99))
}

func TestParse_PythonStructure(t *testing.T) {
	t.Parallel()
	src := `def handler(cmd: str, flag=False):
    if flag:
        x = cmd
    elif other:
        x = "a"
    else:
        x = "b"
    for item in items:
        run(item)
    subprocess.run(x, shell=True)
    return f"done {x}"
`
	tree := parse(t, "h.py", src)
	require.Len(t, tree.Root.Children, 1)
	fn := tree.Root.Children[0]
	require.Equal(t, ast.KindFunction, fn.Kind)
	assert.Equal(t, "handler", fn.Text)

	params := fn.Params()
	require.Len(t, params, 2)
	assert.Equal(t, "cmd", params[0].Text)
	assert.Equal(t, "str", params[0].Annotation)
	assert.Equal(t, "flag", params[1].Text)

	body := fn.Body()
	require.Equal(t, ast.KindBlock, body.Kind)
	require.Len(t, body.Children, 4)

	ifNode := body.Children[0]
	require.Equal(t, ast.KindIf, ifNode.Kind)
	require.Len(t, ifNode.Children, 3)
	elif := ifNode.Child(2)
	require.Equal(t, ast.KindIf, elif.Kind, "elif must nest as an If in the alternative slot")
	require.Len(t, elif.Children, 3)
	assert.Equal(t, ast.KindBlock, elif.Child(2).Kind)

	loop := body.Children[1]
	require.Equal(t, ast.KindLoop, loop.Kind)
	assert.Equal(t, ast.KindAssign, loop.Child(0).Kind)
	assert.Equal(t, "in", loop.Child(0).Op)

	run := body.Children[2]
	require.Equal(t, ast.KindCall, run.Kind)
	shell, ok := run.Keyword("shell")
	require.True(t, ok)
	assert.Equal(t, "True", ast.LiteralText(shell))

	ret := body.Children[3]
	require.Equal(t, ast.KindReturn, ret.Kind)
	fstr := ret.Child(0)
	require.Equal(t, ast.KindString, fstr.Kind)
	require.Len(t, fstr.Children, 1, "f-string interpolation must be lowered")
	assert.Equal(t, "x", fstr.Child(0).Text)
}

func TestParse_JavaScript(t *testing.T) {
	t.Parallel()
	src := "const cmd = req.query.cmd;\nexec(`ls ${cmd}`);\ndocument.body.innerHTML = cmd;\n"
	tree := parse(t, "app.js", src)
	require.Len(t, tree.Root.Children, 3)

	decl := tree.Root.Children[0]
	require.Equal(t, ast.KindBlock, decl.Kind)
	require.Len(t, decl.Children, 1)
	assign := decl.Child(0)
	require.Equal(t, ast.KindAssign, assign.Kind)
	assert.Equal(t, "cmd", assign.Child(0).Text)
	assert.Equal(t, "req.query.cmd", ast.Path(assign.Child(1)))

	call := tree.Root.Children[1]
	require.Equal(t, ast.KindCall, call.Kind)
	assert.Equal(t, "exec", ast.Path(call.Callee()))
	tmpl := call.Positional(0)
	require.Equal(t, ast.KindString, tmpl.Kind)
	require.Len(t, tmpl.Children, 1)
	assert.Equal(t, "cmd", tmpl.Child(0).Text)

	prop := tree.Root.Children[2]
	require.Equal(t, ast.KindAssign, prop.Kind)
	assert.Equal(t, "document.body.innerHTML", ast.Path(prop.Child(0)))
}

func TestParse_TypeScript(t *testing.T) {
	t.Parallel()
	src := "function handle(req: Request, res: Response): void {\n  const id = req.params.id as string;\n  db.query(id);\n}\n"
	tree := parse(t, "handler.ts", src)
	require.Len(t, tree.Root.Children, 1)
	fn := tree.Root.Children[0]
	require.Equal(t, ast.KindFunction, fn.Kind)
	params := fn.Params()
	require.Len(t, params, 2)
	assert.Equal(t, "req", params[0].Text)
	assert.Equal(t, "Request", params[0].Annotation)

	decl := fn.Body().Child(0)
	require.Equal(t, ast.KindBlock, decl.Kind)
	// The `as` wrapper is transparent.
	assert.Equal(t, ast.KindAttribute, decl.Child(0).Child(1).Kind)
}

func TestParse_Go(t *testing.T) {
	t.Parallel()
	src := `package main

import "os/exec"

func handler(w http.ResponseWriter, r *http.Request) {
	cmd := r.URL.Query().Get("cmd")
	for _, arg := range args {
		use(arg)
	}
	exec.Command("sh", "-c", cmd).Run()
}
`
	tree := parse(t, "main.go", src)
	require.Len(t, tree.Root.Children, 1, "package and imports are dropped")
	fn := tree.Root.Children[0]
	require.Equal(t, ast.KindFunction, fn.Kind)
	params := fn.Params()
	require.Len(t, params, 2)
	assert.Equal(t, "r", params[1].Text)
	assert.Equal(t, "*http.Request", params[1].Annotation)

	body := fn.Body()
	require.Len(t, body.Children, 3)
	assign := body.Child(0)
	require.Equal(t, ast.KindAssign, assign.Kind)
	assert.Equal(t, ":=", assign.Op)
	assert.Equal(t, "r.URL.Query.Get", ast.Path(assign.Child(1)))

	loop := body.Child(1)
	require.Equal(t, ast.KindLoop, loop.Kind)
	assert.Equal(t, "range", loop.Child(0).Op)
	assert.Equal(t, ast.KindTuple, loop.Child(0).Child(0).Kind)

	run := body.Child(2)
	require.Equal(t, ast.KindCall, run.Kind)
	assert.Equal(t, "exec.Command.Run", ast.Path(run.Callee()))
	inner := run.Callee().Child(0)
	require.Equal(t, ast.KindCall, inner.Kind)
	assert.Equal(t, "cmd", inner.Positional(2).Text)
}

func TestParse_SyntaxError(t *testing.T) {
	t.Parallel()
	a, ok := ForLanguage(schemas.LanguagePython)
	require.True(t, ok)

	src := []byte("def broken(:\n    return\n")
	_, err := a.Parse(context.Background(), "broken.py", src)
	require.Error(t, err)
	var pe *schemas.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "broken.py", pe.File)
	assert.Equal(t, schemas.LanguagePython, pe.Language)
	assert.Positive(t, pe.Line)

	tree, err := a.Parse(context.Background(), "broken.py", src, WithTolerance(true))
	require.NoError(t, err)
	assert.Positive(t, tree.Errors)
}

func TestParse_Cancelled(t *testing.T) {
	t.Parallel()
	a, _ := ForLanguage(schemas.LanguageJavaScript)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A cancelled parse either fails with a ParseError or completes on
	// tiny inputs before the first cancellation check.
	_, err := a.Parse(ctx, "x.js", []byte("let a = 1;"))
	if err != nil {
		var pe *schemas.ParseError
		assert.True(t, errors.As(err, &pe))
	}
}

func TestAdapterQuery(t *testing.T) {
	t.Parallel()
	a, _ := ForLanguage(schemas.LanguagePython)
	tree := parse(t, "q.py", "os.system(a)\nos.system(b)\nprint(c)\n")

	seq := a.Query(tree, ast.CallTo("os.system"))
	assert.Equal(t, 2, ast.Count(seq))
	assert.Equal(t, 2, ast.Count(seq), "query must be restartable")
	assert.Equal(t, 0, ast.Count(a.Query(nil, nil)))
}

func FuzzParse(f *testing.F) {
	f.Add([]byte("\x00x = input()\nos.system(x)\n"))
	f.Add([]byte("\x01const a = req.body; eval(a)"))
	f.Add([]byte("\x04package main\nfunc f() { exec.Command(x) }"))

	langs := Languages()
	f.Fuzz(func(t *testing.T, data []byte) {
		c := fuzz.NewConsumer(data)
		idx, err := c.GetInt()
		if err != nil {
			return
		}
		content, err := c.GetBytes()
		if err != nil {
			return
		}
		if idx < 0 {
			idx = -idx
		}
		a, _ := ForLanguage(langs[idx%len(langs)])

		tree, err := a.Parse(context.Background(), "fuzz", content, WithTolerance(true))
		if err != nil {
			var pe *schemas.ParseError
			require.True(t, errors.As(err, &pe))
			return
		}
		for range a.Query(tree, nil) {
		}
	})
}
