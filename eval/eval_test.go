package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RuairidhWilliamson/rain-sub000/ast"
	"github.com/RuairidhWilliamson/rain-sub000/cache"
	"github.com/RuairidhWilliamson/rain-sub000/driver"
	"github.com/RuairidhWilliamson/rain-sub000/ir"
	"github.com/RuairidhWilliamson/rain-sub000/value"
)

// stubParser stands in for the real lexer/parser (out of scope, spec 1):
// it treats the whole source text as the integer literal returned by a
// zero-parameter function `value`, so tests can vary "file contents" just by
// varying a string.
type stubParser struct{}

func (stubParser) Parse(src string) (*ast.Module, error) {
	body := ast.NewBlock(ast.ExprStatement(ast.NewIntegerLiteral(ast.Span{}, src)))
	return &ast.Module{Declarations: []ast.Declaration{
		&ast.FnDeclare{Name: "value", Body: body},
	}}, nil
}

func newHarness(t *testing.T, opts ...Option) (*ir.Store, *cache.Cache, *driver.Fake, *Evaluator) {
	t.Helper()
	store := ir.NewStore()
	c, err := cache.New()
	if err != nil {
		t.Fatal(err)
	}
	fake := driver.NewFake()
	e := New(store, c, fake, opts...)
	return store, c, fake, e
}

// factorialModule builds: fn factorial(n) { if n <= 1 { 1 } else { n * factorial(n - 1) } }
func factorialModule() *ast.Module {
	cond := ast.NewBinaryOp(ast.Span{}, ast.OpLessEqual,
		ast.NewIdent(ast.Span{}, "n"),
		ast.NewIntegerLiteral(ast.Span{}, "1"))
	recurse := ast.NewCall(ast.Span{},
		ast.NewIdent(ast.Span{}, "factorial"),
		[]ast.Expr{ast.NewBinaryOp(ast.Span{}, ast.OpSub,
			ast.NewIdent(ast.Span{}, "n"),
			ast.NewIntegerLiteral(ast.Span{}, "1"))})
	body := ast.NewBlock(ast.ExprStatement(
		ast.NewIf(ast.Span{}, cond,
			ast.NewBlock(ast.ExprStatement(ast.NewIntegerLiteral(ast.Span{}, "1"))),
			ast.NewBlock(ast.ExprStatement(ast.NewBinaryOp(ast.Span{}, ast.OpMul,
				ast.NewIdent(ast.Span{}, "n"), recurse))),
		),
	))
	decl := &ast.FnDeclare{Name: "factorial", Params: []string{"n"}, Body: body}
	return &ast.Module{Declarations: []ast.Declaration{decl}}
}

// TestNestedClosureCapturesThroughEnclosingClosure builds
// fn make(x) { fn() { fn() { x } } } and calls make(5)()(): the innermost
// closure's own Params/locals never bind x, so it must fall back to its
// enclosing closure's Capture at construction time, not just its
// immediately-enclosing frame's args/locals (spec 4.3.2).
func TestNestedClosureCapturesThroughEnclosingClosure(t *testing.T) {
	store, _, _, e := newHarness(t)

	innerClosure := ast.NewClosureLit(ast.Span{}, nil,
		ast.NewBlock(ast.ExprStatement(ast.NewIdent(ast.Span{}, "x"))))
	middleClosure := ast.NewClosureLit(ast.Span{}, nil,
		ast.NewBlock(ast.ExprStatement(innerClosure)))
	makeDecl := &ast.FnDeclare{
		Name:   "make",
		Params: []string{"x"},
		Body:   ast.NewBlock(ast.ExprStatement(middleClosure)),
	}

	callF := ast.NewCall(ast.Span{}, ast.NewIdent(ast.Span{}, "f"), nil)
	callFResult := ast.NewCall(ast.Span{}, callF, nil)
	runDecl := &ast.FnDeclare{
		Name: "run",
		Body: ast.NewBlock(
			ast.Let("f", ast.NewCall(ast.Span{}, ast.NewIdent(ast.Span{}, "make"),
				[]ast.Expr{ast.NewIntegerLiteral(ast.Span{}, "5")})),
			ast.ExprStatement(callFResult),
		),
	}

	modID := store.InsertModule(&ast.SourceRef{Path: "closures.rain"}, "",
		&ast.Module{Declarations: []ast.Declaration{makeDecl, runDecl}}, nil)
	declID, ok := store.ResolveGlobalDeclaration(modID, "run")
	require.True(t, ok, "run not declared")

	got, err := e.EvaluateAndCall(declID, nil)
	require.NoError(t, err)
	require.True(t, got.Equal(value.NewInteger(5)), "make(5)()() = %v, want 5", got)
}

// TestRootSourceEditProducesFreshDeclaration covers spec 8 scenario 1:
// re-inserting an edited root module allocates a new ModuleID, so its
// DeclarationID differs and the cache has nothing to hit; the old
// module's entry simply becomes unreachable, rather than being explicitly
// invalidated.
func TestRootSourceEditProducesFreshDeclaration(t *testing.T) {
	store, _, _, e := newHarness(t)

	v1Mod := &ast.Module{Declarations: []ast.Declaration{
		&ast.LetDeclare{Name: "value", Expr: ast.NewIntegerLiteral(ast.Span{}, "1")},
	}}
	id1 := store.InsertModule(&ast.SourceRef{Path: "root.rain"}, "1", v1Mod, nil)
	decl1, _ := store.ResolveGlobalDeclaration(id1, "value")
	got1, err := e.EvaluateAndCall(decl1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got1.Equal(value.NewInteger(1)) {
		t.Fatalf("first evaluation = %v, want 1", got1)
	}

	// The root file is "edited": the host reparses and inserts it again.
	v2Mod := &ast.Module{Declarations: []ast.Declaration{
		&ast.LetDeclare{Name: "value", Expr: ast.NewIntegerLiteral(ast.Span{}, "2")},
	}}
	id2 := store.InsertModule(&ast.SourceRef{Path: "root.rain"}, "2", v2Mod, nil)
	if id1 == id2 {
		t.Fatal("re-inserting an edited module must allocate a new ModuleID")
	}
	decl2, _ := store.ResolveGlobalDeclaration(id2, "value")
	got2, err := e.EvaluateAndCall(decl2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !got2.Equal(value.NewInteger(2)) {
		t.Fatalf("second evaluation = %v, want 2 (not the stale cached 1)", got2)
	}
}

// TestImportedChildModuleEditIsVisibleAcrossRuns covers spec 8 scenario 2:
// internal._import's result is tainted LocalArea, so it is never persisted
// (spec 3.3/4.5); a fresh run (fresh store and cache, the same as a daemon
// restart) always re-imports and observes the child's current contents.
func TestImportedChildModuleEditIsVisibleAcrossRuns(t *testing.T) {
	childFile := value.File{Area: value.FileArea{Kind: value.AreaLocal, Path: "."}, Path: "child.rain"}

	runOnce := func(childContents string) value.Value {
		store := ir.NewStore()
		c, err := cache.New()
		if err != nil {
			t.Fatal(err)
		}
		fake := driver.NewFake()
		fake.Files["child.rain"] = childContents
		e := New(store, c, fake, WithParser(stubParser{}))

		dot := ast.NewBinaryOp(ast.Span{}, ast.OpDot,
			ast.NewCall(ast.Span{}, ast.NewInternalRef(ast.Span{}, "import"),
				[]ast.Expr{ast.NewIdent(ast.Span{}, "file")}),
			ast.NewIdent(ast.Span{}, "value"))
		call := ast.NewCall(ast.Span{}, dot, nil)
		body := ast.NewBlock(ast.ExprStatement(call))
		decl := &ast.FnDeclare{Name: "run", Params: []string{"file"}, Body: body}
		modID := store.InsertModule(&ast.SourceRef{Path: "parent.rain"}, "", &ast.Module{Declarations: []ast.Declaration{decl}}, nil)
		declID, _ := store.ResolveGlobalDeclaration(modID, "run")

		v, err := e.EvaluateAndCall(declID, []value.Value{childFile})
		if err != nil {
			t.Fatal(err)
		}
		return v
	}

	first := runOnce("10")
	second := runOnce("20")
	if first.Equal(second) {
		t.Fatal("a fresh run must observe the child module's current contents, not a stale persisted value")
	}
	if !first.Equal(value.NewInteger(10)) || !second.Equal(value.NewInteger(20)) {
		t.Fatalf("got %v and %v, want 10 and 20", first, second)
	}
}

// TestFactorialRecursionCachesPerDistinctArgument covers spec 8 scenario 3.
func TestFactorialRecursionCachesPerDistinctArgument(t *testing.T) {
	store, c, _, e := newHarness(t)
	modID := store.InsertModule(&ast.SourceRef{Path: "fact.rain"}, "", factorialModule(), nil)
	declID, ok := store.ResolveGlobalDeclaration(modID, "factorial")
	if !ok {
		t.Fatal("factorial not declared")
	}

	got, err := e.EvaluateAndCall(declID, []value.Value{value.NewInteger(5)})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(value.NewInteger(120)) {
		t.Fatalf("factorial(5) = %v, want 120", got)
	}

	// One distinct cache entry per n the recursion reaches; factorial(0)
	// is never reached (the base case fires at n<=1), so the recursion
	// produces entries for n in {1,2,3,4,5}.
	if got, want := c.Len(), 5; got != want {
		t.Fatalf("cache has %d entries after factorial(5), want %d", got, want)
	}

	again, err := e.EvaluateAndCall(declID, []value.Value{value.NewInteger(3)})
	if err != nil {
		t.Fatal(err)
	}
	if !again.Equal(value.NewInteger(6)) {
		t.Fatalf("factorial(3) = %v, want 6", again)
	}
	if c.Len() != 5 {
		t.Fatalf("re-evaluating an already-cached n must not grow the cache, got %d entries", c.Len())
	}
}

// TestArityMismatchIsUnrecoverable covers spec 8 scenario 4: calling a
// function with the wrong number of arguments produces an Unrecoverable
// IncorrectArgs fault carrying the call site's span, not a Recoverable
// user-visible error.
func TestArityMismatchIsUnrecoverable(t *testing.T) {
	store, _, _, e := newHarness(t)

	target := &ast.FnDeclare{Name: "target", Params: []string{"a", "b"}, Body: ast.NewBlock(
		ast.ExprStatement(ast.NewIdent(ast.Span{}, "a")),
	)}
	callSpan := ast.Span{Start: 7, End: 20}
	wrapperCall := ast.NewCall(callSpan, ast.NewIdent(ast.Span{}, "target"),
		[]ast.Expr{ast.NewIntegerLiteral(ast.Span{}, "1")})
	wrapper := &ast.FnDeclare{Name: "wrapper", Body: ast.NewBlock(ast.ExprStatement(wrapperCall))}

	modID := store.InsertModule(&ast.SourceRef{Path: "arity.rain"}, "", &ast.Module{
		Declarations: []ast.Declaration{target, wrapper},
	}, nil)
	declID, ok := store.ResolveGlobalDeclaration(modID, "wrapper")
	if !ok {
		t.Fatal("wrapper not declared")
	}

	_, err := e.EvaluateAndCall(declID, nil)
	if err == nil {
		t.Fatal("expected an error for a one-argument call to a two-parameter function")
	}
	uerr, ok := err.(*UnrecoverableError)
	if !ok {
		t.Fatalf("expected *UnrecoverableError, got %T", err)
	}
	if uerr.Kind != IncorrectArgs {
		t.Fatalf("expected IncorrectArgs, got %v", uerr.Kind)
	}
	if uerr.Span != callSpan {
		t.Fatalf("expected the call site's span %v, got %v", callSpan, uerr.Span)
	}
	if uerr.Required != 2 || uerr.Actual != 1 {
		t.Fatalf("expected Required=2 Actual=1, got Required=%d Actual=%d", uerr.Required, uerr.Actual)
	}
}

// TestEscapeRunSealedVsUnsealed covers spec 8 scenario 6.
func TestEscapeRunSealedVsUnsealed(t *testing.T) {
	newEscapeModule := func() (*ir.Store, ir.DeclarationID) {
		store := ir.NewStore()
		call := ast.NewCall(ast.Span{}, ast.NewInternalRef(ast.Span{}, "escape_run"),
			[]ast.Expr{ast.NewStringLiteral(ast.Span{}, "echo")})
		decl := &ast.FnDeclare{Name: "escape", Body: ast.NewBlock(ast.ExprStatement(call))}
		modID := store.InsertModule(&ast.SourceRef{Path: "escape.rain"}, "", &ast.Module{
			Declarations: []ast.Declaration{decl},
		}, nil)
		declID, _ := store.ResolveGlobalDeclaration(modID, "escape")
		return store, declID
	}

	t.Run("sealed", func(t *testing.T) {
		store, declID := newEscapeModule()
		c, err := cache.New()
		if err != nil {
			t.Fatal(err)
		}
		e := New(store, c, driver.NewFake(), WithSealedMode(true))
		_, err = e.EvaluateAndCall(declID, nil)
		uerr, ok := err.(*UnrecoverableError)
		if !ok {
			t.Fatalf("expected *UnrecoverableError, got %T (%v)", err, err)
		}
		if uerr.Kind != EscapeDenied {
			t.Fatalf("expected EscapeDenied, got %v", uerr.Kind)
		}
	})

	t.Run("unsealed", func(t *testing.T) {
		store, declID := newEscapeModule()
		c, err := cache.New()
		if err != nil {
			t.Fatal(err)
		}
		fake := driver.NewFake()
		fake.Sealed = false
		e := New(store, c, fake, WithSealedMode(false))
		_, err = e.EvaluateAndCall(declID, nil)
		if err != nil {
			t.Fatalf("unsealed escape_run should succeed, got %v", err)
		}
		if !c.IsEmpty() {
			t.Fatal("an Escape+Uncacheable-tainted result must never be admitted to the cache")
		}
	})
}
