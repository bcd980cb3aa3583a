package main

// fixtures.go builds small, hand-constructed programs via ast/build.go and
// ast.go's New* constructors, standing in for the real lexer/parser that
// stays out of scope for this module (spec 1). Each fixture demonstrates one
// end-to-end path through the evaluator over the same Runner a real daemon
// would run: recursion/caching, a side-effecting print, and a download.

import (
	"github.com/RuairidhWilliamson/rain-sub000/ast"
)

// factorialModule builds:
//
//	fn factorial(n) {
//	    if n <= 1 { 1 } else { n * factorial(n - 1) }
//	}
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

// greetModule builds:
//
//	fn greet(name) { internal._print("hello", name) }
func greetModule() *ast.Module {
	call := ast.NewCall(ast.Span{},
		ast.NewInternalRef(ast.Span{}, "print"),
		[]ast.Expr{
			ast.NewStringLiteral(ast.Span{}, "hello"),
			ast.NewIdent(ast.Span{}, "name"),
		})
	body := ast.NewBlock(ast.ExprStatement(call))
	decl := &ast.FnDeclare{Name: "greet", Params: []string{"name"}, Body: body}
	return &ast.Module{Declarations: []ast.Declaration{decl}}
}

// fetchModule builds:
//
//	fn fetch(url) { internal._download(url) }
func fetchModule() *ast.Module {
	call := ast.NewCall(ast.Span{},
		ast.NewInternalRef(ast.Span{}, "download"),
		[]ast.Expr{ast.NewIdent(ast.Span{}, "url")})
	body := ast.NewBlock(ast.ExprStatement(call))
	decl := &ast.FnDeclare{Name: "fetch", Params: []string{"url"}, Body: body}
	return &ast.Module{Declarations: []ast.Declaration{decl}}
}
