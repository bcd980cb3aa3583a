package eval

import "github.com/RuairidhWilliamson/rain-sub000/ast"

// freeIdentNames walks a closure body and collects every identifier name
// referenced anywhere inside it. This over-approximates the true free
// variable set (it also lists names a nested closure binds as its own
// parameter), but frame.capturable only captures names that actually
// resolve in the enclosing scope at construction time, so the
// over-approximation is harmless: spec 4.3.2 only requires that every
// identifier that *would* resolve to a local/argument gets captured.
func freeIdentNames(body *ast.Block) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	walkBlock(body, add)
	return names
}

func walkBlock(b *ast.Block, add func(string)) {
	if b == nil {
		return
	}
	for _, stmt := range b.Statements {
		switch s := stmt.(type) {
		case ast.ExprStmt:
			walkExpr(s.Expr, add)
		case ast.LetStmt:
			walkExpr(s.Expr, add)
		}
	}
}

func walkExpr(e ast.Expr, add func(string)) {
	switch n := e.(type) {
	case *ast.Ident:
		add(n.Name)
	case *ast.BinaryOp:
		walkExpr(n.Left, add)
		walkExpr(n.Right, add)
	case *ast.UnaryNot:
		walkExpr(n.Operand, add)
	case *ast.If:
		walkExpr(n.Cond, add)
		walkBlock(n.Then, add)
		walkBlock(n.Else, add)
	case *ast.Call:
		walkExpr(n.Callee, add)
		for _, arg := range n.Args {
			walkExpr(arg, add)
		}
	case *ast.RecordLit:
		for _, v := range n.Values {
			walkExpr(v, add)
		}
	case *ast.ListLit:
		for _, v := range n.Elems {
			walkExpr(v, add)
		}
	case *ast.ClosureLit:
		walkBlock(n.Body, add)
	default:
		// IntegerLiteral, StringLiteral, BoolLiteral, InternalRef carry
		// no sub-expressions referencing identifiers.
	}
}
