package eval

import (
	"math/big"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/RuairidhWilliamson/rain-sub000/ast"
	"github.com/RuairidhWilliamson/rain-sub000/cache"
	"github.com/RuairidhWilliamson/rain-sub000/dep"
	"github.com/RuairidhWilliamson/rain-sub000/driver"
	"github.com/RuairidhWilliamson/rain-sub000/ir"
	"github.com/RuairidhWilliamson/rain-sub000/value"
)

// Evaluator is the recursive, single-threaded tree-walking interpreter
// (spec 4.3). It holds the collaborators a run needs: the append-only IR
// store, the shared result cache, the host driver, and a logger, plus the
// sealed-mode flag and recursion guard from its config.
type Evaluator struct {
	store  *ir.Store
	cache  *cache.Cache
	driver driver.Driver
	parser Parser
	logger *zap.Logger

	sealed       bool
	maxCallDepth int

	// nextAreaID is read and incremented by concurrent Evaluate calls
	// sharing one Evaluator (spec 5), so it is not a plain uint64.
	nextAreaID atomic.Uint64
}

// New constructs an Evaluator over the given IR store, cache, and driver.
func New(store *ir.Store, c *cache.Cache, d driver.Driver, opts ...Option) *Evaluator {
	cfg := applyOptions(opts)
	return &Evaluator{
		store:        store,
		cache:        c,
		driver:       d,
		parser:       cfg.parser,
		logger:       cfg.logger,
		sealed:       cfg.sealed,
		maxCallDepth: cfg.maxCallDepth,
	}
}

// allocAreaID mints a process-local unique id for a newly-allocated
// Generated area (spec 5: "allocated from a process-local source of
// unique identifiers").
func (e *Evaluator) allocAreaID() uint64 {
	return e.nextAreaID.Add(1)
}

// EvaluateAndCall is the top-level entry point (spec 4.3.1): it resolves
// entry, establishes an initial frame, and dispatches either to plain
// expression evaluation (a LetDeclare) or to function application with
// the supplied arguments (an FnDeclare).
func (e *Evaluator) EvaluateAndCall(entry ir.DeclarationID, args []value.Value) (value.Value, error) {
	decl, err := e.store.GetDeclaration(entry)
	if err != nil {
		return nil, unrecoverable(GenericRunError, ast.Span{}, "resolve entry declaration: %v", err)
	}

	root := newFrame(entry.Module, nil, nil, nil)
	switch d := decl.(type) {
	case *ast.LetDeclare:
		v, err := e.eval(d.Expr, root)
		if err != nil {
			return nil, err
		}
		return v, nil
	case *ast.FnDeclare:
		fn := value.Function{ID: entry}
		v, err := e.call(fn, args, root, ast.Span{})
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, unrecoverable(GenericRunError, ast.Span{}, "unknown declaration kind")
	}
}

// call is the single choke point for both user functions and internals
// (spec 4.3.3); it is the only site that consults the cache.
func (e *Evaluator) call(callable value.Value, args []value.Value, caller *frame, span ast.Span) (value.Value, error) {
	if caller.callDepth+1 > e.maxCallDepth {
		return nil, &UnrecoverableError{Kind: MaxCallDepth, Span: span, Message: "recursion depth exceeded"}
	}

	// Step 1: build the fingerprint. A Download internal's identity is
	// the URL alone (spec 4.3.3 step 2), not the enumerated tag plus
	// args like every other internal.
	var key cache.Key
	switch c := callable.(type) {
	case value.Function:
		keyArgs := args
		if c.Node != nil {
			// A closure's ID is zero, so its defining node has to enter the
			// fingerprint some other way: the Function value itself (node
			// plus captures) leads the key's argument list.
			keyArgs = append([]value.Value{c}, args...)
		}
		key = cache.DeclarationKey(c.ID, c.Capture, keyArgs)
	case value.InternalFunction:
		if c.ID == value.InternalDownload {
			url, ok := singleStringArg(args)
			if !ok {
				return nil, errIncorrectArgs(span, 1, len(args))
			}
			key = cache.DownloadKey(url)
		} else {
			key = cache.InternalKey(c.ID, args)
		}
	default:
		return nil, unrecoverable(GenericRunError, span, "call target is not callable: %s", callable.Type())
	}

	// Step 3: lookup. A genuine hit (found && !expired) moves the entry to
	// MRU and returns immediately. An expired entry (Download keys only)
	// is held onto: its ETag and value feed the revalidation attempt
	// below instead of being discarded.
	var prevETag *string
	var prevValue value.Value
	if entry, found, expired := e.cache.Get(key); found {
		if !expired {
			return entry.Value, nil
		}
		prevETag = entry.ETag
		prevValue = entry.Value
	}

	// Step 4: miss (or stale). Concurrent callers racing on the same
	// fingerprint share a single execution via cache.Dedup (spec 5): only
	// the winner actually pushes a child frame through invoke, and every
	// caller (winner and followers alike) merges the same resulting deps
	// and admits the same entry.
	child := e.childFrame(callable, args, caller)
	res, _, err := cache.Dedup(e.cache, key, func() (callResult, error) {
		start := time.Now()
		v, err := e.invoke(callable, args, child, span, prevETag, prevValue)
		if err != nil {
			return callResult{}, err
		}
		return callResult{
			value:   v,
			elapsed: time.Since(start),
			deps:    child.deps,
			etag:    child.downloadETag,
			expires: child.downloadExpires,
		}, nil
	})

	if err != nil {
		// Step 6: recoverable failures are not cached. cache.Dedup zeroes
		// its result on error, so a follower sharing a failed execution
		// can only merge its own (untouched) child frame here, not the
		// executor's: the error aborts this call chain immediately, so no
		// later cache decision ever inspects these deps anyway.
		caller.deps.Merge(child.deps)
		return nil, err
	}

	// Step 5a: merge the executed frame's deps into the caller. res.deps
	// is the executing frame's deps even for a follower that only shared
	// the result (singleflight.Group.Do hands the same return value to
	// every caller), so taint propagates correctly regardless of which
	// caller actually ran invoke.
	caller.deps.Merge(res.deps)

	// Step 5b: conditionally admit. Cache.Put independently enforces the
	// storeable/Uncacheable predicate, so a non-admissible result is
	// simply a no-op here. Only internal._download ever populates
	// ETag/Expires.
	e.cache.Put(key, cache.Entry{
		Value:         res.value,
		ExecutionTime: res.elapsed,
		ETag:          res.etag,
		Expires:       res.expires,
		Deps:          res.deps,
	})
	return res.value, nil
}

// callResult carries everything about a single invoke() run that call()
// needs after the fact, so that cache.Dedup's shared return value gives a
// follower caller the same deps/ETag/expiry the winner observed, not just
// the bare value.
type callResult struct {
	value   value.Value
	elapsed time.Duration
	deps    dep.Vector
	etag    *string
	expires *time.Time
}

func singleStringArg(args []value.Value) (string, bool) {
	if len(args) != 1 {
		return "", false
	}
	s, ok := args[0].(value.String)
	return string(s), ok
}

func (e *Evaluator) childFrame(callable value.Value, args []value.Value, caller *frame) *frame {
	switch c := callable.(type) {
	case value.Function:
		module := caller.module
		if c.Node == nil {
			module = c.ID.Module
		}
		return newFrame(module, nil, c.Capture, caller)
	default:
		return newFrame(caller.module, nil, nil, caller)
	}
}

// invoke dispatches to a user function body or a built-in, after binding
// the call's arguments into the child frame. prevETag/prevValue are only
// meaningful for internal._download on a stale-entry revalidation; every
// other callable ignores them.
func (e *Evaluator) invoke(callable value.Value, args []value.Value, child *frame, span ast.Span, prevETag *string, prevValue value.Value) (value.Value, error) {
	switch c := callable.(type) {
	case value.Function:
		if c.Node != nil {
			if len(c.Params) != len(args) {
				return nil, errIncorrectArgs(span, len(c.Params), len(args))
			}
			child.args = make(map[string]value.Value, len(args))
			for i, p := range c.Params {
				child.args[p] = args[i]
			}
			return e.evalBlock(c.Node.Body, child)
		}
		decl, err := e.store.GetDeclaration(c.ID)
		if err != nil {
			return nil, unrecoverable(GenericRunError, span, "resolve function declaration: %v", err)
		}
		fn, ok := decl.(*ast.FnDeclare)
		if !ok {
			return nil, unrecoverable(GenericRunError, span, "declaration is not a function")
		}
		if len(fn.Params) != len(args) {
			return nil, errIncorrectArgs(span, len(fn.Params), len(args))
		}
		child.args = make(map[string]value.Value, len(args))
		for i, p := range fn.Params {
			child.args[p] = args[i]
		}
		return e.evalBlock(fn.Body, child)
	case value.InternalFunction:
		return e.callInternal(c.ID, args, child, span, prevETag, prevValue)
	default:
		return nil, unrecoverable(GenericRunError, span, "call target is not callable")
	}
}

// eval implements the evaluation rules of spec 4.3.2 as a switch over the
// AST node interface.
func (e *Evaluator) eval(node ast.Expr, f *frame) (value.Value, error) {
	switch n := node.(type) {
	case *ast.IntegerLiteral:
		i, ok := value.ParseInteger(n.Text)
		if !ok {
			return nil, unrecoverable(InvalidIntegerLiteral, n.Span(), "invalid integer literal %q", n.Text)
		}
		return i, nil
	case *ast.StringLiteral:
		return value.String(n.Value), nil
	case *ast.BoolLiteral:
		return value.Boolean(n.Value), nil
	case *ast.Ident:
		return e.resolveIdent(n, f)
	case *ast.BinaryOp:
		return e.evalBinaryOp(n, f)
	case *ast.UnaryNot:
		v, err := e.eval(n.Operand, f)
		if err != nil {
			return nil, err
		}
		b, ok := v.(value.Boolean)
		if !ok {
			return nil, errExpectedType(n.Span(), v.Type(), value.TypeBoolean)
		}
		return value.Boolean(!bool(b)), nil
	case *ast.If:
		cond, err := e.eval(n.Cond, f)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(value.Boolean)
		if !ok {
			return nil, errExpectedType(n.Span(), cond.Type(), value.TypeBoolean)
		}
		if bool(b) {
			return e.evalBlock(n.Then, f)
		}
		if n.Else != nil {
			return e.evalBlock(n.Else, f)
		}
		return value.Unit{}, nil
	case *ast.Call:
		return e.evalCall(n, f)
	case *ast.RecordLit:
		return e.evalRecordLit(n, f)
	case *ast.ListLit:
		elems := make([]value.Value, 0, len(n.Elems))
		for _, el := range n.Elems {
			v, err := e.eval(el, f)
			if err != nil {
				return nil, err
			}
			elems = append(elems, v)
		}
		return value.List{Elems: elems}, nil
	case *ast.ClosureLit:
		names := freeIdentNames(n.Body)
		return value.Function{Node: n, Params: n.Params, Capture: f.capturable(names)}, nil
	case *ast.InternalRef:
		id, ok := value.LookupInternalFunction(n.Name)
		if !ok {
			return nil, errUnknownIdent(n.Span(), "internal."+n.Name)
		}
		return value.InternalFunction{ID: id}, nil
	default:
		return nil, unrecoverable(GenericRunError, node.Span(), "unhandled expression node")
	}
}

func (e *Evaluator) resolveIdent(n *ast.Ident, f *frame) (value.Value, error) {
	if v, ok := f.resolve(n.Name); ok {
		return v, nil
	}
	if declID, ok := e.store.ResolveGlobalDeclaration(f.module, n.Name); ok {
		return value.Function{ID: declID}, nil
	}
	if id, ok := value.LookupInternalFunction(n.Name); ok {
		return value.InternalFunction{ID: id}, nil
	}
	return nil, errUnknownIdent(n.Span(), n.Name)
}

// evalBlock evaluates each statement in order (spec 4.3.2 "Block"): the
// block's value is the value of its last expression statement, or Unit
// if it ends in a let-statement. A let-binding is scoped to the
// remainder of the block only.
func (e *Evaluator) evalBlock(b *ast.Block, f *frame) (value.Value, error) {
	f.pushBlockScope()
	defer f.popBlockScope()

	result := value.Value(value.Unit{})
	for _, stmt := range b.Statements {
		switch s := stmt.(type) {
		case ast.ExprStmt:
			v, err := e.eval(s.Expr, f)
			if err != nil {
				return nil, err
			}
			result = v
		case ast.LetStmt:
			v, err := e.eval(s.Expr, f)
			if err != nil {
				return nil, err
			}
			f.bindLocal(s.Name, v)
			result = value.Unit{}
		}
	}
	return result, nil
}

func (e *Evaluator) evalCall(n *ast.Call, f *frame) (value.Value, error) {
	callee, err := e.eval(n.Callee, f)
	if err != nil {
		return nil, err
	}
	args := make([]value.Value, 0, len(n.Args))
	for _, a := range n.Args {
		v, err := e.eval(a, f)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	switch callee.(type) {
	case value.Function, value.InternalFunction:
		return e.call(callee, args, f, n.Span())
	default:
		return nil, errExpectedType(n.Span(), callee.Type(), value.TypeFunction, value.TypeInternalFunction)
	}
}

// evalRecordLit evaluates fields in source order; duplicate keys take
// the last value (spec 4.3.2, "tests in §8 require last wins").
func (e *Evaluator) evalRecordLit(n *ast.RecordLit, f *frame) (value.Value, error) {
	keys := make([]string, 0, len(n.Keys))
	values := make([]value.Value, 0, len(n.Values))
	index := make(map[string]int, len(n.Keys))
	for i, k := range n.Keys {
		v, err := e.eval(n.Values[i], f)
		if err != nil {
			return nil, err
		}
		if pos, ok := index[k]; ok {
			values[pos] = v
			continue
		}
		index[k] = len(keys)
		keys = append(keys, k)
		values = append(values, v)
	}
	return value.NewRecord(keys, values), nil
}

func (e *Evaluator) evalDot(span ast.Span, base value.Value, field string) (value.Value, error) {
	switch b := base.(type) {
	case value.Record:
		v, ok := b.Get(field)
		if !ok {
			return nil, errRecordMissingEntry(span, field)
		}
		return v, nil
	case value.Module:
		declID, ok := e.store.ResolveGlobalDeclaration(b.ID, field)
		if !ok {
			return nil, errUnknownIdent(span, field)
		}
		return value.Function{ID: declID}, nil
	default:
		return nil, errExpectedType(span, base.Type(), value.TypeRecord, value.TypeModule)
	}
}

func (e *Evaluator) evalBinaryOp(n *ast.BinaryOp, f *frame) (value.Value, error) {
	if n.Op == ast.OpDot {
		base, err := e.eval(n.Left, f)
		if err != nil {
			return nil, err
		}
		ident, ok := n.Right.(*ast.Ident)
		if !ok {
			return nil, errExpectedType(n.Span(), base.Type(), value.TypeRecord)
		}
		return e.evalDot(n.Span(), base, ident.Name)
	}

	left, err := e.eval(n.Left, f)
	if err != nil {
		return nil, err
	}

	if n.Op == ast.OpLogicalAnd || n.Op == ast.OpLogicalOr {
		lb, ok := left.(value.Boolean)
		if !ok {
			return nil, errExpectedType(n.Span(), left.Type(), value.TypeBoolean)
		}
		if n.Op == ast.OpLogicalAnd && !bool(lb) {
			return value.Boolean(false), nil
		}
		if n.Op == ast.OpLogicalOr && bool(lb) {
			return value.Boolean(true), nil
		}
		right, err := e.eval(n.Right, f)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(value.Boolean)
		if !ok {
			return nil, errExpectedType(n.Span(), right.Type(), value.TypeBoolean)
		}
		return rb, nil
	}

	right, err := e.eval(n.Right, f)
	if err != nil {
		return nil, err
	}

	if n.Op == ast.OpEquals || n.Op == ast.OpNotEquals {
		eq := left.Equal(right)
		if n.Op == ast.OpNotEquals {
			eq = !eq
		}
		return value.Boolean(eq), nil
	}

	li, lok := left.(value.Integer)
	ri, rok := right.(value.Integer)
	if !lok || !rok {
		return nil, errExpectedType(n.Span(), left.Type(), value.TypeInteger)
	}
	result := new(big.Int)
	switch n.Op {
	case ast.OpAdd:
		result.Add(li.V, ri.V)
	case ast.OpSub:
		result.Sub(li.V, ri.V)
	case ast.OpMul:
		result.Mul(li.V, ri.V)
	case ast.OpDiv:
		if ri.V.Sign() == 0 {
			return nil, unrecoverable(GenericRunError, n.Span(), "division by zero")
		}
		result.Quo(li.V, ri.V)
	case ast.OpLess:
		return value.Boolean(li.V.Cmp(ri.V) < 0), nil
	case ast.OpGreater:
		return value.Boolean(li.V.Cmp(ri.V) > 0), nil
	case ast.OpLessEqual:
		return value.Boolean(li.V.Cmp(ri.V) <= 0), nil
	case ast.OpGreaterEqual:
		return value.Boolean(li.V.Cmp(ri.V) >= 0), nil
	default:
		return nil, unrecoverable(GenericRunError, n.Span(), "unhandled binary operator")
	}
	return value.Integer{V: result}, nil
}
