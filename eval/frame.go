package eval

// frame.go is the per-call evaluation context, ported from
// lang/src/runner/cx.rs's Cx struct and generalized from borrowed Rust
// references to owned Go maps: Go has no borrow checker to enforce
// Cx<'a>'s lifetime discipline, so a frame simply owns copies of its
// locals and captures and is discarded on return.

import (
	"time"

	"github.com/RuairidhWilliamson/rain-sub000/dep"
	"github.com/RuairidhWilliamson/rain-sub000/ir"
	"github.com/RuairidhWilliamson/rain-sub000/value"
)

// frame carries locals, captures, argument bindings, and the
// accumulating dependency vector for one call; it is created per call
// and destroyed when the call returns (spec 3.5).
type frame struct {
	module ir.ModuleID

	args    map[string]value.Value
	locals  []map[string]value.Value
	capture *value.ClosureEnv

	deps dep.Vector

	callDepth int
	parent    *frame

	// downloadETag/downloadExpires are set only by internal._download
	// (eval/internal.go), which negotiates them with the driver; call()
	// reads them back off the child frame once invoke returns, to avoid
	// eval/internal.go importing the cache package just to build an Entry.
	downloadETag    *string
	downloadExpires *time.Time
}

func newFrame(module ir.ModuleID, args map[string]value.Value, capture *value.ClosureEnv, parent *frame) *frame {
	depth := 0
	if parent != nil {
		depth = parent.callDepth + 1
	}
	return &frame{
		module:    module,
		args:      args,
		capture:   capture,
		locals:    []map[string]value.Value{make(map[string]value.Value)},
		callDepth: depth,
		parent:    parent,
	}
}

func (f *frame) pushBlockScope() { f.locals = append(f.locals, make(map[string]value.Value)) }
func (f *frame) popBlockScope()  { f.locals = f.locals[:len(f.locals)-1] }

func (f *frame) bindLocal(name string, v value.Value) {
	f.locals[len(f.locals)-1][name] = v
}

// resolve implements the identifier lookup order of spec 4.3.2:
// arguments -> locals (innermost block first) -> captured environment.
// Module-global declarations and internals are resolved by the caller,
// since those require the IR store and are not frame-local state.
func (f *frame) resolve(name string) (value.Value, bool) {
	if v, ok := f.args[name]; ok {
		return v, true
	}
	for i := len(f.locals) - 1; i >= 0; i-- {
		if v, ok := f.locals[i][name]; ok {
			return v, true
		}
	}
	if v, ok := f.capture.Get(name); ok {
		return v, true
	}
	return nil, false
}

// capturable returns the set of name/value pairs currently visible as an
// argument, a local, or an entry of this frame's own capture (in that
// order of precedence), for building a closure literal's capture
// environment (spec 4.3.2: "captures, by value, every identifier
// referenced in the body that resolves to a local or argument of the
// enclosing scope at the time of closure construction; module-level
// references are not captured").
func (f *frame) capturable(names []string) *value.ClosureEnv {
	var env value.ClosureEnv
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		if v, ok := f.args[name]; ok {
			env.Names = append(env.Names, name)
			env.Values = append(env.Values, v)
			seen[name] = true
			continue
		}
		found := false
		for i := len(f.locals) - 1; i >= 0; i-- {
			if v, ok := f.locals[i][name]; ok {
				env.Names = append(env.Names, name)
				env.Values = append(env.Values, v)
				seen[name] = true
				found = true
				break
			}
		}
		if found {
			continue
		}
		// A name not bound as an arg or local of this frame may still be
		// reachable through an enclosing closure's own capture (a closure
		// nested inside a closure): fall through to it rather than
		// stopping at this frame's own bindings.
		if v, ok := f.capture.Get(name); ok {
			env.Names = append(env.Names, name)
			env.Values = append(env.Values, v)
			seen[name] = true
		}
	}
	if len(env.Names) == 0 {
		return nil
	}
	return &env
}
