package value

import (
	"fmt"
	"hash/maphash"
	"sort"

	"github.com/RuairidhWilliamson/rain-sub000/ast"
	"github.com/RuairidhWilliamson/rain-sub000/ir"
)

// ClosureEnv holds the captures a closure took by value at construction
// time. Nil means the Function references a plain top-level declaration
// with no captured environment.
type ClosureEnv struct {
	Names  []string
	Values []Value
}

// Get looks up a captured binding by name.
func (c *ClosureEnv) Get(name string) (Value, bool) {
	if c == nil {
		return nil, false
	}
	for i, n := range c.Names {
		if n == name {
			return c.Values[i], true
		}
	}
	return nil, false
}

// Equal reports whether two capture environments are structurally equal,
// independent of capture order.
func (c *ClosureEnv) Equal(other *ClosureEnv) bool {
	if c == nil || other == nil {
		return c == other
	}
	if len(c.Names) != len(other.Names) {
		return false
	}
	// Captures are compared as an order-independent set of bindings: two
	// closures built from differently-ordered but structurally equal
	// capture maps must be equal (spec 9 open question, resolved in
	// DESIGN.md: closures with structurally equal capture environments are
	// hash-equal).
	used := make([]bool, len(other.Names))
	for i, n := range c.Names {
		found := false
		for j, on := range other.Names {
			if used[j] || on != n {
				continue
			}
			if c.Values[i].Equal(other.Values[j]) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// WriteHash folds the capture environment into h, in a name-sorted order
// so that capture-insertion order does not affect the hash.
func (c *ClosureEnv) WriteHash(h *maphash.Hash) {
	if c == nil {
		h.WriteByte(0)
		return
	}
	h.WriteByte(1)
	// Sort by name so capture-insertion order does not affect the hash,
	// matching the order-independent equality above.
	idx := make([]int, len(c.Names))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return c.Names[idx[i]] < c.Names[idx[j]] })
	for _, i := range idx {
		h.WriteString(c.Names[i])
		c.Values[i].Hash(h)
	}
}

// Function is either a reference to a top-level declaration (ID set, Node
// nil) or a closure (Node set to the defining ClosureLit, ID zero)
// carrying captures taken by value at construction. The closure's
// identity is the defining syntax node itself, since the same literal
// evaluated twice with the same captures is the same callable for
// caching purposes (spec 3.1 "Function ... identity of the callable +
// equality of its captures").
type Function struct {
	ID     ir.DeclarationID
	Node   *ast.ClosureLit
	Params []string

	Capture *ClosureEnv
}

func (f Function) Type() Type { return TypeFunction }
func (f Function) Equal(other Value) bool {
	o, ok := other.(Function)
	if !ok {
		return false
	}
	if f.Node != nil || o.Node != nil {
		if f.Node != o.Node {
			return false
		}
	} else if f.ID != o.ID {
		return false
	}
	return f.Capture.Equal(o.Capture)
}
func (f Function) Hash(h *maphash.Hash) {
	h.WriteByte(byte(TypeFunction))
	if f.Node != nil {
		fmt.Fprintf(h, "%p", f.Node)
	} else {
		fmt.Fprint(h, f.ID)
	}
	f.Capture.WriteHash(h)
}
func (f Function) Storeable() bool { return true }
func (f Function) String() string {
	if f.Node != nil {
		return "closure"
	}
	return f.ID.String()
}

// Module is a reference to an inserted IR module.
type Module struct {
	ID ir.ModuleID
}

func (m Module) Type() Type { return TypeModule }
func (m Module) Equal(other Value) bool {
	o, ok := other.(Module)
	return ok && m.ID == o.ID
}
func (m Module) Hash(h *maphash.Hash) {
	h.WriteByte(byte(TypeModule))
	fmt.Fprint(h, m.ID)
}
func (m Module) Storeable() bool { return true }
func (m Module) String() string  { return m.ID.String() }
