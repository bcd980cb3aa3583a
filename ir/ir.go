// Package ir implements the append-only intermediate representation store:
// an in-memory sequence of parsed modules, each addressable by a stable
// ModuleID, with top-level declarations addressable by LocalDeclarationID.
// The lexer/parser that produces the AST is out of scope (spec 1); this
// package only consumes an already-parsed ast.Module.
package ir

import (
	"errors"
	"fmt"
	"sync"

	"github.com/RuairidhWilliamson/rain-sub000/ast"
)

// ModuleID is the stable position of a module within a Store. IDs are never
// reused within a run.
type ModuleID int

func (m ModuleID) String() string { return fmt.Sprintf("Module<%d>", int(m)) }

// LocalDeclarationID is an index into a module's top-level declaration list.
type LocalDeclarationID int

func (l LocalDeclarationID) String() string {
	return fmt.Sprintf("LocalDeclaration<%d>", int(l))
}

// DeclarationID is the stable identity used as a callable and as a cache key
// component: the pair (ModuleID, LocalDeclarationID).
type DeclarationID struct {
	Module ModuleID
	Local  LocalDeclarationID
}

func (d DeclarationID) String() string {
	return fmt.Sprintf("Declaration<%d, %d>", int(d.Module), int(d.Local))
}

// ErrModuleUnusable is returned when resolving against a module whose parse
// failed; the ModuleID was reserved to preserve numbering but holds no AST.
var ErrModuleUnusable = errors.New("ir: module failed to parse and cannot be used")

// Module is an immutable triple: id, optional source-file reference, and
// either a parsed AST or a recorded parse failure.
type Module struct {
	ID     ModuleID
	Source *ast.SourceRef // nil for a synthetic/prelude module
	Src    string

	root    *ast.Module // nil if parseErr != nil
	parseErr error
}

// Err reports the parse failure recorded for this module, if any.
func (m *Module) Err() error { return m.parseErr }

// Declaration resolves a LocalDeclarationID to its AST node.
func (m *Module) Declaration(id LocalDeclarationID) (ast.Declaration, error) {
	if m.root == nil {
		return nil, fmt.Errorf("ir: module %s: %w", m.ID, ErrModuleUnusable)
	}
	if int(id) < 0 || int(id) >= len(m.root.Declarations) {
		return nil, fmt.Errorf("ir: module %s: declaration index %d out of range", m.ID, id)
	}
	return m.root.Declarations[id], nil
}

// FindDeclarationByName performs the linear, source-text scan spec 4.2
// mandates: first declaration whose name matches wins.
func (m *Module) FindDeclarationByName(name string) (LocalDeclarationID, bool) {
	if m.root == nil {
		return 0, false
	}
	for i, d := range m.root.Declarations {
		if d.DeclName() == name {
			return LocalDeclarationID(i), true
		}
	}
	return 0, false
}

// Store is the append-only sequence of modules inserted during a run. A
// single Store is shared by every concurrent evaluation a daemon runs
// against it (spec 5), so the modules slice is guarded by its own lock
// rather than relying on a caller to serialize access externally: a Runner
// narrows its own lock down to the state it alone owns and leaves Store
// responsible for its own.
type Store struct {
	mu      sync.RWMutex
	modules []*Module
}

// NewStore constructs an empty IR store.
func NewStore() *Store {
	return &Store{}
}

// InsertModule appends a module, reserving its ModuleID even when parsing
// failed so that numbering stays stable across the run.
func (s *Store) InsertModule(source *ast.SourceRef, src string, root *ast.Module, parseErr error) ModuleID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ModuleID(len(s.modules))
	s.modules = append(s.modules, &Module{
		ID:       id,
		Source:   source,
		Src:      src,
		root:     root,
		parseErr: parseErr,
	})
	return id
}

// GetModule is total over any ModuleID previously returned by InsertModule.
func (s *Store) GetModule(id ModuleID) *Module {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(s.modules) {
		panic(fmt.Sprintf("ir: module id %d is invalid", id))
	}
	return s.modules[id]
}

// ResolveGlobalDeclaration performs the linear scan of spec 4.2 and wraps a
// hit as a full DeclarationID.
func (s *Store) ResolveGlobalDeclaration(module ModuleID, name string) (DeclarationID, bool) {
	m := s.GetModule(module)
	local, ok := m.FindDeclarationByName(name)
	if !ok {
		return DeclarationID{}, false
	}
	return DeclarationID{Module: module, Local: local}, true
}

// GetDeclaration resolves a full DeclarationID to its AST node.
func (s *Store) GetDeclaration(id DeclarationID) (ast.Declaration, error) {
	return s.GetModule(id.Module).Declaration(id.Local)
}

// Len returns the number of modules inserted so far.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.modules)
}
