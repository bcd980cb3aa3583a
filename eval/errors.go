// Package eval implements the recursive, single-threaded tree-walking
// evaluator (spec 4.3): the per-call cache-integrated call protocol, and
// the evaluation rules over the ast package's node shapes.
package eval

import (
	"fmt"

	"github.com/RuairidhWilliamson/rain-sub000/ast"
	"github.com/RuairidhWilliamson/rain-sub000/value"
)

// Throwing is the result of a failed evaluation (spec 4.3.2): either a
// Recoverable user-visible error value, or an Unrecoverable internal
// fault. Both implement error so they compose with the standard errors
// package; the two concrete types stand in for the sum type a language
// with algebraic data types would use.
type Throwing interface {
	error
	throwing()
}

// RecoverableError wraps a user-visible Error value. It propagates
// through evaluation until the top of the call stack; the cache is never
// updated along this path (spec 4.3.3 step 6).
type RecoverableError struct {
	Span  ast.Span
	Value value.Value
}

func (e *RecoverableError) Error() string {
	return fmt.Sprintf("recoverable error at %v: %s", e.Span, e.Value.String())
}
func (*RecoverableError) throwing() {}

// RunnerErrorKind enumerates the fatal conditions of spec 7.
type RunnerErrorKind uint8

const (
	GenericRunError RunnerErrorKind = iota
	Makeshift
	IncorrectArgs
	UnknownIdent
	ExpectedType
	InvalidIntegerLiteral
	MaxCallDepth
	PathError
	ImportResolve
	IllegalLocalArea
	AreaIOError
	ImportIOError
	ImportParseError
	ExtractError
	FileDoesNotExist
	RecordMissingEntry
	EscapeDenied
)

func (k RunnerErrorKind) String() string {
	names := [...]string{
		"GenericRunError", "Makeshift", "IncorrectArgs", "UnknownIdent",
		"ExpectedType", "InvalidIntegerLiteral", "MaxCallDepth", "PathError",
		"ImportResolve", "IllegalLocalArea", "AreaIOError", "ImportIOError",
		"ImportParseError", "ExtractError", "FileDoesNotExist",
		"RecordMissingEntry", "EscapeDenied",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// UnrecoverableError is a fatal condition (spec 7): it always carries the
// originating span and is propagated unmodified through the evaluator;
// only the top-level caller formats it.
type UnrecoverableError struct {
	Kind    RunnerErrorKind
	Span    ast.Span
	Message string

	// Populated for IncorrectArgs.
	Required, Actual int
	// Populated for ExpectedType.
	ActualType   value.Type
	ExpectedType []value.Type
	// Populated for RecordMissingEntry / UnknownIdent.
	Name string

	Wrapped error
}

func (e *UnrecoverableError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s at %v: %s", e.Kind, e.Span, e.Message)
	}
	return fmt.Sprintf("%s at %v", e.Kind, e.Span)
}
func (*UnrecoverableError) throwing() {}
func (e *UnrecoverableError) Unwrap() error { return e.Wrapped }

func unrecoverable(kind RunnerErrorKind, span ast.Span, format string, args ...any) *UnrecoverableError {
	return &UnrecoverableError{Kind: kind, Span: span, Message: fmt.Sprintf(format, args...)}
}

func errIncorrectArgs(span ast.Span, required, actual int) *UnrecoverableError {
	return &UnrecoverableError{Kind: IncorrectArgs, Span: span, Required: required, Actual: actual,
		Message: fmt.Sprintf("expected %d argument(s), got %d", required, actual)}
}

func errUnknownIdent(span ast.Span, name string) *UnrecoverableError {
	return &UnrecoverableError{Kind: UnknownIdent, Span: span, Name: name,
		Message: fmt.Sprintf("unknown identifier %q", name)}
}

func errExpectedType(span ast.Span, actual value.Type, expected ...value.Type) *UnrecoverableError {
	return &UnrecoverableError{Kind: ExpectedType, Span: span, ActualType: actual, ExpectedType: expected,
		Message: fmt.Sprintf("expected %v, got %s", expected, actual)}
}

func errRecordMissingEntry(span ast.Span, name string) *UnrecoverableError {
	return &UnrecoverableError{Kind: RecordMissingEntry, Span: span, Name: name,
		Message: fmt.Sprintf("record has no entry %q", name)}
}
