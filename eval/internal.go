package eval

// internal.go dispatches the closed built-in function set (spec 4.3.4),
// one case per function, following lang/src/runner/internal.rs and
// lang/src/runner/internal/{download,run}.rs's per-function dispatch
// style.

import (
	"context"
	"path"
	"time"

	"github.com/RuairidhWilliamson/rain-sub000/ast"
	"github.com/RuairidhWilliamson/rain-sub000/dep"
	"github.com/RuairidhWilliamson/rain-sub000/driver"
	"github.com/RuairidhWilliamson/rain-sub000/value"
)

// Expiry windows for internal._download, mirroring
// runner/internal/download.rs: a revalidated (304) entry is trusted for 30
// days, a fresh fetch for 1 hour before the next call must revalidate.
const (
	downloadRevalidatedTTL = 30 * 24 * time.Hour
	downloadFreshTTL       = time.Hour
)

// Parser produces a parsed module from source text. The real lexer and
// parser are out of scope for this module (spec 1); an embedding daemon
// plugs in the real implementation the same way it plugs in a Driver.
type Parser interface {
	Parse(src string) (*ast.Module, error)
}

func (e *Evaluator) callInternal(id value.InternalFunctionID, args []value.Value, f *frame, span ast.Span, prevETag *string, prevValue value.Value) (value.Value, error) {
	switch id {
	case value.InternalPrint:
		return e.internalPrint(args, f)
	case value.InternalImport:
		return e.internalImport(args, f, span)
	case value.InternalGetFile:
		return e.internalGetFile(args, f, span)
	case value.InternalDownload:
		return e.internalDownload(args, f, span, prevETag, prevValue)
	case value.InternalRun:
		return e.internalRun(args, f, span)
	case value.InternalEscapeRun:
		return e.internalEscapeRun(args, f, span)
	case value.InternalExtractZip:
		return e.internalExtract(args, f, span, e.driver.ExtractZip)
	case value.InternalExtractTarGz:
		return e.internalExtract(args, f, span, e.driver.ExtractTarGz)
	case value.InternalExtractTarXz:
		return e.internalExtract(args, f, span, e.driver.ExtractTarXz)
	case value.InternalSHA256:
		return e.internalSHA256(args, f, span)
	case value.InternalMergeDirs:
		return e.internalMergeDirs(args, f, span)
	default:
		return nil, unrecoverable(GenericRunError, span, "unhandled internal function")
	}
}

func argFile(args []value.Value, i int, span ast.Span) (value.File, error) {
	if i >= len(args) {
		return value.File{}, errIncorrectArgs(span, i+1, len(args))
	}
	file, ok := args[i].(value.File)
	if !ok {
		return value.File{}, errExpectedType(span, args[i].Type(), value.TypeFile)
	}
	return file, nil
}

func argString(args []value.Value, i int, span ast.Span) (string, error) {
	if i >= len(args) {
		return "", errIncorrectArgs(span, i+1, len(args))
	}
	s, ok := args[i].(value.String)
	if !ok {
		return "", errExpectedType(span, args[i].Type(), value.TypeString)
	}
	return string(s), nil
}

// internalPrint is an observable side-effect: memoizing it would hide
// later prints behind a cache hit, so it always taints Uncacheable.
func (e *Evaluator) internalPrint(args []value.Value, f *frame) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	msg := ""
	for i, p := range parts {
		if i > 0 {
			msg += " "
		}
		msg += p
	}
	e.driver.Print(msg)
	f.deps.Push(dep.Uncacheable)
	return value.Unit{}, nil
}

// internalImport parses and inserts a module; importing is always
// source-relative, so it taints LocalArea (spec 4.3.4).
func (e *Evaluator) internalImport(args []value.Value, f *frame, span ast.Span) (value.Value, error) {
	file, err := argFile(args, 0, span)
	if err != nil {
		return nil, err
	}
	f.deps.Push(dep.LocalArea)

	if e.parser == nil {
		return nil, unrecoverable(ImportResolve, span, "no parser configured for internal._import")
	}
	src, err := e.driver.ReadFile(file)
	if err != nil {
		return nil, unrecoverable(ImportIOError, span, "read import source: %v", err)
	}
	module, err := e.parser.Parse(src)
	if err != nil {
		return nil, unrecoverable(ImportParseError, span, "parse imported module: %v", err)
	}
	id := e.store.InsertModule(&ast.SourceRef{Path: file.Path}, src, module, nil)
	return value.Module{ID: id}, nil
}

// internalGetFile constructs a File in the current module's area. Local
// reads taint LocalArea because the host may change the file's contents
// out-of-band between runs (spec 4.3.4).
func (e *Evaluator) internalGetFile(args []value.Value, f *frame, span ast.Span) (value.Value, error) {
	name, err := argString(args, 0, span)
	if err != nil {
		return nil, err
	}
	module := e.store.GetModule(f.module)
	dir := "."
	if module.Source != nil {
		dir = path.Dir(module.Source.Path)
	}
	area := value.FileArea{Kind: value.AreaLocal, Path: dir}
	f.deps.Push(dep.LocalArea)
	exists, err := e.driver.Exists(value.File{Area: area, Path: name})
	if err != nil {
		return nil, unrecoverable(AreaIOError, span, "stat %q: %v", name, err)
	}
	if !exists {
		return nil, unrecoverable(FileDoesNotExist, span, "%q does not exist", name)
	}
	return value.File{Area: area, Path: name}, nil
}

// internalDownload delegates to the host. call() has already built the
// fingerprint as Download{url} and consulted the cache before this runs;
// this body only runs on a true miss or on an expired entry due for
// revalidation. prevETag/prevValue, when non-nil, come from the stale
// entry call() found and are threaded through so the driver can
// revalidate rather than re-fetch (spec 7, runner/internal/download.rs).
func (e *Evaluator) internalDownload(args []value.Value, f *frame, span ast.Span, prevETag *string, prevValue value.Value) (value.Value, error) {
	url, err := argString(args, 0, span)
	if err != nil {
		return nil, err
	}
	name := path.Base(url)
	resp, err := e.driver.Download(context.Background(), url, name, prevETag)
	if err != nil {
		return nil, unrecoverable(AreaIOError, span, "download %q: %v", url, err)
	}

	// A 304 means the driver revalidated against prevETag: the stale
	// value is still correct, only its expiry is extended.
	if !resp.OK && resp.StatusCode == 304 && prevValue != nil {
		expires := time.Now().Add(downloadRevalidatedTTL)
		f.downloadETag = prevETag
		f.downloadExpires = &expires
		return prevValue, nil
	}

	keys := []string{"ok", "status"}
	values := []value.Value{value.Boolean(resp.OK), value.NewInteger(int64(resp.StatusCode))}
	if resp.File != nil {
		keys = append(keys, "file")
		values = append(values, *resp.File)
	}

	expires := time.Now().Add(downloadFreshTTL)
	f.downloadETag = resp.ETag
	f.downloadExpires = &expires
	return value.NewRecord(keys, values), nil
}

func (e *Evaluator) internalRun(args []value.Value, f *frame, span ast.Span) (value.Value, error) {
	file, err := argFile(args, 0, span)
	if err != nil {
		return nil, err
	}
	runArgs := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		s, ok := a.(value.String)
		if !ok {
			return nil, errExpectedType(span, a.Type(), value.TypeString)
		}
		runArgs = append(runArgs, string(s))
	}
	f.deps.Push(dep.Uncacheable)
	res, err := e.driver.Run(context.Background(), &file.Area, file.Path, runArgs, driver.RunOptions{InheritEnv: true})
	if err != nil {
		return nil, unrecoverable(GenericRunError, span, "run %q: %v", file.Path, err)
	}
	return runResultRecord(res), nil
}

// internalEscapeRun requires unsealed mode (spec 4.3.4, scenario 6).
func (e *Evaluator) internalEscapeRun(args []value.Value, f *frame, span ast.Span) (value.Value, error) {
	if e.sealed {
		return nil, unrecoverable(EscapeDenied, span, "internal._escape_run is disabled in sealed mode")
	}
	binary, err := argString(args, 0, span)
	if err != nil {
		return nil, err
	}
	runArgs := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		s, ok := a.(value.String)
		if !ok {
			return nil, errExpectedType(span, a.Type(), value.TypeString)
		}
		runArgs = append(runArgs, string(s))
	}
	f.deps.Push(dep.Escape)
	f.deps.Push(dep.Uncacheable)
	res, err := e.driver.EscapeRun(context.Background(), ".", binary, runArgs, driver.RunOptions{InheritEnv: true})
	if err != nil {
		return nil, unrecoverable(GenericRunError, span, "escape_run %q: %v", binary, err)
	}
	return runResultRecord(res), nil
}

func runResultRecord(res driver.RunResult) value.Value {
	return value.NewRecord(
		[]string{"success", "exit_code", "stdout", "stderr"},
		[]value.Value{
			value.Boolean(res.Success),
			value.NewInteger(int64(res.ExitCode)),
			value.String(res.Stdout),
			value.String(res.Stderr),
		},
	)
}

func (e *Evaluator) internalExtract(args []value.Value, f *frame, span ast.Span, extract func(value.File) (value.FileArea, error)) (value.Value, error) {
	file, err := argFile(args, 0, span)
	if err != nil {
		return nil, err
	}
	if file.Area.Kind == value.AreaLocal {
		f.deps.Push(dep.LocalArea)
	}
	area, err := extract(file)
	if err != nil {
		return nil, unrecoverable(ExtractError, span, "extract %q: %v", file.Path, err)
	}
	return value.Directory{Area: area, Path: "."}, nil
}

func (e *Evaluator) internalSHA256(args []value.Value, f *frame, span ast.Span) (value.Value, error) {
	file, err := argFile(args, 0, span)
	if err != nil {
		return nil, err
	}
	if file.Area.Kind == value.AreaLocal {
		f.deps.Push(dep.LocalArea)
	}
	sum, err := e.driver.SHA256(file)
	if err != nil {
		return nil, unrecoverable(AreaIOError, span, "sha256 %q: %v", file.Path, err)
	}
	return value.String(sum), nil
}

func (e *Evaluator) internalMergeDirs(args []value.Value, f *frame, span ast.Span) (value.Value, error) {
	dirs := make([]value.Directory, 0, len(args))
	for _, a := range args {
		d, ok := a.(value.Directory)
		if !ok {
			return nil, errExpectedType(span, a.Type(), value.TypeDirectory)
		}
		if d.Area.Kind == value.AreaLocal {
			f.deps.Push(dep.LocalArea)
		}
		dirs = append(dirs, d)
	}
	area, err := e.driver.MergeDirs(dirs)
	if err != nil {
		return nil, unrecoverable(ExtractError, span, "merge_dirs: %v", err)
	}
	return value.Directory{Area: area, Path: "."}, nil
}
