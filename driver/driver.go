// Package driver defines the host capability interface the evaluator
// calls out to (spec 6.1). The core only consumes this interface; a real
// implementation (filesystem resolution, subprocess execution, network
// downloads, archive extraction) is out of scope for this module.
package driver

import (
	"context"

	"github.com/RuairidhWilliamson/rain-sub000/value"
)

// FSEntry names a filesystem location the driver can resolve to an
// absolute path, independent of which Area it will end up living in.
type FSEntry struct {
	Area value.FileArea
	Path string
}

// DownloadResult is the outcome of Driver.Download.
type DownloadResult struct {
	OK         bool
	StatusCode int
	File       *value.File
	ETag       *string
}

// RunOptions controls environment inheritance for Run/EscapeRun.
type RunOptions struct {
	InheritEnv bool
	Env        map[string]string
}

// RunResult is the outcome of Driver.Run / Driver.EscapeRun.
type RunResult struct {
	Success  bool
	ExitCode int
	Area     value.FileArea
	Stdout   string
	Stderr   string
}

// Driver is the host capability surface required by the core (spec 6.1).
// Every method may block; the embedding daemon is responsible for
// running each evaluation on a dedicated blocking goroutine (spec 5).
type Driver interface {
	ResolveFSEntry(entry FSEntry) (string, error)
	Exists(f value.File) (bool, error)
	ReadFile(f value.File) (string, error)
	WriteFile(data []byte, name string) (value.File, error)

	ExtractTarGz(f value.File) (value.FileArea, error)
	ExtractZip(f value.File) (value.FileArea, error)
	ExtractTarXz(f value.File) (value.FileArea, error)
	MergeDirs(dirs []value.Directory) (value.FileArea, error)
	SHA256(f value.File) (string, error)

	// Download fetches url, optionally revalidating against a
	// previously recorded etag. name suggests the destination file name
	// within the Generated area the driver allocates for the result.
	Download(ctx context.Context, url, name string, etag *string) (DownloadResult, error)

	Run(ctx context.Context, area *value.FileArea, binary string, args []string, opts RunOptions) (RunResult, error)

	// EscapeBin resolves the absolute path of an escape-mode binary by
	// name, or (nil, nil) if it is not found.
	EscapeBin(name string) (*string, error)
	// EscapeRun is only available in unsealed mode; the evaluator must
	// reject a call to it while sealed before ever invoking this method.
	EscapeRun(ctx context.Context, dir string, binary string, args []string, opts RunOptions) (RunResult, error)

	Print(msg string)
	EnterCall(name string)
	ExitCall(name string)
}
