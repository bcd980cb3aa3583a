package driver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/RuairidhWilliamson/rain-sub000/value"
)

// Fake is an in-memory Driver double, analogous to the throwaway stand-ins
// the teacher builds under examples/ for external collaborators it does
// not itself own. It lets eval/cache integration tests drive the full
// call protocol without real subprocess, network, or filesystem access.
type Fake struct {
	mu sync.Mutex

	// Files maps a Local-area path to its textual contents.
	Files map[string]string
	// Downloads maps a URL to the fixed response the next Download call
	// for it returns; leave its ETag nil to simulate "no etag" responses.
	Downloads map[string]DownloadResult
	// DownloadCalls counts how many times Download actually ran the
	// host round trip (tests assert it stays at 1 across a cache hit).
	DownloadCalls map[string]int

	// DownloadStarted, if non-nil, receives a value the moment a Download
	// call reaches the host round trip, letting a concurrency test know
	// the call is in flight before it races a second caller against it.
	DownloadStarted chan struct{}
	// DownloadRelease, if non-nil, blocks Download until a value is sent
	// on it, holding one call in flight deliberately.
	DownloadRelease chan struct{}

	Sealed bool

	nextAreaID uint64
	Printed    []string
	Entered    []string
	Exited     []string
}

// NewFake builds an empty fake driver in sealed mode.
func NewFake() *Fake {
	return &Fake{
		Files:         make(map[string]string),
		Downloads:     make(map[string]DownloadResult),
		DownloadCalls: make(map[string]int),
		Sealed:        true,
	}
}

func (f *Fake) allocArea() value.FileArea {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextAreaID++
	return value.FileArea{Kind: value.AreaGenerated, GeneratedID: f.nextAreaID}
}

func (f *Fake) ResolveFSEntry(entry FSEntry) (string, error) {
	return entry.Area.String() + entry.Path, nil
}

func (f *Fake) Exists(file value.File) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Files[file.Path]
	return ok, nil
}

func (f *Fake) ReadFile(file value.File) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	contents, ok := f.Files[file.Path]
	if !ok {
		return "", fmt.Errorf("fake driver: no such file %q", file.Path)
	}
	return contents, nil
}

func (f *Fake) WriteFile(data []byte, name string) (value.File, error) {
	f.mu.Lock()
	f.Files[name] = string(data)
	f.mu.Unlock()
	return value.File{Area: f.allocArea(), Path: name}, nil
}

func (f *Fake) ExtractTarGz(file value.File) (value.FileArea, error) { return f.allocArea(), nil }
func (f *Fake) ExtractZip(file value.File) (value.FileArea, error)   { return f.allocArea(), nil }
func (f *Fake) ExtractTarXz(file value.File) (value.FileArea, error) { return f.allocArea(), nil }
func (f *Fake) MergeDirs(dirs []value.Directory) (value.FileArea, error) {
	return f.allocArea(), nil
}

func (f *Fake) SHA256(file value.File) (string, error) {
	contents, err := f.ReadFile(file)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(contents))
	return hex.EncodeToString(sum[:]), nil
}

// Download honours a pre-programmed response table. If the previously
// recorded etag (passed in by the evaluator from a cached entry) matches
// the programmed one, the driver still counts the call: ETag-based
// short-circuiting is the evaluator's job (spec 4.3.4), not the driver's.
func (f *Fake) Download(ctx context.Context, url, name string, etag *string) (DownloadResult, error) {
	f.mu.Lock()
	f.DownloadCalls[url]++
	started := f.DownloadStarted
	release := f.DownloadRelease
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	resp, ok := f.Downloads[url]
	f.mu.Unlock()
	if !ok {
		return DownloadResult{OK: false, StatusCode: 404}, nil
	}
	return resp, nil
}

func (f *Fake) Run(ctx context.Context, area *value.FileArea, binary string, args []string, opts RunOptions) (RunResult, error) {
	return RunResult{Success: true, ExitCode: 0, Area: f.allocArea()}, nil
}

func (f *Fake) EscapeBin(name string) (*string, error) {
	path := "/usr/bin/" + name
	return &path, nil
}

func (f *Fake) EscapeRun(ctx context.Context, dir, binary string, args []string, opts RunOptions) (RunResult, error) {
	if f.Sealed {
		return RunResult{}, fmt.Errorf("fake driver: escape_run invoked while sealed")
	}
	return RunResult{Success: true, ExitCode: 0, Area: f.allocArea()}, nil
}

func (f *Fake) Print(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Printed = append(f.Printed, msg)
}

func (f *Fake) EnterCall(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Entered = append(f.Entered, name)
}

func (f *Fake) ExitCall(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Exited = append(f.Exited, name)
}
