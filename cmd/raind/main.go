// Command raind is a minimal, non-networked driver over the evaluator core,
// analogous in spirit to the teacher's cmd/arena-cache-inspect but standing
// in for a real daemon process instead of a debug client: it owns one
// daemon.Runner, feeds it a closed set of hand-built fixture programs (since
// the real lexer/parser and any IPC transport both stay out of scope, spec
// 1), and flushes the persisted cache after every fixture that succeeds and
// again on SIGINT/SIGTERM.
//
// Each line read from stdin is "<fixture> <arg>", e.g.:
//
//	factorial 10
//	greet world
//	fetch https://example.invalid/artifact.tar.gz
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/RuairidhWilliamson/rain-sub000/ast"
	"github.com/RuairidhWilliamson/rain-sub000/cache/persistence"
	"github.com/RuairidhWilliamson/rain-sub000/daemon"
	"github.com/RuairidhWilliamson/rain-sub000/driver"
	"github.com/RuairidhWilliamson/rain-sub000/value"
)

func main() {
	persistPath := flag.String("persist", "", "path to a JSON persistence file (empty disables persistence)")
	capacity := flag.Int("cache-capacity", 1024, "maximum number of cache entries")
	sealed := flag.Bool("sealed", true, "disallow internal._escape_run")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fatal(err)
	}
	defer logger.Sync() //nolint:errcheck

	var store persistence.Store
	if *persistPath != "" {
		store = persistence.JSONFile{Path: *persistPath}
	}

	fake := driver.NewFake()
	fake.Sealed = *sealed
	fake.Downloads["https://example.invalid/artifact.tar.gz"] = driver.DownloadResult{
		OK:         true,
		StatusCode: 200,
		File:       &value.File{Area: value.FileArea{Kind: value.AreaGenerated, GeneratedID: 1}, Path: "artifact.tar.gz"},
	}

	runner, err := daemon.NewRunner(daemon.Config{
		CacheCapacity: *capacity,
		Store:         store,
		Driver:        fake,
		Logger:        logger,
		Sealed:        *sealed,
	})
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		if err := runner.Flush(ctx); err != nil {
			logger.Warn("flush on shutdown failed", zap.Error(err))
		}
		cancel()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := runFixture(ctx, runner, line); err != nil {
			fmt.Fprintln(os.Stderr, "raind:", err)
			continue
		}
		if err := runner.Flush(ctx); err != nil {
			logger.Warn("flush failed", zap.Error(err))
		}
	}
}

func runFixture(ctx context.Context, runner *daemon.Runner, line string) error {
	parts := strings.SplitN(line, " ", 2)
	name := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	var module *ast.Module
	var fnName string
	var args []value.Value

	switch name {
	case "factorial":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("factorial: %w", err)
		}
		module = factorialModule()
		fnName = "factorial"
		args = []value.Value{value.NewInteger(int64(n))}
	case "greet":
		module = greetModule()
		fnName = "greet"
		args = []value.Value{value.String(arg)}
	case "fetch":
		module = fetchModule()
		fnName = "fetch"
		args = []value.Value{value.String(arg)}
	default:
		return fmt.Errorf("unknown fixture %q", name)
	}

	modID := runner.InsertModule(&ast.SourceRef{Path: name + ".rain"}, "", module, nil)
	declID, ok := runner.Store().ResolveGlobalDeclaration(modID, fnName)
	if !ok {
		return fmt.Errorf("fixture %q did not declare %q", name, fnName)
	}
	result, err := runner.Evaluate(ctx, declID, args)
	if err != nil {
		return err
	}
	fmt.Println(result.String())
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "raind:", err)
	os.Exit(1)
}
