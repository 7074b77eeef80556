package shutdown

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"inboxd/pkg/logger"
)

// exitRequest is the machine-readable abort record dropped next to the crash
// dump so supervisors can tell an operator abort from a crash.
type exitRequest struct {
	Time      string            `json:"time"`
	Reason    string            `json:"reason"`
	Cmd       string            `json:"cmd"`
	CrashPath string            `json:"crash_path,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

var diagFn atomic.Value // func() map[string]string

// SetDiagnostics registers a callback whose key/value snapshot (queue depth,
// active strands, drop counts) is folded into every crash dump and abort
// request.
func SetDiagnostics(fn func() map[string]string) {
	if fn != nil {
		diagFn.Store(fn)
	}
}

func diagnostics() map[string]string {
	if fn, ok := diagFn.Load().(func() map[string]string); ok && fn != nil {
		return fn()
	}
	return nil
}

// Abort logs a fatal condition, writes a crash dump and exits with status 2.
// The delay gives log sinks and the dump writer time to flush; pass 0 for an
// immediate exit.
func Abort(contextMsg string, err error, dbPath string, delaySeconds ...int) {
	delay := 10
	if len(delaySeconds) > 0 && delaySeconds[0] >= 0 {
		delay = delaySeconds[0]
	}
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	dumpPath, reqPath, derr := AbortWithDiagnostics(dbPath, contextMsg, err)
	if derr != nil {
		logger.Error("abort_with_diagnostics_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Info("wrote_crash_dump", "path", dumpPath, "request", reqPath)
		logger.Error("startup_fatal_crashdump", "path", dumpPath)
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", dumpPath)
	}
	for i := delay; i > 0; i-- {
		logger.Info("exiting_in_seconds", "seconds", i)
		time.Sleep(1 * time.Second)
	}
	os.Exit(2)
}

// AbortWithDiagnostics writes a human-readable crash dump and a matching abort
// request, returning both paths. The dump carries the environment, registered
// runtime diagnostics and all goroutine stacks.
func AbortWithDiagnostics(dbPath, reason string, err error) (string, string, error) {
	crashDir := "./crash"
	abortDir := "./abort"
	if dbPath != "" {
		crashDir = filepath.Join(dbPath, "state", "crash")
		abortDir = filepath.Join(dbPath, "state", "abort")
	}
	if e := os.MkdirAll(crashDir, 0o700); e != nil {
		return "", "", fmt.Errorf("failed to create crash dir: %w", e)
	}
	if e := os.MkdirAll(abortDir, 0o700); e != nil {
		return "", "", fmt.Errorf("failed to create abort dir: %w", e)
	}

	ts := time.Now().UnixNano()
	diag := diagnostics()

	dumpPath, derr := writeAtomic(crashDir, ".crash-*.tmp", fmt.Sprintf("crash-%d.log", ts), func(f *os.File) error {
		fmt.Fprintf(f, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
		fmt.Fprintf(f, "reason: %s\n", reason)
		fmt.Fprintf(f, "error: %v\n", err)
		if len(diag) > 0 {
			fmt.Fprintf(f, "\n--- runtime diagnostics ---\n")
			for k, v := range diag {
				fmt.Fprintf(f, "%s: %s\n", k, v)
			}
		}
		fmt.Fprintf(f, "\n--- environ ---\n")
		for _, e := range os.Environ() {
			fmt.Fprintln(f, e)
		}
		fmt.Fprintf(f, "\n--- goroutine stacks ---\n")
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		_, werr := f.Write(buf[:n])
		return werr
	})
	if derr != nil {
		return "", "", fmt.Errorf("failed to write crash dump: %w", derr)
	}

	meta := map[string]string{"pid": fmt.Sprintf("%d", os.Getpid())}
	for k, v := range diag {
		meta[k] = v
	}
	req := exitRequest{
		Time:      time.Now().UTC().Format(time.RFC3339),
		Reason:    reason,
		Cmd:       "crash",
		CrashPath: dumpPath,
		Meta:      meta,
	}
	reqPath, rerr := writeAtomic(abortDir, ".req-*.tmp", fmt.Sprintf("req-%d.json", ts), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(req)
	})
	if rerr != nil {
		return dumpPath, "", fmt.Errorf("failed to write abort request: %w", rerr)
	}
	return dumpPath, reqPath, nil
}

// writeAtomic fills a temp file in dir and renames it into place so partial
// dumps are never observed.
func writeAtomic(dir, pattern, final string, fill func(*os.File) error) (string, error) {
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	if err := fill(tmp); err != nil {
		tmp.Close()
		_ = os.Remove(name)
		return "", err
	}
	tmp.Sync()
	tmp.Close()
	path := filepath.Join(dir, final)
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	_ = os.Chmod(path, 0o600)
	return path, nil
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM. SIGPIPE
// additionally dumps goroutine stacks through the logger before cancelling, to
// aid pipe-breakage diagnostics.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
		cancel()
	}()

	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		s := <-sigpipe
		logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE - dumping goroutine stacks")
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
		cancel()
	}()

	return ctx, cancel
}
