// Package runner executes external tools (hdiutil, installer, ditto,
// softwareupdate, ...) one at a time under a total and an idle timeout.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var (
	// ErrTimeout means the command ran longer than its total timeout.
	ErrTimeout = errors.New("command timed out")
	// ErrIdleTimeout means the command produced no output for its idle timeout.
	ErrIdleTimeout = errors.New("command produced no output before idle timeout")
)

// Command describes one process invocation. Zero timeouts fall back to the
// Runner's defaults.
type Command struct {
	Name        string
	Args        []string
	Stdin       string
	Timeout     time.Duration
	IdleTimeout time.Duration
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the captured outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output prefers stderr, falling back to stdout, for operator diagnostics.
func (r Result) Output() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Command string
	Result  Result
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.Result.ExitCode)
	if out := e.Result.Output(); out != "" {
		msg += ": " + out
	}
	return msg
}

// Runner runs commands. Implementations must return a non-nil error for
// non-zero exits.
type Runner interface {
	Run(ctx context.Context, c Command) (Result, error)
}

// RunnerFunc adapts a function to Runner; tests use it to fake tools.
type RunnerFunc func(ctx context.Context, c Command) (Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, c Command) (Result, error) { return f(ctx, c) }

// Exec runs real processes. Its bounds apply to commands that set none of
// their own; zero means unbounded.
type Exec struct {
	Timeout     time.Duration
	IdleTimeout time.Duration
}

// Run starts c and waits for it. A non-zero exit is an *ExitError. Hitting
// either bound kills the process and the error wraps ErrTimeout or ErrIdleTimeout.
func (e Exec) Run(ctx context.Context, c Command) (Result, error) {
	total := pick(c.Timeout, e.Timeout)
	idle := pick(c.IdleTimeout, e.IdleTimeout)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if total > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeoutCause(ctx, total, ErrTimeout)
		defer stop()
	}

	var stdout, stderr bytes.Buffer
	var outW, errW io.Writer = &stdout, &stderr
	if idle > 0 {
		a := newActivity(idle, func() { cancel(ErrIdleTimeout) })
		defer a.stop()
		outW = io.MultiWriter(&stdout, a)
		errW = io.MultiWriter(&stderr, a)
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Stdout = outW
	cmd.Stderr = errW
	cmd.WaitDelay = 5 * time.Second
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctx.Err() != nil {
		return res, fmt.Errorf("%s: %w", c, context.Cause(ctx))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return res, &ExitError{Command: c.String(), Result: res}
		}
		return res, fmt.Errorf("run %s: %w", c, err)
	}
	return res, nil
}

func pick(override, fallback time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return fallback
}

// activity is an io.Writer that pushes back an idle deadline on every write.
type activity struct {
	mu    sync.Mutex
	idle  time.Duration
	timer *time.Timer
}

func newActivity(idle time.Duration, fire func()) *activity {
	return &activity{idle: idle, timer: time.AfterFunc(idle, fire)}
}

func (a *activity) Write(p []byte) (int, error) {
	a.mu.Lock()
	a.timer.Reset(a.idle)
	a.mu.Unlock()
	return len(p), nil
}

func (a *activity) stop() {
	a.mu.Lock()
	a.timer.Stop()
	a.mu.Unlock()
}
