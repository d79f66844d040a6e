package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecCapturesOutput(t *testing.T) {
	res, err := Exec{}.Run(context.Background(), Command{
		Name:  "sh",
		Args:  []string{"-c", "cat; echo err >&2"},
		Stdin: "hello\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecNonZeroExit(t *testing.T) {
	res, err := Exec{}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo partial; echo failed hard >&2; exit 3"},
	})
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "failed hard", exitErr.Result.Output())
	assert.Contains(t, err.Error(), "exited with status 3")
}

func TestExecTotalTimeout(t *testing.T) {
	_, err := Exec{Timeout: 100 * time.Millisecond}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "while true; do echo tick; sleep 0.02; done"},
	})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestExecIdleTimeout(t *testing.T) {
	_, err := Exec{Timeout: 10 * time.Second, IdleTimeout: 100 * time.Millisecond}.Run(context.Background(), Command{
		Name: "sleep",
		Args: []string{"5"},
	})
	require.ErrorIs(t, err, ErrIdleTimeout)
}

func TestExecMissingBinary(t *testing.T) {
	_, err := Exec{}.Run(context.Background(), Command{Name: "definitely-not-a-real-tool-xyz"})
	require.Error(t, err)
	var exitErr *ExitError
	assert.False(t, errors.As(err, &exitErr))
}

func TestResultOutputFallsBackToStdout(t *testing.T) {
	assert.Equal(t, "out", Result{Stdout: " out\n", Stderr: "  \n"}.Output())
	assert.Equal(t, "err", Result{Stdout: "out", Stderr: "err"}.Output())
}

func TestRunnerFunc(t *testing.T) {
	var got Command
	r := RunnerFunc(func(_ context.Context, c Command) (Result, error) {
		got = c
		return Result{Stdout: "ok"}, nil
	})
	res, err := r.Run(context.Background(), Command{Name: "hdiutil", Args: []string{"info"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Stdout)
	assert.Equal(t, "hdiutil info", got.String())
}
