package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence returns a check that yields the given states, repeating the last one.
func sequence(calls *int, states ...bool) func(context.Context) (bool, error) {
	return func(context.Context) (bool, error) {
		i := *calls
		*calls++
		if i >= len(states) {
			i = len(states) - 1
		}
		return states[i], nil
	}
}

func TestWaitStopsWhenConditionsClear(t *testing.T) {
	var powerCalls, userCalls int
	w := New(
		Condition{Name: Power, Check: sequence(&powerCalls, true, false)},
		Condition{Name: User, Check: sequence(&userCalls, false)},
	)
	w.Interval = time.Millisecond

	require.NoError(t, w.Wait(context.Background(), 3))
	assert.Equal(t, 2, powerCalls, "power re-checked once after the first pass")
	assert.Equal(t, 1, userCalls, "cleared conditions are not re-evaluated")

	states := w.States()
	require.NotNil(t, states[Power])
	assert.False(t, *states[Power])
	assert.False(t, *states[User])
}

func TestWaitTimesOutNamingBlockers(t *testing.T) {
	var cpuCalls, screenCalls int
	w := New(
		Condition{Name: Screen, Check: sequence(&screenCalls, true)},
		Condition{Name: CPU, Check: sequence(&cpuCalls, true, false)},
	)
	w.Interval = time.Millisecond

	err := w.Wait(context.Background(), 3)
	var be *BlockedError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, []string{Screen}, be.Names)
	assert.Equal(t, 4, screenCalls)
	assert.EqualError(t, err, "timed out waiting for: screen")
}

func TestWaitZeroSecondsChecksOnce(t *testing.T) {
	var calls int
	w := New(Condition{Name: FileVault, Check: sequence(&calls, true)})
	err := w.Wait(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCheckErrorCountsAsBlocking(t *testing.T) {
	w := New(Condition{Name: Catalog, Check: func(context.Context) (bool, error) {
		return false, errors.New("no route to host")
	}})
	w.Interval = time.Millisecond
	err := w.Wait(context.Background(), 1)
	var be *BlockedError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, []string{Catalog}, be.Names)
}

func TestStatesBeforeEvaluation(t *testing.T) {
	w := New(Condition{Name: User, Check: func(context.Context) (bool, error) { return false, nil }})
	states := w.States()
	require.Contains(t, states, User)
	assert.Nil(t, states[User])
	assert.Equal(t, []string{User}, w.Blocking())
}
