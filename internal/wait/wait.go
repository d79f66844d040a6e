// Package wait blocks until a set of named system conditions all clear.
package wait

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"fleet-installer/internal/logger"
	"fleet-installer/internal/poll"
)

// Condition names used by the CLI and in JSON output.
const (
	CPU       = "cpu"
	Power     = "power"
	FileVault = "filevault"
	Screen    = "screen"
	User      = "user"
	Catalog   = "sus"
)

// Condition is one thing worth waiting for. Check returns true while the
// condition is still blocking.
type Condition struct {
	Name  string
	Check func(ctx context.Context) (bool, error)
}

// BlockedError lists the conditions still blocking when time ran out.
type BlockedError struct {
	Names []string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("timed out waiting for: %s", strings.Join(e.Names, ", "))
}

// Waiter evaluates conditions and remembers their last state. A nil state
// means the condition was never evaluated.
type Waiter struct {
	Conditions []Condition
	Interval   time.Duration

	states map[string]*bool
}

// New returns a Waiter over conds, evaluated in the given order. Every
// condition starts out unknown in States.
func New(conds ...Condition) *Waiter {
	w := &Waiter{Conditions: conds, Interval: time.Second}
	w.reset()
	return w
}

func (w *Waiter) reset() {
	w.states = make(map[string]*bool, len(w.Conditions))
	for _, c := range w.Conditions {
		w.states[c.Name] = nil
	}
}

// States returns a copy of the condition states.
func (w *Waiter) States() map[string]*bool {
	out := make(map[string]*bool, len(w.states))
	for k, v := range w.states {
		if v != nil {
			b := *v
			v = &b
		}
		out[k] = v
	}
	return out
}

// Wait evaluates every condition, then re-evaluates the blocking ones once per
// Interval for at most seconds retries. It returns nil as soon as none block,
// or a *BlockedError naming the ones that still do.
func (w *Waiter) Wait(ctx context.Context, seconds int) error {
	if w.states == nil {
		w.reset()
	}
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}

	err := poll.Until(ctx, interval, seconds, func(ctx context.Context) (bool, error) {
		return w.evaluate(ctx), nil
	})
	if errors.Is(err, poll.ErrExhausted) {
		return &BlockedError{Names: w.Blocking()}
	}
	return err
}

// evaluate refreshes every condition not already known to be clear and
// reports whether all of them are clear.
func (w *Waiter) evaluate(ctx context.Context) bool {
	clear := true
	for _, c := range w.Conditions {
		if s := w.states[c.Name]; s != nil && !*s {
			continue
		}
		blocking, err := c.Check(ctx)
		if err != nil {
			logger.Debug("[DEBUG] Condition %s could not be checked: %v\n", c.Name, err)
			blocking = true
		}
		w.states[c.Name] = &blocking
		if blocking {
			clear = false
		}
	}
	return clear
}

// Blocking returns the sorted names of conditions whose last state was true.
func (w *Waiter) Blocking() []string {
	var names []string
	for name, s := range w.states {
		if s == nil || *s {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
