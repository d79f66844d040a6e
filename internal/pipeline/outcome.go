package pipeline

import "fmt"

// Outcome is what a stage tells the executor to do next.
type Outcome int

const (
	// Continue proceeds to the next stage.
	Continue Outcome = iota
	// Success stops the run; the install is done or not needed.
	Success
	// Failure stops the run with an error.
	Failure
)

// String returns the lower-case outcome name used in reports.
func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Success:
		return "success"
	case Failure:
		return "failure"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result is a stage's return value.
type Result struct {
	Outcome Outcome
	Message string
	Err     error
}

func next() Result { return Result{Outcome: Continue} }

func done(format string, a ...any) Result {
	return Result{Outcome: Success, Message: fmt.Sprintf(format, a...)}
}

func fail(err error) Result {
	return Result{Outcome: Failure, Message: err.Error(), Err: err}
}

func failf(format string, a ...any) Result {
	return fail(fmt.Errorf(format, a...))
}
