package report

import "fmt"

// Message is the closed set of status messages a run can emit.
//
// This is a sealed interface - only types in this package implement it.
// Dispatch is an exhaustive type switch, so a new message kind fails to
// compile anywhere a switch forgets it, instead of silently falling through
// a string-prefix check.
type Message interface {
	statusMessage() // Marker method - seals interface to this package
}

// Started announces the test that is now running. It replaces the current
// test and prepends to the seen-tests sequence.
type Started struct {
	Test string
}

func (Started) statusMessage() {}

// Failed reports a failed test with its reason.
type Failed struct {
	Test   string
	Reason Failure
}

func (Failed) statusMessage() {}

// ErrorReported reports an error not tied to an explicit test identifier;
// it attaches to the currently running test.
type ErrorReported struct {
	Reason Failure
}

func (ErrorReported) statusMessage() {}

// FailureKind distinguishes a direct assertion failure from a worker that
// died. The two render differently in reports.
type FailureKind int

const (
	// FailureAssertion is a property predicate returning a failure.
	FailureAssertion FailureKind = iota + 1
	// FailureWorkerPanic is a worker goroutine that panicked; the panic
	// was recovered and delivered as a typed result.
	FailureWorkerPanic
)

// Failure describes one failure: the error type name, its message and the
// originating location when known.
type Failure struct {
	Kind     FailureKind
	Type     string
	Message  string
	Location string
}

// Report renders the failure for the run summary. Worker deaths are
// distinguishable from directly raised errors.
func (f Failure) Report() string {
	detail := f.Message
	if f.Type != "" {
		detail = f.Type + ": " + f.Message
	}
	if f.Location != "" {
		detail += " (at " + f.Location + ")"
	}
	if f.Kind == FailureWorkerPanic {
		return "worker died with reason: " + detail
	}
	return "exception was raised: " + detail
}

// TestError pairs a failure with the test that was current when it arrived.
type TestError struct {
	Test   string
	Reason Failure
}

func (e TestError) String() string {
	return fmt.Sprintf("%s: %s", e.Test, e.Reason.Report())
}
