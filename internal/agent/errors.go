package agent

import "fmt"

// InvocationSetupError reports that a turn could not start: no event was
// emitted and the failure is surfaced synchronously by Run.
type InvocationSetupError struct {
	Err error
}

func (e *InvocationSetupError) Error() string {
	return fmt.Sprintf("invocation setup failed: %v", e.Err)
}

func (e *InvocationSetupError) Unwrap() error { return e.Err }

// StreamInterruptedError terminates an event stream that failed mid-flight.
// Events delivered before the interruption stand; the turn did not complete
// cleanly.
type StreamInterruptedError struct {
	Err error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

func (e *StreamInterruptedError) Unwrap() error { return e.Err }
