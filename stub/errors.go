package stub

import (
	"fmt"
	"time"
)

// ProtocolViolationError means the peer sent a command line that did not match
// the script. It is fatal to that script run and is never retried.
type ProtocolViolationError struct {
	Expected string
	Received string
}

func (e ProtocolViolationError) Error() string {
	return fmt.Sprintf("protocol violation: expected command line %q, received %q", e.Expected, e.Received)
}

// ShutdownTimeoutError means Stop did not observe the dispatch loop exiting
// within the bounded wait. This indicates a leaked socket or goroutine and
// should abort the test run rather than be ignored.
type ShutdownTimeoutError struct {
	Timeout time.Duration
}

func (e ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("fake daemon did not shut down within %s", e.Timeout)
}
