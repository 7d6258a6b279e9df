// Package client drives the external bridge client binary that is under test.
// It can run one-shot commands with captured output, and launch the client's
// background server mode with the readiness-report protocol.
package client

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/devicebridge/transport-contract-tests/logging"

	"github.com/alessio/shellescape"
)

// Runner invokes the client binary. The base command holds the binary path and
// any global arguments; per-call arguments are appended to it.
type Runner struct {
	command []string
	logger  logging.Logger
}

func NewRunner(command []string, logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &Runner{command: command, logger: logger}
}

// Command returns a copy of the base command line.
func (r *Runner) Command() []string {
	return append([]string(nil), r.command...)
}

// WithLogger returns a Runner for the same binary that logs to the given
// logger, so each test can capture its own client invocations.
func (r *Runner) WithLogger(logger logging.Logger) *Runner {
	return NewRunner(r.command, logger)
}

// Run executes the client with the given arguments and waits for it to exit.
// It returns the combined stdout/stderr with surrounding whitespace trimmed.
// A nonzero exit status is returned as an error that includes the output.
func (r *Runner) Run(args ...string) (string, error) {
	handle, err := r.Start(args...)
	if err != nil {
		return "", err
	}
	return handle.Wait()
}

// Start executes the client without waiting for it to exit, for commands that
// must run concurrently with fixture activity.
func (r *Runner) Start(args ...string) (*RunningCommand, error) {
	argv := append(r.Command(), args...)
	r.logger.Printf("running: %s", DescribeCommand(argv))
	cmd := exec.Command(argv[0], argv[1:]...)
	handle := &RunningCommand{cmd: cmd, argv: argv, doneCh: make(chan struct{})}
	go func() {
		handle.output, handle.err = cmd.CombinedOutput()
		close(handle.doneCh)
	}()
	return handle, nil
}

// RunningCommand is a client invocation in progress.
type RunningCommand struct {
	cmd    *exec.Cmd
	argv   []string
	doneCh chan struct{}
	output []byte
	err    error
}

// Wait blocks until the command exits, returning its trimmed combined output.
func (c *RunningCommand) Wait() (string, error) {
	<-c.doneCh
	output := strings.TrimSpace(string(c.output))
	if c.err != nil {
		return output, fmt.Errorf("%s failed: %w (output: %s)", DescribeCommand(c.argv), c.err, output)
	}
	return output, nil
}

// DescribeCommand renders a command line in shell-quoted form for log output.
func DescribeCommand(argv []string) string {
	quoted := make([]string, 0, len(argv))
	for _, a := range argv {
		quoted = append(quoted, shellescape.Quote(a))
	}
	return strings.Join(quoted, " ")
}
