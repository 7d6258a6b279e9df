package bridgetests

import (
	"time"

	"github.com/devicebridge/transport-contract-tests/client"
	"github.com/devicebridge/transport-contract-tests/logging"
	"github.com/devicebridge/transport-contract-tests/servicedef"
	"github.com/devicebridge/transport-contract-tests/stub"
	"github.com/devicebridge/transport-contract-tests/testframework"

	"github.com/stretchr/testify/require"
)

const awaitScriptTimeout = time.Second * 10
const awaitReadyTimeout = time.Second * 10
const stdioCloseTimeout = time.Second * 5

// T represents a test or subtest in the bridge test suite.
//
// It implements the same basic functionality as Go's testing.T, but in an
// environment that is outside of the Go test runner, with some extra features
// such as debug logging that are provided by our lower-level testframework
// package. To make test assertions, use the assert and require packages,
// passing the *T as if it were a *testing.T.
//
// It also provides the bridge-specific test API: starting fake daemons and
// console stubs, and running the client binary under test. Fixtures started
// through these methods are stopped automatically when the subtest ends, and a
// fixture that fails to shut down cleanly fails the test.
type T struct {
	context  *testframework.Context
	runner   *client.Runner
	daemons  []*stub.FakeDaemon
	consoles []*stub.ConsoleStub
}

func newTestScope(context *testframework.Context, runner *client.Runner) *T {
	return &T{
		context: context,
		runner:  runner.WithLogger(context.DebugLogger()),
	}
}

func (t *T) close() {
	for _, c := range t.consoles {
		c.Close()
	}
	for _, d := range t.daemons {
		if err := d.Stop(); err != nil {
			t.context.Errorf("fixture leak: %s", err)
		}
	}
}

// Errorf is called by assertions to log a test failure. It does not cause an
// immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit.
// The methods in the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest. The specified function receives a new T instance with its
// own fixture scope.
func (t *T) Run(name string, action func(*T)) {
	var t1 *T
	t.context.Run(name, func(c *testframework.Context) {
		t1 = newTestScope(c, t.runner)
		action(t1)
	})
	if t1 != nil {
		t1.close()
	}
}

// Debug logs some debug output for the test. The output will be passed to the
// test logger at the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

func (t *T) DebugLogger() logging.Logger {
	return t.context.DebugLogger()
}

// ClientCommand returns a copy of the base command line of the client binary
// under test, for tests that need to launch it in a nonstandard way.
func (t *T) ClientCommand() []string {
	return t.runner.Command()
}

// StartFakeDaemon starts a fake transport daemon and returns the port it is
// listening on. The test fails immediately if it cannot be started.
func (t *T) StartFakeDaemon(params servicedef.DaemonParams) int {
	port, ok := t.TryStartFakeDaemon(params)
	require.True(t, ok, "could not start fake daemon")
	return port
}

// TryStartFakeDaemon is like StartFakeDaemon but reports failure instead of
// failing the test, for address families that may not be available in the
// test environment.
func (t *T) TryStartFakeDaemon(params servicedef.DaemonParams) (int, bool) {
	daemon := stub.NewFakeDaemon(logging.LoggerWithPrefix(t.context.DebugLogger(), "[fake daemon] "))
	port, err := daemon.Start(params)
	if err != nil {
		t.Debug("could not start fake daemon: %s", err)
		return 0, false
	}
	t.daemons = append(t.daemons, daemon)
	return port, true
}

// StartConsoleStub starts a scripted console stub and returns it along with
// the port it is listening on.
func (t *T) StartConsoleStub(script servicedef.ConsoleScript) (*stub.ConsoleStub, int) {
	console := stub.NewConsoleStub(script, logging.LoggerWithPrefix(t.context.DebugLogger(), "[console] "))
	port, err := console.Start()
	require.NoError(t, err)
	t.consoles = append(t.consoles, console)
	return console, port
}

// RunClient runs the client binary with the given arguments, requiring it to
// exit successfully, and returns its trimmed combined output.
func (t *T) RunClient(args ...string) string {
	output, err := t.runner.Run(args...)
	require.NoError(t, err)
	return output
}

// RunClientExpectingError runs the client binary with the given arguments,
// requiring a nonzero exit status, and returns its trimmed combined output.
func (t *T) RunClientExpectingError(args ...string) string {
	output, err := t.runner.Run(args...)
	require.Error(t, err, "client unexpectedly succeeded (output: %s)", output)
	return output
}

// StartClientCommand runs the client binary without waiting for it, for
// commands that must run concurrently with fixture activity.
func (t *T) StartClientCommand(args ...string) *client.RunningCommand {
	handle, err := t.runner.Start(args...)
	require.NoError(t, err)
	return handle
}

// DisconnectQuietly performs a best-effort disconnect, discarding the result.
func (t *T) DisconnectQuietly(serial string) {
	_, _ = t.runner.Run("disconnect", serial)
}
