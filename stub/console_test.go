package stub

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/devicebridge/transport-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const awaitScriptTimeout = time.Second * 5

func testKillScript(forcedReset bool) servicedef.ConsoleScript {
	return servicedef.ConsoleScript{
		Greeting:    "Android Console: type 'help' for a list of commands",
		Expect:      []string{"kill", "quit"},
		Reply:       "OK: killing emulator, bye bye",
		ForcedReset: forcedReset,
	}
}

func dialConsole(t *testing.T, port int) net.Conn {
	conn, err := net.Dial("tcp4", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(awaitScriptTimeout)))
	return conn
}

func requireLine(t *testing.T, reader *bufio.Reader, expected string) {
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, expected+"\r\n", line)
}

func TestScriptedExchangeWithGracefulClose(t *testing.T) {
	script := testKillScript(false)
	console := NewConsoleStub(script, nil)
	port, err := console.Start()
	require.NoError(t, err)

	conn := dialConsole(t, port)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	requireLine(t, reader, script.Greeting)
	requireLine(t, reader, "OK")

	_, err = conn.Write([]byte("kill\nquit\n"))
	require.NoError(t, err)

	requireLine(t, reader, script.Reply)

	// Graceful close: the peer observes a clean EOF.
	_, err = reader.ReadByte()
	assert.Equal(t, io.EOF, err)

	require.NoError(t, console.Await(awaitScriptTimeout))
}

func TestLeadingAuthLineIsSkipped(t *testing.T) {
	script := testKillScript(false)
	console := NewConsoleStub(script, nil)
	port, err := console.Start()
	require.NoError(t, err)

	conn := dialConsole(t, port)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	requireLine(t, reader, script.Greeting)
	requireLine(t, reader, "OK")

	_, err = conn.Write([]byte("auth 1234deadbeef\nkill\nquit\n"))
	require.NoError(t, err)

	requireLine(t, reader, script.Reply)
	require.NoError(t, console.Await(awaitScriptTimeout))
}

func TestForcedResetIsObservedAsConnectionReset(t *testing.T) {
	script := testKillScript(true)
	console := NewConsoleStub(script, nil)
	port, err := console.Start()
	require.NoError(t, err)

	conn := dialConsole(t, port)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	requireLine(t, reader, script.Greeting)
	requireLine(t, reader, "OK")

	_, err = conn.Write([]byte("kill\nquit\n"))
	require.NoError(t, err)

	requireLine(t, reader, script.Reply)

	require.NoError(t, console.Await(awaitScriptTimeout))

	_, err = reader.ReadByte()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err, "expected an abrupt reset, not a clean close")
	assert.True(t, errors.Is(err, syscall.ECONNRESET), "expected ECONNRESET, got %v", err)
}

func TestUnexpectedCommandIsProtocolViolation(t *testing.T) {
	script := testKillScript(false)
	console := NewConsoleStub(script, nil)
	port, err := console.Start()
	require.NoError(t, err)

	conn := dialConsole(t, port)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	requireLine(t, reader, script.Greeting)
	requireLine(t, reader, "OK")

	_, err = conn.Write([]byte("quit\n"))
	require.NoError(t, err)

	err = console.Await(awaitScriptTimeout)
	require.Error(t, err)
	var violation ProtocolViolationError
	require.True(t, errors.As(err, &violation), "expected a ProtocolViolationError, got %v", err)
	assert.Equal(t, "kill", violation.Expected)
	assert.Equal(t, "quit", violation.Received)
}

func TestAcceptTimeout(t *testing.T) {
	script := testKillScript(false)
	script.AcceptTimeoutMS = ldvalue.NewOptionalInt(100)
	console := NewConsoleStub(script, nil)
	_, err := console.Start()
	require.NoError(t, err)

	err = console.Await(awaitScriptTimeout)
	require.Error(t, err, "script should fail when nothing connects")
}
