package stub

import (
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/devicebridge/transport-contract-tests/protocol"
	"github.com/devicebridge/transport-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const testReadTimeout = time.Second * 2

func startTestDaemon(t *testing.T, params servicedef.DaemonParams) (*FakeDaemon, int) {
	daemon := NewFakeDaemon(nil)
	port, err := daemon.Start(params)
	require.NoError(t, err)
	return daemon, port
}

func dialTestDaemon(t *testing.T, port int) net.Conn {
	conn, err := net.Dial("tcp4", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	return conn
}

func requireHandshake(t *testing.T, conn net.Conn) {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testReadTimeout)))
	frame, err := protocol.ReadFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, protocol.CommandConnect, frame.Command)
	assert.Equal(t, uint32(protocol.ConnectVersion), frame.Arg0)
	assert.Equal(t, uint32(protocol.ConnectMaxPayload), frame.Arg1)
	assert.Equal(t, protocol.DeviceBanner, string(frame.Payload))
}

func TestHandshakeIsSentOnceAndFirst(t *testing.T) {
	daemon, port := startTestDaemon(t, servicedef.DaemonParams{})
	defer func() { require.NoError(t, daemon.Stop()) }()

	conn := dialTestDaemon(t, port)
	defer conn.Close()

	_, err := conn.Write([]byte("host:anything"))
	require.NoError(t, err)
	requireHandshake(t, conn)

	// Further non-OPEN traffic must not provoke a second handshake.
	_, err = conn.Write([]byte("more bytes"))
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Millisecond*300)))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	netErr, ok := err.(net.Error)
	require.True(t, ok, "expected a net.Error, got %v", err)
	assert.True(t, netErr.Timeout(), "expected a read timeout, got %v", err)
}

func TestOpenRequestClosesConnection(t *testing.T) {
	daemon, port := startTestDaemon(t, servicedef.DaemonParams{})
	defer func() { require.NoError(t, daemon.Stop()) }()

	conn := dialTestDaemon(t, port)
	defer conn.Close()

	_, err := conn.Write([]byte("hello"))
	require.NoError(t, err)
	requireHandshake(t, conn)

	_, err = conn.Write([]byte("OPENshell:true"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testReadTimeout)))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Equal(t, io.EOF, err, "connection should be closed after a stream-open request")
}

func TestOpenRequestBeforeHandshakeClosesConnection(t *testing.T) {
	daemon, port := startTestDaemon(t, servicedef.DaemonParams{})
	defer func() { require.NoError(t, daemon.Stop()) }()

	conn := dialTestDaemon(t, port)
	defer conn.Close()

	_, err := conn.Write([]byte("OPEN"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testReadTimeout)))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Equal(t, io.EOF, err, "no handshake should be sent on a connection that starts with OPEN")
}

func TestConcurrentConnectionsEachGetOneHandshake(t *testing.T) {
	daemon, port := startTestDaemon(t, servicedef.DaemonParams{})
	defer func() { require.NoError(t, daemon.Stop()) }()

	conns := make([]net.Conn, 0, 5)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()
	for i := 0; i < 5; i++ {
		conns = append(conns, dialTestDaemon(t, port))
	}
	for i, conn := range conns {
		_, err := conn.Write([]byte(fmt.Sprintf("greeting from connection %d", i)))
		require.NoError(t, err)
	}
	for _, conn := range conns {
		requireHandshake(t, conn)
	}
}

func TestPortIsRebindableAfterStop(t *testing.T) {
	daemon, port := startTestDaemon(t, servicedef.DaemonParams{})
	require.NoError(t, daemon.Stop())

	daemon2, port2 := startTestDaemon(t, servicedef.DaemonParams{Port: ldvalue.NewOptionalInt(port)})
	assert.Equal(t, port, port2)
	require.NoError(t, daemon2.Stop())
}

func TestStopClosesActiveConnections(t *testing.T) {
	daemon, port := startTestDaemon(t, servicedef.DaemonParams{})

	conn := dialTestDaemon(t, port)
	defer conn.Close()
	_, err := conn.Write([]byte("hello"))
	require.NoError(t, err)
	requireHandshake(t, conn)

	require.NoError(t, daemon.Stop())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testReadTimeout)))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err, "connection should be closed after Stop")
}

func TestIPv6(t *testing.T) {
	daemon := NewFakeDaemon(nil)
	port, err := daemon.Start(servicedef.DaemonParams{Network: "tcp6"})
	if err != nil {
		t.Skipf("IPv6 not available: %s", err)
	}
	defer func() { require.NoError(t, daemon.Stop()) }()

	conn, err := net.Dial("tcp6", fmt.Sprintf("[::1]:%d", port))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)
	requireHandshake(t, conn)
}

func TestUnsupportedNetwork(t *testing.T) {
	daemon := NewFakeDaemon(nil)
	_, err := daemon.Start(servicedef.DaemonParams{Network: "unix"})
	require.Error(t, err)
}
