package stub

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/devicebridge/transport-contract-tests/logging"
	"github.com/devicebridge/transport-contract-tests/protocol"
	"github.com/devicebridge/transport-contract-tests/servicedef"
)

const readChunkSize = 1024
const shutdownTimeout = time.Second * 5

var openPrefix = []byte("OPEN")

// FakeDaemon is a fake transport daemon endpoint. It accepts any number of
// connections and replies to the first bytes received on each with a single
// handshake frame. It never sends a second handshake on the same connection,
// and it closes any connection that attempts to open an application stream,
// which is how tests provoke the client's "stream rejected" error path.
//
// All connection state is owned by a single dispatch goroutine; the only
// cross-goroutine interactions are the channels feeding that loop and the stop
// signal.
type FakeDaemon struct {
	logger   logging.Logger
	listener net.Listener
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewFakeDaemon(logger logging.Logger) *FakeDaemon {
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &FakeDaemon{
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start binds the listening socket and starts the dispatch loop. It returns
// the port actually bound, so that callers may pass an unset port in params to
// get an ephemeral one.
func (d *FakeDaemon) Start(params servicedef.DaemonParams) (int, error) {
	network := params.Network
	if network == "" {
		network = "tcp4"
	}
	var host string
	switch network {
	case "tcp4":
		host = "127.0.0.1"
	case "tcp6":
		host = "[::1]"
	default:
		return 0, fmt.Errorf("unsupported network %q", network)
	}

	bindPort := 0
	if params.Port.IsDefined() {
		bindPort = params.Port.IntValue()
	}
	listener, err := net.Listen(network, fmt.Sprintf("%s:%d", host, bindPort))
	if err != nil {
		return 0, err
	}
	d.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port
	d.logger.Printf("fake daemon listening on %s", listener.Addr())

	go d.dispatch()
	return port, nil
}

// Stop signals the dispatch loop to terminate and blocks until it has fully
// exited, at which point the listening socket and all connections are closed
// and the port is immediately re-bindable. Stop must be called exactly once.
func (d *FakeDaemon) Stop() error {
	close(d.stopCh)
	deadline := time.NewTimer(shutdownTimeout)
	defer deadline.Stop()
	select {
	case <-d.doneCh:
		return nil
	case <-deadline.C:
		return ShutdownTimeoutError{Timeout: shutdownTimeout}
	}
}

type connEvent struct {
	conn net.Conn
	data []byte // nil means the peer closed the connection or reading failed
}

func (d *FakeDaemon) dispatch() {
	defer close(d.doneCh)

	acceptCh := make(chan net.Conn)
	events := make(chan connEvent)
	go d.acceptLoop(acceptCh)

	// handshakeSent is the per-connection registry. Only this goroutine ever
	// touches it.
	handshakeSent := make(map[net.Conn]bool)

	defer func() {
		_ = d.listener.Close()
		for conn := range handshakeSent {
			_ = conn.Close()
		}
	}()

	for {
		select {
		case <-d.stopCh:
			return

		case conn := <-acceptCh:
			handshakeSent[conn] = false
			go d.readLoop(conn, events)

		case ev := <-events:
			if _, tracked := handshakeSent[ev.conn]; !tracked {
				// Already torn down; this is the reader noticing the close.
				continue
			}
			if ev.data == nil || bytes.HasPrefix(ev.data, openPrefix) {
				if ev.data != nil {
					d.logger.Printf("rejecting stream-open request from %s", ev.conn.RemoteAddr())
				}
				delete(handshakeSent, ev.conn)
				_ = ev.conn.Close()
				continue
			}
			if handshakeSent[ev.conn] {
				continue // this peer only ever greets once
			}
			handshakeSent[ev.conn] = true
			frame := protocol.Encode(
				protocol.CommandConnect,
				protocol.ConnectVersion,
				protocol.ConnectMaxPayload,
				[]byte(protocol.DeviceBanner),
			)
			if _, err := ev.conn.Write(frame); err != nil {
				d.logger.Printf("error sending handshake to %s: %s", ev.conn.RemoteAddr(), err)
				delete(handshakeSent, ev.conn)
				_ = ev.conn.Close()
			}
		}
	}
}

func (d *FakeDaemon) acceptLoop(acceptCh chan<- net.Conn) {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return // listener closed by the dispatch loop
		}
		select {
		case acceptCh <- conn:
		case <-d.stopCh:
			_ = conn.Close()
			return
		}
	}
}

func (d *FakeDaemon) readLoop(conn net.Conn, events chan<- connEvent) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case events <- connEvent{conn: conn, data: data}:
			case <-d.stopCh:
				return
			}
		}
		if err != nil {
			select {
			case events <- connEvent{conn: conn, data: nil}:
			case <-d.stopCh:
			}
			return
		}
	}
}
