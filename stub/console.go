package stub

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/devicebridge/transport-contract-tests/logging"
	"github.com/devicebridge/transport-contract-tests/servicedef"
)

const defaultAcceptTimeout = time.Second * 5

// ConsoleStub is a scripted emulator console. It accepts exactly one
// connection, writes the scripted greeting and acknowledgement lines, reads
// back the expected command lines in order, writes the scripted reply, and
// then closes the connection either gracefully or with a forced TCP reset.
//
// The stub runs on its own goroutine so that the test can drive the client
// process concurrently; the script outcome is collected with Await.
type ConsoleStub struct {
	script   servicedef.ConsoleScript
	logger   logging.Logger
	listener *net.TCPListener
	resultCh chan error
}

func NewConsoleStub(script servicedef.ConsoleScript, logger logging.Logger) *ConsoleStub {
	if logger == nil {
		logger = logging.NullLogger()
	}
	return &ConsoleStub{
		script:   script,
		logger:   logger,
		resultCh: make(chan error, 1),
	}
}

// Start binds an ephemeral port, starts running the script in the background,
// and returns the port for the client under test to connect to.
func (s *ConsoleStub) Start() (int, error) {
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	s.listener = listener.(*net.TCPListener)
	port := s.listener.Addr().(*net.TCPAddr).Port
	s.logger.Printf("console stub listening on %s", s.listener.Addr())

	go func() {
		s.resultCh <- s.runScript()
	}()
	return port, nil
}

// Await blocks until the script has run to completion and returns its outcome.
// A ProtocolViolationError means the peer sent a command line that did not
// match the script.
func (s *ConsoleStub) Await(timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case err := <-s.resultCh:
		return err
	case <-deadline.C:
		return fmt.Errorf("console script did not finish within %s", timeout)
	}
}

// Close releases the listening socket. It is safe to call whether or not the
// script ran; a script blocked waiting for a connection will fail its accept.
func (s *ConsoleStub) Close() {
	_ = s.listener.Close()
}

func (s *ConsoleStub) runScript() error {
	defer s.listener.Close()

	acceptTimeout := defaultAcceptTimeout
	if s.script.AcceptTimeoutMS.IsDefined() {
		acceptTimeout = time.Duration(s.script.AcceptTimeoutMS.IntValue()) * time.Millisecond
	}
	if err := s.listener.SetDeadline(time.Now().Add(acceptTimeout)); err != nil {
		return err
	}
	conn, err := s.listener.AcceptTCP()
	if err != nil {
		return fmt.Errorf("waiting for console connection: %w", err)
	}
	s.logger.Printf("console connection from %s", conn.RemoteAddr())

	if err := s.writeLine(conn, s.script.Greeting); err != nil {
		_ = conn.Close()
		return err
	}
	if err := s.writeLine(conn, "OK"); err != nil {
		_ = conn.Close()
		return err
	}

	reader := bufio.NewReader(conn)
	if len(s.script.Expect) > 0 {
		line, err := readCommandLine(reader)
		if err == nil && strings.HasPrefix(line, "auth") {
			// Some clients send one authentication preamble line; skip it.
			s.logger.Printf("ignoring auth line %q", line)
			line, err = readCommandLine(reader)
		}
		for i, expected := range s.script.Expect {
			if i > 0 {
				line, err = readCommandLine(reader)
			}
			if err != nil {
				_ = conn.Close()
				return fmt.Errorf("reading command line: %w", err)
			}
			s.logger.Printf(">> received: %q", line)
			if line != expected {
				_ = conn.Close()
				return ProtocolViolationError{Expected: expected, Received: line}
			}
		}
	}

	if err := s.writeLine(conn, s.script.Reply); err != nil {
		_ = conn.Close()
		return err
	}

	if s.script.ForcedReset {
		// Linger time zero turns Close into an abortive close: the peer sees a
		// TCP RST instead of an orderly shutdown, as if the emulator process
		// had exited without closing its socket.
		if err := conn.SetLinger(0); err != nil {
			_ = conn.Close()
			return fmt.Errorf("configuring forced reset: %w", err)
		}
		s.logger.Printf("closing console connection with forced reset")
		return conn.Close()
	}

	s.logger.Printf("closing console connection gracefully")
	_ = conn.CloseWrite()
	return conn.Close()
}

func (s *ConsoleStub) writeLine(conn net.Conn, line string) error {
	s.logger.Printf("<< sending: %q", line)
	_, err := conn.Write([]byte(line + "\r\n"))
	return err
}

func readCommandLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
