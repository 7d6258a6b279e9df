package client

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/devicebridge/transport-contract-tests/logging"
)

// ReplyFD is the file descriptor number, in the launched process, of the write
// end of the readiness pipe. Descriptors 0-2 are the standard streams and the
// first extra file is 3.
const ReplyFD = 3

const readyMessage = "OK\n"

// ServerProcess is a launched instance of the client binary in its
// server-spawning mode. The launcher is expected to report readiness by
// writing "OK\n" to the reply descriptor, and the server it spawns must not
// inherit the launcher's standard streams.
type ServerProcess struct {
	cmd         *exec.Cmd
	logger      logging.Logger
	replyRead   *os.File
	stdin       *os.File
	stdoutEOFCh chan struct{}
	stderrEOFCh chan struct{}
	readyCh     chan error
}

// LaunchServer starts the given command with redirected standard streams and a
// readiness pipe attached as descriptor ReplyFD. The command line must already
// include whatever argument tells the client to report on that descriptor.
//
// The standard streams are plain pipes held open by the harness rather than
// exec-managed pipes, so that they only reach EOF once every process holding
// them has let go; that is what makes them usable as an inheritance probe.
func LaunchServer(argv []string, logger logging.Logger) (*ServerProcess, error) {
	if logger == nil {
		logger = logging.NullLogger()
	}

	var childFiles []*os.File
	closeAll := func(files ...*os.File) {
		for _, f := range files {
			f.Close()
		}
	}

	replyRead, replyWrite, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	stdinRead, stdinWrite, err := os.Pipe()
	if err != nil {
		closeAll(replyRead, replyWrite)
		return nil, err
	}
	stdoutRead, stdoutWrite, err := os.Pipe()
	if err != nil {
		closeAll(replyRead, replyWrite, stdinRead, stdinWrite)
		return nil, err
	}
	stderrRead, stderrWrite, err := os.Pipe()
	if err != nil {
		closeAll(replyRead, replyWrite, stdinRead, stdinWrite, stdoutRead, stdoutWrite)
		return nil, err
	}
	childFiles = []*os.File{stdinRead, stdoutWrite, stderrWrite, replyWrite}

	logger.Printf("launching server: %s", DescribeCommand(argv))
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = stdinRead
	cmd.Stdout = stdoutWrite
	cmd.Stderr = stderrWrite
	cmd.ExtraFiles = []*os.File{replyWrite}

	if err := cmd.Start(); err != nil {
		closeAll(replyRead, stdinWrite, stdoutRead, stderrRead)
		closeAll(childFiles...)
		return nil, err
	}
	// The child holds its own copies of these now.
	closeAll(childFiles...)

	p := &ServerProcess{
		cmd:         cmd,
		logger:      logger,
		replyRead:   replyRead,
		stdin:       stdinWrite,
		stdoutEOFCh: make(chan struct{}),
		stderrEOFCh: make(chan struct{}),
		readyCh:     make(chan error, 1),
	}
	go watchForEOF(stdoutRead, p.stdoutEOFCh)
	go watchForEOF(stderrRead, p.stderrEOFCh)
	go p.readReadinessReport()
	return p, nil
}

// watchForEOF drains a redirected stream until every process holding its write
// end has exited or closed it.
func watchForEOF(stream *os.File, eofCh chan<- struct{}) {
	defer stream.Close()
	_, _ = io.Copy(io.Discard, stream)
	close(eofCh)
}

func (p *ServerProcess) readReadinessReport() {
	defer p.replyRead.Close()
	buf := make([]byte, 64)
	n, err := p.replyRead.Read(buf)
	if err != nil {
		p.readyCh <- fmt.Errorf("readiness pipe closed without a report: %v", err)
		return
	}
	if got := string(buf[:n]); got != readyMessage {
		p.readyCh <- fmt.Errorf("unexpected readiness report %q", got)
		return
	}
	p.logger.Printf("server reported ready")
	p.readyCh <- nil
}

// AwaitReady blocks until the launched process reports "OK\n" on the reply
// descriptor.
func (p *ServerProcess) AwaitReady(timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case err := <-p.readyCh:
		return err
	case <-deadline.C:
		return fmt.Errorf("server did not report readiness within %s", timeout)
	}
}

// WaitLauncher waits for the directly-launched process to exit. In
// server-spawning mode the launcher exits once the background server is up.
func (p *ServerProcess) WaitLauncher() error {
	return p.cmd.Wait()
}

// VerifyStdioDetached checks that the spawned server did not inherit the
// launcher's standard streams. Call it after WaitLauncher: at that point a
// write to the redirected stdin must fail, and the redirected stdout/stderr
// must reach EOF, unless some surviving process is still holding them open.
func (p *ServerProcess) VerifyStdioDetached(timeout time.Duration) error {
	if _, err := p.stdin.Write([]byte("x")); err == nil {
		return errors.New("stdin is still open; the spawned server inherited it")
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case <-p.stdoutEOFCh:
	case <-deadline.C:
		return errors.New("stdout was not closed; the spawned server inherited it")
	}
	select {
	case <-p.stderrEOFCh:
	case <-deadline.C:
		return errors.New("stderr was not closed; the spawned server inherited it")
	}
	return nil
}

// Close releases the harness-side pipe ends. It does not terminate the spawned
// server; tests that start one are responsible for shutting it down through
// the client's own command for that.
func (p *ServerProcess) Close() {
	p.stdin.Close()
}
