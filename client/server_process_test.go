package client

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testReadyTimeout = time.Second * 5

func TestLaunchServerReadinessReport(t *testing.T) {
	argv := []string{"/bin/sh", "-c", fmt.Sprintf("echo OK >&%d", ReplyFD)}
	p, err := LaunchServer(argv, nil)
	require.NoError(t, err)

	require.NoError(t, p.AwaitReady(testReadyTimeout))
	require.NoError(t, p.WaitLauncher())
}

func TestLaunchServerReadinessPipeClosedWithoutReport(t *testing.T) {
	p, err := LaunchServer([]string{"/bin/sh", "-c", "true"}, nil)
	require.NoError(t, err)

	err = p.AwaitReady(testReadyTimeout)
	require.Error(t, err)
	require.NoError(t, p.WaitLauncher())
}

func TestLaunchServerUnexpectedReadinessReport(t *testing.T) {
	argv := []string{"/bin/sh", "-c", fmt.Sprintf("echo NOPE >&%d", ReplyFD)}
	p, err := LaunchServer(argv, nil)
	require.NoError(t, err)

	err = p.AwaitReady(testReadyTimeout)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOPE")
	require.NoError(t, p.WaitLauncher())
}

func TestVerifyStdioDetached(t *testing.T) {
	// The launcher exits without spawning anything that holds its streams, so
	// the redirected stdio should be fully released.
	p, err := LaunchServer([]string{"/bin/sh", "-c", "true"}, nil)
	require.NoError(t, err)

	require.NoError(t, p.WaitLauncher())
	require.NoError(t, p.VerifyStdioDetached(testReadyTimeout))
}
