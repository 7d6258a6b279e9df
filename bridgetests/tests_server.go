package bridgetests

import (
	"fmt"
	"strconv"

	"github.com/devicebridge/transport-contract-tests/client"

	"github.com/stretchr/testify/require"
)

// A non-default port so these tests do not collide with a server a developer
// may already be running.
const serverPort = 5038

func (t *T) killServerQuietly() {
	_, _ = t.runner.Run("-P", strconv.Itoa(serverPort), "kill-server")
}

func DoServerProcessTests(t *T) {
	t.Run("launcher reports readiness on the reply descriptor", func(t *T) {
		t.killServerQuietly()
		defer t.killServerQuietly()

		argv := append(t.ClientCommand(),
			"-L", fmt.Sprintf("tcp:localhost:%d", serverPort),
			"fork-server", "server",
			"--reply-fd", strconv.Itoa(client.ReplyFD))
		p, err := client.LaunchServer(argv, t.DebugLogger())
		require.NoError(t, err)

		require.NoError(t, p.AwaitReady(awaitReadyTimeout))

		t.killServerQuietly()
		_ = p.WaitLauncher()
	})

	t.Run("spawned server does not inherit standard streams", func(t *T) {
		t.killServerQuietly()
		defer t.killServerQuietly()

		argv := append(t.ClientCommand(), "-P", strconv.Itoa(serverPort), "start-server")
		p, err := client.LaunchServer(argv, t.DebugLogger())
		require.NoError(t, err)

		// Once the launcher has exited, any standard stream that is still open
		// must be open in the spawned server.
		require.NoError(t, p.WaitLauncher())
		require.NoError(t, p.VerifyStdioDetached(stdioCloseTimeout))
	})
}
