package bridgetests

import (
	"fmt"

	"github.com/devicebridge/transport-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
)

func DoConnectionTests(t *T) {
	t.Run("connects over IPv4 and IPv6", func(t *T) {
		for _, network := range []string{"tcp4", "tcp6"} {
			port, ok := t.TryStartFakeDaemon(servicedef.DaemonParams{Network: network})
			if !ok {
				t.Debug("%s not available, skipping", network)
				continue
			}
			serial := fmt.Sprintf("localhost:%d", port)
			output := t.RunClient("connect", serial)
			assert.Equal(t, "connected to "+serial, output)
			t.DisconnectQuietly(serial)
		}
	})

	t.Run("repeat connect to a connected device", func(t *T) {
		port := t.StartFakeDaemon(servicedef.DaemonParams{})
		serial := fmt.Sprintf("localhost:%d", port)
		output := t.RunClient("connect", serial)
		assert.Equal(t, "connected to "+serial, output)
		defer t.DisconnectQuietly(serial)

		output = t.RunClient("connect", serial)
		assert.Equal(t, "already connected to "+serial, output)
	})

	t.Run("rejected stream open is reported as closed", func(t *T) {
		port := t.StartFakeDaemon(servicedef.DaemonParams{})
		serial := fmt.Sprintf("localhost:%d", port)
		t.RunClient("connect", serial)
		defer t.DisconnectQuietly(serial)

		// The fake daemon accepts the handshake but closes any connection that
		// tries to open an application stream.
		output := t.RunClientExpectingError("-s", serial, "shell", "true")
		assert.Equal(t, "error: closed", output)
	})

	t.Run("a kicked device reconnects until explicitly disconnected", func(t *T) {
		port := t.StartFakeDaemon(servicedef.DaemonParams{})
		serial := fmt.Sprintf("localhost:%d", port)
		t.RunClient("connect", serial)
		defer t.DisconnectQuietly(serial)

		output := t.RunClient("-s", serial, "get-state")
		assert.Equal(t, "device", output)

		// This makes the fake daemon drop the connection.
		output = t.RunClientExpectingError("-s", serial, "shell", "true")
		assert.Equal(t, "error: closed", output)

		t.RunClient("-s", serial, "wait-for-device")

		output = t.RunClient("-s", serial, "get-state")
		assert.Equal(t, "device", output)

		// Once explicitly disconnected, the device must not come back.
		output = t.RunClient("disconnect", serial)
		assert.Equal(t, "disconnected "+serial, output)

		output = t.RunClientExpectingError("-s", serial, "get-state")
		assert.Equal(t, fmt.Sprintf("error: device '%s' not found", serial), output)
	})
}
