package bridgetests

import (
	"fmt"

	"github.com/devicebridge/transport-contract-tests/servicedef"

	"github.com/stretchr/testify/require"
)

func killScript(forcedReset bool) servicedef.ConsoleScript {
	return servicedef.ConsoleScript{
		Greeting:    "Android Console: type 'help' for a list of commands",
		Expect:      []string{"kill", "quit"},
		Reply:       "OK: killing emulator, bye bye",
		ForcedReset: forcedReset,
	}
}

func DoEmulatorConsoleTests(t *T) {
	t.Run("kill command with graceful console close", func(t *T) {
		console, port := t.StartConsoleStub(killScript(false))

		proc := t.StartClientCommand("-s", fmt.Sprintf("emulator-%d", port), "emu", "kill")

		require.NoError(t, console.Await(awaitScriptTimeout))
		_, err := proc.Wait()
		require.NoError(t, err)
	})

	t.Run("kill command tolerates forced console reset", func(t *T) {
		// The real emulator terminates by calling exit() without closing its
		// console socket, so the client sees a hard reset rather than an
		// orderly close, and must still report success.
		console, port := t.StartConsoleStub(killScript(true))

		proc := t.StartClientCommand("-s", fmt.Sprintf("emulator-%d", port), "emu", "kill")

		require.NoError(t, console.Await(awaitScriptTimeout))
		_, err := proc.Wait()
		require.NoError(t, err, "client should exit successfully despite the forced reset")
	})
}
