package bridgetests

import (
	"github.com/devicebridge/transport-contract-tests/client"
	"github.com/devicebridge/transport-contract-tests/testframework"
)

func RunTestSuite(
	runner *client.Runner,
	filter testframework.Filter,
	testLogger testframework.TestLogger,
) testframework.Results {
	return testframework.Run(filter, testLogger, func(c *testframework.Context) {
		t := newTestScope(c, runner)

		t.Run("connection", DoConnectionTests)
		t.Run("emulator console", DoEmulatorConsoleTests)
		t.Run("server process", DoServerProcessTests)
	})
}
