package main

import (
	"fmt"
	"log"
	"os"

	"github.com/devicebridge/transport-contract-tests/bridgetests"
	"github.com/devicebridge/transport-contract-tests/client"
	"github.com/devicebridge/transport-contract-tests/logging"
	"github.com/devicebridge/transport-contract-tests/testframework"
)

func main() {
	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}

	mainDebugLogger := logging.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	runner := client.NewRunner(params.clientCommand, mainDebugLogger)

	fmt.Printf("Testing client: %s\n", client.DescribeCommand(params.clientCommand))
	fmt.Println()
	testframework.PrintFilterDescription(params.filters)

	fmt.Println("Running test suite")

	testLogger := ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}

	results := bridgetests.RunTestSuite(runner, params.filters.AsFilter, &testLogger)

	fmt.Println()
	testframework.PrintResults(results)
	if !results.OK() {
		os.Exit(1)
	}
}
