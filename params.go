package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/devicebridge/transport-contract-tests/testframework"
)

type commandParams struct {
	clientCommand []string
	filters       testframework.RegexFilters
	debug         bool
	debugAll      bool
}

func (c *commandParams) Read(args []string) bool {
	var clientCommand string

	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&clientCommand, "client", "", "command line of the client binary under test")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if clientCommand == "" {
		fmt.Fprintln(os.Stderr, "-client is required")
		fs.Usage()
		return false
	}
	c.clientCommand = strings.Fields(clientCommand)
	return true
}
