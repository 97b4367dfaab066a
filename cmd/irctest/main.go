// Command irctest runs a conformance battery against an IRC server.
//
// Usage:
//
//	irctest <command> [flags]
//
// Commands:
//
//	run      Run the built-in and YAML scenarios against a server
//	list     List the available scenarios
//	shell    Open an interactive line client to a server
//	log      View, summarize or export protocol capture files
//	mock     Serve the in-process mock server
//
// Examples:
//
//	# Run everything against a local server
//	irctest run --target 127.0.0.1:6667
//
//	# Run with a password and exact reply wording
//	irctest run --target irc.example.net:6697 --tls --pass secret --strict
//
//	# Run only some scenarios, with the live transcript
//	irctest run --target localhost --pattern "Modes:*" --verbose
//
//	# Find the server with mDNS and write JUnit XML
//	irctest run --discover --format junit > report.xml
//
//	# Capture the wire traffic and inspect it afterwards
//	irctest run --target localhost --protocol-log run.cbor
//	irctest log view --direction in run.cbor
package main

import (
	"fmt"
	"os"

	"github.com/ircconform/irctest-go/cmd/irctest/commands"
)

func main() {
	cmd := commands.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.GetExitCode(err))
	}
}
