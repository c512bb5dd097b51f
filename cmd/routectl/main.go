package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// Handle version flag before subcommand parsing
	if len(args) > 0 && (args[0] == "--version" || args[0] == "-version") {
		fmt.Fprintf(stdout, "routectl version %s (built %s)\n", version, buildTime)
		return 0
	}

	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	var err error
	switch args[0] {
	case "procedure":
		err = runProcedure(args[1:], stdout, stderr)
	case "discover":
		err = runDiscover(args[1:], stdout, stderr)
	case "watch":
		err = runWatch(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "routectl version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 1
	}

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: routectl <command> [options]

Commands:
  procedure   Print the discovery procedure call for a server version
  discover    Discover a routing table from a recorded server response
  watch       Keep a routing table fresh and serve discovery metrics
  version     Print version information

Run 'routectl <command> --help' for more information on a command.`)
}
