package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/dray-io/clusterroute/internal/cluster"
	serverversion "github.com/dray-io/clusterroute/internal/version"
)

// errUsage reports a bad command line whose details were already printed.
var errUsage = errors.New("usage")

func newFlagSet(name, usage string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fmt.Fprintln(stderr, "\nOptions:")
		fs.PrintDefaults()
	}
	return fs
}

func runProcedure(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("procedure", `Usage: routectl procedure --agent AGENT [options]

Print the discovery procedure call a server reporting AGENT would receive.`, stderr)
	agent := fs.String("agent", "", "Server agent string (e.g., Neo4j/3.2.1)")
	contextQuery := fs.String("context", "", "Routing context as key=value pairs joined by &")
	uri := fs.String("uri", "", "Routing URI whose query string is the routing context")
	minV2 := fs.String("min-v2-version", "", "Override the first version using the V2 procedure")

	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *agent == "" {
		fs.Usage()
		return errUsage
	}
	if *contextQuery != "" && *uri != "" {
		return errors.New("--context and --uri are mutually exclusive")
	}

	var rc cluster.RoutingContext
	var err error
	switch {
	case *uri != "":
		rc, err = cluster.ParseRoutingContext(*uri)
	case *contextQuery != "":
		rc, err = cluster.ParseRoutingContextQuery(*contextQuery)
	}
	if err != nil {
		return err
	}

	var opts []cluster.RunnerOption
	if *minV2 != "" {
		threshold, err := serverversion.ParseNumber(*minV2)
		if err != nil {
			return err
		}
		opts = append(opts, cluster.WithV2Threshold(threshold))
	}

	v := serverversion.Parse(*agent)
	call := cluster.NewProcedureRunner(rc, opts...).ProcedureFor(v)

	fmt.Fprintf(stdout, "server:    %s\n", v)
	fmt.Fprintf(stdout, "shape:     %s\n", call.Shape())
	fmt.Fprintf(stdout, "procedure: %s\n", call)
	return nil
}
