package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
)

// cliOptions is quereusql's flag set, grounded on cmd/psqldef's parseOptions
// (jessevdk/go-flags struct-tag style) rather than the legacy urfave/cli
// used by cmd/mysqldef's cli.go — quereusql has no per-dialect adapter to
// pick, so there is exactly one flag set, not one per cmd/*def binary.
type cliOptions struct {
	ConfigFile string `short:"c" long:"config" description:"Engine configuration YAML file" value-name:"path"`
	SchemaFile string `short:"s" long:"schema" description:"Table schema YAML file to load at startup" value-name:"path"`
	Trace      bool   `long:"trace" description:"Print instruction trace records to stderr while running"`
	Metrics    bool   `long:"metrics" description:"Register Prometheus metrics for traced instructions (implies --trace)"`
	Spans      bool   `long:"spans" description:"Emit a Jaeger span per instruction via opentracing's global tracer (implies --trace)"`
	Help       bool   `long:"help" description:"Show this help"`
	Version    bool   `long:"version" description:"Show this version"`
}

var version = "0.0.1"

// parseOptions parses args the same way cmd/psqldef.parseOptions does:
// flags.NewParser + WriteHelp/os.Exit on --help/--version, a fatal message
// on a malformed flag set.
func parseOptions(args []string) *cliOptions {
	var opts cliOptions
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[option...]"
	if _, err := parser.ParseArgs(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}
	if opts.Metrics {
		opts.Trace = true
	}
	if opts.Spans {
		opts.Trace = true
	}
	return &opts
}
