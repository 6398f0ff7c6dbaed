// Command quereusql is a small embeddable-engine host exercising
// engine.Database end to end, grounded on cmd/mysqldef/cmd/psqldef's
// parse-flags-then-run main() shape. It is out of CORE scope per spec.md
// §1 (no SQL lexer/parser ships with this repo) but kept as the ambient
// "there must be a runnable entrypoint" every cmd/*def binary in the
// teacher provides.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Digithought/quereus-sub006/catalog"
	"github.com/Digithought/quereus-sub006/config"
	"github.com/Digithought/quereus-sub006/engine"
	"github.com/Digithought/quereus-sub006/trace"
)

func main() {
	opts := parseOptions(os.Args[1:])

	cfg := config.Default()
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if opts.Trace {
		cfg.RuntimeMetrics = true
	}

	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	db := engine.New(cfg, logger)

	var loaded []*catalog.TableSchema
	if opts.SchemaFile != "" {
		tables, err := loadSchemaDocument(opts.SchemaFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		ctx := context.Background()
		for _, t := range tables {
			if err := db.CreateTable(ctx, t); err != nil {
				fmt.Fprintf(os.Stderr, "quereusql: creating table %s.%s: %v\n", t.SchemaName, t.Name, err)
				os.Exit(1)
			}
			loaded = append(loaded, t)
		}
	}

	var sink *trace.Sink
	if opts.Trace {
		sink = trace.NewSink(trace.Options{Logger: logger, Metrics: opts.Metrics, Spans: opts.Spans})
		db.Trace = sink.Sink()
		defer sink.Close()
		if opts.Spans {
			defer trace.CloseGlobalTracer()
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	color := term.IsTerminal(int(os.Stdout.Fd()))
	r := newREPL(db, loaded, os.Stdout, color)
	if err := r.run(ctx, os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
