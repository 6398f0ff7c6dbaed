package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/k0kubun/pp/v3"

	"github.com/Digithought/quereus-sub006/catalog"
	"github.com/Digithought/quereus-sub006/engine"
	"github.com/Digithought/quereus-sub006/plan"
)

// repl is quereusql's "database.eval" REPL-lite: since spec.md §1 excludes
// a SQL lexer/parser from this port, there is no query text to read —
// commands instead name a table directly and quereusql builds the
// plan.Retrieve tree itself, the same few lines engine's own tests use
// (plan.NewAllocator + plan.NewRetrieve + Database.Prepare). Table lookup
// always goes through db.Catalog directly, so "tables"/"scan"/"explain" see
// every table registered so far, not just the ones --schema loaded at startup.
type repl struct {
	db    *engine.Database
	out   io.Writer
	color bool
}

func newREPL(db *engine.Database, loaded []*catalog.TableSchema, out io.Writer, color bool) *repl {
	return &repl{db: db, out: out, color: color}
}

// run reads commands from in until EOF or "quit"/"exit".
func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "quereusql> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "help":
			r.printHelp()
		case "tables":
			r.listTables()
		case "scan":
			r.handle(r.scan(ctx, fields))
		case "explain":
			r.handle(r.explain(fields))
		default:
			fmt.Fprintf(r.out, "unknown command %q (try: help)\n", fields[0])
		}
	}
}

func (r *repl) handle(err error) {
	if err == nil {
		return
	}
	if r.color {
		fmt.Fprintf(r.out, "\x1b[31merror: %v\x1b[0m\n", err)
	} else {
		fmt.Fprintf(r.out, "error: %v\n", err)
	}
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out, "commands: tables | scan <schema> <table> | explain <schema> <table> | quit")
}

func (r *repl) listTables() {
	for _, key := range r.db.Catalog.TableNames() {
		fmt.Fprintln(r.out, key)
	}
}

// buildRetrieve constructs a full-table-scan plan.Retrieve over every
// column t declares, the shape engine's own tests build by hand.
func buildRetrieve(t *catalog.TableSchema) (*plan.Retrieve, *plan.Allocator) {
	alloc := plan.NewAllocator()
	cols := make([]plan.AttrID, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = alloc.Alloc(c.Name)
	}
	return plan.NewRetrieve(t.Name, t.SchemaName, cols, nil), alloc
}

func (r *repl) lookupTable(fields []string) (*catalog.TableSchema, error) {
	if len(fields) != 3 {
		return nil, fmt.Errorf("usage: %s <schema> <table>", fields[0])
	}
	return r.db.Catalog.LookupTable(fields[1], fields[2])
}

func (r *repl) scan(ctx context.Context, fields []string) error {
	t, err := r.lookupTable(fields)
	if err != nil {
		return err
	}
	root, alloc := buildRetrieve(t)
	stmt, err := r.db.Prepare(root, alloc, nil)
	if err != nil {
		return err
	}
	defer stmt.Finalize()

	rows, err := stmt.All(ctx, nil)
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Fprintln(r.out, pp.Sprint(row))
	}
	fmt.Fprintf(r.out, "(%d rows)\n", len(rows))
	return nil
}

func (r *repl) explain(fields []string) error {
	t, err := r.lookupTable(fields)
	if err != nil {
		return err
	}
	root, alloc := buildRetrieve(t)
	stmt, err := r.db.Prepare(root, alloc, nil)
	if err != nil {
		return err
	}
	defer stmt.Finalize()
	fmt.Fprintln(r.out, stmt.Explain())
	return nil
}
