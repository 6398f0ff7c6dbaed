// Package config holds the engine-wide configuration options (spec §6) and
// their YAML loading, grounded on the teacher's database.Config/
// GeneratorConfig + ParseGeneratorConfig decode-with-KnownFields pattern
// (database/database.go). Unlike the teacher's CLI-oriented loader, errors
// are returned rather than passed to log.Fatal, since config is a library
// package here, not a command's flag-parsing step.
package config

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Digithought/quereus-sub006/errs"
)

// ColumnNullability controls whether a column declared without an explicit
// NOT NULL/NULL clause defaults to nullable or not (spec §6).
type ColumnNullability string

const (
	NullabilityStrict   ColumnNullability = "strict"
	NullabilityNullable ColumnNullability = "nullable"
)

// Options is the full set of configuration options enumerated in spec §6.
type Options struct {
	DefaultVTabModule        string            `yaml:"default_vtab_module"`
	DefaultVTabArgs          string            `yaml:"default_vtab_args"`
	DefaultColumnNullability ColumnNullability `yaml:"default_column_nullability"`
	RuntimeMetrics           bool              `yaml:"runtime_metrics"`
	TracePlanStack           bool              `yaml:"trace_plan_stack"`
	MaxRecursion             int               `yaml:"max_recursion"`
}

// Default returns the options a fresh engine.Database uses absent any
// explicit configuration: the memory module as default backing store,
// strict NOT NULL-by-default columns (matching SQL standard semantics over
// SQLite's permissive default), metrics/tracing off, and a conservative CTE
// recursion cap.
func Default() Options {
	return Options{
		DefaultVTabModule:        "memory",
		DefaultColumnNullability: NullabilityStrict,
		MaxRecursion:             1000,
	}
}

// Load reads and decodes options from a YAML file, rejecting unknown keys
// the same way the teacher's parseGeneratorConfigFromBytes does via
// dec.KnownFields(true) — a config typo should fail loudly, not silently no-op.
func Load(path string) (Options, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errs.Wrap(errs.KindMisuse, err, "reading config file %q", path)
	}
	return Parse(buf)
}

// Parse decodes options from an in-memory YAML document, layered over
// Default() so a partial document only overrides the fields it names.
func Parse(buf []byte) (Options, error) {
	opts := Default()
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return Options{}, errs.Wrap(errs.KindMisuse, err, "decoding config")
	}
	return opts, nil
}
