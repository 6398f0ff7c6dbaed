package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOptionsDefaults(t *testing.T) {
	opts := parseOptions(nil)
	assert.Empty(t, opts.ConfigFile)
	assert.Empty(t, opts.SchemaFile)
	assert.False(t, opts.Trace)
}

func TestParseOptionsMetricsImpliesTrace(t *testing.T) {
	opts := parseOptions([]string{"--metrics"})
	assert.True(t, opts.Metrics)
	assert.True(t, opts.Trace)
}

func TestParseOptionsSpansImpliesTrace(t *testing.T) {
	opts := parseOptions([]string{"--spans"})
	assert.True(t, opts.Spans)
	assert.True(t, opts.Trace)
}

func TestParseOptionsReadsSchemaAndConfigFlags(t *testing.T) {
	opts := parseOptions([]string{"--schema", "s.yaml", "--config", "c.yaml"})
	assert.Equal(t, "s.yaml", opts.SchemaFile)
	assert.Equal(t, "c.yaml", opts.ConfigFile)
}
