package trace

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/runtime"
)

func TestSinkWithNoBackendsDoesNotPanic(t *testing.T) {
	sink := NewSink(Options{})
	fn := sink.Sink()
	assert.NotPanics(t, func() {
		fn(runtime.TraceRecord{Operation: "scan", RowCount: 3})
	})
	sink.Close()
}

func TestSinkMetricsRegisterOnceAcrossMultipleSinks(t *testing.T) {
	assert.NotPanics(t, func() {
		NewSink(Options{Metrics: true})
		NewSink(Options{Metrics: true})
	})
}

func TestSinkRecordsErrorKind(t *testing.T) {
	sink := NewSink(Options{Metrics: true})
	fn := sink.Sink()
	assert.NotPanics(t, func() {
		fn(runtime.TraceRecord{Operation: "scan", Err: errs.New(errs.KindVirtualTable, "boom")})
	})
}

func TestErrKindFallsBackToUnknownForPlainError(t *testing.T) {
	assert.Equal(t, "unknown", errKind(errors.New("plain")))
}

func TestSinkSpansInstallsGlobalTracerAndEmitsChildSpans(t *testing.T) {
	sink := NewSink(Options{Spans: true, ServiceName: "trace-test"})
	fn := sink.Sink()
	assert.NotPanics(t, func() {
		fn(runtime.TraceRecord{Operation: "scan", RowCount: 1})
	})
	sink.Close()
}

func TestSinkSpansTracerInstalledOnceAcrossMultipleSinks(t *testing.T) {
	assert.NotPanics(t, func() {
		NewSink(Options{Spans: true})
		NewSink(Options{Spans: true})
	})
}
