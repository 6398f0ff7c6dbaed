// Package trace turns runtime.TraceRecord events into the host-visible
// observability surface spec §4.5/§6 describes as optional: structured
// logging, Prometheus metrics, and Jaeger spans. runtime/ itself only
// defines the TraceRecord shape and TraceSink func type and never imports
// this package (the comment on runtime.TraceRecord is explicit that
// timestamp/duration belong to the sink, not the emitter) — a host wires
// one of these sinks into ExecContext.Trace when runtime_metrics is set in
// config.Options.
//
// Grounded on the teacher's database/logger.go Logger interface
// (Print/Printf/Println, StdoutLogger/NullLogger swap), generalized here
// into structured zap fields the way the rest of the pack's larger engines
// do once there is more than one failure/trace class to distinguish.
package trace

import (
	"io"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"go.uber.org/zap"

	"github.com/Digithought/quereus-sub006/errs"
	"github.com/Digithought/quereus-sub006/runtime"
)

var (
	instructionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "instruction_duration_seconds",
		Help: "Duration of a single scheduled instruction.",
	}, []string{"operation"})

	instructionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "instruction_errors_total",
		Help: "Count of instructions that returned an error, by operation and error kind.",
	}, []string{"operation", "kind"})

	metricsRegistered bool
)

// registerMetrics registers the package's collectors with
// prometheus.DefaultRegisterer exactly once; a second Sink built in the
// same process (e.g. by tests) must not panic on AlreadyRegisteredError.
func registerMetrics() {
	if metricsRegistered {
		return
	}
	metricsRegistered = true
	prometheus.MustRegister(instructionDuration, instructionErrors)
}

// Options selects which observability backends a Sink wires in, mirroring
// config.Options' runtime_metrics/trace_plan_stack flags without this
// package importing config (trace must stay usable standalone).
type Options struct {
	Logger        *zap.Logger // nil disables structured logging
	Metrics       bool        // enables the Prometheus histogram/counter
	Spans         bool        // enables Jaeger span emission via opentracing's global tracer
	ServiceName   string      // Jaeger service name; defaults to "quereusql"
	RootOperation string      // span operation name for the statement root; defaults to "statement"
}

var (
	tracerOnce   sync.Once
	tracerCloser io.Closer
)

// ensureGlobalTracer builds a const-sampled, process-wide Jaeger tracer and
// installs it via opentracing.SetGlobalTracer the first time any Sink
// enables Spans; later Sinks (and later calls from tests) reuse it, since
// opentracing only has one global tracer per process.
func ensureGlobalTracer(serviceName string) {
	tracerOnce.Do(func() {
		if serviceName == "" {
			serviceName = "quereusql"
		}
		cfg := jaegercfg.Configuration{
			ServiceName: serviceName,
			Sampler:     &jaegercfg.SamplerConfig{Type: jaeger.SamplerTypeConst, Param: 1},
			Reporter:    &jaegercfg.ReporterConfig{LogSpans: false},
		}
		tracer, closer, err := cfg.NewTracer(jaegercfg.Logger(jaeger.NullLogger))
		if err != nil {
			// No spans is better than a panicking statement executor; the
			// Sink simply won't see a real tracer installed.
			return
		}
		opentracing.SetGlobalTracer(tracer)
		tracerCloser = closer
	})
}

// CloseGlobalTracer flushes and closes the process-wide Jaeger tracer, if
// one was ever installed. A host calls this once at shutdown.
func CloseGlobalTracer() error {
	if tracerCloser == nil {
		return nil
	}
	return tracerCloser.Close()
}

// Sink tracks wall-clock state (last record's timestamp) across calls to
// produce a duration per instruction, since runtime.TraceRecord itself
// carries none.
type Sink struct {
	opts      Options
	span      opentracing.Span
	lastStamp time.Time
}

// NewSink builds a runtime.TraceSink backed by the selected observability
// options. Call Close when the statement finishes to finish any open span.
func NewSink(opts Options) *Sink {
	if opts.Metrics {
		registerMetrics()
	}
	s := &Sink{opts: opts, lastStamp: time.Now()}
	if opts.Spans {
		ensureGlobalTracer(opts.ServiceName)
		name := opts.RootOperation
		if name == "" {
			name = "statement"
		}
		s.span = opentracing.StartSpan(name)
	}
	return s
}

// Sink returns the runtime.TraceSink function to assign to
// ExecContext.Trace.
func (s *Sink) Sink() runtime.TraceSink {
	return func(rec runtime.TraceRecord) {
		now := time.Now()
		duration := now.Sub(s.lastStamp)
		s.lastStamp = now

		if s.opts.Logger != nil {
			fields := []zap.Field{
				zap.String("operation", rec.Operation),
				zap.Int64("row_count", rec.RowCount),
				zap.Duration("duration", duration),
			}
			if rec.Err != nil {
				s.opts.Logger.Warn("instruction failed", append(fields, zap.Error(rec.Err))...)
			} else {
				s.opts.Logger.Debug("instruction executed", fields...)
			}
		}

		if s.opts.Metrics {
			instructionDuration.WithLabelValues(rec.Operation).Observe(duration.Seconds())
			if rec.Err != nil {
				instructionErrors.WithLabelValues(rec.Operation, errKind(rec.Err)).Inc()
			}
		}

		if s.span != nil {
			child := opentracing.StartSpan(rec.Operation, opentracing.ChildOf(s.span.Context()))
			child.SetTag("row_count", rec.RowCount)
			if rec.Err != nil {
				child.SetTag("error", true)
			}
			child.Finish()
		}
	}
}

// Close finishes the root span, if one was opened.
func (s *Sink) Close() {
	if s.span != nil {
		s.span.Finish()
	}
}

func errKind(err error) string {
	var e *errs.Error
	if ae, ok := err.(*errs.Error); ok {
		e = ae
	}
	if e == nil {
		return "unknown"
	}
	return e.Kind.String()
}
