package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/hostsync/pkg/engine"
)

// Telemetry bundles the logger, tracer and metrics of one invocation.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown writes the metrics textfile and flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	metricsErr := t.Metrics.WriteTextfile()
	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}
	if err := t.Logger.Close(); err != nil {
		return err
	}
	return metricsErr
}

// InstrumentedContext carries a span, a logger and a timer for one operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
// Without telemetry in ctx only the timer is active.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	fields := map[string]interface{}{"operation": operation}
	for _, a := range attrs {
		fields[string(a.Key)] = a.Value.Emit()
	}
	if id := TraceID(spanCtx); id != "" {
		fields["trace_id"] = id
	}
	logger := tel.Logger.WithFields(fields)

	return &InstrumentedContext{
		Ctx:    logger.WithContext(spanCtx),
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	event := ic.Logger.zlog.Debug()
	if err != nil {
		event = event.Err(err)
	}
	event.Dur("duration", ic.Timer.Duration()).Msg("Operation finished")

	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// Observer reports engine operations as spans and metrics.
type Observer struct {
	tel *Telemetry

	// OnFinished, when set, is called after every operation, e.g. to print progress.
	OnFinished func(engine.OperationResult)
}

var _ engine.Observer = (*Observer)(nil)

// NewObserver returns an engine observer backed by t. t may be nil.
func NewObserver(t *Telemetry) *Observer {
	return &Observer{tel: t}
}

// OperationStarted opens a span for op.
func (o *Observer) OperationStarted(ctx context.Context, op engine.Operation) context.Context {
	if o.tel == nil {
		return ctx
	}
	ctx, _ = o.tel.Tracer.StartOperationSpan(ctx, op)
	return ctx
}

// OperationFinished closes the span opened by OperationStarted and counts the result.
func (o *Observer) OperationFinished(ctx context.Context, result engine.OperationResult) {
	if o.tel != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(AttrStatus.String(string(result.Status)))
		if result.Error != nil {
			RecordError(span, result.Error)
		} else if result.Status == engine.OperationStatusSucceeded {
			RecordSuccess(span)
		}
		span.End()
		o.tel.Metrics.RecordOperation(result)
	}
	if o.OnFinished != nil {
		o.OnFinished(result)
	}
}
