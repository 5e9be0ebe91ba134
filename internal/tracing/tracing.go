package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"resume-pricing-api/internal/models"
)

// DefaultServiceName is reported when Config.ServiceName is empty.
const DefaultServiceName = "resume-pricing-api"

// Config holds tracing configuration.
type Config struct {
	Enabled     bool
	Endpoint    string // Jaeger collector, e.g. "http://localhost:14268/api/traces"
	ServiceName string
	Environment string
	Version     string
	// SampleRatio is the share of root spans kept; 0 or >= 1 keeps all.
	SampleRatio float64
}

// Tracer starts spans for the pricing service.
type Tracer struct {
	tracer   trace.Tracer
	provider *tracesdk.TracerProvider // nil when tracing is disabled
}

var (
	mu     sync.RWMutex
	global *Tracer
)

func noopTracer() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer(DefaultServiceName)}
}

// InitTracing installs the process-wide tracer. With tracing disabled it
// installs a tracer whose spans are never recorded or exported.
func InitTracing(cfg Config) (*Tracer, error) {
	if !cfg.Enabled {
		return install(noopTracer()), nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(Sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return install(&Tracer{tracer: tp.Tracer(cfg.ServiceName), provider: tp}), nil
}

// Sampler keeps every span for ratios outside (0, 1) and otherwise samples
// root spans by trace ID, following the parent's decision for child spans.
func Sampler(ratio float64) tracesdk.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return tracesdk.AlwaysSample()
	}
	return tracesdk.ParentBased(tracesdk.TraceIDRatioBased(ratio))
}

func install(t *Tracer) *Tracer {
	mu.Lock()
	defer mu.Unlock()
	global = t
	return t
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Recording reports whether spans from t are exported.
func (t *Tracer) Recording() bool {
	return t.provider != nil
}

// GetTracer returns the tracer installed by InitTracing, or a no-op tracer
// before initialization.
func GetTracer() *Tracer {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return noopTracer()
	}
	return global
}

// StateAttributes describes a resolved pricing state on a span.
func StateAttributes(state *models.PricingState) []attribute.KeyValue {
	if state == nil {
		return nil
	}
	attrs := []attribute.KeyValue{
		attribute.String("pricing.currency", string(state.Currency)),
		attribute.String("pricing.status", string(state.Status)),
		attribute.Bool("pricing.offer_active", state.ActiveOffer != nil),
	}
	if state.ActiveOffer != nil && state.ActiveOffer.ID != "" {
		attrs = append(attrs, attribute.String("pricing.offer_id", state.ActiveOffer.ID))
	}
	return attrs
}

// Shutdown flushes pending spans and stops the installed provider.
func Shutdown(ctx context.Context) error {
	t := GetTracer()
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
