package observability

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/soundloom/companion-bot/internal/pkg/envutil"
	"github.com/soundloom/companion-bot/internal/platform/logger"
)

type OtelConfig struct {
	ServiceName string
	Environment string
}

// InitOTel wires tracing when OTEL_ENABLED is set; the returned shutdown is
// nil when tracing is off. Exporter init failures degrade to no exporter
// rather than blocking startup.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	if !envutil.Bool("OTEL_ENABLED", false) {
		return nil
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "companion-bot"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
		),
	)
	if err != nil {
		log.Warn("otel resource init failed (continuing)", "error", err)
	}

	exporter, expErr := buildTraceExporter(ctx)
	if expErr != nil {
		log.Warn("otel exporter init failed (continuing)", "error", expErr)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("otel tracing initialized", "service", serviceName)
	return tp.Shutdown
}

func buildTraceExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	endpoint := envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
}
