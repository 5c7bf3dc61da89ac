package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OTLPLogger provides OpenTelemetry logging capabilities
type OTLPLogger struct {
	logger   *slog.Logger
	provider *log.LoggerProvider
	shutdown func(context.Context) error
}

// OTLPConfig holds configuration for OpenTelemetry logging
type OTLPConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	LogLevel       string
}

// NewOTLPLogger creates a new OpenTelemetry logger
func NewOTLPLogger(config OTLPConfig) (*OTLPLogger, error) {
	if !config.Enabled {
		return &OTLPLogger{
			logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: getSlogLevel(config.LogLevel),
			})),
			shutdown: func(ctx context.Context) error { return nil },
		}, nil
	}

	ctx := context.Background()

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(endpoint),
		otlploghttp.WithURLPath("/v1/logs"),
		otlploghttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(exporter)),
		log.WithResource(res),
	)

	handler := NewOTLPHandler(provider.Logger(config.ServiceName), getSlogLevel(config.LogLevel))

	return &OTLPLogger{
		logger:   slog.New(handler),
		provider: provider,
		shutdown: provider.Shutdown,
	}, nil
}

// Shutdown flushes buffered records and stops the provider.
func (l *OTLPLogger) Shutdown(ctx context.Context) error {
	if l.shutdown != nil {
		return l.shutdown(ctx)
	}
	return nil
}

// Logger returns the underlying slog.Logger
func (l *OTLPLogger) Logger() *slog.Logger {
	return l.logger
}

// OTLPHandler implements slog.Handler by emitting OpenTelemetry log records.
type OTLPHandler struct {
	logger otellog.Logger
	level  slog.Level
	attrs  []otellog.KeyValue
	group  string
}

// NewOTLPHandler creates a new OTLPHandler emitting records at or above level.
func NewOTLPHandler(logger otellog.Logger, level slog.Level) *OTLPHandler {
	return &OTLPHandler{logger: logger, level: level}
}

// Enabled implements slog.Handler.Enabled
func (h *OTLPHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler.Handle
func (h *OTLPHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := make([]otellog.KeyValue, 0, len(h.attrs)+record.NumAttrs())
	attrs = append(attrs, h.attrs...)
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.convertAttr(a))
		return true
	})

	logRecord := otellog.Record{}
	logRecord.SetTimestamp(record.Time)
	logRecord.SetObservedTimestamp(time.Now())
	logRecord.SetSeverity(convertSlogLevelToSeverity(record.Level))
	logRecord.SetSeverityText(record.Level.String())
	logRecord.SetBody(otellog.StringValue(record.Message))
	logRecord.AddAttributes(attrs...)

	h.logger.Emit(ctx, logRecord)

	return nil
}

// WithAttrs implements slog.Handler.WithAttrs
func (h *OTLPHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]otellog.KeyValue, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, h.convertAttr(a))
	}
	return &next
}

// WithGroup implements slog.Handler.WithGroup
func (h *OTLPHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group != "" {
		next.group += "." + name
	} else {
		next.group = name
	}
	return &next
}

func (h *OTLPHandler) convertAttr(a slog.Attr) otellog.KeyValue {
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		return otellog.Bool(key, v.Bool())
	case slog.KindInt64:
		return otellog.Int64(key, v.Int64())
	case slog.KindFloat64:
		return otellog.Float64(key, v.Float64())
	default:
		return otellog.String(key, v.String())
	}
}

// convertSlogLevelToSeverity converts slog.Level to otellog.Severity
func convertSlogLevelToSeverity(level slog.Level) otellog.Severity {
	switch {
	case level >= slog.LevelError:
		return otellog.SeverityError
	case level >= slog.LevelWarn:
		return otellog.SeverityWarn
	case level >= slog.LevelInfo:
		return otellog.SeverityInfo
	default:
		return otellog.SeverityDebug
	}
}
