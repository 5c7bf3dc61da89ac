package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// StandardLogger carries process lifecycle events. Engine services log
// through logrus; this logger is what reaches the OTLP pipeline.
type StandardLogger struct {
	logger *slog.Logger
}

// NewStandardLogger creates a JSON logger on stdout.
func NewStandardLogger(logLevel string, environment string) *StandardLogger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: getSlogLevel(logLevel),
	})).With("environment", environment)

	return &StandardLogger{logger: logger}
}

// NewStandardOTLPLogger creates a logger that exports through OTLP, falling back
// to stdout JSON when the exporter cannot be built.
func NewStandardOTLPLogger(config OTLPConfig) (*StandardLogger, *OTLPLogger) {
	otlpLogger, err := NewOTLPLogger(config)
	if err != nil {
		fallback := NewStandardLogger(config.LogLevel, config.Environment)
		fallback.Logger().Warn("OTLP logging unavailable, using stdout", "error", err.Error())
		return fallback, nil
	}
	return &StandardLogger{logger: otlpLogger.Logger()}, otlpLogger
}

// LogStartup records the listening port and build version.
func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.logger.Info("Application startup",
		"service", serviceName,
		"version", version,
		"port", port,
		"event", "startup",
	)
}

// LogShutdown records why the process is stopping.
func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.logger.Info("Application shutdown",
		"service", serviceName,
		"reason", reason,
		"event", "shutdown",
	)
}

// Logger returns the underlying *slog.Logger
func (l *StandardLogger) Logger() *slog.Logger {
	return l.logger
}

// NewLogrusLogger builds the logrus logger handed to engine services.
func NewLogrusLogger(level string, environment string) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(ParseLogrusLevel(level))
	if strings.EqualFold(environment, "development") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func getSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogrusLevel maps a config level name onto logrus, defaulting to info.
func ParseLogrusLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
