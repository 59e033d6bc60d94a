package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger  *slog.Logger
	level   *slog.LevelVar
	console io.Writer

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{
		level:   new(slog.LevelVar),
		console: os.Stdout,
	}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HandlerOptions returns options sharing the manager's level with RFC3339
// UTC timestamps.
func (m *SlogManager) HandlerOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: m.level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}
}

// Setup initializes the logging system. Records go to file when given,
// otherwise to the console. If provider is nil, OTel logging is disabled.
// Extra handlers (GELF, tests) receive every record as well.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, extra ...slog.Handler) {
	m.level.Set(parseLevel(level))
	m.logProvider = provider

	handlerOpts := m.HandlerOptions()

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(m.console, handlerOpts))
	}

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler("arsession", otelslog.WithLoggerProvider(provider)))
	}
	handlers = append(handlers, extra...)

	m.logger = slog.New(NewContextHandler(NewMultiHandler(handlers...), nil))
	m.logger.Info("Logging initialized", "level", m.level.Level().String())
}

// SetLevel changes the level of every handler built from HandlerOptions.
func (m *SlogManager) SetLevel(level string) {
	m.level.Set(parseLevel(level))
}

// Level returns the current minimum level.
func (m *SlogManager) Level() slog.Level {
	return m.level.Level()
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// WithContext returns a logger whose records carry the attributes produced
// by provider at the time each record is handled.
func (m *SlogManager) WithContext(provider ContextProvider) *slog.Logger {
	return slog.New(NewContextHandler(m.Logger().Handler(), provider))
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
