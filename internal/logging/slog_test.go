package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestSetup_FileOnly_NoConsole(t *testing.T) {
	var console, file bytes.Buffer
	m := NewSlogManager()
	m.console = &console

	m.Setup(&file, "info", nil)
	m.Logger().Info("hello file")

	assert.Contains(t, file.String(), "hello file")
	assert.Contains(t, file.String(), "Logging initialized")
	assert.Empty(t, console.String())
}

func TestSetup_NoFile_WritesToConsole(t *testing.T) {
	var console bytes.Buffer
	m := NewSlogManager()
	m.console = &console

	m.Setup(nil, "info", nil)
	m.Logger().Info("hello console")

	assert.Contains(t, console.String(), "hello console")
}

func TestSetup_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)

	m.Logger().Debug("should be filtered")
	m.Logger().Info("should appear")

	assert.NotContains(t, buf.String(), "should be filtered")
	assert.Contains(t, buf.String(), "should appear")
}

func TestSetLevel_AppliesToExistingLogger(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)
	logger := m.Logger()

	logger.Debug("hidden")
	m.SetLevel("debug")
	logger.Debug("now visible")

	assert.Equal(t, slog.LevelDebug, m.Level())
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "now visible")
}

func TestSetup_ExtraHandlers(t *testing.T) {
	var file, extra bytes.Buffer
	m := NewSlogManager()
	m.Setup(&file, "info", nil, slog.NewTextHandler(&extra, m.HandlerOptions()))

	m.Logger().Warn("both sinks")

	assert.Contains(t, file.String(), "both sinks")
	assert.Contains(t, extra.String(), "both sinks")
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := NewSlogManager()

	m.Setup(&buf1, "info", nil)
	m.Logger().Info("first")

	m.Setup(&buf2, "info", nil)
	m.Logger().Info("second")

	assert.Contains(t, buf1.String(), "first")
	assert.NotContains(t, buf1.String(), "second")
	assert.Contains(t, buf2.String(), "second")
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	m := NewSlogManager()
	assert.Equal(t, slog.Default(), m.Logger())
}

func TestWithContext_AddsLiveAttrs(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)

	state := "loading"
	logger := m.WithContext(func() []slog.Attr {
		return []slog.Attr{slog.String("state", state)}
	})

	logger.Info("one")
	state = "ready"
	logger.Info("two")

	out := buf.String()
	assert.Contains(t, out, "msg=one state=loading")
	assert.Contains(t, out, "msg=two state=ready")
}

func TestContextWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), nil)
	logger := slog.New(h)

	ctx := ContextWithAttrs(context.Background(), slog.String("session", "abc"))
	ctx = ContextWithAttrs(ctx, slog.Int("target", 2))
	logger.InfoContext(ctx, "tagged")
	logger.Info("untagged")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "session=abc target=2")
	assert.NotContains(t, string(lines[1]), "session=")
}

func TestContextHandler_WithGroupEmpty(t *testing.T) {
	h := NewContextHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), nil)
	assert.Same(t, h, h.WithGroup(""))
}

func TestFlush(t *testing.T) {
	m := NewSlogManager()
	assert.NoError(t, m.Flush(context.Background()))

	var buf bytes.Buffer
	m.Setup(&buf, "info", sdklog.NewLoggerProvider())
	m.Logger().Info("otel integrated")
	assert.Contains(t, buf.String(), "otel integrated")
	assert.NoError(t, m.Flush(context.Background()))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	multi := NewMultiHandler(
		slog.NewTextHandler(&buf1, nil),
		nil,
		slog.NewTextHandler(&buf2, nil),
	)
	require.Len(t, multi.handlers, 2)

	slog.New(multi).Info("fanned out")

	assert.Contains(t, buf1.String(), "fanned out")
	assert.Contains(t, buf2.String(), "fanned out")
}

func TestMultiHandler_Enabled(t *testing.T) {
	infoHandler := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

	assert.False(t, NewMultiHandler(infoHandler).Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, NewMultiHandler(infoHandler, debugHandler).Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, NewMultiHandler().Enabled(context.Background(), slog.LevelInfo))
}

func TestMultiHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiHandler(slog.NewTextHandler(&buf, nil))

	slog.New(multi.WithAttrs([]slog.Attr{slog.String("component", "bridge")})).Info("with attrs")
	slog.New(multi.WithGroup("grp")).Info("grouped", "key", "val")

	assert.Contains(t, buf.String(), "component=bridge")
	assert.Contains(t, buf.String(), "grp.key=val")
	assert.Equal(t, multi, multi.WithGroup(""))
}

type errorHandler struct {
	slog.Handler
}

func (h *errorHandler) Handle(_ context.Context, _ slog.Record) error {
	return errors.New("handler error")
}

func (h *errorHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func TestMultiHandler_HandleError(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiHandler(&errorHandler{}, slog.NewTextHandler(&buf, nil))

	var r slog.Record
	r.Level = slog.LevelInfo
	r.Message = "should reach spy"
	err := multi.Handle(context.Background(), r)

	assert.EqualError(t, err, "handler error")
	assert.Contains(t, buf.String(), "should reach spy")
}
