package main

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/angelar/arsession/internal/config"
	intOtel "github.com/angelar/arsession/internal/otel"
	"github.com/angelar/arsession/internal/session"
	"github.com/angelar/arsession/internal/storage/memory"
	"github.com/angelar/arsession/pkg/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestGlobals(t *testing.T) {
	t.Helper()
	Logger = slog.New(slog.DiscardHandler)
	p, err := intOtel.New(intOtel.Config{})
	require.NoError(t, err)
	OTelProvider = p
}

func TestRecording_StartEndExports(t *testing.T) {
	setupTestGlobals(t)
	dir := t.TempDir()

	backend := memory.New(config.MemoryConfig{OutputDir: dir}, "test")
	require.NoError(t, backend.Init())
	r := &recording{backend: backend, recorders: session.MultiRecorder{backend}}

	st := session.Status{ID: "s-1", AssetURL: "model.glb", TargetIndex: 2}
	r.startSession(st, time.Now())
	require.True(t, r.started)

	require.NoError(t, r.recorders.RecordFrame(core.FrameSample{SessionID: "s-1", Seq: 1, Found: true}))

	r.endSession(context.Background(), st)
	path := backend.GetExportedFilePath()
	require.NotEmpty(t, path)
	_, err := os.Stat(path)
	assert.NoError(t, err)

	r.close(context.Background())
}

func TestRecording_EndWithoutStartIsNoop(t *testing.T) {
	setupTestGlobals(t)
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()}, "test")
	r := &recording{backend: backend}

	r.endSession(context.Background(), session.Status{ID: "s-2"})
	assert.Empty(t, backend.GetExportedFilePath())
}

func TestRecording_QueueLengthsOnlyForQueuedBackends(t *testing.T) {
	r := &recording{backend: memory.New(config.MemoryConfig{}, "test")}
	assert.Nil(t, r.queueLengths())
}

func TestOpenLogFile(t *testing.T) {
	dir := t.TempDir() + "/logs"
	f, err := openLogFile(dir, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString("hello\n")
	assert.NoError(t, err)
	assert.DirExists(t, dir)
}
