package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/angelar/arsession/internal/api"
	"github.com/angelar/arsession/internal/config"
	"github.com/angelar/arsession/internal/influx"
	"github.com/angelar/arsession/internal/logging"
	"github.com/angelar/arsession/internal/session"
	"github.com/angelar/arsession/internal/storage"
	"github.com/angelar/arsession/internal/storage/memory"
	"github.com/angelar/arsession/pkg/core"
)

// recording owns everything a session is recorded to.
type recording struct {
	backend   storage.Backend
	influx    *influx.Manager
	recorders session.MultiRecorder
	session   core.Session
	started   bool
}

func initStorage(ctx context.Context, logFile io.Writer) (*recording, error) {
	storageCfg := config.GetStorageConfig()
	level := config.GetString("logLevel")
	tag := config.GetString("defaultTag")

	backend, err := storage.NewBackend(storageCfg, storage.Dependencies{
		Logger: logging.NewZerolog(logFile, level, "storage"),
		Slog:   Logger.With("component", "storage"),
		Tag:    tag,
	})
	if err == nil {
		err = backend.Init()
	}
	if err != nil {
		Logger.Error("Failed to initialize storage backend, falling back to memory", "type", storageCfg.Type, "error", err)
		backend = memory.New(storageCfg.Memory, tag)
		if err := backend.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize memory storage: %w", err)
		}
	} else {
		Logger.Info("Storage backend initialized", "type", storageCfg.Type)
	}

	r := &recording{
		backend:   backend,
		recorders: session.MultiRecorder{backend},
	}

	influxCfg := config.GetInfluxConfig()
	backupPath := filepath.Join(config.GetString("logsDir"),
		fmt.Sprintf("influx_backup_%s.lp.gz", time.Now().Format("20060102_150405")))
	m := influx.NewManager(influxCfg, logging.NewZerolog(logFile, level, "influx"), backupPath)
	switch err := m.Connect(ctx); {
	case errors.Is(err, influx.ErrDisabled):
	case err != nil:
		Logger.Warn("Frame telemetry unavailable", "error", err)
	default:
		r.influx = m
		r.recorders = append(r.recorders, influx.NewTelemetry(m, m.Bucket(), tag))
		Logger.Info("Frame telemetry enabled", "valid", m.IsValid, "bucket", m.Bucket())
	}

	return r, nil
}

// queueLengths exposes the write queues of the database backends.
func (r *recording) queueLengths() func() map[string]int {
	q, ok := r.backend.(interface{ QueueLengths() map[string]int })
	if !ok {
		return nil
	}
	return q.QueueLengths
}

func (r *recording) startSession(st session.Status, start time.Time) {
	r.session = core.Session{
		ID:          st.ID,
		AssetURL:    st.AssetURL,
		TargetIndex: st.TargetIndex,
		StartedAt:   start,
	}
	if err := r.backend.StartSession(&r.session); err != nil {
		Logger.Error("Failed to start recording", "session", st.ID, "error", err)
		return
	}
	r.started = true
	Logger.Info("Recording started", "session", st.ID)
}

func (r *recording) endSession(ctx context.Context, st session.Status) {
	if !r.started {
		return
	}
	r.session.EndedAt = time.Now()
	if err := r.backend.EndSession(&r.session); err != nil {
		Logger.Error("Failed to end recording", "session", r.session.ID, "error", err)
		return
	}
	Logger.Info("Recording ended", "session", r.session.ID, "frames", st.Frames)

	up, ok := r.backend.(storage.Uploadable)
	if !ok || up.GetExportedFilePath() == "" {
		return
	}
	apiCfg := config.GetAPIConfig()
	if apiCfg.ServerURL == "" {
		return
	}
	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		Logger.Warn("Recordings server unavailable, keeping export locally", "path", up.GetExportedFilePath(), "error", err)
		return
	}
	if err := client.Upload(ctx, up.GetExportedFilePath(), up.GetExportMetadata()); err != nil {
		Logger.Error("Failed to upload recording", "path", up.GetExportedFilePath(), "error", err)
		return
	}
	Logger.Info("Recording uploaded", "path", up.GetExportedFilePath())
}

func (r *recording) close(ctx context.Context) {
	if err := r.backend.Close(); err != nil {
		Logger.Warn("Failed to close storage backend", "error", err)
	}
	if r.influx != nil {
		if err := r.influx.Close(); err != nil {
			Logger.Warn("Failed to close influx", "error", err)
		}
	}
	if err := OTelProvider.Flush(ctx); err != nil {
		Logger.Warn("Failed to flush telemetry", "error", err)
	}
}
