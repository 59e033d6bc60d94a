// Package websocket streams session records to a remote collector.
package websocket

import (
	"log/slog"
	"sync"

	"github.com/angelar/arsession/pkg/core"
	"github.com/angelar/arsession/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
	Tag    string
}

// startSessionPayload is the start_session body.
type startSessionPayload struct {
	Session *core.Session `json:"session"`
	Tag     string        `json:"tag,omitempty"`
}

// Backend streams session data over WebSocket. Frame samples, transitions
// and target events are fire-and-forget; session start and end wait for an
// ack. It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config

	mu     sync.Mutex
	frames uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "recorder-stream")),
		cfg:  cfg,
	}
}

// Init connects to the collector.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the collector.
func (b *Backend) Close() error {
	return b.conn.close()
}

func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := streaming.Encode(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession announces the session and waits for the collector's ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := streaming.Encode(streaming.TypeStartSession, startSessionPayload{Session: s, Tag: b.cfg.Tag})
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	b.mu.Lock()
	b.frames = 0
	b.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for the collector's ack.
func (b *Backend) EndSession(s *core.Session) error {
	data, err := streaming.Encode(streaming.TypeEndSession, s)
	if err == nil {
		err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)
	}

	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()

	return err
}

func (b *Backend) RecordTransition(t core.Transition) error {
	return b.sendEnvelope(streaming.TypeTransition, t)
}

func (b *Backend) RecordFrame(f core.FrameSample) error {
	b.mu.Lock()
	b.frames++
	b.mu.Unlock()
	return b.sendEnvelope(streaming.TypeFrameSample, f)
}

func (b *Backend) RecordTargetEvent(e core.TargetEvent) error {
	return b.sendEnvelope(streaming.TypeTargetEvent, e)
}

// Frames returns how many frame samples were sent for the open session.
func (b *Backend) Frames() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}
