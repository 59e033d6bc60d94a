// internal/storage/memory/memory.go
package memory

import (
	"sync"

	"github.com/angelar/arsession/internal/config"
	"github.com/angelar/arsession/pkg/core"
)

// Backend keeps one session in memory and exports it to JSON when the
// session ends.
type Backend struct {
	cfg config.MemoryConfig
	tag string

	session      *core.Session
	transitions  []core.Transition
	frames       []core.FrameSample
	targetEvents []core.TargetEvent

	lastExportPath string
	lastMetadata   core.UploadMetadata

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, tag string) *Backend {
	return &Backend{cfg: cfg, tag: tag}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session, discarding anything held
// from the previous one.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *s
	b.session = &cp
	b.transitions = nil
	b.frames = nil
	b.targetEvents = nil
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return core.ErrNoSession
	}
	b.session.EndedAt = s.EndedAt

	if err := b.exportJSON(); err != nil {
		return err
	}
	b.session = nil
	return nil
}

// RecordTransition records a state transition
func (b *Backend) RecordTransition(t core.Transition) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}
	b.transitions = append(b.transitions, t)
	return nil
}

// RecordFrame records a frame sample
func (b *Backend) RecordFrame(f core.FrameSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}
	b.frames = append(b.frames, f)
	return nil
}

// RecordTargetEvent records a found/lost event
func (b *Backend) RecordTargetEvent(e core.TargetEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return core.ErrNoSession
	}
	b.targetEvents = append(b.targetEvents, e)
	return nil
}

// GetExportedFilePath returns the path of the last exported file, empty if
// nothing was exported yet.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last exported session.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastMetadata
}
