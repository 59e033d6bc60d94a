// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine. It serves both
// Postgres and the SQLite wrapper in internal/storage/sqlite.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelar/arsession/internal/database"
	"github.com/angelar/arsession/internal/model"
	"github.com/angelar/arsession/internal/model/convert"
	"github.com/angelar/arsession/internal/queue"
	"github.com/angelar/arsession/pkg/core"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	// frames beyond this many unwritten rows are dropped oldest first
	frameQueueLimit = 100_000
	// five minutes at 60 fps; longer segments are split
	defaultTrajectoryPoints = 18_000
	// controller state name whose exit ends a running segment
	runningState = "running"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        zerolog.Logger
	Tag           string
	FlushInterval time.Duration
	// MaxTrajectoryPoints caps the found frames held for one trajectory.
	MaxTrajectoryPoints int
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Transitions  *queue.Queue[model.Transition]
	Frames       *queue.Queue[model.Frame]
	TargetEvents *queue.Queue[model.TargetEvent]
	Trajectories *queue.Queue[model.Trajectory]
}

func newQueues() *queues {
	return &queues{
		Transitions:  queue.New[model.Transition](),
		Frames:       queue.NewBounded[model.Frame](frameQueueLimit),
		TargetEvents: queue.New[model.TargetEvent](),
		Trajectories: queue.New[model.Trajectory](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	frames    atomic.Uint64

	// found frames of the open running segment
	segmentMu sync.Mutex
	segment   []core.FrameSample

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.MaxTrajectoryPoints < 2 {
		deps.MaxTrajectoryPoints = defaultTrajectoryPoints
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}

	host := b.deps.Tag
	if host == "" {
		host = "arsession"
	}
	if err := database.Migrate(b.deps.DB, host); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.deps.Logger.Info().Str("dialect", b.deps.DB.Name()).Msg("Database setup complete")

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	b.startDBWriter()
	return nil
}

// Close stops the DB writer goroutine and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() {
		close(b.stopChan)
		<-b.done
	})
	return b.Flush()
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// SessionID returns the database id of the open session, 0 if none.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// StartSession inserts the session row synchronously so later rows can
// reference its id.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.CoreToSession(*s, b.deps.Tag)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	b.segmentMu.Lock()
	b.segment = nil
	b.segmentMu.Unlock()
	b.frames.Store(0)
	b.sessionID.Store(uint64(row.ID))

	b.deps.Logger.Info().Str("session", s.ID).Uint("id", row.ID).Msg("Session started")
	return nil
}

// EndSession closes the open segment, flushes the queues and closes the
// session row.
func (b *Backend) EndSession(s *core.Session) error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return core.ErrNoSession
	}

	b.segmentMu.Lock()
	b.closeSegmentLocked(id)
	b.segmentMu.Unlock()

	if err := b.Flush(); err != nil {
		return err
	}

	ended := s.EndedAt
	if ended.IsZero() {
		ended = time.Now()
	}
	if err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Updates(map[string]any{
		"ended_at": sql.NullTime{Time: ended, Valid: true},
		"frames":   b.frames.Load(),
	}).Error; err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	b.sessionID.Store(0)
	b.deps.Logger.Info().Str("session", s.ID).Uint64("frames", b.frames.Load()).Msg("Session ended")
	return nil
}

// closeSegmentLocked queues the trajectory of the open segment. Segments
// too short or without movement are skipped. Callers hold segmentMu.
func (b *Backend) closeSegmentLocked(id uint) {
	samples := b.segment
	b.segment = nil
	if len(samples) == 0 {
		return
	}

	tr, err := convert.BuildTrajectory(samples)
	if err != nil {
		b.deps.Logger.Debug().Err(err).Uint64("segment", samples[0].Segment).Int("points", len(samples)).Msg("Skipping trajectory")
		return
	}
	tr.SessionID = id
	b.queues.Trajectories.Push(tr)
}

// RecordTransition converts and queues a state transition.
func (b *Backend) RecordTransition(t core.Transition) error {
	id := b.SessionID()
	if id == 0 {
		return core.ErrNoSession
	}
	row := convert.CoreToTransition(t)
	row.SessionID = id
	b.queues.Transitions.Push(row)

	if t.From == runningState {
		b.segmentMu.Lock()
		b.closeSegmentLocked(id)
		b.segmentMu.Unlock()
	}
	return nil
}

// RecordFrame converts and queues a frame sample.
func (b *Backend) RecordFrame(f core.FrameSample) error {
	id := b.SessionID()
	if id == 0 {
		return core.ErrNoSession
	}
	row := convert.CoreToFrame(f)
	row.SessionID = id
	b.queues.Frames.Push(row)
	b.frames.Add(1)

	if !f.Found {
		return nil
	}

	b.segmentMu.Lock()
	defer b.segmentMu.Unlock()
	if len(b.segment) > 0 && b.segment[0].Segment != f.Segment {
		b.closeSegmentLocked(id)
	}
	b.segment = append(b.segment, f)
	if len(b.segment) >= b.deps.MaxTrajectoryPoints {
		// continue the next piece from the last point so the path has no gap
		b.closeSegmentLocked(id)
		b.segment = append(b.segment, f)
	}
	return nil
}

// RecordTargetEvent converts and queues a found/lost event.
func (b *Backend) RecordTargetEvent(e core.TargetEvent) error {
	id := b.SessionID()
	if id == 0 {
		return core.ErrNoSession
	}
	row := convert.CoreToTargetEvent(e)
	row.SessionID = id
	b.queues.TargetEvents.Push(row)
	return nil
}

// QueueLengths reports how many rows wait for the next write cycle.
func (b *Backend) QueueLengths() map[string]int {
	return map[string]int{
		"transitions":   b.queues.Transitions.Len(),
		"frames":        b.queues.Frames.Len(),
		"target_events": b.queues.TargetEvents.Len(),
		"trajectories":  b.queues.Trajectories.Len(),
	}
}

// Flush drains all queues into the database.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	return errors.Join(
		writeQueue(b.deps.DB, b.queues.Transitions, "transitions", b.deps.Logger),
		writeQueue(b.deps.DB, b.queues.Frames, "frames", b.deps.Logger),
		writeQueue(b.deps.DB, b.queues.TargetEvents, "target events", b.deps.Logger),
		writeQueue(b.deps.DB, b.queues.Trajectories, "trajectories", b.deps.Logger),
	)
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back to the head of the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger) error {
	if q.Empty() {
		return nil
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if err := tx.Create(&items).Error; err != nil {
		log.Error().Err(err).Str("table", name).Int("rows", len(items)).Msg("Error creating rows")
		tx.Rollback()
		q.Requeue(items...)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := tx.Commit().Error; err != nil {
		q.Requeue(items...)
		return fmt.Errorf("failed to commit %s: %w", name, err)
	}
	log.Debug().Str("table", name).Int("rows", len(items)).Msg("Rows written")
	return nil
}

// startDBWriter starts the background goroutine that periodically drains
// queues into the DB.
func (b *Backend) startDBWriter() {
	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.deps.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
				if err := b.Flush(); err != nil {
					b.deps.Logger.Warn().Err(err).Msg("DB writer cycle failed")
				}
			}
		}
	}()
}
