package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/angelar/arsession/internal/handlers"
	"github.com/angelar/arsession/internal/session"
	"github.com/angelar/arsession/pkg/streaming"
)

// StatusFileName is written inside Dependencies.OutputDir.
const StatusFileName = "status.json"

// StatusSource is satisfied by *session.Controller.
type StatusSource interface {
	Status() session.Status
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Status    StatusSource
	Logger    *slog.Logger
	OutputDir string
	Interval  time.Duration
	// QueueLengths reports pending storage writes; optional
	QueueLengths func() map[string]int
}

// Report is the content of the status file.
type Report struct {
	Time        time.Time               `json:"time"`
	Uptime      float64                 `json:"uptimeSeconds"`
	Session     streaming.StatusPayload `json:"session"`
	WriteQueues map[string]int          `json:"writeQueues,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	started   time.Time
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:    deps,
		started: time.Now(),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current status report
func (s *Service) GetProgramStatus() Report {
	r := Report{
		Time:    time.Now().UTC(),
		Uptime:  time.Since(s.started).Seconds(),
		Session: handlers.StatusPayload(s.deps.Status.Status()),
	}
	if s.deps.QueueLengths != nil {
		r.WriteQueues = s.deps.QueueLengths()
	}
	return r
}

// Path returns the status file location.
func (s *Service) Path() string {
	return filepath.Join(s.deps.OutputDir, StatusFileName)
}

// WriteStatus replaces the status file with the current report.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.GetProgramStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding status: %w", err)
	}
	if err := os.MkdirAll(s.deps.OutputDir, 0755); err != nil {
		return fmt.Errorf("error creating status directory: %w", err)
	}

	// rename so readers never see a half-written file
	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	return os.Rename(tmp, s.Path())
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "path", s.Path())

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit. Safe to call
// more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning || s.stopChan == nil {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopChan, s.done
	s.stopChan = nil
	s.mu.Unlock()

	close(stop)
	<-done
}
