// Package handlers binds dispatcher commands to the session controller.
package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/angelar/arsession/internal/dispatcher"
	"github.com/angelar/arsession/internal/session"
	"github.com/angelar/arsession/pkg/streaming"
)

// Command names routed through the dispatcher.
const (
	CommandLoad       = ":LOAD:"
	CommandToggle     = ":TOGGLE:"
	CommandVisibility = ":VISIBILITY:"
	CommandStatus     = ":STATUS:"
	CommandLogLevel   = ":LOGLEVEL:"
)

const logLevelQueue = 4

var ErrBadArgument = errors.New("bad argument")

// Controller is the part of session.Controller the commands drive.
type Controller interface {
	BeginLoad() error
	Toggle() error
	SetVisible(visible bool) error
	Status() session.Status
}

// LevelSetter changes the process log level at runtime.
type LevelSetter interface {
	SetLevel(level string)
}

// Dependencies holds what the handlers need.
type Dependencies struct {
	Controller Controller
	Levels     LevelSetter
}

// Manager owns the command handlers.
type Manager struct {
	deps Dependencies
}

// NewManager creates a Manager.
func NewManager(deps Dependencies) *Manager {
	return &Manager{deps: deps}
}

// RegisterHandlers registers all session commands with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// user intents go straight to the controller inbox, which never blocks
	d.Register(CommandLoad, m.handleLoad, dispatcher.Logged())
	d.Register(CommandToggle, m.handleToggle, dispatcher.Logged())
	d.Register(CommandVisibility, m.handleVisibility, dispatcher.Logged())

	d.Register(CommandStatus, m.handleStatus)

	// reconfiguring the log handlers runs off the bridge read loop
	if m.deps.Levels != nil {
		d.Register(CommandLogLevel, m.handleLogLevel,
			dispatcher.Logged(), dispatcher.Buffered(logLevelQueue))
	}
}

func (m *Manager) handleLoad(e dispatcher.Event) (any, error) {
	if err := m.deps.Controller.BeginLoad(); err != nil {
		return nil, fmt.Errorf("begin load: %w", err)
	}
	return "ok", nil
}

func (m *Manager) handleToggle(e dispatcher.Event) (any, error) {
	if err := m.deps.Controller.Toggle(); err != nil {
		return nil, fmt.Errorf("toggle: %w", err)
	}
	return "ok", nil
}

func (m *Manager) handleVisibility(e dispatcher.Event) (any, error) {
	visible, err := ParseVisibility(e.Arg(0))
	if err != nil {
		return nil, err
	}
	if err := m.deps.Controller.SetVisible(visible); err != nil {
		return nil, fmt.Errorf("visibility: %w", err)
	}
	return "ok", nil
}

func (m *Manager) handleStatus(e dispatcher.Event) (any, error) {
	return StatusPayload(m.deps.Controller.Status()), nil
}

func (m *Manager) handleLogLevel(e dispatcher.Event) (any, error) {
	level := strings.ToLower(e.Arg(0))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("%w: log level %q", ErrBadArgument, e.Arg(0))
	}
	m.deps.Levels.SetLevel(level)
	return level, nil
}

// ParseVisibility accepts "visible"/"hidden" as well as boolean strings.
func ParseVisibility(arg string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "visible", "shown":
		return true, nil
	case "hidden":
		return false, nil
	}
	v, err := strconv.ParseBool(arg)
	if err != nil {
		return false, fmt.Errorf("%w: visibility %q", ErrBadArgument, arg)
	}
	return v, nil
}

// StatusPayload converts a controller status for the wire.
func StatusPayload(s session.Status) streaming.StatusPayload {
	return streaming.StatusPayload{
		ID:            s.ID,
		State:         s.State.String(),
		AssetURL:      s.AssetURL,
		TargetIndex:   s.TargetIndex,
		Frames:        s.Frames,
		Found:         s.Found,
		Progress:      s.Progress,
		AnimationTime: s.AnimationTime.Seconds(),
		LastError:     s.LastError,
		LastErrorKind: string(s.LastErrorKind),
	}
}
