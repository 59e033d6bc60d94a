// pkg/core/session.go
package core

import (
	"errors"
	"time"
)

// ErrNoSession is returned by recorders asked to store data before a
// session was started.
var ErrNoSession = errors.New("no open session")

// Session is one controller lifetime: a page load of one asset on one target.
type Session struct {
	ID          string    `json:"id"`
	AssetURL    string    `json:"assetUrl"`
	TargetIndex int       `json:"targetIndex"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt,omitzero"`
}

// Transition is a recorded state change of the session controller.
// Kind and Message are set when the transition was caused by an error.
type Transition struct {
	SessionID string    `json:"sessionId"`
	Time      time.Time `json:"time"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Trigger   string    `json:"trigger"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Position3D is a point in target space, in target units.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FrameSample is one rendered frame while tracking was running.
// Segment increments each time the frame loop is reinstalled.
type FrameSample struct {
	SessionID     string        `json:"sessionId"`
	Time          time.Time     `json:"time"`
	Seq           uint64        `json:"seq"`
	Segment       uint64        `json:"segment"`
	Delta         float64       `json:"delta"`
	AnimationTime time.Duration `json:"animationTime"`
	TargetIndex   int           `json:"targetIndex"`
	Found         bool          `json:"found"`
	Position      Position3D    `json:"position"`
}

// TargetEvent records a target being found or lost.
type TargetEvent struct {
	SessionID   string    `json:"sessionId"`
	Time        time.Time `json:"time"`
	TargetIndex int       `json:"targetIndex"`
	Found       bool      `json:"found"`
}

// UploadMetadata describes an exported session recording.
type UploadMetadata struct {
	SessionID   string        `json:"sessionId"`
	AssetURL    string        `json:"assetUrl"`
	TargetIndex int           `json:"targetIndex"`
	Duration    time.Duration `json:"duration"`
	Frames      uint64        `json:"frames"`
	Tag         string        `json:"tag"`
}
