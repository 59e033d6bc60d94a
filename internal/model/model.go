package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&HostInfo{},
	&Session{},
	&Transition{},
	&Frame{},
	&TargetEvent{},
	&Trajectory{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// HostInfo identifies the installation writing the recordings
type HostInfo struct {
	gorm.Model
	Name        string `json:"name" gorm:"size:127"`
	Description string `json:"description" gorm:"size:255"`
	Website     string `json:"website" gorm:"size:255"`
}

func (*HostInfo) TableName() string {
	return "host_infos"
}

////////////////////////
// SESSION MODELS
////////////////////////

// Session is one controller lifetime: one asset on one image target
type Session struct {
	ID          uint         `json:"id" gorm:"primarykey;autoIncrement;"`
	UUID        string       `json:"uuid" gorm:"size:36;uniqueIndex"`
	AssetURL    string       `json:"assetUrl" gorm:"size:2048"`
	TargetIndex int          `json:"targetIndex" gorm:"default:0"`
	Tag         string       `json:"tag" gorm:"size:127"`
	StartedAt   time.Time    `json:"startedAt" gorm:"type:timestamptz;"`
	EndedAt     sql.NullTime `json:"endedAt" gorm:"type:timestamptz;default:NULL"`
	Frames      uint64       `json:"frames" gorm:"default:0"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Transition is a state change of the session controller. Metadata holds
// the error kind and message when the change was caused by a failure.
type Transition struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time      `json:"time" gorm:"type:timestamptz;index:idx_transition_time"`
	SessionID uint           `json:"sessionId" gorm:"index:idx_transition_session_id"`
	Session   Session        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	FromState string         `json:"from" gorm:"size:16"`
	ToState   string         `json:"to" gorm:"size:16"`
	Trigger   string         `json:"trigger" gorm:"size:32"`
	Metadata  datatypes.JSON `json:"metadata"`
}

func (*Transition) TableName() string {
	return "transitions"
}

// Frame is one rendered frame while tracking was running
type Frame struct {
	ID            uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time          time.Time  `json:"time" gorm:"type:timestamptz;"`
	SessionID     uint       `json:"sessionId" gorm:"index:idx_frame_session_id"`
	Session       Session    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Seq           uint64     `json:"seq" gorm:"index:idx_frame_seq"`
	Segment       uint64     `json:"segment"`
	Delta         float64    `json:"delta"`         // seconds since the previous frame
	AnimationTime float64    `json:"animationTime"` // seconds into the active clip
	TargetIndex   int        `json:"targetIndex"`
	Found         bool       `json:"found" gorm:"default:false"`
	Position      geom.Point `json:"position"` // anchor origin in target space, Z included
}

func (*Frame) TableName() string {
	return "frames"
}

// TargetEvent records the image target being found or lost
type TargetEvent struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID   uint      `json:"sessionId" gorm:"index:idx_targetevent_session_id"`
	Session     Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	TargetIndex int       `json:"targetIndex"`
	Found       bool      `json:"found"`
}

func (*TargetEvent) TableName() string {
	return "target_events"
}

// Trajectory is the path of the anchor origin during one running segment,
// built from the frames in which the target was found.
type Trajectory struct {
	ID          uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID   uint            `json:"sessionId" gorm:"index:idx_trajectory_session_id"`
	Session     Session         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Segment     uint64          `json:"segment"`
	TargetIndex int             `json:"targetIndex"`
	StartedAt   time.Time       `json:"startedAt" gorm:"type:timestamptz;"`
	EndedAt     time.Time       `json:"endedAt" gorm:"type:timestamptz;"`
	Points      int             `json:"points"`
	Path        geom.LineString `json:"-"` // LineStringZ of anchor positions
}

func (*Trajectory) TableName() string {
	return "trajectories"
}
