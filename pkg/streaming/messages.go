package streaming

import (
	"encoding/json"
	"fmt"
)

// Tracker protocol message types.
const (
	TypeStart   = "start"
	TypeStarted = "started"
	TypeStop    = "stop"
	TypeStopped = "stopped"
	TypeError   = "error"
	TypePose    = "pose"
	TypeFound   = "found"
	TypeLost    = "lost"
)

// UI bridge message types.
const (
	TypeView    = "view"
	TypeFrame   = "frame"
	TypeCommand = "command"
	TypeResult  = "result"
)

// Recorder stream message types, sent to a remote session collector.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeTransition   = "transition"
	TypeFrameSample  = "frame_sample"
	TypeTargetEvent  = "target_event"
	TypeAck          = "ack"
)

// AckMessage is sent by the collector after start_session and end_session.
type AckMessage struct {
	Type string `json:"type"`
	For  string `json:"for"`
}

// Envelope wraps all messages sent over a WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals payload into an envelope of the given type.
func Encode(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		raw = data
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// StartPayload asks the tracker to begin tracking the listed targets.
type StartPayload struct {
	ImageTargetSrc  string  `json:"imageTargetSrc"`
	Anchors         []int   `json:"anchors"`
	FilterMinCF     float64 `json:"filterMinCF"`
	FilterBeta      float64 `json:"filterBeta"`
	WarmupTolerance int     `json:"warmupTolerance"`
	MissTolerance   int     `json:"missTolerance"`
}

// ErrorPayload reports a tracker-side failure for a request.
type ErrorPayload struct {
	For     string `json:"for"`
	Message string `json:"message"`
}

// PosePayload is the world transform of a found target, column-major.
type PosePayload struct {
	TargetIndex int         `json:"targetIndex"`
	Matrix      [16]float64 `json:"matrix"`
}

// TargetPayload names the target of a found/lost notification.
type TargetPayload struct {
	TargetIndex int `json:"targetIndex"`
}

// ViewPayload is the presentation state pushed to the page.
type ViewPayload struct {
	State         string `json:"state"`
	ShowLoading   bool   `json:"showLoading"`
	LoadingText   string `json:"loadingText,omitempty"`
	ShowToggle    bool   `json:"showToggle"`
	ToggleEnabled bool   `json:"toggleEnabled"`
	ToggleLabel   string `json:"toggleLabel"`
	ErrorText     string `json:"errorText,omitempty"`
}

// NodePayload is one visible node of a rendered frame.
type NodePayload struct {
	Name   string      `json:"name"`
	Mesh   int         `json:"mesh"`
	Matrix [16]float64 `json:"matrix"`
}

// FramePayload is one rendered frame pushed to the page.
type FramePayload struct {
	Seq           uint64        `json:"seq"`
	AnimationTime float64       `json:"animationTime"`
	TargetIndex   int           `json:"targetIndex"`
	Found         bool          `json:"found"`
	Nodes         []NodePayload `json:"nodes"`
}

// CommandPayload is sent by the page: "load", "toggle", "visibility" or
// "status".
type CommandPayload struct {
	Name    string `json:"name"`
	Visible *bool  `json:"visible,omitempty"`
}

// ResultPayload answers a command.
type ResultPayload struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// StatusPayload is the controller status as reported to clients.
type StatusPayload struct {
	ID            string  `json:"id"`
	State         string  `json:"state"`
	AssetURL      string  `json:"assetUrl"`
	TargetIndex   int     `json:"targetIndex"`
	Frames        uint64  `json:"frames"`
	Found         bool    `json:"found"`
	Progress      float64 `json:"progress"`
	AnimationTime float64 `json:"animationTime"`
	LastError     string  `json:"lastError,omitempty"`
	LastErrorKind string  `json:"lastErrorKind,omitempty"`
}
