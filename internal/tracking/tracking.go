// Package tracking is the boundary to the image-target tracker that owns the
// camera and reports target poses.
package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrStart = errors.New("tracking start failed")
	ErrStop  = errors.New("tracking stop failed")
)

// Pose is the last reported world transform of a found target.
type Pose struct {
	Matrix mgl64.Mat4
	At     time.Time
}

// Session is a tracking session. Start acquires the camera and Stop releases
// it; both may block.
type Session interface {
	AddAnchor(targetIndex int) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Pose reports the current pose of targetIndex and whether it is found.
	Pose(targetIndex int) (Pose, bool)
}

// Options are forwarded to the tracker on start.
type Options struct {
	ImageTargetSrc  string
	FilterMinCF     float64
	FilterBeta      float64
	WarmupTolerance int
	MissTolerance   int
	StartTimeout    time.Duration
}

// DefaultOptions returns the tracker tuning used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		FilterMinCF:     0.1,
		FilterBeta:      10,
		WarmupTolerance: 1,
		MissTolerance:   1,
		StartTimeout:    10 * time.Second,
	}
}
