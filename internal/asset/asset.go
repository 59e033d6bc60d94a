// Package asset fetches and decodes the 3D content presented on the target.
//
// A load yields zero or more Progress events followed by exactly one Success
// or Failure on a single channel, which is then closed.
package asset

import (
	"errors"
	"math"

	"github.com/angelar/arsession/internal/animation"
	"github.com/angelar/arsession/internal/scene"
)

// Failure reasons. Loader errors wrap exactly one of these.
var (
	ErrNetwork  = errors.New("network error")
	ErrNotFound = errors.New("asset not found")
	ErrDecode   = errors.New("decode error")
)

// Asset is a loaded model: a scene root and its animation clips.
type Asset struct {
	Source string
	Root   *scene.Node
	Clips  []*animation.Clip
}

// ActiveClip returns the clip played while tracking, or nil when the model
// has no animations.
func (a *Asset) ActiveClip() *animation.Clip {
	if a == nil || len(a.Clips) == 0 {
		return nil
	}
	return a.Clips[0]
}

// Event is one of Progress, Success or Failure.
type Event interface {
	assetEvent()
}

// Progress reports bytes received so far. Total is zero when unknown.
type Progress struct {
	Loaded int64
	Total  int64
}

// Success carries the decoded asset.
type Success struct {
	Asset *Asset
}

// Failure carries the reason the load attempt ended.
type Failure struct {
	Err error
}

func (Progress) assetEvent() {}
func (Success) assetEvent()  {}
func (Failure) assetEvent()  {}

// Fraction returns loaded/total in [0,1], or 0 when the total is unknown.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Loaded) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

// Percent returns the rounded percentage shown to the user.
func (p Progress) Percent() int {
	return int(math.Round(p.Fraction() * 100))
}
