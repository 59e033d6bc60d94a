// Package anchor attaches a loaded model to a tracked image target.
package anchor

import (
	"errors"
	"fmt"

	"github.com/angelar/arsession/internal/asset"
	"github.com/angelar/arsession/internal/scene"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrInvalidTarget = errors.New("anchor: target index must be non-negative")
	ErrNoAsset       = errors.New("anchor: no asset to bind")
)

// Registrar reserves an image target in the tracking session.
type Registrar interface {
	AddAnchor(targetIndex int) error
}

// Anchor is the group node the tracking session poses on every frame. The
// model sits under Content at the target origin.
type Anchor struct {
	TargetIndex int
	Group       *scene.Node
	Content     *scene.Node
}

// Bind registers targetIndex with reg and parents the asset root under a new
// anchor group. The group starts hidden until the target is first found.
func Bind(a *asset.Asset, targetIndex int, reg Registrar) (*Anchor, error) {
	if targetIndex < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTarget, targetIndex)
	}
	if a == nil || a.Root == nil {
		return nil, ErrNoAsset
	}
	if reg != nil {
		if err := reg.AddAnchor(targetIndex); err != nil {
			return nil, fmt.Errorf("register target %d: %w", targetIndex, err)
		}
	}

	group := scene.NewNode(fmt.Sprintf("anchor-%d", targetIndex))
	group.Visible = false
	content := scene.NewNode("content")
	_ = group.Add(content)

	a.Root.ResetTransform()
	if err := content.Add(a.Root); err != nil {
		return nil, fmt.Errorf("attach model: %w", err)
	}

	return &Anchor{
		TargetIndex: targetIndex,
		Group:       group,
		Content:     content,
	}, nil
}

// SetPose applies a target pose to the anchor group.
func (a *Anchor) SetPose(m mgl64.Mat4) {
	a.Group.Matrix = &m
}

// SetVisible shows or hides the anchor and reports whether it changed.
func (a *Anchor) SetVisible(v bool) bool {
	if a.Group.Visible == v {
		return false
	}
	a.Group.Visible = v
	return true
}

// Visible reports whether the anchor group is shown.
func (a *Anchor) Visible() bool {
	return a.Group.Visible
}
