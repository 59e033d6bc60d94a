// Package render turns the scene graph into per-frame snapshots and drives
// the frame clock.
package render

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/angelar/arsession/internal/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// Frame is one iteration of the per-frame loop.
type Frame struct {
	Seq           uint64
	At            time.Time
	Delta         float64
	AnimationTime time.Duration
	Scene         *scene.Node
	TargetIndex   int
	Pose          mgl64.Mat4
	Found         bool
}

// Renderer draws a frame.
type Renderer interface {
	Render(f Frame) error
}

// DrawNode is a visible node with its resolved world transform.
type DrawNode struct {
	Name  string
	Mesh  int
	World mgl64.Mat4
}

// Snapshot is what a sink receives for every rendered frame.
type Snapshot struct {
	Frame  Frame
	Nodes  []DrawNode
	Lights []*scene.Light
}

// Sink consumes rendered snapshots.
type Sink interface {
	Consume(s Snapshot) error
}

// SceneRenderer resolves world transforms of visible nodes and fans the
// result out to its sinks.
type SceneRenderer struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *slog.Logger
}

// NewSceneRenderer creates a renderer writing to sinks.
func NewSceneRenderer(logger *slog.Logger, sinks ...Sink) *SceneRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SceneRenderer{sinks: sinks, logger: logger}
}

// AddSink registers another sink.
func (r *SceneRenderer) AddSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Render snapshots f.Scene. Hidden subtrees are skipped.
func (r *SceneRenderer) Render(f Frame) error {
	snap := Build(f)

	r.mu.RLock()
	sinks := r.sinks
	r.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Consume(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build resolves the draw list of a frame.
func Build(f Frame) Snapshot {
	snap := Snapshot{Frame: f}
	if f.Scene == nil {
		return snap
	}
	f.Scene.Walk(func(n *scene.Node, world mgl64.Mat4) bool {
		if !n.Visible {
			return false
		}
		if n.Light != nil {
			snap.Lights = append(snap.Lights, n.Light)
		}
		if n.Mesh != scene.NoMesh {
			snap.Nodes = append(snap.Nodes, DrawNode{Name: n.Name, Mesh: n.Mesh, World: world})
		}
		return true
	})
	return snap
}
