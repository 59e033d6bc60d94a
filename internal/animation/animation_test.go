package animation

import (
	"math"
	"testing"
	"time"

	"github.com/angelar/arsession/internal/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func translationTrack(target *scene.Node, interp Interpolation) Track {
	return Track{
		Target:        target,
		Path:          PathTranslation,
		Interpolation: interp,
		Times:         []float64{0, 1, 2},
		Values:        []float64{0, 0, 0, 10, 0, 0, 10, 20, 0},
	}
}

func TestNewClip_Duration(t *testing.T) {
	c := NewClip("idle", []Track{
		{Times: []float64{0, 0.5}},
		{Times: []float64{0, 1.25}},
	})
	assert.Equal(t, "idle", c.Name)
	assert.InDelta(t, 1.25, c.Duration, 1e-9)
}

func TestTrackSample_Linear(t *testing.T) {
	tr := translationTrack(nil, InterpolationLinear)

	assert.InDeltaSlice(t, []float64{5, 0, 0}, tr.Sample(0.5), 1e-9)
	assert.InDeltaSlice(t, []float64{10, 10, 0}, tr.Sample(1.5), 1e-9)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, tr.Sample(-1), 1e-9)
	assert.InDeltaSlice(t, []float64{10, 20, 0}, tr.Sample(9), 1e-9)
}

func TestTrackSample_Step(t *testing.T) {
	tr := translationTrack(nil, InterpolationStep)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, tr.Sample(0.99), 1e-9)
	assert.InDeltaSlice(t, []float64{10, 0, 0}, tr.Sample(1.01), 1e-9)
}

func TestTrackSample_CubicSplineHitsKnots(t *testing.T) {
	tr := Track{
		Path:          PathTranslation,
		Interpolation: InterpolationCubicSpline,
		Times:         []float64{0, 1},
		Values: []float64{
			0, 0, 0, 1, 1, 1, 0, 0, 0, // key 0: in, value, out
			0, 0, 0, 3, 3, 3, 0, 0, 0, // key 1
		},
	}
	assert.InDeltaSlice(t, []float64{1, 1, 1}, tr.Sample(0), 1e-9)
	assert.InDeltaSlice(t, []float64{3, 3, 3}, tr.Sample(1), 1e-9)
	// zero tangents: smoothstep midpoint
	assert.InDeltaSlice(t, []float64{2, 2, 2}, tr.Sample(0.5), 1e-9)
}

func TestTrackSample_RotationSlerp(t *testing.T) {
	q90 := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})
	tr := Track{
		Path:   PathRotation,
		Times:  []float64{0, 1},
		Values: []float64{0, 0, 0, 1, q90.V.X(), q90.V.Y(), q90.V.Z(), q90.W},
	}
	got := tr.Sample(0.5)
	require.Len(t, got, 4)
	want := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0})
	assert.InDelta(t, want.W, got[3], 1e-9)
	assert.InDelta(t, want.V.Y(), got[1], 1e-9)
}

func TestTrackSample_Malformed(t *testing.T) {
	tr := Track{Path: PathScale, Times: []float64{0, 1}, Values: []float64{1, 1}}
	assert.Nil(t, tr.Sample(0.5))
	assert.Nil(t, (&Track{}).Sample(0))
}

func TestMixer_NilClipIsNoop(t *testing.T) {
	m := NewMixer()
	m.Advance(nil, 1)
	assert.Zero(t, m.Time())
}

func TestMixer_AdvanceAppliesAndLoops(t *testing.T) {
	node := scene.NewNode("model")
	clip := NewClip("walk", []Track{translationTrack(node, InterpolationLinear)})
	m := NewMixer()

	m.Advance(clip, 0.5)
	assert.InDelta(t, 5.0, node.Translation.X(), 1e-9)

	// 2.5s total wraps to 0.5s into a 2s clip
	m.Advance(clip, 2.0)
	assert.InDelta(t, 5.0, node.Translation.X(), 1e-9)
	assert.Equal(t, 2500*time.Millisecond, m.Time())

	m.Advance(clip, -3)
	assert.Equal(t, 2500*time.Millisecond, m.Time())
}

func TestMixer_SwitchingClipRestarts(t *testing.T) {
	m := NewMixer()
	a := NewClip("a", nil)
	b := NewClip("b", nil)

	m.Advance(a, 1)
	m.Advance(b, 0.25)
	assert.Equal(t, 250*time.Millisecond, m.Time())
}

func TestClock_Deltas(t *testing.T) {
	var c Clock
	t0 := time.Unix(100, 0)

	assert.Zero(t, c.Delta(t0))

	c.Start(t0)
	assert.True(t, c.Running())
	assert.InDelta(t, 0.016, c.Delta(t0.Add(16*time.Millisecond)), 1e-9)
	assert.InDelta(t, 0.016, c.Delta(t0.Add(32*time.Millisecond)), 1e-9)
	assert.Zero(t, c.Delta(t0.Add(10*time.Millisecond)))
	assert.Equal(t, 32*time.Millisecond, c.Elapsed())

	c.Stop()
	assert.Zero(t, c.Delta(t0.Add(time.Second)))

	c.Start(t0.Add(2 * time.Second))
	assert.Zero(t, c.Elapsed())
}
