// Package animation advances keyframe clips over the scene graph.
package animation

import (
	"sort"

	"github.com/angelar/arsession/internal/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// Path is the node property a track animates
type Path int

const (
	PathTranslation Path = iota
	PathRotation
	PathScale
)

// Interpolation selects how values between keyframes are computed
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
	InterpolationCubicSpline
)

// Track animates one property of one node.
//
// Values is flattened: three components per key for translation and scale,
// four (x, y, z, w) for rotation. Cubic-spline tracks store an in-tangent,
// value and out-tangent for every key.
type Track struct {
	Target        *scene.Node
	Path          Path
	Interpolation Interpolation
	Times         []float64
	Values        []float64
}

// Clip is a named set of tracks played together.
type Clip struct {
	Name     string
	Duration float64
	Tracks   []Track
}

// NewClip builds a clip whose duration is the last keyframe time of its
// longest track.
func NewClip(name string, tracks []Track) *Clip {
	c := &Clip{Name: name, Tracks: tracks}
	for _, tr := range tracks {
		if n := len(tr.Times); n > 0 && tr.Times[n-1] > c.Duration {
			c.Duration = tr.Times[n-1]
		}
	}
	return c
}

func (tr *Track) stride() int {
	if tr.Path == PathRotation {
		return 4
	}
	return 3
}

// value returns the keyframe value at key k.
func (tr *Track) value(k int) []float64 {
	s := tr.stride()
	if tr.Interpolation == InterpolationCubicSpline {
		return tr.Values[(3*k+1)*s : (3*k+2)*s]
	}
	return tr.Values[k*s : (k+1)*s]
}

func (tr *Track) inTangent(k int) []float64 {
	s := tr.stride()
	return tr.Values[3*k*s : (3*k+1)*s]
}

func (tr *Track) outTangent(k int) []float64 {
	s := tr.stride()
	return tr.Values[(3*k+2)*s : (3*k+3)*s]
}

func (tr *Track) valid() bool {
	n := len(tr.Times)
	if n == 0 {
		return false
	}
	want := n * tr.stride()
	if tr.Interpolation == InterpolationCubicSpline {
		want *= 3
	}
	return len(tr.Values) >= want
}

// Sample returns the track value at time t. It returns nil for an empty or
// malformed track.
func (tr *Track) Sample(t float64) []float64 {
	if !tr.valid() {
		return nil
	}
	n := len(tr.Times)
	if t <= tr.Times[0] {
		return clone(tr.value(0))
	}
	if t >= tr.Times[n-1] {
		return clone(tr.value(n - 1))
	}

	k1 := sort.SearchFloat64s(tr.Times, t)
	k0 := k1 - 1
	span := tr.Times[k1] - tr.Times[k0]
	if span <= 0 {
		return clone(tr.value(k1))
	}
	alpha := (t - tr.Times[k0]) / span

	switch tr.Interpolation {
	case InterpolationStep:
		return clone(tr.value(k0))
	case InterpolationCubicSpline:
		out := hermite(tr.value(k0), tr.outTangent(k0), tr.value(k1), tr.inTangent(k1), alpha, span)
		if tr.Path == PathRotation {
			q := toQuat(out).Normalize()
			return []float64{q.V.X(), q.V.Y(), q.V.Z(), q.W}
		}
		return out
	default:
		if tr.Path == PathRotation {
			q := mgl64.QuatSlerp(toQuat(tr.value(k0)), toQuat(tr.value(k1)), alpha)
			return []float64{q.V.X(), q.V.Y(), q.V.Z(), q.W}
		}
		v0, v1 := tr.value(k0), tr.value(k1)
		out := make([]float64, len(v0))
		for i := range v0 {
			out[i] = v0[i] + (v1[i]-v0[i])*alpha
		}
		return out
	}
}

// apply writes the sampled value onto the target node.
func (tr *Track) apply(t float64) {
	if tr.Target == nil {
		return
	}
	v := tr.Sample(t)
	if v == nil {
		return
	}
	switch tr.Path {
	case PathTranslation:
		tr.Target.Translation = mgl64.Vec3{v[0], v[1], v[2]}
	case PathRotation:
		tr.Target.Rotation = toQuat(v)
	case PathScale:
		tr.Target.Scale = mgl64.Vec3{v[0], v[1], v[2]}
	}
}

func hermite(v0, b0, v1, a1 []float64, s, span float64) []float64 {
	s2 := s * s
	s3 := s2 * s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2
	out := make([]float64, len(v0))
	for i := range v0 {
		out[i] = h00*v0[i] + h10*span*b0[i] + h01*v1[i] + h11*span*a1[i]
	}
	return out
}

func toQuat(v []float64) mgl64.Quat {
	return mgl64.Quat{W: v[3], V: mgl64.Vec3{v[0], v[1], v[2]}}
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
