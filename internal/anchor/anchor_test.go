package anchor

import (
	"errors"
	"testing"

	"github.com/angelar/arsession/internal/asset"
	"github.com/angelar/arsession/internal/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRegistrar struct {
	targets []int
	err     error
}

func (r *recordingRegistrar) AddAnchor(i int) error {
	if r.err != nil {
		return r.err
	}
	r.targets = append(r.targets, i)
	return nil
}

func newAsset() *asset.Asset {
	root := scene.NewNode("model")
	root.Translation = mgl64.Vec3{3, 4, 5}
	root.Scale = mgl64.Vec3{2, 2, 2}
	return &asset.Asset{Root: root}
}

func TestBind(t *testing.T) {
	reg := &recordingRegistrar{}
	a := newAsset()

	anc, err := Bind(a, 2, reg)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, reg.targets)
	assert.Equal(t, 2, anc.TargetIndex)
	assert.Equal(t, "anchor-2", anc.Group.Name)
	assert.False(t, anc.Visible())
	assert.Same(t, anc.Content, a.Root.Parent())
	assert.Same(t, anc.Group, anc.Content.Parent())

	// model sits at the target origin
	assert.Equal(t, mgl64.Vec3{}, a.Root.Translation)
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, a.Root.Scale)
}

func TestBind_Errors(t *testing.T) {
	_, err := Bind(newAsset(), -1, &recordingRegistrar{})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = Bind(nil, 0, &recordingRegistrar{})
	assert.ErrorIs(t, err, ErrNoAsset)

	boom := errors.New("session closed")
	_, err = Bind(newAsset(), 0, &recordingRegistrar{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestAnchor_VisibilityAndPose(t *testing.T) {
	anc, err := Bind(newAsset(), 0, nil)
	require.NoError(t, err)

	assert.True(t, anc.SetVisible(true))
	assert.False(t, anc.SetVisible(true))
	assert.True(t, anc.Visible())

	anc.SetPose(mgl64.Translate3D(0, 0, -1))
	world := anc.Content.World()
	assert.InDelta(t, -1.0, world.At(2, 3), 1e-9)
}
