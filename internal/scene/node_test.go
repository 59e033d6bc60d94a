package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_Reparents(t *testing.T) {
	a := NewNode("a")
	b := NewNode("b")
	child := NewNode("child")

	require.NoError(t, a.Add(child))
	require.NoError(t, b.Add(child))

	assert.Empty(t, a.Children())
	assert.Equal(t, []*Node{child}, b.Children())
	assert.Same(t, b, child.Parent())
}

func TestAdd_RejectsCycle(t *testing.T) {
	root := NewNode("root")
	mid := NewNode("mid")
	require.NoError(t, root.Add(mid))

	assert.ErrorIs(t, mid.Add(root), ErrCycle)
	assert.ErrorIs(t, root.Add(root), ErrCycle)
}

func TestWorld_ComposesParents(t *testing.T) {
	root := NewNode("root")
	root.Translation = mgl64.Vec3{1, 0, 0}
	child := NewNode("child")
	child.Translation = mgl64.Vec3{0, 2, 0}
	require.NoError(t, root.Add(child))

	pos := child.World().Col(3)
	assert.InDelta(t, 1.0, pos.X(), 1e-9)
	assert.InDelta(t, 2.0, pos.Y(), 1e-9)
}

func TestLocal_MatrixOverridesTRS(t *testing.T) {
	n := NewNode("n")
	n.Translation = mgl64.Vec3{9, 9, 9}
	m := mgl64.Translate3D(1, 2, 3)
	n.Matrix = &m

	assert.True(t, n.Local().ApproxEqual(m))

	n.ResetTransform()
	assert.True(t, n.Local().ApproxEqual(mgl64.Ident4()))
}

func TestEffectiveVisible(t *testing.T) {
	root := NewNode("root")
	child := NewNode("child")
	require.NoError(t, root.Add(child))

	assert.True(t, child.EffectiveVisible())
	root.Visible = false
	assert.False(t, child.EffectiveVisible())
}

func TestWalk_SkipsSubtree(t *testing.T) {
	root := NewNode("root")
	hidden := NewNode("hidden")
	hidden.Visible = false
	leaf := NewNode("leaf")
	require.NoError(t, root.Add(hidden))
	require.NoError(t, hidden.Add(leaf))

	var seen []string
	root.Walk(func(n *Node, _ mgl64.Mat4) bool {
		seen = append(seen, n.Name)
		return n.Visible
	})

	assert.Equal(t, []string{"root", "hidden"}, seen)
	assert.Same(t, leaf, root.Find("leaf"))
	assert.Nil(t, root.Find("missing"))
}

func TestDefaultLighting(t *testing.T) {
	lights := DefaultLighting()
	require.Len(t, lights, 3)

	assert.Equal(t, LightAmbient, lights[0].Light.Kind)
	assert.Equal(t, LightDirectional, lights[1].Light.Kind)
	assert.Equal(t, mgl64.Vec3{-5, -5, 5}, lights[2].Translation)
	for _, l := range lights {
		assert.Equal(t, uint32(0xffffff), l.Light.Color)
		assert.InDelta(t, 0.5, l.Light.Intensity, 1e-9)
	}
}
