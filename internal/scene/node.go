// Package scene holds the transform hierarchy the session controller hands to
// the renderer each frame.
package scene

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// NoMesh marks a node that only carries a transform.
const NoMesh = -1

// ErrCycle is returned when attaching a node would make it its own ancestor
var ErrCycle = errors.New("scene: node cannot be attached below itself")

// Node is a transform node. A node has at most one parent; adding it to
// another parent detaches it from the previous one.
type Node struct {
	Name        string
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
	Scale       mgl64.Vec3

	// Matrix replaces the TRS local transform when set.
	Matrix *mgl64.Mat4

	Visible bool
	Mesh    int
	Light   *Light

	parent   *Node
	children []*Node
}

// NewNode creates a visible node with an identity transform.
func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
		Visible:  true,
		Mesh:     NoMesh,
	}
}

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Add reparents child under n.
func (n *Node) Add(child *Node) error {
	if child == nil {
		return nil
	}
	for p := n; p != nil; p = p.parent {
		if p == child {
			return ErrCycle
		}
	}
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
	return nil
}

// Remove detaches child from n. It reports whether child was attached.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// ResetTransform puts the node back at the origin with unit scale.
func (n *Node) ResetTransform() {
	n.Translation = mgl64.Vec3{}
	n.Rotation = mgl64.QuatIdent()
	n.Scale = mgl64.Vec3{1, 1, 1}
	n.Matrix = nil
}

// Local returns the node transform relative to its parent.
func (n *Node) Local() mgl64.Mat4 {
	if n.Matrix != nil {
		return *n.Matrix
	}
	t := mgl64.Translate3D(n.Translation.X(), n.Translation.Y(), n.Translation.Z())
	r := n.Rotation.Normalize().Mat4()
	s := mgl64.Scale3D(n.Scale.X(), n.Scale.Y(), n.Scale.Z())
	return t.Mul4(r).Mul4(s)
}

// World returns the node transform relative to the hierarchy root.
func (n *Node) World() mgl64.Mat4 {
	m := n.Local()
	for p := n.parent; p != nil; p = p.parent {
		m = p.Local().Mul4(m)
	}
	return m
}

// EffectiveVisible is false when the node or any ancestor is hidden.
func (n *Node) EffectiveVisible() bool {
	for p := n; p != nil; p = p.parent {
		if !p.Visible {
			return false
		}
	}
	return true
}

// Walk visits n and its descendants depth-first with their world matrices.
// Returning false from fn skips the node's subtree.
func (n *Node) Walk(fn func(node *Node, world mgl64.Mat4) bool) {
	var parentWorld mgl64.Mat4
	if n.parent != nil {
		parentWorld = n.parent.World()
	} else {
		parentWorld = mgl64.Ident4()
	}
	n.walk(parentWorld, fn)
}

func (n *Node) walk(parentWorld mgl64.Mat4, fn func(*Node, mgl64.Mat4) bool) {
	world := parentWorld.Mul4(n.Local())
	if !fn(n, world) {
		return
	}
	for _, c := range n.children {
		c.walk(world, fn)
	}
}

// Find returns the first node named name in n's subtree.
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}
