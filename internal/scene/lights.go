package scene

import "github.com/go-gl/mathgl/mgl64"

// LightKind distinguishes light types understood by the renderer
type LightKind int

const (
	LightAmbient LightKind = iota
	LightDirectional
)

func (k LightKind) String() string {
	switch k {
	case LightAmbient:
		return "ambient"
	case LightDirectional:
		return "directional"
	default:
		return "unknown"
	}
}

// Light is attached to a node; directional lights point from the node
// position toward the origin.
type Light struct {
	Kind      LightKind
	Color     uint32
	Intensity float64
}

// DefaultLighting returns a soft white ambient light and two directional
// lights lighting the target from the front-top and front-bottom.
func DefaultLighting() []*Node {
	ambient := NewNode("ambient-light")
	ambient.Light = &Light{Kind: LightAmbient, Color: 0xffffff, Intensity: 0.5}

	key := NewNode("directional-light-1")
	key.Light = &Light{Kind: LightDirectional, Color: 0xffffff, Intensity: 0.5}
	key.Translation = mgl64.Vec3{5, 5, 5}

	fill := NewNode("directional-light-2")
	fill.Light = &Light{Kind: LightDirectional, Color: 0xffffff, Intensity: 0.5}
	fill.Translation = mgl64.Vec3{-5, -5, 5}

	return []*Node{ambient, key, fill}
}
