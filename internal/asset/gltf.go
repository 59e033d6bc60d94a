package asset

import (
	"fmt"
	"math"

	"github.com/angelar/arsession/internal/animation"
	"github.com/angelar/arsession/internal/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// build converts a decoded document into the scene graph and clips.
func build(doc *gltf.Document) (*Asset, error) {
	nodes := make([]*scene.Node, len(doc.Nodes))
	for i, n := range doc.Nodes {
		nodes[i] = convertNode(i, n)
	}
	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			if c < 0 || c >= len(nodes) {
				return nil, fmt.Errorf("%w: node %d has invalid child %d", ErrDecode, i, c)
			}
			if err := nodes[i].Add(nodes[c]); err != nil {
				return nil, fmt.Errorf("%w: node %d: %v", ErrDecode, i, err)
			}
		}
	}

	root := scene.NewNode("model")
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil {
			idx = *doc.Scene
		}
		if idx < 0 || idx >= len(doc.Scenes) {
			return nil, fmt.Errorf("%w: default scene %d out of range", ErrDecode, idx)
		}
		for _, ni := range doc.Scenes[idx].Nodes {
			if ni < 0 || ni >= len(nodes) {
				return nil, fmt.Errorf("%w: scene references invalid node %d", ErrDecode, ni)
			}
			if err := root.Add(nodes[ni]); err != nil {
				return nil, fmt.Errorf("%w: scene node %d: %v", ErrDecode, ni, err)
			}
		}
	} else {
		for _, n := range nodes {
			if n.Parent() == nil {
				_ = root.Add(n)
			}
		}
	}

	clips := make([]*animation.Clip, 0, len(doc.Animations))
	for i, a := range doc.Animations {
		clip, err := convertAnimation(doc, i, a, nodes)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
	}

	return &Asset{Root: root, Clips: clips}, nil
}

func convertNode(i int, n *gltf.Node) *scene.Node {
	name := n.Name
	if name == "" {
		name = fmt.Sprintf("node%d", i)
	}
	out := scene.NewNode(name)

	// decoding fills absent matrix, rotation and scale with the glTF
	// defaults, so an explicit zero scale is kept
	if m := n.MatrixOrDefault(); m != gltf.DefaultMatrix {
		mat := mgl64.Mat4(m)
		out.Matrix = &mat
	} else {
		r := n.RotationOrDefault()
		out.Translation = mgl64.Vec3(n.Translation)
		out.Rotation = mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}
		out.Scale = mgl64.Vec3(n.Scale)
	}
	if n.Mesh != nil {
		out.Mesh = *n.Mesh
	}
	return out
}

func convertAnimation(doc *gltf.Document, index int, a *gltf.Animation, nodes []*scene.Node) (*animation.Clip, error) {
	name := a.Name
	if name == "" {
		name = fmt.Sprintf("animation%d", index)
	}

	tracks := make([]animation.Track, 0, len(a.Channels))
	for ci, ch := range a.Channels {
		if ch.Target.Node == nil {
			continue
		}
		var path animation.Path
		switch ch.Target.Path {
		case gltf.TRSTranslation:
			path = animation.PathTranslation
		case gltf.TRSRotation:
			path = animation.PathRotation
		case gltf.TRSScale:
			path = animation.PathScale
		default:
			// morph target weights are not animated
			continue
		}

		node := *ch.Target.Node
		if node < 0 || node >= len(nodes) {
			return nil, fmt.Errorf("%w: %s channel %d targets invalid node %d", ErrDecode, name, ci, node)
		}
		if ch.Sampler < 0 || ch.Sampler >= len(a.Samplers) {
			return nil, fmt.Errorf("%w: %s channel %d has invalid sampler %d", ErrDecode, name, ci, ch.Sampler)
		}
		s := a.Samplers[ch.Sampler]

		times, err := readFloats(doc, s.Input)
		if err != nil {
			return nil, fmt.Errorf("%s channel %d input: %w", name, ci, err)
		}
		values, err := readFloats(doc, s.Output)
		if err != nil {
			return nil, fmt.Errorf("%s channel %d output: %w", name, ci, err)
		}

		interp := animation.InterpolationLinear
		switch s.Interpolation {
		case gltf.InterpolationStep:
			interp = animation.InterpolationStep
		case gltf.InterpolationCubicSpline:
			interp = animation.InterpolationCubicSpline
		}

		tracks = append(tracks, animation.Track{
			Target:        nodes[node],
			Path:          path,
			Interpolation: interp,
			Times:         times,
			Values:        values,
		})
	}

	return animation.NewClip(name, tracks), nil
}

// readFloats reads a float accessor, or a normalized integer accessor as
// used for compressed rotations, and flattens vector elements.
func readFloats(doc *gltf.Document, index int) ([]float64, error) {
	if index < 0 || index >= len(doc.Accessors) {
		return nil, fmt.Errorf("%w: accessor %d out of range", ErrDecode, index)
	}
	acr := doc.Accessors[index]
	data, err := modeler.ReadAccessor(doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: accessor %d: %v", ErrDecode, index, err)
	}

	switch v := data.(type) {
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out, nil
	case [][3]float32:
		out := make([]float64, 0, len(v)*3)
		for _, e := range v {
			out = append(out, float64(e[0]), float64(e[1]), float64(e[2]))
		}
		return out, nil
	case [][4]float32:
		out := make([]float64, 0, len(v)*4)
		for _, e := range v {
			out = append(out, float64(e[0]), float64(e[1]), float64(e[2]), float64(e[3]))
		}
		return out, nil
	}

	if !acr.Normalized {
		return nil, fmt.Errorf("%w: accessor %d has unsupported element type %T", ErrDecode, index, data)
	}
	switch v := data.(type) {
	case [][4]int8:
		return denormalize(v, 127), nil
	case [][4]uint8:
		return denormalize(v, 255), nil
	case [][4]int16:
		return denormalize(v, 32767), nil
	case [][4]uint16:
		return denormalize(v, 65535), nil
	default:
		return nil, fmt.Errorf("%w: accessor %d has unsupported normalized element type %T", ErrDecode, index, data)
	}
}

// denormalize maps normalized integer components back to [-1, 1] (signed)
// or [0, 1] (unsigned).
func denormalize[T int8 | uint8 | int16 | uint16](v [][4]T, maxValue float64) []float64 {
	out := make([]float64, 0, len(v)*4)
	for _, e := range v {
		for _, c := range e {
			out = append(out, math.Max(float64(c)/maxValue, -1))
		}
	}
	return out
}
