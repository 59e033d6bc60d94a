package uibridge

import (
	"github.com/angelar/arsession/internal/render"
	"github.com/angelar/arsession/internal/session"
	"github.com/angelar/arsession/pkg/streaming"
)

// ViewPayload converts a projected view for the wire.
func ViewPayload(v session.View) streaming.ViewPayload {
	return streaming.ViewPayload{
		State:         v.State.String(),
		ShowLoading:   v.ShowLoading,
		LoadingText:   v.LoadingText,
		ShowToggle:    v.ShowToggle,
		ToggleEnabled: v.ToggleEnabled,
		ToggleLabel:   v.ToggleLabel,
		ErrorText:     v.ErrorText,
	}
}

// FramePayload converts a rendered snapshot for the wire. Matrices stay
// column-major.
func FramePayload(s render.Snapshot) streaming.FramePayload {
	p := streaming.FramePayload{
		Seq:           s.Frame.Seq,
		AnimationTime: s.Frame.AnimationTime.Seconds(),
		TargetIndex:   s.Frame.TargetIndex,
		Found:         s.Frame.Found,
		Nodes:         make([]streaming.NodePayload, 0, len(s.Nodes)),
	}
	for _, n := range s.Nodes {
		p.Nodes = append(p.Nodes, streaming.NodePayload{
			Name:   n.Name,
			Mesh:   n.Mesh,
			Matrix: [16]float64(n.World),
		})
	}
	return p
}
