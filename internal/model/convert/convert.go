// Package convert maps recorded session values onto their GORM rows.
package convert

import (
	"database/sql"
	"encoding/json"

	"github.com/angelar/arsession/internal/model"
	"github.com/angelar/arsession/pkg/core"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// transitionMetadata is stored as JSON on failed transitions.
type transitionMetadata struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// CoreToSession converts a session header. The database id is left zero.
func CoreToSession(s core.Session, tag string) model.Session {
	out := model.Session{
		UUID:        s.ID,
		AssetURL:    s.AssetURL,
		TargetIndex: s.TargetIndex,
		Tag:         tag,
		StartedAt:   s.StartedAt,
	}
	if !s.EndedAt.IsZero() {
		out.EndedAt = sql.NullTime{Time: s.EndedAt, Valid: true}
	}
	return out
}

// CoreToTransition converts a transition. Metadata is only set when the
// transition carries an error.
func CoreToTransition(t core.Transition) model.Transition {
	out := model.Transition{
		Time:      t.Time,
		FromState: t.From,
		ToState:   t.To,
		Trigger:   t.Trigger,
	}
	if t.Kind != "" || t.Message != "" {
		data, err := json.Marshal(transitionMetadata{Kind: t.Kind, Message: t.Message})
		if err == nil {
			out.Metadata = datatypes.JSON(data)
		}
	}
	return out
}

// CoreToFrame converts a frame sample. Frames without a found target, or
// with a non-finite position, keep an empty position.
func CoreToFrame(f core.FrameSample) model.Frame {
	out := model.Frame{
		Time:          f.Time,
		Seq:           f.Seq,
		Segment:       f.Segment,
		Delta:         f.Delta,
		AnimationTime: f.AnimationTime.Seconds(),
		TargetIndex:   f.TargetIndex,
		Found:         f.Found,
		Position:      geom.NewEmptyPoint(geom.DimXYZ),
	}
	if f.Found {
		if pt, err := PositionToPoint(f.Position); err == nil {
			out.Position = pt
		}
	}
	return out
}

// CoreToTargetEvent converts a found/lost event.
func CoreToTargetEvent(e core.TargetEvent) model.TargetEvent {
	return model.TargetEvent{
		Time:        e.Time,
		TargetIndex: e.TargetIndex,
		Found:       e.Found,
	}
}

// PositionToPoint converts a target-space position to an XYZ point. NaN or
// infinite coordinates fail validation.
func PositionToPoint(p core.Position3D) (geom.Point, error) {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Z:    p.Z,
		Type: geom.DimXYZ,
	})
}

// PointToPosition is the inverse of PositionToPoint. Empty points map to
// the origin.
func PointToPosition(pt geom.Point) core.Position3D {
	c, ok := pt.Coordinates()
	if !ok {
		return core.Position3D{}
	}
	return core.Position3D{X: c.X, Y: c.Y, Z: c.Z}
}
