package convert

import (
	"errors"
	"fmt"
	"sort"

	"github.com/angelar/arsession/internal/model"
	"github.com/angelar/arsession/pkg/core"

	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrShortTrajectory is returned for segments with fewer than two found
// frames.
var ErrShortTrajectory = errors.New("trajectory needs at least two points")

// BuildTrajectory turns the found frames of one running segment into a
// trajectory. Samples are ordered by Seq; the input is not modified. A
// segment whose points share one XY position (a target that never moved)
// fails geometry validation and is returned as an error.
func BuildTrajectory(samples []core.FrameSample) (model.Trajectory, error) {
	if len(samples) < 2 {
		return model.Trajectory{}, ErrShortTrajectory
	}
	ordered := make([]core.FrameSample, len(samples))
	copy(ordered, samples)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	coords := make([]float64, 0, len(ordered)*3)
	for _, s := range ordered {
		coords = append(coords, s.Position.X, s.Position.Y, s.Position.Z)
	}
	first, last := ordered[0], ordered[len(ordered)-1]

	path, err := geom.NewLineString(geom.NewSequence(coords, geom.DimXYZ))
	if err != nil {
		return model.Trajectory{}, fmt.Errorf("segment %d: %w", first.Segment, err)
	}

	return model.Trajectory{
		Segment:     first.Segment,
		TargetIndex: first.TargetIndex,
		StartedAt:   first.Time,
		EndedAt:     last.Time,
		Points:      len(ordered),
		Path:        path,
	}, nil
}
