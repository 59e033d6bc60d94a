package influx

import (
	"strconv"
	"time"

	"github.com/angelar/arsession/pkg/core"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// PointWriter is satisfied by Manager.
type PointWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// Telemetry turns session records into points. It is a session recorder.
type Telemetry struct {
	w      PointWriter
	bucket string
	tag    string
}

// NewTelemetry writes points to bucket, tagging each with tag when set.
func NewTelemetry(w PointWriter, bucket, tag string) *Telemetry {
	return &Telemetry{w: w, bucket: bucket, tag: tag}
}

func (t *Telemetry) point(measurement, sessionID string, ts time.Time) *influxdb2_write.Point {
	if ts.IsZero() {
		ts = time.Now()
	}
	p := influxdb2_write.NewPointWithMeasurement(measurement).
		AddTag("session", sessionID).
		SetTime(ts)
	if t.tag != "" {
		p.AddTag("tag", t.tag)
	}
	return p
}

func (t *Telemetry) RecordTransition(tr core.Transition) error {
	p := t.point("session_transition", tr.SessionID, tr.Time).
		AddTag("from", tr.From).
		AddTag("to", tr.To).
		AddField("trigger", tr.Trigger)
	if tr.Kind != "" {
		p.AddTag("kind", tr.Kind)
		p.AddField("message", tr.Message)
	}
	return t.w.WritePoint(t.bucket, p)
}

func (t *Telemetry) RecordFrame(f core.FrameSample) error {
	p := t.point("frame", f.SessionID, f.Time).
		AddTag("segment", strconv.FormatUint(f.Segment, 10)).
		AddTag("found", strconv.FormatBool(f.Found)).
		AddField("seq", f.Seq).
		AddField("delta", f.Delta).
		AddField("animation_time", f.AnimationTime.Seconds())
	if f.Delta > 0 {
		p.AddField("fps", 1/f.Delta)
	}
	if f.Found {
		p.AddField("x", f.Position.X).
			AddField("y", f.Position.Y).
			AddField("z", f.Position.Z)
	}
	return t.w.WritePoint(t.bucket, p)
}

func (t *Telemetry) RecordTargetEvent(e core.TargetEvent) error {
	p := t.point("target_event", e.SessionID, e.Time).
		AddTag("target", strconv.Itoa(e.TargetIndex)).
		AddField("found", e.Found)
	return t.w.WritePoint(t.bucket, p)
}
