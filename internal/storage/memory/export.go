// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/angelar/arsession/pkg/core"
)

// ExportVersion is bumped when the export layout changes.
const ExportVersion = 1

// SessionExport is the root JSON structure
type SessionExport struct {
	Version     int       `json:"version"`
	ID          string    `json:"id"`
	AssetURL    string    `json:"assetUrl"`
	TargetIndex int       `json:"targetIndex"`
	Tag         string    `json:"tag,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
	DurationMs  int64     `json:"durationMs"`
	FrameCount  int       `json:"frameCount"`
	// Frames are [seq, segment, animationMs, found, x, y, z]
	Frames       [][]any            `json:"frames"`
	Transitions  []core.Transition  `json:"transitions"`
	TargetEvents []core.TargetEvent `json:"targetEvents"`
}

// exportJSON writes the session data to a JSON file, gzipped if configured.
// Callers hold b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	id := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(b.session.ID)
	timestamp := b.session.StartedAt.UTC().Format("20060102_150405")

	filename := fmt.Sprintf("session_%s_%s.json", id, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastMetadata = core.UploadMetadata{
		SessionID:   b.session.ID,
		AssetURL:    b.session.AssetURL,
		TargetIndex: b.session.TargetIndex,
		Duration:    duration(b.session),
		Frames:      uint64(len(b.frames)),
		Tag:         b.tag,
	}
	return nil
}

func (b *Backend) buildExport() SessionExport {
	s := b.session
	export := SessionExport{
		Version:      ExportVersion,
		ID:           s.ID,
		AssetURL:     s.AssetURL,
		TargetIndex:  s.TargetIndex,
		Tag:          b.tag,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		DurationMs:   duration(s).Milliseconds(),
		FrameCount:   len(b.frames),
		Frames:       make([][]any, 0, len(b.frames)),
		Transitions:  make([]core.Transition, 0, len(b.transitions)),
		TargetEvents: make([]core.TargetEvent, 0, len(b.targetEvents)),
	}

	for _, f := range b.frames {
		export.Frames = append(export.Frames, []any{
			f.Seq,
			f.Segment,
			f.AnimationTime.Milliseconds(),
			boolToInt(f.Found),
			f.Position.X,
			f.Position.Y,
			f.Position.Z,
		})
	}
	export.Transitions = append(export.Transitions, b.transitions...)
	export.TargetEvents = append(export.TargetEvents, b.targetEvents...)

	return export
}

func duration(s *core.Session) time.Duration {
	if s.EndedAt.IsZero() || s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
