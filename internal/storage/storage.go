// internal/storage/storage.go
package storage

import "github.com/angelar/arsession/pkg/core"

// Backend is the interface all storage implementations must satisfy.
// A backend also satisfies session.Recorder.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management. EndSession receives the session with EndedAt set.
	StartSession(s *core.Session) error
	EndSession(s *core.Session) error

	// Recording
	RecordTransition(t core.Transition) error
	RecordFrame(f core.FrameSample) error
	RecordTargetEvent(e core.TargetEvent) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the recordings server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
