package session

import (
	"errors"

	"github.com/angelar/arsession/pkg/core"
)

// Recorder persists what happens during a session.
type Recorder interface {
	RecordTransition(t core.Transition) error
	RecordFrame(f core.FrameSample) error
	RecordTargetEvent(e core.TargetEvent) error
}

// MultiRecorder fans records out to several recorders.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordTransition(t core.Transition) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordTransition(t))
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) RecordFrame(f core.FrameSample) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordFrame(f))
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) RecordTargetEvent(e core.TargetEvent) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordTargetEvent(e))
	}
	return errors.Join(errs...)
}
