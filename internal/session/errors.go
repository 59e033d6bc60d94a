package session

import (
	"errors"

	"github.com/angelar/arsession/internal/anchor"
	"github.com/angelar/arsession/internal/asset"
	"github.com/angelar/arsession/internal/tracking"
)

// ErrorKind classifies an error reported through UICallbacks.OnError.
type ErrorKind string

const (
	NetworkError       ErrorKind = "NetworkError"
	DecodeError        ErrorKind = "DecodeError"
	NotFoundError      ErrorKind = "NotFoundError"
	TrackingStartError ErrorKind = "TrackingStartError"
	TrackingStopError  ErrorKind = "TrackingStopError"
	BindError          ErrorKind = "BindError"
)

var (
	ErrBusy           = errors.New("session: controller inbox full")
	ErrNoLoader       = errors.New("session: asset loader is required")
	ErrNoTracker      = errors.New("session: tracking session is required")
	ErrLoadIncomplete = errors.New("asset load ended without a result")
)

// Classify maps err onto the error taxonomy, falling back when err matches
// none of the known causes.
func Classify(err error, fallback ErrorKind) ErrorKind {
	switch {
	case err == nil:
		return fallback
	case errors.Is(err, asset.ErrNotFound):
		return NotFoundError
	case errors.Is(err, asset.ErrDecode):
		return DecodeError
	case errors.Is(err, asset.ErrNetwork), errors.Is(err, ErrLoadIncomplete):
		return NetworkError
	case errors.Is(err, anchor.ErrInvalidTarget), errors.Is(err, anchor.ErrNoAsset):
		return BindError
	case errors.Is(err, tracking.ErrStart):
		return TrackingStartError
	case errors.Is(err, tracking.ErrStop):
		return TrackingStopError
	default:
		return fallback
	}
}
