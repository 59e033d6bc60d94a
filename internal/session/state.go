package session

// State is the lifecycle state of a Controller.
type State int32

const (
	Idle State = iota
	Loading
	Ready
	Starting
	Running
	Stopping
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// toggleable reports whether a toggle has any effect in s.
func (s State) toggleable() bool {
	return s == Ready || s == Running || s == Stopped
}

// trackingActive reports whether the camera may be held in s.
func (s State) trackingActive() bool {
	return s == Starting || s == Running || s == Stopping
}
