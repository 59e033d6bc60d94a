package session

import "fmt"

// UICallbacks are the presentation hooks. Nil hooks are skipped; all hooks
// run on the controller's event loop.
type UICallbacks struct {
	OnLoading func(progress float64)
	OnReady   func()
	OnError   func(kind ErrorKind, message string)
	OnRunning func()
	OnStopped func()
}

func (u UICallbacks) loading(progress float64) {
	if u.OnLoading != nil {
		u.OnLoading(progress)
	}
}

func (u UICallbacks) ready() {
	if u.OnReady != nil {
		u.OnReady()
	}
}

func (u UICallbacks) reportError(kind ErrorKind, message string) {
	if u.OnError != nil {
		u.OnError(kind, message)
	}
}

func (u UICallbacks) running() {
	if u.OnRunning != nil {
		u.OnRunning()
	}
}

func (u UICallbacks) stopped() {
	if u.OnStopped != nil {
		u.OnStopped()
	}
}

// View is the page presentation derived from the controller state.
type View struct {
	State         State
	ShowLoading   bool
	LoadingText   string
	ShowToggle    bool
	ToggleEnabled bool
	ToggleLabel   string
	ErrorText     string
}

// Project derives the presentation for state. lastError is the message of
// the most recent error, or empty.
func Project(state State, progress float64, lastError string) View {
	v := View{State: state, ToggleLabel: "Start"}

	switch state {
	case Idle, Loading:
		v.ShowLoading = true
		v.LoadingText = fmt.Sprintf("Loading... %d%%", percent(progress))
	case Ready, Stopped:
		v.ShowToggle = true
		v.ToggleEnabled = true
	case Starting:
		v.ShowToggle = true
	case Running:
		v.ShowToggle = true
		v.ToggleEnabled = true
		v.ToggleLabel = "Stop"
	case Stopping:
		v.ShowToggle = true
		v.ToggleLabel = "Stop"
	}

	if lastError != "" {
		v.ErrorText = "Error: " + lastError
	}
	return v
}

func percent(f float64) int {
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return 100
	default:
		return int(f*100 + 0.5)
	}
}
