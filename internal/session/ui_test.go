package session

import (
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/angelar/arsession/internal/anchor"
	"github.com/angelar/arsession/internal/asset"
	"github.com/angelar/arsession/internal/tracking"
	"github.com/angelar/arsession/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestProject(t *testing.T) {
	tests := []struct {
		state         State
		showLoading   bool
		showToggle    bool
		toggleEnabled bool
		label         string
	}{
		{Idle, true, false, false, "Start"},
		{Loading, true, false, false, "Start"},
		{Ready, false, true, true, "Start"},
		{Starting, false, true, false, "Start"},
		{Running, false, true, true, "Stop"},
		{Stopping, false, true, false, "Stop"},
		{Stopped, false, true, true, "Start"},
		{Failed, false, false, false, "Start"},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			v := Project(tt.state, 0, "")
			assert.Equal(t, tt.showLoading, v.ShowLoading)
			assert.Equal(t, tt.showToggle, v.ShowToggle)
			assert.Equal(t, tt.toggleEnabled, v.ToggleEnabled)
			assert.Equal(t, tt.label, v.ToggleLabel)
			assert.Empty(t, v.ErrorText)
		})
	}
}

func TestProject_LoadingTextAndError(t *testing.T) {
	assert.Equal(t, "Loading... 42%", Project(Loading, 0.42, "").LoadingText)
	assert.Equal(t, "Loading... 100%", Project(Loading, 3, "").LoadingText)

	v := Project(Failed, 0, "asset not found")
	assert.Equal(t, "Error: asset not found", v.ErrorText)
	assert.False(t, v.ToggleEnabled)
}

func TestParseTargetIndex(t *testing.T) {
	tests := map[string]int{
		"":            0,
		"index=1":     1,
		"index=12":    12,
		"index=-3":    0,
		"index=abc":   0,
		"other=4":     0,
		"index=2&x=y": 2,
	}
	for raw, want := range tests {
		q, err := url.ParseQuery(raw)
		assert.NoError(t, err)
		assert.Equal(t, want, ParseTargetIndex(q), raw)
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, NotFoundError, Classify(fmt.Errorf("%w: x", asset.ErrNotFound), NetworkError))
	assert.Equal(t, DecodeError, Classify(fmt.Errorf("%w: x", asset.ErrDecode), NetworkError))
	assert.Equal(t, NetworkError, Classify(fmt.Errorf("%w: x", asset.ErrNetwork), DecodeError))
	assert.Equal(t, BindError, Classify(anchor.ErrInvalidTarget, NetworkError))
	assert.Equal(t, TrackingStartError, Classify(fmt.Errorf("%w: x", tracking.ErrStart), NetworkError))
	assert.Equal(t, TrackingStopError, Classify(tracking.ErrStop, NetworkError))
	assert.Equal(t, TrackingStartError, Classify(errors.New("??"), TrackingStartError))
	assert.Equal(t, NetworkError, Classify(nil, NetworkError))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, Stopped.toggleable())
	assert.False(t, Starting.toggleable())
}

func TestUICallbacks_NilHooksAreSkipped(t *testing.T) {
	var u UICallbacks
	assert.NotPanics(t, func() {
		u.loading(0.5)
		u.ready()
		u.reportError(NetworkError, "x")
		u.running()
		u.stopped()
	})
}

func TestMultiRecorder(t *testing.T) {
	a, b := &memRecorder{}, &memRecorder{}
	m := MultiRecorder{a, b}

	assert.NoError(t, m.RecordTransition(core.Transition{To: "ready"}))
	assert.NoError(t, m.RecordFrame(core.FrameSample{Seq: 1}))
	assert.NoError(t, m.RecordTargetEvent(core.TargetEvent{Found: true}))

	for _, r := range []*memRecorder{a, b} {
		assert.Len(t, r.transitions, 1)
		assert.Len(t, r.frames, 1)
		assert.Len(t, r.targets, 1)
	}
}
