// Package session runs the lifecycle of one AR session: load the model, bind
// it to an image target and start or stop tracking on request.
//
// All state lives in a Controller and is mutated only by its event loop
// (Run). Public methods post events to the loop and return immediately.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/angelar/arsession/internal/anchor"
	"github.com/angelar/arsession/internal/animation"
	"github.com/angelar/arsession/internal/asset"
	"github.com/angelar/arsession/internal/channel"
	"github.com/angelar/arsession/internal/render"
	"github.com/angelar/arsession/internal/scene"
	"github.com/angelar/arsession/internal/tracking"
	"github.com/angelar/arsession/pkg/core"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultInboxSize = 64
	shutdownTimeout  = 5 * time.Second
)

// Config selects what the session shows.
type Config struct {
	AssetURL    string
	TargetIndex int
	InboxSize   int
}

// Dependencies are the collaborators of a Controller. Loader and Tracker are
// required; everything else has a default.
type Dependencies struct {
	Loader    asset.Loader
	Tracker   tracking.Session
	Renderer  render.Renderer
	Scheduler render.Scheduler
	Driver    animation.Driver
	UI        UICallbacks
	Recorder  Recorder
	Logger    *slog.Logger
	Now       func() time.Time
}

// Status is a point-in-time summary safe to read from any goroutine.
type Status struct {
	ID            string
	State         State
	AssetURL      string
	TargetIndex   int
	Frames        uint64
	Found         bool
	Progress      float64
	AnimationTime time.Duration
	LastError     string
	LastErrorKind ErrorKind
}

type event interface {
	sessionEvent()
}

type (
	beginLoadEvent   struct{}
	toggleEvent      struct{}
	visibilityEvent  struct{ visible bool }
	loadEvent        struct{ ev asset.Event }
	loadClosedEvent  struct{}
	startResultEvent struct{ err error }
	stopResultEvent  struct{ err error }
	frameEvent       struct {
		gen uint64
		now time.Time
	}
)

func (beginLoadEvent) sessionEvent()   {}
func (toggleEvent) sessionEvent()      {}
func (visibilityEvent) sessionEvent()  {}
func (loadEvent) sessionEvent()        {}
func (loadClosedEvent) sessionEvent()  {}
func (startResultEvent) sessionEvent() {}
func (stopResultEvent) sessionEvent()  {}
func (frameEvent) sessionEvent()       {}

// Controller owns the session state machine.
type Controller struct {
	id      string
	cfg     Config
	loader  asset.Loader
	tracker tracking.Session
	render  render.Renderer
	sched   render.Scheduler
	driver  animation.Driver
	ui      UICallbacks
	rec     Recorder
	logger  *slog.Logger
	now     func() time.Time
	metrics *metrics

	inbox   channel.Channel[event]
	running atomic.Bool
	runCtx  context.Context

	// owned by the event loop
	state       State
	asset       *asset.Asset
	anchor      *anchor.Anchor
	root        *scene.Node
	clip        *animation.Clip
	clock       animation.Clock
	stopLoop    func()
	loopGen     uint64
	segment     uint64
	frameSeq    uint64
	pendingStop bool
	loadStart   time.Time

	// mirrors for Status
	stateMirror   atomic.Int32
	frames        atomic.Uint64
	found         atomic.Bool
	progress      atomic.Uint64
	animTime      atomic.Int64
	lastErr       atomic.Pointer[string]
	lastErrorKind atomic.Pointer[ErrorKind]
}

// New creates a controller in Idle. Call Run to start its event loop.
func New(cfg Config, deps Dependencies) (*Controller, error) {
	if deps.Loader == nil {
		return nil, ErrNoLoader
	}
	if deps.Tracker == nil {
		return nil, ErrNoTracker
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}
	if deps.Scheduler == nil {
		deps.Scheduler = render.NewTickerScheduler(60)
	}
	if deps.Driver == nil {
		deps.Driver = animation.NewMixer()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	root := scene.NewNode("scene")
	for _, light := range scene.DefaultLighting() {
		_ = root.Add(light)
	}

	c := &Controller{
		id:      id,
		cfg:     cfg,
		loader:  deps.Loader,
		tracker: deps.Tracker,
		render:  deps.Renderer,
		sched:   deps.Scheduler,
		driver:  deps.Driver,
		ui:      deps.UI,
		rec:     deps.Recorder,
		logger:  deps.Logger.With("session", id),
		now:     deps.Now,
		metrics: m,
		inbox:   channel.New[event](cfg.InboxSize),
		root:    root,
		state:   Idle,
	}
	return c, nil
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.id
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.stateMirror.Load())
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	s := Status{
		ID:            c.id,
		State:         c.State(),
		AssetURL:      c.cfg.AssetURL,
		TargetIndex:   c.cfg.TargetIndex,
		Frames:        c.frames.Load(),
		Found:         c.found.Load(),
		Progress:      math.Float64frombits(c.progress.Load()),
		AnimationTime: time.Duration(c.animTime.Load()),
	}
	if msg := c.lastErr.Load(); msg != nil {
		s.LastError = *msg
	}
	if kind := c.lastErrorKind.Load(); kind != nil {
		s.LastErrorKind = *kind
	}
	return s
}

// View projects the current status for the page.
func (c *Controller) View() View {
	s := c.Status()
	return Project(s.State, s.Progress, s.LastError)
}

// BeginLoad starts loading the asset. Only effective in Idle.
func (c *Controller) BeginLoad() error {
	return c.post(beginLoadEvent{})
}

// Toggle starts or stops tracking depending on the current state.
func (c *Controller) Toggle() error {
	return c.post(toggleEvent{})
}

// SetVisible reports a page visibility change. Hiding the page releases the
// camera; showing it again never resumes tracking.
func (c *Controller) SetVisible(visible bool) error {
	return c.post(visibilityEvent{visible: visible})
}

func (c *Controller) post(e event) error {
	if !c.inbox.TrySend(e) {
		return ErrBusy
	}
	return nil
}

// Run processes events until ctx is done. Tracking still held at that point
// is stopped before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("session %s: already running", c.id)
	}
	c.runCtx = ctx
	c.logger.Info("Session controller started", "asset", c.cfg.AssetURL, "target", c.cfg.TargetIndex)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case e := <-c.inbox.Receive():
			c.handle(e)
		}
	}
}

func (c *Controller) handle(e event) {
	switch e := e.(type) {
	case beginLoadEvent:
		c.onBeginLoad()
	case loadEvent:
		c.onLoadEvent(e.ev)
	case loadClosedEvent:
		c.onLoadClosed()
	case toggleEvent:
		c.onToggle()
	case startResultEvent:
		c.onStartResult(e.err)
	case stopResultEvent:
		c.onStopResult(e.err)
	case visibilityEvent:
		c.onVisibility(e.visible)
	case frameEvent:
		c.onFrame(e)
	}
}

func (c *Controller) onBeginLoad() {
	if c.state != Idle {
		c.logger.Debug("Ignoring load request", "state", c.state)
		return
	}
	c.transition(Loading, "load", "", "")
	c.loadStart = c.now()

	ctx := c.runCtx
	events := c.loader.Load(ctx, c.cfg.AssetURL)
	go func() {
		for ev := range events {
			if !c.inbox.SendContext(ctx, loadEvent{ev: ev}) {
				return
			}
		}
		c.inbox.SendContext(ctx, loadClosedEvent{})
	}()
}

func (c *Controller) onLoadEvent(ev asset.Event) {
	if c.state != Loading {
		return
	}

	switch ev := ev.(type) {
	case asset.Progress:
		f := ev.Fraction()
		c.progress.Store(math.Float64bits(f))
		c.ui.loading(f)

	case asset.Failure:
		c.observeLoad("failure")
		c.fail(Classify(ev.Err, NetworkError), ev.Err)

	case asset.Success:
		c.observeLoad("success")
		anc, err := anchor.Bind(ev.Asset, c.cfg.TargetIndex, c.tracker)
		if err != nil {
			c.fail(BindError, err)
			return
		}
		_ = c.root.Add(anc.Group)
		c.asset = ev.Asset
		c.anchor = anc
		c.clip = ev.Asset.ActiveClip()
		c.progress.Store(math.Float64bits(1))

		c.logger.Info("Asset ready", "url", ev.Asset.Source, "clips", len(ev.Asset.Clips), "target", anc.TargetIndex)
		c.transition(Ready, "loaded", "", "")
		c.ui.ready()
	}
}

func (c *Controller) onLoadClosed() {
	if c.state != Loading {
		return
	}
	c.observeLoad("abandoned")
	c.fail(NetworkError, ErrLoadIncomplete)
}

func (c *Controller) fail(kind ErrorKind, err error) {
	msg := err.Error()
	c.logger.Error("Session failed", "kind", kind, "error", err)
	c.setLastError(kind, msg)
	c.transition(Failed, "error", kind, msg)
	c.ui.reportError(kind, msg)
}

func (c *Controller) onToggle() {
	if !c.state.toggleable() {
		c.logger.Debug("Ignoring toggle", "state", c.state)
		return
	}
	if c.state == Running {
		c.beginStop("toggle")
		return
	}
	c.beginStart()
}

func (c *Controller) beginStart() {
	c.pendingStop = false
	c.transition(Starting, "toggle", "", "")

	ctx := c.runCtx
	go func() {
		err := c.tracker.Start(ctx)
		c.inbox.SendContext(ctx, startResultEvent{err: err})
	}()
}

func (c *Controller) onStartResult(err error) {
	if c.state != Starting {
		return
	}
	pending := c.pendingStop
	c.pendingStop = false

	if err != nil {
		kind := Classify(err, TrackingStartError)
		msg := err.Error()
		c.logger.Warn("Tracking start failed", "error", err)
		c.setLastError(kind, msg)
		c.transition(Ready, "start failed", kind, msg)
		c.ui.reportError(kind, msg)
		c.ui.ready()
		return
	}

	if pending {
		c.logger.Info("Page hidden while starting, releasing camera")
		c.beginStop("hidden")
		return
	}

	c.clearLastError()
	c.clock.Start(c.now())
	c.installLoop()
	c.transition(Running, "started", "", "")
	c.ui.running()
}

// beginStop tears down the frame loop before the tracker is asked to stop.
func (c *Controller) beginStop(trigger string) {
	c.teardownLoop()
	c.transition(Stopping, trigger, "", "")

	ctx := c.runCtx
	go func() {
		err := c.tracker.Stop(ctx)
		c.inbox.SendContext(ctx, stopResultEvent{err: err})
	}()
}

func (c *Controller) onStopResult(err error) {
	if c.state != Stopping {
		return
	}
	c.clock.Stop()
	c.setTargetFound(false)

	if err != nil {
		kind := Classify(err, TrackingStopError)
		msg := err.Error()
		c.logger.Warn("Tracking stop failed", "error", err)
		c.setLastError(kind, msg)
		c.transition(Stopped, "stopped", kind, msg)
		c.ui.reportError(kind, msg)
		c.ui.stopped()
		return
	}

	c.transition(Stopped, "stopped", "", "")
	c.ui.stopped()
}

func (c *Controller) onVisibility(visible bool) {
	if visible {
		c.logger.Debug("Page visible", "state", c.state)
		return
	}

	switch c.state {
	case Running:
		c.beginStop("hidden")
	case Ready:
		c.transition(Stopped, "hidden", "", "")
		c.ui.stopped()
	case Starting:
		c.pendingStop = true
	default:
		c.logger.Debug("Page hidden", "state", c.state)
	}
}

func (c *Controller) installLoop() {
	c.loopGen++
	c.segment++
	gen := c.loopGen
	c.stopLoop = c.sched.Start(func(now time.Time) {
		c.inbox.TrySend(frameEvent{gen: gen, now: now})
	})
}

// teardownLoop stops the scheduler and invalidates ticks already queued.
func (c *Controller) teardownLoop() {
	if c.stopLoop != nil {
		c.stopLoop()
		c.stopLoop = nil
	}
	c.loopGen++
}

func (c *Controller) onFrame(e frameEvent) {
	if e.gen != c.loopGen || c.state != Running {
		return
	}

	delta := c.clock.Delta(e.now)
	c.driver.Advance(c.clip, delta)
	elapsed := c.clock.Elapsed()
	c.animTime.Store(int64(elapsed))

	pose, found := c.tracker.Pose(c.anchor.TargetIndex)
	if found {
		c.anchor.SetPose(pose.Matrix)
	}
	c.setTargetFound(found)

	c.frameSeq++
	frame := render.Frame{
		Seq:           c.frameSeq,
		At:            e.now,
		Delta:         delta,
		AnimationTime: elapsed,
		Scene:         c.root,
		TargetIndex:   c.anchor.TargetIndex,
		Pose:          pose.Matrix,
		Found:         found,
	}
	if c.render != nil {
		if err := c.render.Render(frame); err != nil {
			c.logger.Debug("Render failed", "seq", frame.Seq, "error", err)
		}
	}
	c.frames.Add(1)
	c.metrics.frames.Add(context.Background(), 1)

	if c.rec != nil {
		sample := core.FrameSample{
			SessionID:     c.id,
			Time:          e.now,
			Seq:           frame.Seq,
			Segment:       c.segment,
			Delta:         delta,
			AnimationTime: elapsed,
			TargetIndex:   frame.TargetIndex,
			Found:         found,
		}
		if found {
			t := pose.Matrix.Col(3)
			sample.Position = core.Position3D{X: t.X(), Y: t.Y(), Z: t.Z()}
		}
		if err := c.rec.RecordFrame(sample); err != nil {
			c.logger.Debug("Failed to record frame", "error", err)
		}
	}
}

// setTargetFound updates anchor visibility and records found/lost changes.
func (c *Controller) setTargetFound(found bool) {
	if c.anchor == nil || !c.anchor.SetVisible(found) {
		return
	}
	c.found.Store(found)
	if found {
		c.logger.Debug("Target found", "target", c.anchor.TargetIndex)
	} else {
		c.logger.Debug("Target lost", "target", c.anchor.TargetIndex)
	}
	if c.rec != nil {
		err := c.rec.RecordTargetEvent(core.TargetEvent{
			SessionID:   c.id,
			Time:        c.now(),
			TargetIndex: c.anchor.TargetIndex,
			Found:       found,
		})
		if err != nil {
			c.logger.Debug("Failed to record target event", "error", err)
		}
	}
}

func (c *Controller) transition(to State, trigger string, kind ErrorKind, msg string) {
	from := c.state
	c.state = to
	c.stateMirror.Store(int32(to))

	c.logger.Info("Session state changed", "from", from, "to", to, "trigger", trigger)
	c.metrics.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))

	if c.rec != nil {
		err := c.rec.RecordTransition(core.Transition{
			SessionID: c.id,
			Time:      c.now(),
			From:      from.String(),
			To:        to.String(),
			Trigger:   trigger,
			Kind:      string(kind),
			Message:   msg,
		})
		if err != nil {
			c.logger.Warn("Failed to record transition", "error", err)
		}
	}
}

func (c *Controller) observeLoad(result string) {
	c.metrics.loadDuration.Record(context.Background(), c.now().Sub(c.loadStart).Seconds(),
		metric.WithAttributes(attribute.String("result", result)))
}

func (c *Controller) setLastError(kind ErrorKind, msg string) {
	c.lastErr.Store(&msg)
	c.lastErrorKind.Store(&kind)
}

func (c *Controller) clearLastError() {
	c.lastErr.Store(nil)
	c.lastErrorKind.Store(nil)
}

func (c *Controller) shutdown() {
	c.teardownLoop()
	if c.state.trackingActive() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.tracker.Stop(ctx); err != nil {
			c.logger.Warn("Tracking stop on shutdown failed", "error", err)
		}
	}
	c.clock.Stop()
	c.logger.Info("Session controller stopped", "state", c.state, "frames", c.frames.Load())
}
