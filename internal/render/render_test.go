package render

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelar/arsession/internal/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu    sync.Mutex
	snaps []Snapshot
	err   error
}

func (c *captureSink) Consume(s Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, s)
	return c.err
}

func testScene() (*scene.Node, *scene.Node) {
	root := scene.NewNode("root")
	for _, l := range scene.DefaultLighting() {
		_ = root.Add(l)
	}
	group := scene.NewNode("anchor-0")
	_ = root.Add(group)
	mesh := scene.NewNode("body")
	mesh.Mesh = 0
	mesh.Translation = mgl64.Vec3{0, 1, 0}
	_ = group.Add(mesh)
	return root, group
}

func TestBuild_SkipsHiddenSubtrees(t *testing.T) {
	root, group := testScene()

	snap := Build(Frame{Scene: root})
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, "body", snap.Nodes[0].Name)
	assert.InDelta(t, 1.0, snap.Nodes[0].World.At(1, 3), 1e-9)
	assert.Len(t, snap.Lights, 3)

	group.Visible = false
	snap = Build(Frame{Scene: root})
	assert.Empty(t, snap.Nodes)
	assert.Len(t, snap.Lights, 3)

	assert.Empty(t, Build(Frame{}).Nodes)
}

func TestSceneRenderer_FansOutAndJoinsErrors(t *testing.T) {
	root, _ := testScene()
	ok := &captureSink{}
	failing := &captureSink{err: errors.New("socket closed")}

	r := NewSceneRenderer(nil, ok)
	r.AddSink(failing)

	err := r.Render(Frame{Seq: 7, Scene: root})
	assert.ErrorContains(t, err, "socket closed")
	require.Len(t, ok.snaps, 1)
	assert.Equal(t, uint64(7), ok.snaps[0].Frame.Seq)
	assert.Len(t, failing.snaps, 1)
}

func TestTickerScheduler_StopHaltsTicks(t *testing.T) {
	s := NewTickerScheduler(200)
	assert.Equal(t, 5*time.Millisecond, s.Interval())

	var ticks atomic.Int32
	stop := s.Start(func(time.Time) { ticks.Add(1) })

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
	stop()
	stop()

	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, ticks.Load())
}

func TestNewTickerScheduler_DefaultsFPS(t *testing.T) {
	assert.Equal(t, time.Second/60, NewTickerScheduler(0).Interval())
}
