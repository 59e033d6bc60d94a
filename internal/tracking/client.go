package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/angelar/arsession/pkg/streaming"
	"github.com/go-gl/mathgl/mgl64"
	ws "github.com/gorilla/websocket"
)

const (
	replyChSize = 16
	writeWait   = 10 * time.Second
)

// Client talks to a tracker process over a WebSocket. One connection is
// opened per Start and closed by Stop.
type Client struct {
	url    string
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	anchors []int
	conn    *ws.Conn
	replyCh chan streaming.Envelope
	done    chan struct{}

	posesMu sync.RWMutex
	poses   map[int]Pose

	now func() time.Time
}

var _ Session = (*Client)(nil)

// NewClient creates a client for the tracker at url.
func NewClient(url string, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = DefaultOptions().StartTimeout
	}
	return &Client{
		url:    url,
		opts:   opts,
		logger: logger,
		poses:  make(map[int]Pose),
		now:    time.Now,
	}
}

// AddAnchor registers a target. It takes effect on the next Start.
func (c *Client) AddAnchor(targetIndex int) error {
	if targetIndex < 0 {
		return fmt.Errorf("invalid target index %d", targetIndex)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.anchors, targetIndex) {
		c.anchors = append(c.anchors, targetIndex)
	}
	return nil
}

// Start connects to the tracker and waits for it to acknowledge.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	anchors := slices.Clone(c.anchors)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.StartTimeout)
	defer cancel()

	conn, _, err := ws.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrStart, c.url, err)
	}

	replyCh := make(chan streaming.Envelope, replyChSize)
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.replyCh = replyCh
	c.done = done
	c.mu.Unlock()

	go c.readLoop(conn, replyCh, done)

	msg, err := streaming.Encode(streaming.TypeStart, streaming.StartPayload{
		ImageTargetSrc:  c.opts.ImageTargetSrc,
		Anchors:         anchors,
		FilterMinCF:     c.opts.FilterMinCF,
		FilterBeta:      c.opts.FilterBeta,
		WarmupTolerance: c.opts.WarmupTolerance,
		MissTolerance:   c.opts.MissTolerance,
	})
	if err == nil {
		err = c.write(msg)
	}
	if err == nil {
		err = c.await(ctx, replyCh, done, streaming.TypeStart, streaming.TypeStarted)
	}
	if err != nil {
		c.closeConn()
		return fmt.Errorf("%w: %v", ErrStart, err)
	}

	c.logger.Info("Tracking started", "url", c.url, "anchors", anchors)
	return nil
}

// Stop asks the tracker to release the camera and closes the connection.
// The connection is closed even when the tracker does not confirm.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	conn, replyCh, done := c.conn, c.replyCh, c.done
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	defer c.closeConn()

	msg, err := streaming.Encode(streaming.TypeStop, nil)
	if err == nil {
		err = c.write(msg)
	}
	if err == nil {
		ctx, cancel := context.WithTimeout(ctx, c.opts.StartTimeout)
		defer cancel()
		err = c.await(ctx, replyCh, done, streaming.TypeStop, streaming.TypeStopped)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStop, err)
	}

	c.logger.Info("Tracking stopped", "url", c.url)
	return nil
}

// Pose returns the last pose reported for targetIndex while it is found.
func (c *Client) Pose(targetIndex int) (Pose, bool) {
	c.posesMu.RLock()
	defer c.posesMu.RUnlock()
	p, ok := c.poses[targetIndex]
	return p, ok
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(ws.TextMessage, data)
}

// await blocks until the tracker replies with want, or an error for request.
func (c *Client) await(ctx context.Context, replyCh <-chan streaming.Envelope, done <-chan struct{}, request, want string) error {
	for {
		select {
		case env := <-replyCh:
			switch env.Type {
			case want:
				return nil
			case streaming.TypeError:
				var p streaming.ErrorPayload
				_ = json.Unmarshal(env.Payload, &p)
				if p.For == "" || p.For == request {
					return fmt.Errorf("tracker: %s", p.Message)
				}
			}
		case <-done:
			return fmt.Errorf("connection closed while waiting for %q", want)
		case <-ctx.Done():
			return fmt.Errorf("waiting for %q: %w", want, ctx.Err())
		}
	}
}

// readLoop routes replies to replyCh and applies pose updates. It closes done
// when the connection ends.
func (c *Client) readLoop(conn *ws.Conn, replyCh chan<- streaming.Envelope, done chan<- struct{}) {
	defer close(done)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug("Tracker read loop ended", "error", err)
			c.clearPoses()
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Malformed tracker message", "raw", string(message))
			continue
		}

		switch env.Type {
		case streaming.TypePose:
			var p streaming.PosePayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				c.logger.Debug("Malformed pose", "error", err)
				continue
			}
			c.setPose(p.TargetIndex, mgl64.Mat4(p.Matrix))
		case streaming.TypeLost:
			var p streaming.TargetPayload
			if err := json.Unmarshal(env.Payload, &p); err == nil {
				c.dropPose(p.TargetIndex)
			}
		case streaming.TypeFound:
			// the pose message that follows carries the transform
		case streaming.TypeStarted, streaming.TypeStopped, streaming.TypeError:
			select {
			case replyCh <- env:
			default:
				c.logger.Debug("Reply channel full, dropping", "type", env.Type)
			}
		default:
			c.logger.Debug("Unknown tracker message", "type", env.Type)
		}
	}
}

func (c *Client) setPose(target int, m mgl64.Mat4) {
	c.posesMu.Lock()
	defer c.posesMu.Unlock()
	c.poses[target] = Pose{Matrix: m, At: c.now()}
}

func (c *Client) dropPose(target int) {
	c.posesMu.Lock()
	defer c.posesMu.Unlock()
	delete(c.poses, target)
}

func (c *Client) clearPoses() {
	c.posesMu.Lock()
	defer c.posesMu.Unlock()
	clear(c.poses)
}

func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.replyCh = nil
	c.done = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		_ = conn.Close()
	}
	c.clearPoses()
}
