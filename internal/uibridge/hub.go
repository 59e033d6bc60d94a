// Package uibridge connects the page to the session over WebSocket. The
// page sends commands and receives the view projection and rendered frames.
package uibridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/angelar/arsession/internal/dispatcher"
	"github.com/angelar/arsession/internal/handlers"
	"github.com/angelar/arsession/internal/logging"
	"github.com/angelar/arsession/internal/render"
	"github.com/angelar/arsession/internal/session"
	"github.com/angelar/arsession/pkg/streaming"

	ws "github.com/gorilla/websocket"
)

const (
	clientSendSize = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

var ErrUnknownCommand = errors.New("unknown command")

// ViewSource is satisfied by *session.Controller.
type ViewSource interface {
	View() session.View
}

// CommandDispatcher is satisfied by *dispatcher.Dispatcher.
type CommandDispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Hub fans views and frames out to every connected page and routes page
// commands to the dispatcher.
type Hub struct {
	logger   *slog.Logger
	upgrader ws.Upgrader

	mu       sync.RWMutex
	clients  map[*client]struct{}
	views    ViewSource
	commands CommandDispatcher
	lastView []byte
	closed   bool
}

type client struct {
	// ctx carries the page's log attributes
	ctx  context.Context
	conn *ws.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a hub. Attach must be called before pages connect.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger.With("component", "uibridge"),
		clients: make(map[*client]struct{}),
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Attach sets where views come from and where commands go.
func (h *Hub) Attach(views ViewSource, commands CommandDispatcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.views = views
	h.commands = commands
}

// Routes returns the HTTP handlers of the bridge.
func (h *Hub) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves one page until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{
		ctx:  logging.ContextWithAttrs(context.Background(), slog.String("remote", r.RemoteAddr)),
		conn: conn,
		send: make(chan []byte, clientSendSize),
	}
	current := h.encodeView()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	if current == nil {
		current = h.lastView
	}
	if current != nil {
		c.send <- current
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.DebugContext(c.ctx, "Page connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// writeLoop drains the client's send channel and keeps the connection alive
// with pings.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				h.logger.DebugContext(c.ctx, "Page write failed", "error", err)
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readLoop handles commands from the page until the connection drops.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				h.logger.WarnContext(c.ctx, "Page read error", "error", err)
			}
			return
		}

		reply := h.handleMessage(c.ctx, message)
		if reply == nil {
			continue
		}
		select {
		case c.send <- reply:
		default:
			h.logger.WarnContext(c.ctx, "Page send buffer full, dropping reply")
		}
	}
}

// handleMessage runs one page command and returns the encoded result.
func (h *Hub) handleMessage(ctx context.Context, message []byte) []byte {
	var env streaming.Envelope
	if err := json.Unmarshal(message, &env); err != nil || env.Type != streaming.TypeCommand {
		h.logger.DebugContext(ctx, "Ignoring page message", "raw", string(message))
		return nil
	}

	var cmd streaming.CommandPayload
	result := streaming.ResultPayload{}
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		result.Error = fmt.Sprintf("invalid command: %v", err)
	} else {
		result.Command = cmd.Name
		data, err := h.runCommand(cmd)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.OK = true
			result.Data = data
		}
	}

	out, err := streaming.Encode(streaming.TypeResult, result)
	if err != nil {
		h.logger.ErrorContext(ctx, "Encoding command result failed", "error", err)
		return nil
	}
	return out
}

func (h *Hub) runCommand(cmd streaming.CommandPayload) (any, error) {
	h.mu.RLock()
	commands := h.commands
	h.mu.RUnlock()
	if commands == nil {
		return nil, errors.New("bridge not attached")
	}

	e, err := CommandEvent(cmd)
	if err != nil {
		return nil, err
	}
	return commands.Dispatch(e)
}

// CommandEvent maps a page command to a dispatcher event.
func CommandEvent(cmd streaming.CommandPayload) (dispatcher.Event, error) {
	e := dispatcher.Event{Source: "page"}
	switch cmd.Name {
	case "load":
		e.Command = handlers.CommandLoad
	case "toggle":
		e.Command = handlers.CommandToggle
	case "status":
		e.Command = handlers.CommandStatus
	case "visibility":
		if cmd.Visible == nil {
			return e, fmt.Errorf("%w: visibility needs visible", handlers.ErrBadArgument)
		}
		e.Command = handlers.CommandVisibility
		e.Args = []string{strconv.FormatBool(*cmd.Visible)}
	default:
		return e, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
	return e, nil
}

// broadcast queues data for every page; slow pages miss the message.
func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) encodeView() []byte {
	h.mu.RLock()
	views := h.views
	h.mu.RUnlock()
	if views == nil {
		return nil
	}

	data, err := streaming.Encode(streaming.TypeView, ViewPayload(views.View()))
	if err != nil {
		h.logger.Error("Encoding view failed", "error", err)
		return nil
	}
	return data
}

// PushView sends the current view to every page.
func (h *Hub) PushView() {
	data := h.encodeView()
	if data == nil {
		return
	}
	h.mu.Lock()
	h.lastView = data
	h.mu.Unlock()
	h.broadcast(data)
}

// UICallbacks returns controller callbacks that push the view on every
// change.
func (h *Hub) UICallbacks() session.UICallbacks {
	return session.UICallbacks{
		OnLoading: func(float64) { h.PushView() },
		OnReady:   h.PushView,
		OnError: func(kind session.ErrorKind, message string) {
			h.logger.Info("Session error shown", "kind", kind, "message", message)
			h.PushView()
		},
		OnRunning: h.PushView,
		OnStopped: h.PushView,
	}
}

// Consume implements render.Sink.
func (h *Hub) Consume(s render.Snapshot) error {
	if h.Clients() == 0 {
		return nil
	}
	data, err := streaming.Encode(streaming.TypeFrame, FramePayload(s))
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

// Close disconnects every page.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	return nil
}
