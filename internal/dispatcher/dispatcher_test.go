package dispatcher

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) log(level, msg string, keysAndValues []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, keysAndValues))
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) { l.log("DEBUG", msg, keysAndValues) }
func (l *testLogger) Info(msg string, keysAndValues ...any)  { l.log("INFO", msg, keysAndValues) }
func (l *testLogger) Error(msg string, keysAndValues ...any) { l.log("ERROR", msg, keysAndValues) }

func (l *testLogger) contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	t.Cleanup(d.Close)

	return d, logger
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(":TOGGLE:", func(e Event) (any, error) {
		got = e
		return "running", nil
	})

	result, err := d.Dispatch(Event{Command: ":TOGGLE:", Args: []string{"now"}, Source: "bridge"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "running" {
		t.Errorf("expected 'running', got %v", result)
	}
	if got.Arg(0) != "now" || got.Arg(1) != "" {
		t.Errorf("unexpected args: %v", got.Args)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var count atomic.Int32
	d.Register(":VISIBILITY:", func(e Event) (any, error) {
		count.Add(1)
		return nil, nil
	}, Buffered(10))

	for range 5 {
		result, err := d.Dispatch(Event{Command: ":VISIBILITY:"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "queued" {
			t.Errorf("expected 'queued', got %v", result)
		}
	}

	waitFor(t, func() bool { return count.Load() == 5 })
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	release := make(chan struct{})
	d.Register(":LOAD:", func(e Event) (any, error) {
		<-release
		return nil, nil
	}, Buffered(1))

	// first is picked up by the worker, second fills the queue
	if _, err := d.Dispatch(Event{Command: ":LOAD:"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var full error
	for range 3 {
		if _, err := d.Dispatch(Event{Command: ":LOAD:"}); err != nil {
			full = err
			break
		}
	}
	close(release)

	if !errors.Is(full, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", full)
	}
}

func TestDispatcher_BlockingWaitsForRoom(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var count atomic.Int32
	d.Register(":STATUS:", func(e Event) (any, error) {
		time.Sleep(time.Millisecond)
		count.Add(1)
		return nil, nil
	}, Buffered(1), Blocking())

	for range 10 {
		if _, err := d.Dispatch(Event{Command: ":STATUS:"}); err != nil {
			t.Fatalf("blocking dispatch should not fail: %v", err)
		}
	}
	waitFor(t, func() bool { return count.Load() == 10 })
}

func TestDispatcher_BufferedFailureIsLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":LOAD:", func(e Event) (any, error) {
		return nil, errors.New("no loader")
	}, Buffered(1))

	if _, err := d.Dispatch(Event{Command: ":LOAD:"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, func() bool { return logger.contains("queued command failed") })
}

func TestDispatcher_Logged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":OK:", func(e Event) (any, error) { return "ok", nil }, Logged())
	d.Register(":FAIL:", func(e Event) (any, error) { return nil, errors.New("bad") }, Logged())

	if _, err := d.Dispatch(Event{Command: ":OK:"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := d.Dispatch(Event{Command: ":FAIL:"}); err == nil {
		t.Fatal("expected error")
	}

	if !logger.contains("DEBUG: handling command") {
		t.Error("expected debug log for handling")
	}
	if !logger.contains("DEBUG: command complete") {
		t.Error("expected debug log for completion")
	}
	if !logger.contains("ERROR: command failed") {
		t.Error("expected error log for failure")
	}
}

func TestDispatcher_HasHandlerAndCommands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	if d.HasHandler(":TOGGLE:") {
		t.Error("expected no handler before registration")
	}
	d.Register(":TOGGLE:", func(e Event) (any, error) { return nil, nil })
	d.Register(":STATUS:", func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler(":TOGGLE:") {
		t.Error("expected handler after registration")
	}
	cmds := d.Commands()
	sort.Strings(cmds)
	if strings.Join(cmds, ",") != ":STATUS:,:TOGGLE:" {
		t.Errorf("unexpected commands: %v", cmds)
	}
}

func TestDispatcher_CloseDrainsAndRejects(t *testing.T) {
	logger := &testLogger{}
	d, err := New(logger)
	if err != nil {
		t.Fatal(err)
	}

	var count atomic.Int32
	d.Register(":VISIBILITY:", func(e Event) (any, error) {
		count.Add(1)
		return nil, nil
	}, Buffered(10))

	for range 3 {
		if _, err := d.Dispatch(Event{Command: ":VISIBILITY:"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	d.Close()
	d.Close()

	if count.Load() != 3 {
		t.Errorf("expected queued commands to drain, got %d", count.Load())
	}
	if _, err := d.Dispatch(Event{Command: ":VISIBILITY:"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestDispatcher_ConcurrentDispatch(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var count atomic.Int32
	d.Register(":STATUS:", func(e Event) (any, error) {
		count.Add(1)
		return nil, nil
	})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Dispatch(Event{Command: ":STATUS:"})
		}()
	}
	wg.Wait()

	if count.Load() != 20 {
		t.Errorf("expected 20 calls, got %d", count.Load())
	}
}

func TestDispatcher_BufferedDispatchDuringClose(t *testing.T) {
	for _, opts := range [][]Option{{Buffered(1)}, {Buffered(1), Blocking()}} {
		d, err := New(&testLogger{})
		if err != nil {
			t.Fatal(err)
		}
		d.Register(":LOGLEVEL:", func(e Event) (any, error) { return nil, nil }, opts...)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					_, err := d.Dispatch(Event{Command: ":LOGLEVEL:"})
					if err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, ErrQueueFull) {
						t.Errorf("unexpected error: %v", err)
						return
					}
				}
			}()
		}
		d.Close()
		wg.Wait()

		if _, err := d.Dispatch(Event{Command: ":LOGLEVEL:"}); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	}
}

func TestDispatcher_ReRegisterRetiresOldBuffer(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var first, second atomic.Int32
	d.Register(":LOGLEVEL:", func(e Event) (any, error) { first.Add(1); return nil, nil }, Buffered(4))
	d.mu.RLock()
	old := d.handlers[":LOGLEVEL:"]
	d.mu.RUnlock()

	d.Register(":LOGLEVEL:", func(e Event) (any, error) { second.Add(1); return nil, nil }, Buffered(4))

	if _, err := old(Event{Command: ":LOGLEVEL:"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from the replaced handler, got %v", err)
	}
	if _, err := d.Dispatch(Event{Command: ":LOGLEVEL:"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, func() bool { return second.Load() == 1 })
	if first.Load() != 0 {
		t.Errorf("expected the replaced handler to see nothing, got %d", first.Load())
	}
}
