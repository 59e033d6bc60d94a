package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"
)

const eventBufferSize = 16

// Loader starts an asynchronous load of the asset at url.
type Loader interface {
	Load(ctx context.Context, url string) <-chan Event
}

// Option configures an HTTPLoader.
type Option func(*HTTPLoader)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *HTTPLoader) {
		l.client = c
	}
}

// WithGeometryDecoder sets the stage that expands compressed geometry.
func WithGeometryDecoder(d GeometryDecoder) Option {
	return func(l *HTTPLoader) {
		l.decoder = d
	}
}

// WithLogger sets the logger for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *HTTPLoader) {
		l.logger = logger
	}
}

// HTTPLoader fetches glTF/GLB assets over HTTP(S) or from the local
// filesystem. It never retries.
type HTTPLoader struct {
	client  *http.Client
	decoder GeometryDecoder
	logger  *slog.Logger
}

// NewHTTPLoader creates a loader.
func NewHTTPLoader(opts ...Option) *HTTPLoader {
	l := &HTTPLoader{
		client: &http.Client{Timeout: 60 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches and decodes src. If ctx ends before the load finishes the
// channel is closed without a terminal event.
func (l *HTTPLoader) Load(ctx context.Context, src string) <-chan Event {
	events := make(chan Event, eventBufferSize)

	go func() {
		defer close(events)

		start := time.Now()
		data, err := l.fetch(ctx, src, func(p Progress) {
			send(ctx, events, p)
		})
		if err != nil {
			l.logger.Debug("asset fetch failed", "url", src, "error", err)
			send(ctx, events, Failure{Err: err})
			return
		}

		a, err := Decode(ctx, data, l.decoder, l.resources(ctx, src))
		if err != nil {
			l.logger.Debug("asset decode failed", "url", src, "error", err)
			send(ctx, events, Failure{Err: err})
			return
		}
		a.Source = src

		l.logger.Debug("asset loaded", "url", src, "bytes", len(data), "clips", len(a.Clips), "duration", time.Since(start))
		send(ctx, events, Success{Asset: a})
	}()

	return events
}

func send(ctx context.Context, events chan<- Event, e Event) {
	select {
	case events <- e:
	case <-ctx.Done():
	}
}

func (l *HTTPLoader) fetch(ctx context.Context, src string, progress func(Progress)) ([]byte, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid asset url %q: %v", ErrNetwork, src, err)
	}

	switch u.Scheme {
	case "http", "https":
		return l.fetchHTTP(ctx, src, progress)
	case "file":
		return readFile(u.Path, progress)
	case "":
		return readFile(src, progress)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrNetwork, u.Scheme)
	}
}

func (l *HTTPLoader) fetchHTTP(ctx context.Context, src string, progress func(Progress)) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrNetwork, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrNetwork, src, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: GET %s returned status %d", ErrNotFound, src, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: GET %s returned status %d", ErrNetwork, src, resp.StatusCode)
	}

	data, err := readAll(resp.Body, resp.ContentLength, progress)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrNetwork, src, err)
	}
	return data, nil
}

func readFile(path string, progress func(Progress)) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrNetwork, path, err)
	}
	defer f.Close()

	var size int64 = -1
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	data, err := readAll(f, size, progress)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrNetwork, path, err)
	}
	return data, nil
}

// readAll reads r to EOF, reporting progress after every chunk. A body
// shorter than a known size is an error.
func readAll(r io.Reader, size int64, progress func(Progress)) ([]byte, error) {
	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	total := size
	if total < 0 {
		total = 0
	}

	chunk := make([]byte, 32*1024)
	var loaded int64
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			loaded += int64(n)
			progress(Progress{Loaded: loaded, Total: total})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if size > 0 && loaded < size {
		return nil, fmt.Errorf("truncated body: got %d of %d bytes", loaded, size)
	}
	return buf.Bytes(), nil
}
