package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFHandler returns a handler shipping text records to a Graylog GELF
// UDP input. The returned closer releases the connection.
func NewGELFHandler(address string, opts *slog.HandlerOptions) (slog.Handler, io.Closer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GELF writer for %s: %w", address, err)
	}
	w.Facility = "arsession"
	return slog.NewTextHandler(w, opts), w, nil
}
