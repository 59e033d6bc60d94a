package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"slices"
	"time"

	"github.com/qmuntal/gltf"
)

// compressedExtensions need a separate decode stage before the geometry is
// usable.
var compressedExtensions = []string{
	"KHR_draco_mesh_compression",
	"EXT_meshopt_compression",
}

// GeometryDecoder expands a payload using compressed geometry into a plain
// GLB payload.
type GeometryDecoder interface {
	Decode(ctx context.Context, payload []byte) ([]byte, error)
}

// Decode turns a glTF or GLB payload into an Asset. Payloads that require a
// compressed-geometry extension go through decoder first. External buffers
// of a .gltf document are read from resources, which may be nil when the
// payload is self-contained (GLB or data URIs).
func Decode(ctx context.Context, data []byte, decoder GeometryDecoder, resources fs.FS) (*Asset, error) {
	doc, err := parseDocument(data, resources)
	if err != nil {
		return nil, err
	}

	if ext := compressedExtension(doc); ext != "" {
		if decoder == nil {
			return nil, fmt.Errorf("%w: %s requires a geometry decoder", ErrDecode, ext)
		}
		expanded, err := decoder.Decode(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDecode, ext, err)
		}
		doc, err = parseDocument(expanded, resources)
		if err != nil {
			return nil, err
		}
		if ext := compressedExtension(doc); ext != "" {
			return nil, fmt.Errorf("%w: decoder output still requires %s", ErrDecode, ext)
		}
	}

	return build(doc)
}

func parseDocument(data []byte, resources fs.FS) (*gltf.Document, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoderFS(bytes.NewReader(data), resources).Decode(doc); err != nil {
		if errors.Is(err, ErrNetwork) || errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("external buffer: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	for i, b := range doc.Buffers {
		if len(b.Data) == 0 {
			return nil, fmt.Errorf("%w: buffer %d (%s) could not be resolved", ErrDecode, i, b.URI)
		}
	}
	return doc, nil
}

func compressedExtension(doc *gltf.Document) string {
	for _, ext := range compressedExtensions {
		if slices.Contains(doc.ExtensionsRequired, ext) {
			return ext
		}
	}
	return ""
}

// RemoteDecoder posts compressed payloads to a decoder service and expects
// the expanded GLB in the response body.
type RemoteDecoder struct {
	endpoint string
	client   *http.Client
}

// NewRemoteDecoder creates a decoder for the given endpoint.
func NewRemoteDecoder(endpoint string) *RemoteDecoder {
	return &RemoteDecoder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Decode sends payload to the decoder endpoint.
func (d *RemoteDecoder) Decode(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "model/gltf-binary")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("decoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decoder returned status %d", resp.StatusCode)
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read decoder response: %w", err)
	}
	return out, nil
}
