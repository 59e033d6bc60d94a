package asset

import (
	"bytes"
	"context"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"
)

// resources resolves buffer URIs of a .gltf document relative to the
// document's own location.
func (l *HTTPLoader) resources(ctx context.Context, src string) fs.FS {
	u, err := url.Parse(src)
	if err != nil {
		return nil
	}
	switch u.Scheme {
	case "http", "https":
		return &httpResources{ctx: ctx, loader: l, base: u}
	case "file":
		return os.DirFS(filepath.Dir(u.Path))
	case "":
		return os.DirFS(filepath.Dir(src))
	default:
		return nil
	}
}

// httpResources fetches sibling files of a remote document.
type httpResources struct {
	ctx    context.Context
	loader *HTTPLoader
	base   *url.URL
}

func (r *httpResources) ReadFile(name string) ([]byte, error) {
	ref, err := url.Parse(name)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrInvalid}
	}
	return r.loader.fetchHTTP(r.ctx, r.base.ResolveReference(ref).String(), func(Progress) {})
}

func (r *httpResources) Open(name string) (fs.File, error) {
	data, err := r.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return &memFile{Reader: bytes.NewReader(data), name: path.Base(name)}, nil
}

// memFile is a fetched resource held in memory.
type memFile struct {
	*bytes.Reader
	name string
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f, nil }
func (f *memFile) Close() error               { return nil }
func (f *memFile) Name() string               { return f.name }
func (f *memFile) Mode() fs.FileMode          { return 0o444 }
func (f *memFile) ModTime() time.Time         { return time.Time{} }
func (f *memFile) IsDir() bool                { return false }
func (f *memFile) Sys() any                   { return nil }
