package vfs

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Backend stores the files of one mount.
type Backend interface {
	Read(ctx context.Context, rel string) ([]byte, error)
	Write(ctx context.Context, rel string, data []byte) error
	Open(ctx context.Context, rel string) (io.ReadCloser, error)
	Stat(ctx context.Context, rel string) (DirectoryEntry, error)
	List(ctx context.Context, rel string) ([]DirectoryEntry, error)
}

// Registry is the FileSystem of peekvfs: it dispatches every call to the
// backend registered under the mount name.
type Registry struct {
	mu     sync.RWMutex
	mounts map[Mount]Backend
	order  []Mount
}

func NewRegistry() *Registry {
	return &Registry{mounts: make(map[Mount]Backend)}
}

// Add registers b under name, replacing any previous backend.
func (r *Registry) Add(name Mount, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mounts[name]; !ok {
		r.order = append(r.order, name)
	}
	r.mounts[name] = b
}

// Mounts returns the mount names in registration order.
func (r *Registry) Mounts() []Mount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Mount(nil), r.order...)
}

// Backend returns the backend registered under name.
func (r *Registry) Backend(name Mount) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.mounts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMount, name)
	}
	return b, nil
}

func (r *Registry) GetContent(ctx context.Context, mount Mount, path string) (string, error) {
	b, err := r.Backend(mount)
	if err != nil {
		return "", err
	}
	data, err := b.Read(ctx, path)
	if err != nil {
		return "", fmt.Errorf("reading %s:%s: %w", mount, path, err)
	}
	return string(data), nil
}

func (r *Registry) SetContent(ctx context.Context, mount Mount, path, value string) error {
	b, err := r.Backend(mount)
	if err != nil {
		return err
	}
	if err := b.Write(ctx, path, []byte(value)); err != nil {
		return fmt.Errorf("writing %s:%s: %w", mount, path, err)
	}
	return nil
}

func (r *Registry) OpenDirectory(ctx context.Context, ref DocumentRef) ([]DirectoryEntry, error) {
	b, err := r.Backend(ref.Mount)
	if err != nil {
		return nil, err
	}
	entries, err := b.List(ctx, ref.Path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", ref, err)
	}
	return entries, nil
}

func (r *Registry) AssetURL(mount Mount, path string) string {
	return AssetURL(mount, path)
}

// ResolveDocument maps a virtual path to the document or directory stored
// there. Paths that escape the mount or do not exist fail.
func (r *Registry) ResolveDocument(ctx context.Context, mount Mount, path string) (DocumentRef, error) {
	b, err := r.Backend(mount)
	if err != nil {
		return DocumentRef{}, err
	}
	entry, err := b.Stat(ctx, path)
	if err != nil {
		return DocumentRef{}, fmt.Errorf("resolving %s:%s: %w", mount, path, err)
	}
	return entry.Ref(mount), nil
}

// OpenAsset streams the raw bytes of an asset.
func (r *Registry) OpenAsset(ctx context.Context, mount Mount, path string) (io.ReadCloser, error) {
	b, err := r.Backend(mount)
	if err != nil {
		return nil, err
	}
	return b.Open(ctx, path)
}

// LocalPath returns the file on disk backing ref, if its mount is a
// directory mount.
func (r *Registry) LocalPath(ref DocumentRef) (string, bool) {
	b, err := r.Backend(ref.Mount)
	if err != nil {
		return "", false
	}
	dm, ok := b.(*DirMount)
	if !ok {
		return "", false
	}
	abs, err := dm.LocalPath(ref.Path)
	if err != nil {
		return "", false
	}
	return abs, true
}

// Close releases every backend holding resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for _, name := range r.order {
		if c, ok := r.mounts[name].(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
