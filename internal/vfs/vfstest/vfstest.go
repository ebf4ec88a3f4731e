// Package vfstest provides an in-memory vfs.FileSystem for tests.
package vfstest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/razvandimescu/peekvfs/internal/vfs"
)

// FS is an in-memory file system holding the files of any number of
// mounts. Directories are implied by file paths.
type FS struct {
	mu    sync.Mutex
	files map[vfs.Mount]map[string]string

	// Fetches counts GetContent calls per "mount:path".
	Fetches map[string]int
	// Fail makes GetContent of the given "mount:path" return the error.
	Fail map[string]error
	// Gate, when set for a "mount:path", blocks GetContent until it is
	// closed.
	Gate map[string]chan struct{}
	// Lists counts OpenDirectory calls per "mount:path".
	Lists map[string]int
	// DirGate and DirFail do the same as Gate and Fail for OpenDirectory.
	DirGate map[string]chan struct{}
	DirFail map[string]error

	Saved []string
}

func New() *FS {
	return &FS{
		files:   make(map[vfs.Mount]map[string]string),
		Fetches: make(map[string]int),
		Fail:    make(map[string]error),
		Gate:    make(map[string]chan struct{}),
		Lists:   make(map[string]int),
		DirGate: make(map[string]chan struct{}),
		DirFail: make(map[string]error),
	}
}

// Put stores a file.
func (f *FS) Put(mount vfs.Mount, path, content string) *FS {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files[mount] == nil {
		f.files[mount] = make(map[string]string)
	}
	f.files[mount][path] = content
	return f
}

// FetchCount returns how often the document was fetched.
func (f *FS) FetchCount(mount vfs.Mount, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Fetches[string(mount)+":"+path]
}

// ListCount returns how often the directory was listed.
func (f *FS) ListCount(mount vfs.Mount, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Lists[string(mount)+":"+path]
}

func (f *FS) GetContent(ctx context.Context, mount vfs.Mount, path string) (string, error) {
	key := string(mount) + ":" + path
	f.mu.Lock()
	f.Fetches[key]++
	gate := f.Gate[key]
	failure := f.Fail[key]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if failure != nil {
		return "", failure
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[mount][path]
	if !ok {
		return "", vfs.ErrNotFound
	}
	return content, nil
}

func (f *FS) SetContent(ctx context.Context, mount vfs.Mount, path, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files[mount] == nil {
		f.files[mount] = make(map[string]string)
	}
	f.files[mount][path] = value
	f.Saved = append(f.Saved, string(mount)+":"+path)
	return nil
}

// Content returns the stored content of a file.
func (f *FS) Content(mount vfs.Mount, path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.files[mount][path]
	return c, ok
}

func (f *FS) OpenDirectory(ctx context.Context, ref vfs.DocumentRef) ([]vfs.DirectoryEntry, error) {
	key := string(ref.Mount) + ":" + ref.Path
	f.mu.Lock()
	f.Lists[key]++
	gate := f.DirGate[key]
	failure := f.DirFail[key]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, failure
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := ""
	if ref.Path != "" {
		prefix = ref.Path + "/"
	}
	seen := make(map[string]bool)
	var out []vfs.DirectoryEntry
	for p := range f.files[ref.Mount] {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		name, _, nested := strings.Cut(strings.TrimPrefix(p, prefix), "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, vfs.DirectoryEntry{Name: name, Path: prefix + name, IsDir: nested})
	}
	if len(out) == 0 {
		return nil, vfs.ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *FS) AssetURL(mount vfs.Mount, path string) string {
	return vfs.AssetURL(mount, path)
}

func (f *FS) ResolveDocument(ctx context.Context, mount vfs.Mount, path string) (vfs.DocumentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[mount][path]; ok {
		return vfs.DocumentRef{Mount: mount, Path: path}, nil
	}
	for p := range f.files[mount] {
		if strings.HasPrefix(p, path+"/") {
			return vfs.DocumentRef{Mount: mount, Path: path, IsDir: true}, nil
		}
	}
	return vfs.DocumentRef{}, vfs.ErrNotFound
}
