// Package vfs describes the virtual file hierarchy browsed by peekvfs: mounts,
// slash-delimited virtual paths, document references and the collaborator
// interface used to read, write and list them.
package vfs

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrOutsideRoot  = errors.New("path outside mount root")
	ErrUnknownMount = errors.New("unknown mount")
	ErrReadOnly     = errors.New("mount is read-only")
	ErrNotDirectory = errors.New("not a directory")
)

// Mount identifies a virtual file system root. A path is only meaningful
// paired with its mount.
type Mount string

// DocumentRef identifies a document or directory within a mount.
type DocumentRef struct {
	Mount Mount  `json:"mount"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}

// Same reports whether r and other address the same mount and path.
func (r DocumentRef) Same(other DocumentRef) bool {
	return r.Mount == other.Mount && r.Path == other.Path
}

// IsZero reports whether r is the empty reference.
func (r DocumentRef) IsZero() bool {
	return r.Mount == "" && r.Path == ""
}

func (r DocumentRef) String() string {
	return string(r.Mount) + ":" + r.Path
}

// DirectoryEntry is one child of a listed directory.
type DirectoryEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}

// Ref returns the reference of the entry within mount.
func (e DirectoryEntry) Ref(mount Mount) DocumentRef {
	return DocumentRef{Mount: mount, Path: e.Path, IsDir: e.IsDir}
}

// FileSystem is the virtual file system collaborator.
//
// ResolveDocument may complete immediately or block on a remote backend;
// callers bound it with ctx either way.
type FileSystem interface {
	GetContent(ctx context.Context, mount Mount, path string) (string, error)
	SetContent(ctx context.Context, mount Mount, path, value string) error
	OpenDirectory(ctx context.Context, ref DocumentRef) ([]DirectoryEntry, error)
	AssetURL(mount Mount, path string) string
	ResolveDocument(ctx context.Context, mount Mount, path string) (DocumentRef, error)
}

// Dir returns everything before the last segment of p, or "" for a
// top-level path.
func Dir(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}
	return ""
}

// Base returns the last segment of p.
func Base(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// JoinSegments concatenates the segments of dir and rel. No canonicalization
// happens: "." and ".." survive as literal segments and are left to the
// backend to interpret. Empty segments are dropped.
func JoinSegments(dir, rel string) string {
	var parts []string
	for _, s := range strings.Split(dir, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	for _, s := range strings.Split(rel, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// Normalize trims surrounding whitespace and leading slashes from a
// caller-supplied virtual path.
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimLeft(p, "/")
}

// AssetURL builds the displayable URL under which the server streams
// mount assets.
func AssetURL(mount Mount, p string) string {
	segs := strings.Split(Normalize(p), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return "/assets/" + url.PathEscape(string(mount)) + "/" + strings.Join(segs, "/")
}
