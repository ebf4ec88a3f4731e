package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// DirMount serves a directory on disk as a mount. Every path is confined to
// the root; symlinks resolving outside of it are rejected.
type DirMount struct {
	root     string
	readOnly bool
	ignore   *IgnoreRules
}

// NewDirMount opens root as a mount. Ignore patterns from the config are
// merged with the root's ignore file.
func NewDirMount(root string, readOnly bool, patterns []string) (*DirMount, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid mount root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("mount root does not exist: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("cannot access mount root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mount root %s: %w", root, ErrNotDirectory)
	}

	custom := append(append([]string{}, patterns...), ReadIgnoreFile(resolved)...)
	if len(custom) > 0 {
		log.Printf("[peekvfs] %s: using %d custom exclusions", resolved, len(custom))
	}
	return &DirMount{
		root:     resolved,
		readOnly: readOnly,
		ignore:   NewIgnoreRules(custom),
	}, nil
}

// Root returns the absolute root directory.
func (m *DirMount) Root() string { return m.root }

// Ignore returns the exclusion rules of the mount.
func (m *DirMount) Ignore() *IgnoreRules { return m.ignore }

// LocalPath maps a virtual path onto the disk, enforcing confinement.
func (m *DirMount) LocalPath(rel string) (string, error) {
	rel = Normalize(rel)
	target := filepath.Clean(filepath.Join(m.root, filepath.FromSlash(rel)))
	if !m.within(target) {
		return "", ErrOutsideRoot
	}

	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return target, nil
		}
		return "", err
	}
	if !m.within(resolved) {
		log.Printf("Security: Skipping symlink outside mount root: %s -> %s", target, resolved)
		return "", ErrOutsideRoot
	}
	return resolved, nil
}

// visiblePath is LocalPath restricted to entries List shows. Hidden and
// ignored entries, and everything below them, do not exist.
func (m *DirMount) visiblePath(rel string) (abs, clean string, err error) {
	abs, err = m.LocalPath(rel)
	if err != nil {
		return "", "", err
	}
	clean = path.Clean(Normalize(rel))
	if clean == "." {
		return abs, "", nil
	}

	segs := strings.Split(clean, "/")
	for i := range segs {
		isDir := i < len(segs)-1
		if !isDir {
			if st, err := os.Stat(abs); err == nil {
				isDir = st.IsDir()
			}
		}
		if m.ignore.Excluded(strings.Join(segs[:i+1], "/"), isDir) {
			return "", "", ErrNotFound
		}
	}
	return abs, clean, nil
}

func (m *DirMount) within(p string) bool {
	return p == m.root || strings.HasPrefix(p, m.root+string(filepath.Separator))
}

func (m *DirMount) Read(ctx context.Context, rel string) ([]byte, error) {
	abs, _, err := m.visiblePath(rel)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (m *DirMount) Write(ctx context.Context, rel string, data []byte) error {
	if m.readOnly {
		return ErrReadOnly
	}
	abs, _, err := m.visiblePath(rel)
	if err != nil {
		return err
	}
	if st, err := os.Stat(abs); err == nil && st.IsDir() {
		return fmt.Errorf("%s is a directory", rel)
	}
	return atomicWriteFile(abs, data)
}

func (m *DirMount) Open(ctx context.Context, rel string) (io.ReadCloser, error) {
	abs, _, err := m.visiblePath(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (m *DirMount) Stat(ctx context.Context, rel string) (DirectoryEntry, error) {
	abs, clean, err := m.visiblePath(rel)
	if err != nil {
		return DirectoryEntry{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DirectoryEntry{}, ErrNotFound
		}
		return DirectoryEntry{}, err
	}
	return DirectoryEntry{Name: Base(clean), Path: clean, IsDir: info.IsDir()}, nil
}

// List returns the visible children of the directory rel, directories
// first, then alphabetically.
func (m *DirMount) List(ctx context.Context, rel string) ([]DirectoryEntry, error) {
	abs, clean, err := m.visiblePath(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		if st, statErr := os.Stat(abs); statErr == nil && !st.IsDir() {
			return nil, ErrNotDirectory
		}
		return nil, err
	}

	out := make([]DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		childRel := JoinSegments(clean, e.Name())
		isDir := e.IsDir()
		if e.Type()&os.ModeSymlink != 0 {
			target, err := m.LocalPath(childRel)
			if err != nil {
				continue
			}
			info, err := os.Stat(target)
			if err != nil {
				log.Printf("Warning: Cannot stat symlink target: %s", target)
				continue
			}
			isDir = info.IsDir()
		}
		if m.ignore.Excluded(childRel, isDir) {
			continue
		}
		out = append(out, DirectoryEntry{Name: e.Name(), Path: childRel, IsDir: isDir})
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []DirectoryEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
}

func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".peekvfs-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
