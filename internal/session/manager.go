package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/razvandimescu/peekvfs/internal/vfs"
)

var ErrUnknownSession = errors.New("unknown session")

// Manager keeps the browsing sessions of a server.
type Manager struct {
	fs   vfs.FileSystem
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(fs vfs.FileSystem, opts Options) *Manager {
	return &Manager{
		fs:       fs,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session and selects the start file. A start file
// that cannot be shown is logged; the session is still returned.
func (m *Manager) Create(ctx context.Context) *Session {
	s := New(m.fs, m.opts)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		log.Printf("Warning: Cannot open start file %q: %v", m.opts.StartFile, err)
	}
	return s
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// Close ends the session with the given ID.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expire closes sessions idle for longer than ttl that have no subscriber.
func (m *Manager) Expire(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) && s.events.subscribers() == 0 {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// RunExpiry expires idle sessions every interval until ctx is done.
func (m *Manager) RunExpiry(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Expire(ttl); n > 0 {
				log.Printf("Expired %d idle sessions", n)
			}
		}
	}
}

// CloseAll ends every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
