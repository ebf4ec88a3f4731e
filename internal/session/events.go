package session

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event types pushed to the clients of a session.
const (
	EventRendered     = "rendered"
	EventState        = "state"
	EventExternalLink = "external_link"
	EventEditorText   = "editor_text"
	EventFileModified = "file_modified"
)

// Event is one notification of a session. IDs increase by one per event.
type Event struct {
	ID   uint64          `json:"id"`
	Type string          `json:"type"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data,omitempty"`
}

// eventLog keeps the most recent events for replay and fans new events out
// to subscribers.
type eventLog struct {
	mu      sync.RWMutex
	events  []Event
	counter uint64
	maxSize int
	clients map[chan Event]bool
}

func newEventLog(maxSize int) *eventLog {
	if maxSize <= 0 {
		maxSize = 50
	}
	return &eventLog{
		events:  make([]Event, 0, maxSize),
		maxSize: maxSize,
		clients: make(map[chan Event]bool),
	}
}

// publish assigns the next ID to the event, stores it and delivers it to
// every subscriber that has room for it.
func (l *eventLog) publish(typ string, data any) Event {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling %s event: %v", typ, err)
		raw = nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.counter++
	evt := Event{ID: l.counter, Type: typ, Time: time.Now(), Data: raw}

	// Circular buffer: if at capacity, remove oldest
	if len(l.events) >= l.maxSize {
		l.events = l.events[1:]
	}
	l.events = append(l.events, evt)

	for ch := range l.clients {
		select {
		case ch <- evt:
		default:
		}
	}
	return evt
}

// after returns the retained events with an ID greater than lastID.
func (l *eventLog) after(lastID uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Event
	for _, evt := range l.events {
		if evt.ID > lastID {
			out = append(out, evt)
		}
	}
	return out
}

// subscribe registers a client. Events published after the call are sent
// to the returned channel; replay holds the retained events after lastID.
func (l *eventLog) subscribe(lastID uint64) (replay []Event, ch chan Event, cancel func()) {
	ch = make(chan Event, 16)

	l.mu.Lock()
	for _, evt := range l.events {
		if evt.ID > lastID {
			replay = append(replay, evt)
		}
	}
	l.clients[ch] = true
	l.mu.Unlock()

	cancel = func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.clients[ch] {
			delete(l.clients, ch)
			close(ch)
		}
	}
	return replay, ch, cancel
}

func (l *eventLog) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.clients {
		delete(l.clients, ch)
		close(ch)
	}
}

func (l *eventLog) subscribers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.clients)
}
