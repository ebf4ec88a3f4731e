package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/razvandimescu/peekvfs/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
)

// clientMessage is the incoming websocket message format.
type clientMessage struct {
	Type string `json:"type"` // "change" or "follow"
	Text string `json:"text,omitempty"`
	Href string `json:"href,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.allowedOrigin(r, origin)
		},
	}
}

// handleWebSocket pushes the events of a session. A client reconnecting
// with ?last=<id> first receives the retained events it missed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var lastID uint64
	if v := r.URL.Query().Get("last"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid last event id")
			return
		}
		lastID = id
	}

	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	replay, events, cancel := sess.Subscribe(lastID)
	defer cancel()

	if lastID > 0 {
		log.Printf("Client reconnected with last event %d, replaying %d events", lastID, len(replay))
	}
	for _, evt := range replay {
		if err := writeEvent(conn, evt); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go s.readLoop(conn, sess, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeEvent(conn, evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, evt session.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(evt); err != nil {
		log.Printf("server: websocket write: %v", err)
		return err
	}
	return nil
}

// readLoop applies client messages to the session until the connection
// closes.
func (s *Server) readLoop(conn *websocket.Conn, sess *session.Session, done chan<- struct{}) {
	defer close(done)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var m clientMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			log.Printf("server: invalid websocket message: %v", err)
			continue
		}
		switch m.Type {
		case "change":
			sess.EditorChange(m.Text)
		case "follow":
			// Failures are pushed to the client as state events.
			sess.FollowLink(context.Background(), m.Href)
		default:
			log.Printf("server: unknown websocket message type %q", m.Type)
		}
	}
}
