package apihttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"movieapp/internal/metrics"
	"movieapp/internal/search"
)

const (
	wsSubscribeBuffer = 16
	wsReadLimit       = 4096
	wsPingInterval    = 30 * time.Second
	wsPongWait        = 60 * time.Second
	wsWriteWait       = 10 * time.Second
)

type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// wsClientMessage is sent by the UI: {"type":"query","query":"..."} for every
// edit of the search box, {"type":"retry"} to re-run the committed query.
type wsClientMessage struct {
	Type  string `json:"type"`
	Query string `json:"query"`
}

// wsSession binds one WebSocket connection to its own search controller.
type wsSession struct {
	hub         *wsHub
	conn        *websocket.Conn
	controller  *search.Controller
	states      <-chan search.State
	unsubscribe func()
	closeOnce   sync.Once
}

func newWSSession(hub *wsHub, conn *websocket.Conn, controller *search.Controller) *wsSession {
	states, unsubscribe := controller.Subscribe(wsSubscribeBuffer)
	return &wsSession{
		hub:         hub,
		conn:        conn,
		controller:  controller,
		states:      states,
		unsubscribe: unsubscribe,
	}
}

// close stops the controller, which closes the state channel and lets
// writePump send a close frame.
func (s *wsSession) close() {
	s.closeOnce.Do(func() {
		s.controller.Close()
		s.unsubscribe()
	})
}

type wsHub struct {
	sessions   map[*wsSession]bool
	register   chan *wsSession
	unregister chan *wsSession
	done       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

func newWSHub(logger *slog.Logger) *wsHub {
	return &wsHub{
		sessions:   make(map[*wsSession]bool),
		register:   make(chan *wsSession),
		unregister: make(chan *wsSession),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		logger:     logger,
	}
}

func (h *wsHub) run() {
	defer close(h.stopped)
	for {
		select {
		case <-h.done:
			for session := range h.sessions {
				session.close()
				delete(h.sessions, session)
				metrics.WSSessionsActive.Dec()
			}
			h.logger.Debug("ws hub stopped, all sessions disconnected")
			return
		case session := <-h.register:
			h.sessions[session] = true
			metrics.WSSessionsActive.Inc()
			h.logger.Debug("ws session connected", slog.Int("total", len(h.sessions)))
		case session := <-h.unregister:
			if _, ok := h.sessions[session]; ok {
				delete(h.sessions, session)
				metrics.WSSessionsActive.Dec()
				h.logger.Debug("ws session disconnected", slog.Int("total", len(h.sessions)))
			}
		}
	}
}

// add registers a session. It reports false once the hub is stopped.
func (h *wsHub) add(session *wsSession) bool {
	select {
	case h.register <- session:
		return true
	case <-h.done:
		return false
	}
}

func (h *wsHub) remove(session *wsSession) {
	select {
	case h.unregister <- session:
	case <-h.done:
	}
}

// Close signals the hub to stop and waits until every session is closed.
func (h *wsHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	<-h.stopped
}

// newWSUpgrader rejects handshakes whose Origin is outside allowed.
// Clients that send no Origin (CLI, server-to-server) are accepted.
func newWSUpgrader(allowed originSet) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed.allows(origin)
		},
	}
}

func (s *wsSession) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case state, ok := <-s.states:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			payload, err := json.Marshal(wsMessage{Type: "movies", Data: state})
			if err != nil {
				s.hub.logger.Error("ws marshal failed", slog.String("error", err.Error()))
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *wsSession) readPump() {
	defer func() {
		s.hub.remove(s)
		s.close()
		s.conn.Close()
	}()
	s.conn.SetReadLimit(wsReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			break
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.hub.logger.Debug("ws message ignored", slog.String("error", err.Error()))
			continue
		}
		switch msg.Type {
		case "query":
			s.controller.OnQueryChanged(msg.Query)
		case "retry":
			s.controller.Retry()
		default:
			s.hub.logger.Debug("ws message ignored", slog.String("type", msg.Type))
		}
	}
}
