package ingress

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/rehoboam-dev/rehoboam/internal/event"
)

// sandboxFrame is the wire shape for a remote-sandbox WebSocket message.
type sandboxFrame struct {
	SandboxID string           `json:"sprite_id"`
	Event     event.HookEvent  `json:"event"`
	Timestamp *int64           `json:"timestamp,omitempty"`
}

// SandboxConn records what the ingress knows about one connected sandbox.
type SandboxConn struct {
	ConnID     string
	SandboxID  string
	RemoteAddr string
	ConnectedAt time.Time
	LastSeen   time.Time
	EventCount uint64
}

// WebSocketServer hosts the remote-sandbox transport plus a small read-only
// status surface, following the teacher's net/http.ServeMux idiom.
type WebSocketServer struct {
	ingress *Ingress
	token   string

	mu    sync.Mutex
	conns map[string]*SandboxConn
}

// NewWebSocketServer builds the server. An empty bearerToken disables
// authentication on the status surface (acceptable for a bind address the
// operator controls; never expose this unauthenticated on a public interface).
func NewWebSocketServer(ingress *Ingress, bearerToken string) *WebSocketServer {
	return &WebSocketServer{
		ingress: ingress,
		token:   bearerToken,
		conns:   make(map[string]*SandboxConn),
	}
}

// Handler returns the ServeMux backing this server: /healthz, /status,
// and /ws (the sandbox event transport — this is the concrete
// implementation of what the teacher's own transport layer stubs as
// "not yet implemented").
func (s *WebSocketServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.auth(s.handleStatus))
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *WebSocketServer) auth(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *WebSocketServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *WebSocketServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	snapshot := make([]SandboxConn, 0, len(s.conns))
	for _, c := range s.conns {
		snapshot = append(snapshot, *c)
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"connected_sandboxes": snapshot,
	})
}

func (s *WebSocketServer) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("[ingress] websocket accept failed: %v", err)
		return
	}
	connID := uuid.NewString()
	conn := &SandboxConn{
		ConnID:      connID,
		RemoteAddr:  r.RemoteAddr,
		ConnectedAt: time.Now(),
		LastSeen:    time.Now(),
	}
	s.mu.Lock()
	s.conns[connID] = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		sandboxID := s.conns[connID].SandboxID
		delete(s.conns, connID)
		s.mu.Unlock()
		s.emitConnectionEvent(sandboxID, "SandboxDisconnected")
		c.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()
	for {
		var frame sandboxFrame
		readCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		err := wsjson.Read(readCtx, c, &frame)
		cancel()
		if err != nil {
			return
		}

		s.mu.Lock()
		conn.LastSeen = time.Now()
		conn.EventCount++
		firstFrame := conn.SandboxID == ""
		conn.SandboxID = frame.SandboxID
		s.mu.Unlock()

		if firstFrame && frame.SandboxID != "" {
			s.emitConnectionEvent(frame.SandboxID, "SandboxConnected")
		}

		frame.Event.Source = event.SandboxSource(frame.SandboxID)
		if frame.Timestamp != nil {
			frame.Event.Timestamp = *frame.Timestamp
		}
		if err := frame.Event.Validate(); err != nil {
			log.Printf("[ingress] invalid sandbox event from %s: %v", frame.SandboxID, err)
			continue
		}

		e := frame.Event
		select {
		case s.ingress.Events <- &e:
		default:
			log.Printf("[ingress] event channel full, dropping sandbox event for %s", frame.SandboxID)
		}
	}
}

func (s *WebSocketServer) emitConnectionEvent(sandboxID, name string) {
	if sandboxID == "" {
		return
	}
	e := &event.HookEvent{
		Event:     name,
		Status:    "attention",
		AttentionType: "waiting",
		PaneID:    sandboxID,
		Project:   "sprite",
		Timestamp: time.Now().Unix(),
		Source:    event.SandboxSource(sandboxID),
	}
	select {
	case s.ingress.Events <- e:
	default:
	}
}
