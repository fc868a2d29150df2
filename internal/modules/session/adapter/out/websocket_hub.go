package out

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	hclog "github.com/hashicorp/go-hclog"

	"arena/internal/modules/session/domain"
	sessionout "arena/internal/modules/session/port/out"
	"arena/internal/platform/logging"
)

const (
	hubClientBuffer = 64
	hubWriteTimeout = 2 * time.Second
)

// wireEvent is what observers receive for every session event.
type wireEvent struct {
	Type    string    `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketHub fans session events out to connected observers. Slow
// observers are disconnected instead of blocking the session.
type WebSocketHub struct {
	mu       sync.Mutex
	clients  map[*hubClient]struct{}
	upgrader websocket.Upgrader
	logger   hclog.Logger
	server   *http.Server
}

func NewWebSocketHub(logger hclog.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients: map[*hubClient]struct{}{},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logging.OrDiscard(logger).Named("events"),
	}
}

func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	client := &hubClient{conn: conn, send: make(chan []byte, hubClientBuffer)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("observer connected", "remote", r.RemoteAddr)

	go h.writeLoop(client)
	// Observers never send anything meaningful; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(client)
}

func (h *WebSocketHub) writeLoop(client *hubClient) {
	for msg := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(client)
			return
		}
	}
	_ = client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = client.conn.Close()
}

func (h *WebSocketHub) remove(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *WebSocketHub) Publish(event domain.Event) {
	msg, err := json.Marshal(wireEvent{Type: event.EventName(), At: event.At(), Payload: eventPayload(event)})
	if err != nil {
		h.logger.Warn("encode event failed", "event", event.EventName(), "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			h.logger.Warn("observer too slow, disconnecting")
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *WebSocketHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ListenAndServe serves the hub at /events until ctx is cancelled.
func (h *WebSocketHub) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/events", h)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	h.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.server.Shutdown(shutdownCtx)
	}()
	h.logger.Info("streaming session events", "addr", ln.Addr().String())
	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func eventPayload(event domain.Event) any {
	switch e := event.(type) {
	case domain.ScreenChanged:
		return map[string]any{"session_id": e.SessionID, "screen": e.Screen, "round": e.Round, "index": e.Index}
	case domain.InterventionFired:
		return map[string]any{"session_id": e.SessionID, "tier": e.Intervention.Tier, "message": e.Intervention.Message}
	case domain.InterventionCleared:
		return map[string]any{"session_id": e.SessionID, "reason": e.Reason}
	case domain.DecisionCommitted:
		return map[string]any{"session_id": e.SessionID, "decision": e.Decision}
	case domain.PressureChanged:
		return map[string]any{"session_id": e.SessionID, "from": e.From, "to": e.To}
	case domain.ContentUpdated:
		return map[string]any{"session_id": e.SessionID, "screen": e.Screen, "evolved": e.Evolved}
	case domain.SessionComplete:
		return map[string]any{"session_id": e.SessionID, "decisions": len(e.Decisions)}
	case domain.Tick:
		return map[string]any{"session_id": e.SessionID, "remaining_ms": e.Remaining.Milliseconds(), "countdown_ms": e.Countdown.Milliseconds()}
	default:
		return nil
	}
}

// MultiSink publishes every event to each of its sinks in order.
type MultiSink []sessionout.EventSink

func (m MultiSink) Publish(event domain.Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(event)
		}
	}
}
