package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/bissquit/statuspage/internal/pkg/ctxlog"
	"github.com/bissquit/statuspage/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Snapshotter loads the current state of a topic.
type Snapshotter interface {
	Snapshot(ctx context.Context, topic Topic) (any, error)
}

// HandlerConfig configures the WebSocket endpoint.
type HandlerConfig struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	AllowedOrigins []string
}

// Frame is one message sent to a WebSocket client.
type Frame struct {
	Topic  Topic          `json:"topic"`
	Reason MessageKind    `json:"reason"`
	Change *domain.Change `json:"change,omitempty"`
	Data   any            `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Handler serves subscriptions over WebSocket.
type Handler struct {
	hub       *Hub
	snapshots Snapshotter
	config    HandlerConfig
	upgrader  websocket.Upgrader
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, snapshots Snapshotter, config HandlerConfig) *Handler {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}

	h := &Handler{
		hub:       hub,
		snapshots: snapshots,
		config:    config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	if len(config.AllowedOrigins) > 0 {
		allowed := make(map[string]bool, len(config.AllowedOrigins))
		for _, o := range config.AllowedOrigins {
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		}
	}
	return h
}

// RegisterRoutes registers the live endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/live", h.Serve)
}

// Serve handles GET /live?topic=...
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	topic, err := ParseTopic(r.URL.Query().Get("topic"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "topic must be services, incidents or incidents/{id}")
		return
	}

	logger := ctxlog.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(topic)
	defer sub.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.readPump(conn, cancel)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			deadline := time.Now().Add(h.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}

		case msg, ok := <-sub.C():
			if !ok {
				h.closeWith(conn, sub.Err())
				return
			}
			msg = drain(sub.C(), msg)
			if err := h.send(ctx, conn, topic, msg); err != nil {
				logger.Debug("websocket send failed", "topic", topic, "error", err)
				return
			}
		}
	}
}

// drain collapses queued messages into the newest one, since every frame
// carries a full snapshot anyway.
func drain(ch <-chan Message, msg Message) Message {
	for {
		select {
		case next, ok := <-ch:
			if !ok {
				return msg
			}
			msg = next
		default:
			return msg
		}
	}
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, topic Topic, msg Message) error {
	frame := Frame{Topic: topic, Reason: msg.Kind, Change: msg.Change}

	data, err := h.snapshots.Snapshot(ctx, topic)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("failed to load snapshot", "topic", topic, "error", err)
		frame.Error = err.Error()
	} else {
		frame.Data = data
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	if err := conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// readPump discards client messages and cancels the connection context when
// the client goes away.
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.config.PingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.config.PingInterval))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func (h *Handler) closeWith(conn *websocket.Conn, reason error) {
	code := websocket.CloseGoingAway
	text := "server shutting down"
	if errors.Is(reason, ErrSlowConsumer) {
		code = websocket.CloseTryAgainLater
		text = reason.Error()
	}
	deadline := time.Now().Add(h.config.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}
