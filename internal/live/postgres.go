package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Songmu/retry"
	"github.com/bissquit/statuspage/internal/domain"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGPublisher announces changes with pg_notify so that every replica's
// listener sees them.
type PGPublisher struct {
	db      *pgxpool.Pool
	channel string
}

// NewPGPublisher creates a publisher for the given NOTIFY channel.
func NewPGPublisher(db *pgxpool.Pool, channel string) *PGPublisher {
	return &PGPublisher{db: db, channel: channel}
}

// Publish sends the change as a JSON notification payload.
func (p *PGPublisher) Publish(ctx context.Context, change domain.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if _, err := p.db.Exec(ctx, `SELECT pg_notify($1, $2)`, p.channel, string(payload)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// ListenerConfig configures the NOTIFY listener.
type ListenerConfig struct {
	Channel        string
	ReconnectDelay time.Duration
	// ConnectAttempts bounds one reconnect round; rounds repeat until the
	// context is cancelled.
	ConnectAttempts uint
}

// Listener holds a dedicated connection that LISTENs for changes and
// broadcasts them into the hub.
type Listener struct {
	db     *pgxpool.Pool
	hub    *Hub
	config ListenerConfig
}

// NewListener creates a new listener.
func NewListener(db *pgxpool.Pool, hub *Hub, config ListenerConfig) *Listener {
	if config.ConnectAttempts == 0 {
		config.ConnectAttempts = 5
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 2 * time.Second
	}
	return &Listener{db: db, hub: hub, config: config}
}

// Run listens until ctx is cancelled, reconnecting on connection loss.
func (l *Listener) Run(ctx context.Context) {
	slog.Info("change listener started", "channel", l.config.Channel)
	reconnect := false

	for ctx.Err() == nil {
		var conn *pgxpool.Conn
		err := retry.Retry(l.config.ConnectAttempts, l.config.ReconnectDelay, func() error {
			if ctx.Err() != nil {
				return nil
			}
			c, err := l.connect(ctx)
			if err != nil {
				slog.Warn("change listener connect failed", "error", err)
				return err
			}
			conn = c
			return nil
		})
		if ctx.Err() != nil {
			if conn != nil {
				conn.Release()
			}
			break
		}
		if err != nil {
			slog.Error("change listener could not reconnect, will keep trying", "error", err)
			continue
		}

		if reconnect {
			l.resync()
		}
		reconnect = true

		err = l.receive(ctx, conn)
		conn.Release()
		if err != nil && ctx.Err() == nil {
			slog.Warn("change listener connection lost", "error", err)
		}
	}

	slog.Info("change listener stopped")
}

func (l *Listener) connect(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := l.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.config.Channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}
	return conn, nil
}

func (l *Listener) receive(ctx context.Context, conn *pgxpool.Conn) error {
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		change, err := decodeChange(n.Payload)
		if err != nil {
			slog.Warn("ignoring malformed change notification", "payload", n.Payload, "error", err)
			continue
		}
		l.hub.Broadcast(change)
	}
}

// resync tells every subscriber to reload, since changes may have been
// missed while disconnected.
func (l *Listener) resync() {
	l.hub.Resync()
}

func decodeChange(payload string) (domain.Change, error) {
	var change domain.Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return change, err
	}
	switch change.Topic {
	case domain.TopicServices, domain.TopicIncidents:
	default:
		return change, errors.New("unknown topic")
	}
	return change, nil
}
