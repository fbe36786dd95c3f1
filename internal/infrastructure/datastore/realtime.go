package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/configloader"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var frameJSON = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

const (
	phxJoin      = "phx_join"
	phxHeartbeat = "heartbeat"
	phxError     = "phx_error"
	pgChanges    = "postgres_changes"

	defaultHeartbeat  = 30 * time.Second
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 30 * time.Second
)

type phxFrame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

type pgChangeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

type joinPayload struct {
	Config struct {
		PostgresChanges []pgChangeFilter `json:"postgres_changes"`
	} `json:"config"`
}

type changeData struct {
	Type   entity.ChangeType `json:"type"`
	Table  string            `json:"table"`
	Record json.RawMessage   `json:"record"`
}

// Realtime implements port.ChangeFeed over the Supabase Realtime (Phoenix channels) websocket.
type Realtime struct {
	endpoint   string
	dialer     *websocket.Dialer
	heartbeat  time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     port.Logger
}

// RealtimeEndpoint derives the websocket URL from cfg, preferring an explicit realtimeURL.
func RealtimeEndpoint(cfg configloader.SupabaseConfig) (string, error) {
	base := cfg.RealtimeURL
	if base == "" {
		u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
		if err != nil {
			return "", fmt.Errorf("invalid supabase url: %w", err)
		}
		switch u.Scheme {
		case "https":
			u.Scheme = "wss"
		case "http":
			u.Scheme = "ws"
		}
		u.Path += "/realtime/v1/websocket"
		base = u.String()
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid realtime url: %w", err)
	}
	q := u.Query()
	q.Set("apikey", cfg.Key)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NewRealtime creates a change feed connecting to endpoint.
func NewRealtime(endpoint string, logger port.Logger) *Realtime {
	return &Realtime{
		endpoint:   endpoint,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		heartbeat:  defaultHeartbeat,
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
		logger:     logger.With("component", "realtime"),
	}
}

// Listen dials once synchronously so configuration errors surface to the caller,
// then keeps the subscription alive, reconnecting with backoff until ctx is done.
func (r *Realtime) Listen(ctx context.Context, tables []string) (<-chan entity.ChangeEvent, error) {
	conn, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan entity.ChangeEvent, 64)
	go r.run(ctx, conn, tables, out)
	return out, nil
}

func (r *Realtime) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := r.dialer.DialContext(ctx, r.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to realtime: %w", err)
	}
	return conn, nil
}

func (r *Realtime) run(ctx context.Context, conn *websocket.Conn, tables []string, out chan<- entity.ChangeEvent) {
	defer close(out)

	for {
		err := r.session(ctx, conn, tables, out)
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("Realtime connection lost", "error", err)

		backoff := r.minBackoff
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			conn, err = r.dial(ctx)
			if err == nil {
				r.logger.Info("Realtime reconnected")
				break
			}
			r.logger.Warn("Realtime reconnect failed", "error", err, "retry_in", backoff.String())
			backoff *= 2
			if backoff > r.maxBackoff {
				backoff = r.maxBackoff
			}
		}
	}
}

// phxConn serializes writes; gorilla connections allow one concurrent writer.
type phxConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	ref  int
}

func (c *phxConn) send(topic, event string, payload any) error {
	raw, err := frameJSON.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ref++
	data, err := frameJSON.Marshal(phxFrame{Topic: topic, Event: event, Payload: raw, Ref: strconv.Itoa(c.ref)})
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func channelTopic(table string) string { return "realtime:public:" + table }

func (r *Realtime) session(ctx context.Context, conn *websocket.Conn, tables []string, out chan<- entity.ChangeEvent) error {
	pc := &phxConn{conn: conn}
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()

	for _, table := range tables {
		var join joinPayload
		join.Config.PostgresChanges = []pgChangeFilter{{Event: "*", Schema: "public", Table: table}}
		if err := pc.send(channelTopic(table), phxJoin, join); err != nil {
			return fmt.Errorf("join %s: %w", table, err)
		}
	}
	r.logger.Info("Realtime subscribed", "tables", strings.Join(tables, ","))

	go func() {
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := pc.send("phoenix", phxHeartbeat, struct{}{}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, ok := r.decode(msg)
		if !ok {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// decode extracts a row change from a frame. Replies and heartbeats yield false.
func (r *Realtime) decode(msg []byte) (entity.ChangeEvent, bool) {
	var f phxFrame
	if err := frameJSON.Unmarshal(msg, &f); err != nil {
		r.logger.Debug("Skipping malformed realtime frame", "error", err)
		return entity.ChangeEvent{}, false
	}

	var data changeData
	switch f.Event {
	case pgChanges:
		var wrapped struct {
			Data changeData `json:"data"`
		}
		if err := frameJSON.Unmarshal(f.Payload, &wrapped); err != nil {
			return entity.ChangeEvent{}, false
		}
		data = wrapped.Data
	case string(entity.ChangeInsert), string(entity.ChangeUpdate), string(entity.ChangeDelete):
		if err := frameJSON.Unmarshal(f.Payload, &data); err != nil {
			return entity.ChangeEvent{}, false
		}
	case phxError:
		r.logger.Warn("Realtime channel error", "topic", f.Topic)
		return entity.ChangeEvent{}, false
	default:
		// phx_reply, presence and system frames
		return entity.ChangeEvent{}, false
	}

	if data.Table == "" {
		data.Table = strings.TrimPrefix(f.Topic, "realtime:public:")
	}
	return entity.ChangeEvent{Table: data.Table, Type: data.Type, Record: data.Record}, true
}

var _ port.ChangeFeed = (*Realtime)(nil)
