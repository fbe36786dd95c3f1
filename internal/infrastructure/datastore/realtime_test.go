package datastore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/configloader"
	"sakura_marketplace/internal/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// phoenixServer accepts websocket clients, records their frames and pushes a change after the joins.
type phoenixServer struct {
	mu       sync.Mutex
	frames   []phxFrame
	sessions int
	// dropFirst closes the first session after pushing its change.
	dropFirst bool
}

func (s *phoenixServer) handler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.sessions++
	session := s.sessions
	s.mu.Unlock()

	joins := 0
	for joins < 2 {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f phxFrame
		if frameJSON.Unmarshal(msg, &f) != nil {
			continue
		}
		s.mu.Lock()
		s.frames = append(s.frames, f)
		s.mu.Unlock()
		if f.Event == phxJoin {
			joins++
			reply := `{"topic":"` + f.Topic + `","event":"phx_reply","payload":{"status":"ok","response":{}},"ref":"` + f.Ref + `"}`
			_ = conn.WriteMessage(websocket.TextMessage, []byte(reply))
		}
	}

	change := `{"topic":"realtime:public:listings","event":"postgres_changes","payload":{"data":{"type":"UPDATE","table":"listings","schema":"public","record":{"id":"l-1","active":false}},"ids":[1]},"ref":null}`
	_ = conn.WriteMessage(websocket.TextMessage, []byte(change))

	if s.dropFirst && session == 1 {
		return
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func nextEvent(t *testing.T, ch <-chan entity.ChangeEvent) entity.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "feed closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return entity.ChangeEvent{}
	}
}

func TestRealtime_JoinsTablesAndDeliversChanges(t *testing.T) {
	ps := &phoenixServer{}
	srv := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewRealtime(wsURL(srv.URL), logger.NewNop())
	ch, err := feed.Listen(ctx, []string{"nfts", "listings"})
	require.NoError(t, err)

	ev := nextEvent(t, ch)
	assert.Equal(t, "listings", ev.Table)
	assert.Equal(t, entity.ChangeUpdate, ev.Type)
	assert.JSONEq(t, `{"id":"l-1","active":false}`, string(ev.Record))

	ps.mu.Lock()
	require.Len(t, ps.frames, 2)
	assert.Equal(t, "realtime:public:nfts", ps.frames[0].Topic)
	assert.Equal(t, "realtime:public:listings", ps.frames[1].Topic)
	assert.Contains(t, string(ps.frames[1].Payload), `"table":"listings"`)
	assert.Contains(t, string(ps.frames[1].Payload), `"schema":"public"`)
	ps.mu.Unlock()

	cancel()
	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed not closed after cancel")
	}
}

func TestRealtime_ReconnectsAfterDrop(t *testing.T) {
	ps := &phoenixServer{dropFirst: true}
	srv := httptest.NewServer(http.HandlerFunc(ps.handler))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewRealtime(wsURL(srv.URL), logger.NewNop())
	feed.minBackoff = 10 * time.Millisecond
	ch, err := feed.Listen(ctx, []string{"nfts", "listings"})
	require.NoError(t, err)

	nextEvent(t, ch)
	nextEvent(t, ch)

	ps.mu.Lock()
	assert.Equal(t, 2, ps.sessions)
	ps.mu.Unlock()
}

func TestRealtime_ListenFailsWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewRealtime(wsURL(srv.URL), logger.NewNop()).Listen(context.Background(), []string{"nfts"})
	require.Error(t, err)
}

func TestRealtime_DecodeIgnoresControlFrames(t *testing.T) {
	feed := NewRealtime("ws://unused", logger.NewNop())

	_, ok := feed.decode([]byte(`{"topic":"phoenix","event":"phx_reply","payload":{"status":"ok"},"ref":"3"}`))
	assert.False(t, ok)
	_, ok = feed.decode([]byte(`not json`))
	assert.False(t, ok)

	ev, ok := feed.decode([]byte(`{"topic":"realtime:public:offers","event":"INSERT","payload":{"type":"INSERT","record":{"id":"o-1"}}}`))
	require.True(t, ok)
	assert.Equal(t, "offers", ev.Table)
	assert.Equal(t, entity.ChangeInsert, ev.Type)
}

func TestRealtimeEndpoint(t *testing.T) {
	endpoint, err := RealtimeEndpoint(configloader.SupabaseConfig{URL: "https://proj.supabase.co/", Key: "anon"})
	require.NoError(t, err)
	assert.Equal(t, "wss://proj.supabase.co/realtime/v1/websocket?apikey=anon&vsn=1.0.0", endpoint)

	endpoint, err = RealtimeEndpoint(configloader.SupabaseConfig{URL: "https://proj.supabase.co", Key: "k", RealtimeURL: "ws://localhost:4000/socket"})
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:4000/socket?apikey=k&vsn=1.0.0", endpoint)
}
