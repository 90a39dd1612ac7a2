package live

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bissquit/statuspage/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSnapshotter counts snapshot loads.
type stubSnapshotter struct {
	loads atomic.Int32
	err   error
}

func (s *stubSnapshotter) Snapshot(_ context.Context, topic Topic) (any, error) {
	n := s.loads.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return map[string]any{"topic": string(topic), "version": n}, nil
}

func newTestServer(t *testing.T, snaps Snapshotter) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(8)
	h := NewHandler(hub, snaps, HandlerConfig{WriteTimeout: time.Second, PingInterval: time.Minute})
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server, topic string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live?topic=" + topic
	return websocket.DefaultDialer.Dial(url, nil)
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestHandler_StreamsSnapshotThenChanges(t *testing.T) {
	snaps := &stubSnapshotter{}
	srv, hub := newTestServer(t, snaps)

	conn, _, err := dial(t, srv, "services")
	require.NoError(t, err)
	defer conn.Close()

	first := readFrame(t, conn)
	assert.Equal(t, TopicServices, first.Topic)
	assert.Equal(t, MessageSnapshot, first.Reason)
	assert.NotNil(t, first.Data)

	require.Eventually(t, func() bool { return hub.SubscriberCount(TopicServices) == 1 }, time.Second, 10*time.Millisecond)
	hub.Broadcast(domain.NewChange(domain.TopicServices, domain.ChangeUpdated, "s1"))

	second := readFrame(t, conn)
	assert.Equal(t, MessageChange, second.Reason)
	require.NotNil(t, second.Change)
	assert.Equal(t, "s1", second.Change.ID)
}

func TestHandler_ReleasesSubscriptionOnDisconnect(t *testing.T) {
	srv, hub := newTestServer(t, &stubSnapshotter{})

	conn, _, err := dial(t, srv, "incidents")
	require.NoError(t, err)
	readFrame(t, conn)
	require.Equal(t, 1, hub.SubscriberCount(TopicIncidents))

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.SubscriberCount(TopicIncidents) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_SnapshotErrorIsReported(t *testing.T) {
	srv, _ := newTestServer(t, &stubSnapshotter{err: errors.New("incident not found")})

	conn, _, err := dial(t, srv, "incidents/7f1c1e0a-8a52-4a5b-9f3e-2f7f2b1d4c11")
	require.NoError(t, err)
	defer conn.Close()

	f := readFrame(t, conn)
	assert.Equal(t, "incident not found", f.Error)
	assert.Nil(t, f.Data)
}

func TestHandler_InvalidTopic(t *testing.T) {
	srv, _ := newTestServer(t, &stubSnapshotter{})

	_, resp, err := dial(t, srv, "everything")

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDrain_KeepsNewest(t *testing.T) {
	ch := make(chan Message, 3)
	ch <- Message{Kind: MessageChange, Change: &domain.Change{ID: "b"}}
	ch <- Message{Kind: MessageChange, Change: &domain.Change{ID: "c"}}

	got := drain(ch, Message{Kind: MessageSnapshot})

	assert.Equal(t, "c", got.Change.ID)
	assert.Empty(t, ch)
}
