package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/pkg/logger"
)

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startServer(t *testing.T, origins []string) (*Server, string) {
	t.Helper()
	s := NewServer(origins, observability.NewMetricsForTesting(), logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m received
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_NotificationsGoToEveryone(t *testing.T) {
	s, url := startServer(t, nil)
	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, s, 2)

	s.BroadcastNotification(map[string]string{"title": "Gate change"})

	for _, conn := range []*websocket.Conn{a, b} {
		m := readMessage(t, conn)
		assert.Equal(t, MessageTypeNotification, m.Type)
		assert.JSONEq(t, `{"title":"Gate change"}`, string(m.Data))
	}
}

func TestServer_METARSubscriptions(t *testing.T) {
	s, url := startServer(t, nil)
	subscribed := dial(t, url)
	everything := dial(t, url)
	waitForClients(t, s, 2)

	require.NoError(t, subscribed.WriteJSON(map[string]any{
		"type": MessageTypeSubscribe,
		"data": map[string]any{"icaos": []string{"rjtt", "RJTT", " "}},
	}))
	ack := readMessage(t, subscribed)
	assert.Equal(t, MessageTypeSubscribed, ack.Type)
	assert.JSONEq(t, `{"icaos":["RJTT"]}`, string(ack.Data))

	s.PublishMETAR("RJAA", map[string]string{"icao": "RJAA"})
	s.PublishMETAR("rjtt", map[string]string{"icao": "RJTT"})

	first := readMessage(t, subscribed)
	assert.Equal(t, MessageTypeMETARUpdate, first.Type)
	assert.JSONEq(t, `{"icao":"RJTT"}`, string(first.Data))

	assert.JSONEq(t, `{"icao":"RJAA"}`, string(readMessage(t, everything).Data))
	assert.JSONEq(t, `{"icao":"RJTT"}`, string(readMessage(t, everything).Data))
}

func TestServer_RejectsBadMessages(t *testing.T) {
	s, url := startServer(t, nil)
	conn := dial(t, url)
	waitForClients(t, s, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	m := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, m.Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	m = readMessage(t, conn)
	assert.Equal(t, MessageTypeError, m.Type)
	assert.JSONEq(t, `{"error":"unknown message type"}`, string(m.Data))
}

func TestServer_UnregistersOnClose(t *testing.T) {
	s, url := startServer(t, nil)
	conn := dial(t, url)
	waitForClients(t, s, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, s, 0)
}

func TestServer_BroadcastAfterStopDoesNotBlock(t *testing.T) {
	s := NewServer(nil, observability.NewMetricsForTesting(), logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		s.BroadcastNotification("late")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked after stop")
	}
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originChecker(nil)
	assert.True(t, open(req("http://evil.example")))

	star := originChecker([]string{"*"})
	assert.True(t, star(req("http://evil.example")))

	strict := originChecker([]string{"http://efb.local/"})
	assert.True(t, strict(req("http://efb.local")))
	assert.True(t, strict(req("")))
	assert.False(t, strict(req("http://evil.example")))
}
