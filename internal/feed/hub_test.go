package feed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pepu-name-service/internal/domain"
)

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, got %d", n, h.Subscribers())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	a := dialHub(t, server)
	b := dialHub(t, server)
	waitForSubscribers(t, hub, 2)

	hub.Publish(domain.RegistrationEvent{Name: "teck.pepu", Owner: "0xaaa", Registered: 7})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Type string                   `json:"type"`
			Data domain.RegistrationEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "registration", msg.Type)
		assert.Equal(t, "teck.pepu", msg.Data.Name)
		assert.Equal(t, int64(7), msg.Data.Registered)
	}
}

func TestHub_DisconnectRemovesSubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	conn := dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	conn.Close()
	waitForSubscribers(t, hub, 0)
}

func TestHub_CloseRejectsNewSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	hub.Close()

	conn := dialHub(t, server)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
	assert.Equal(t, 0, hub.Subscribers())
}

func TestHub_OriginCheck(t *testing.T) {
	hub := NewHub(zap.NewNop(), []string{"https://pepu.example"})
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, map[string][]string{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, 403, resp.StatusCode)
	}
}
