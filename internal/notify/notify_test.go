package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pepu-name-service/internal/domain"
)

func testEvent() domain.RegistrationEvent {
	return domain.RegistrationEvent{
		Name:            "teck.pepu",
		Owner:           "0x1111111111111111111111111111111111111111",
		TransactionHash: "0xabc",
		RegisteredAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMessage(t *testing.T) {
	msg := Message(testEvent())
	assert.True(t, strings.HasPrefix(msg, "✅ New domain registered!"))
	assert.Contains(t, msg, "Domain: teck.pepu")
	assert.Contains(t, msg, "Owner: 0x1111111111111111111111111111111111111111")
	assert.Contains(t, msg, "Transaction: 0xabc")
	assert.Contains(t, msg, "Time: 2025-03-01T12:00:00Z")
}

func TestTelegram_Notify(t *testing.T) {
	var got sendMessageRequest
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegram("123:token", "-10042", zap.NewNop(), WithBaseURL(server.URL))

	ok := n.Notify(context.Background(), testEvent())
	require.True(t, ok)
	assert.Equal(t, "/bot123:token/sendMessage", path)
	assert.Equal(t, "-10042", got.ChatID)
	assert.Equal(t, "Markdown", got.ParseMode)
	assert.Contains(t, got.Text, "teck.pepu")
}

func TestTelegram_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
	}))
	defer server.Close()

	n := NewTelegram("bad", "1", zap.NewNop(), WithBaseURL(server.URL))
	assert.False(t, n.Notify(context.Background(), testEvent()))
}

func TestTelegram_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	n := NewTelegram("123:secret", "1", zap.NewNop(), WithBaseURL(url))
	err := n.send(context.Background(), "hello")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}

type recordingNotifier struct {
	calls int
	ok    bool
}

func (r *recordingNotifier) Notify(context.Context, domain.RegistrationEvent) bool {
	r.calls++
	return r.ok
}

func TestMulti(t *testing.T) {
	a := &recordingNotifier{ok: true}
	b := &recordingNotifier{ok: false}
	c := &recordingNotifier{ok: true}

	ok := Multi{a, b, c}.Notify(context.Background(), testEvent())
	assert.False(t, ok)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)

	assert.True(t, Multi{a, NewLog(zap.NewNop())}.Notify(context.Background(), testEvent()))
}
