package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"pepu-name-service/internal/domain"
	"pepu-name-service/internal/observability"
)

// DefaultTelegramAPI is the Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

// Telegram posts announcements to a chat through the Bot API.
type Telegram struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
	logger  *zap.Logger
}

// TelegramOption configures Telegram.
type TelegramOption func(*Telegram)

// WithBaseURL overrides the Bot API URL.
func WithBaseURL(u string) TelegramOption {
	return func(t *Telegram) {
		t.baseURL = u
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(c *http.Client) TelegramOption {
	return func(t *Telegram) {
		t.client = c
	}
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(token, chatID string, logger *zap.Logger, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		baseURL: DefaultTelegramAPI,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.Named("telegram"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Notify implements Notifier.
func (t *Telegram) Notify(ctx context.Context, ev domain.RegistrationEvent) bool {
	err := t.send(ctx, Message(ev))
	observability.RecordNotification("telegram", err == nil)
	if err != nil {
		t.logger.Warn("telegram notification failed",
			zap.String("name", ev.Name),
			zap.Error(err))
		return false
	}
	return true
}

func (t *Telegram) send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL carries the bot token; report the cause without it.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
