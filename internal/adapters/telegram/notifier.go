package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fxSignalBot/internal/ports"
)

const defaultBaseURL = "https://api.telegram.org"

// Notifier implements ports.NotificationSink against the Telegram Bot API.
// When token or chat id are empty the notifier is disabled and Send becomes a
// no-op, so wiring it unconditionally is safe.
type Notifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	logger  ports.Logger
}

// Config holds configuration for the Telegram notifier.
type Config struct {
	Token   string
	ChatID  string
	Logger  ports.Logger
	Timeout time.Duration // HTTP timeout, defaults to 10s
	BaseURL string        // overridable for tests
}

// New creates a Telegram notifier.
func New(cfg Config) (*Notifier, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for telegram notifier")
	}
	if cfg.Token == "" || cfg.ChatID == "" {
		cfg.Logger.Warn(context.Background(), "telegram token or chat id not set, notifications disabled")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Notifier{
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  cfg.Logger,
	}, nil
}

// Enabled reports whether the notifier has credentials to send with.
func (n *Notifier) Enabled() bool {
	return n.token != "" && n.chatID != ""
}

// Send delivers a text message to the configured chat. Returns nil without
// sending when the notifier is disabled.
func (n *Notifier) Send(ctx context.Context, text string) error {
	op := "Send"
	if !n.Enabled() {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ports.ErrNotificationFailed, err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ports.ErrNotificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error(ctx, err, op+": telegram request failed")
		return fmt.Errorf("%s: %w: %w", op, ports.ErrNotificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("telegram API returned status %d: %s", resp.StatusCode, string(body))
		n.logger.Error(ctx, err, op+": telegram rejected message")
		return fmt.Errorf("%s: %w: %w", op, ports.ErrNotificationFailed, err)
	}

	n.logger.Debug(ctx, op+": notification delivered")
	return nil
}
