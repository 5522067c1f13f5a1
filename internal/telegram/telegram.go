// Package telegram sends messages through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Twomem/avacta-alert/internal/alert"
	alerterrs "github.com/Twomem/avacta-alert/internal/errors"
)

const (
	DefaultAPIURL  = "https://api.telegram.org"
	defaultTimeout = 30 * time.Second
	// Enough of an error body to tell what went wrong.
	maxErrBody = 4096
)

var _ alert.Notifier = (*Client)(nil)

// Client posts messages to one chat.
type Client struct {
	apiURL string
	token  string
	chatID string
	client *http.Client
}

// NewClient creates a new instance of Client. An empty apiURL uses the
// public Bot API endpoint.
func NewClient(apiURL, token, chatID string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: timeout},
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Send posts text as an HTML formatted message. Anything other than a 200
// is a KindDelivery error carrying the response body.
func (c *Client) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    c.chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return alerterrs.E(alerterrs.KindDelivery, fmt.Errorf("error encoding message: %w", err))
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.apiURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return alerterrs.E(alerterrs.KindDelivery, fmt.Errorf("error building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// The url embeds the token; keep it out of logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = redact(uerr.URL, c.token)
		}
		return alerterrs.E(alerterrs.KindDelivery, fmt.Errorf("error posting message: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return alerterrs.E(
			alerterrs.KindDelivery,
			fmt.Errorf("unexpected status code: %d", resp.StatusCode),
			alerterrs.Detail{Field: "response", Error: strings.TrimSpace(string(respBody))},
		)
	}

	slog.DebugContext(ctx, "telegram message sent")

	return nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}

	return strings.ReplaceAll(s, secret, "<redacted>")
}
