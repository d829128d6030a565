package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/stayflow/stayflow-backend/pkg/config"
	"github.com/stayflow/stayflow-backend/pkg/logger"
)

// Choice is one tappable button under a message. Data comes back verbatim
// in the button webhook.
type Choice struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Transport delivers outbound messages to the host's chat client. The
// concrete messenger stays behind a gateway; this service only speaks the
// gateway's JSON.
type Transport interface {
	SendText(ctx context.Context, userID, text string) error
	SendChoices(ctx context.Context, userID, text string, choices []Choice) error
}

// HTTPTransport posts outbound messages to the chat gateway
type HTTPTransport struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewHTTPTransport creates a transport from configuration
func NewHTTPTransport(cfg *config.ChatConfig, log *logger.Logger) *HTTPTransport {
	return &HTTPTransport{
		baseURL:    strings.TrimRight(cfg.OutboundURL, "/"),
		botToken:   cfg.BotToken,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.WithComponent("chat-transport"),
	}
}

type outboundMessage struct {
	UserID  string   `json:"user_id"`
	Text    string   `json:"text"`
	Choices []Choice `json:"choices,omitempty"`
}

func (t *HTTPTransport) SendText(ctx context.Context, userID, text string) error {
	return t.send(ctx, outboundMessage{UserID: userID, Text: text})
}

func (t *HTTPTransport) SendChoices(ctx context.Context, userID, text string, choices []Choice) error {
	return t.send(ctx, outboundMessage{UserID: userID, Text: text, Choices: choices})
}

func (t *HTTPTransport) send(ctx context.Context, msg outboundMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.botToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.botToken)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chat gateway returned %d: %s", resp.StatusCode, string(body))
	}

	t.logger.Debug().
		Str("user_id", msg.UserID).
		Int("choices", len(msg.Choices)).
		Msg("outbound message sent")

	return nil
}
