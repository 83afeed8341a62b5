package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsDigest/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// BotCommand is one entry of the bot's command menu.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// DefaultCommands is the command menu registered at startup.
var DefaultCommands = []BotCommand{
	{Command: "refresh", Description: "Check for new updates right now"},
	{Command: "top", Description: "Today's top 5 most credible articles"},
	{Command: "history", Description: "Browse last 7 digest runs"},
	{Command: "status", Description: "Show last run stats"},
	{Command: "help", Description: "Show all commands"},
}

// Notifier sends HTML messages through the Telegram bot API.
type Notifier struct {
	botToken string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers the bot token. An empty apiBase selects the public API.
func NewNotifier(botToken, apiBase string) *Notifier {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Notifier{
		botToken: botToken,
		apiBase:  strings.TrimRight(apiBase, "/"),
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// PublishMessage posts an HTML message to chatID with link previews disabled.
func (n *Notifier) PublishMessage(ctx context.Context, chatID, text string) error {
	if chatID == "" {
		return fmt.Errorf("telegram notifier: empty chat id")
	}
	return n.call(ctx, "sendMessage", map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
}

// SetWebhook points the bot's updates at webhookURL.
func (n *Notifier) SetWebhook(ctx context.Context, webhookURL string) error {
	return n.call(ctx, "setWebhook", map[string]any{
		"url":             webhookURL,
		"allowed_updates": []string{"message"},
	})
}

// SetCommands registers the bot's command menu.
func (n *Notifier) SetCommands(ctx context.Context, commands []BotCommand) error {
	return n.call(ctx, "setMyCommands", map[string]any{"commands": commands})
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (n *Notifier) call(ctx context.Context, method string, payload map[string]any) error {
	if n == nil || n.botToken == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", n.apiBase, n.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram %s error: %s: %s", method, resp.Status, strings.TrimSpace(string(raw)))
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && !decoded.OK {
		return fmt.Errorf("telegram %s rejected: %s", method, decoded.Description)
	}
	return nil
}
