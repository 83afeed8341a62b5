package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

// ErrEmptyReply is returned when the completion carries no message content.
var ErrEmptyReply = errors.New("classifier returned no choices")

// ChatClassifier implements ports.Classifier backed by OpenAI-compatible chat completion APIs.
type ChatClassifier struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	maxTokens    int
	temperature  float64
	httpClient   *http.Client
}

var _ ports.Classifier = (*ChatClassifier)(nil)

// NewChatClassifier builds a client from configuration.
func NewChatClassifier(cfg config.ClassifierConfig) *ChatClassifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	return &ChatClassifier{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify posts the prompt as a user message and returns the first choice's content verbatim.
func (c *ChatClassifier) Classify(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("classifier client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("classifier client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal classifier payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("classifier error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode classifier response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a credibility analyser. Always respond with valid JSON only, no other text."
	}
	return prompt
}
