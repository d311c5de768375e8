package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client is an OpenAI-compatible chat completions client (OpenAI, Groq, Ollama).
// One Client is built at startup and shared by extraction and answering.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Config configures the chat completions client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Timeout   time.Duration
}

// NewClient creates a client using the API key found in cfg.APIKeyEnv.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	return newClient(cfg, key), nil
}

func newClient(cfg Config, key string) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  key,
		client:  &http.Client{Timeout: t},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

// Generate sends prompt as a single user message and returns the reply text.
// It makes exactly one request; retries are the caller's decision.
func (c *Client) Generate(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	data, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat completion failed: %s: %s", resp.Status, strings.TrimSpace(string(truncate(payload, 512))))
	}
	return parseReply(payload)
}

func parseReply(payload []byte) (string, error) {
	// OpenAI-compatible shape first
	var openaiOut struct {
		Choices []struct {
			Message message `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil && len(openaiOut.Choices) > 0 {
		return openaiOut.Choices[0].Message.Content, nil
	}
	// Ollama-native /api/chat shape: { "message": {...} }
	var ollamaOut struct {
		Message *message `json:"message"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && ollamaOut.Message != nil {
		return ollamaOut.Message.Content, nil
	}
	return "", errors.New("no completion returned")
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
