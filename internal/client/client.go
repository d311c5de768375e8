// Package client talks to a running disasterwatch server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"disasterwatch/internal/domain"
)

type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{Timeout: timeout}}
}

type askRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

// Ask posts a question to /ask. k <= 0 leaves the depth to the server.
func (c *Client) Ask(ctx context.Context, question string, k int) (domain.Answer, error) {
	data, err := json.Marshal(askRequest{Question: question, K: k})
	if err != nil {
		return domain.Answer{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", bytes.NewReader(data))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("ask: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return domain.Answer{}, fmt.Errorf("server: %s", e.Error)
		}
		return domain.Answer{}, fmt.Errorf("server: %s", resp.Status)
	}
	var ans domain.Answer
	if err := json.Unmarshal(body, &ans); err != nil {
		return domain.Answer{}, fmt.Errorf("decode answer: %w", err)
	}
	return ans, nil
}

// Health returns nil when GET /health reports ok.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode health: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.Status != "ok" {
		return fmt.Errorf("server unhealthy: %s", resp.Status)
	}
	return nil
}
