package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	appErr "github.com/xxxsen/ragchat/internal/pkg/errors"
)

// Client is a thin HTTP client for the external answer-generation
// service. Transport policy only: no retries, one bounded timeout.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// Chat asks the generation service for a single answer.
func (c *Client) Chat(ctx context.Context, message, sessionID string) (*ResponsePayload, error) {
	var payload ResponsePayload
	if err := c.post(ctx, "/api/chat", chatRequest{Message: message, SessionID: sessionID}, &payload); err != nil {
		return nil, err
	}
	if payload.Response == "" {
		return nil, fmt.Errorf("%w: empty response field", appErr.ErrGenerationFailed)
	}
	return &payload, nil
}

// Compare asks the generation service to answer the same query once per
// configured strategy.
func (c *Client) Compare(ctx context.Context, message, sessionID string) (*ComparisonPayload, error) {
	var payload ComparisonPayload
	if err := c.post(ctx, "/api/chat/compare", chatRequest{Message: message, SessionID: sessionID}, &payload); err != nil {
		return nil, err
	}
	if len(payload.Responses) == 0 {
		return nil, fmt.Errorf("%w: no variant responses", appErr.ErrGenerationFailed)
	}
	return &payload, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrGenerationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", appErr.ErrGenerationFailed, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", appErr.ErrGenerationFailed, err)
	}
	return nil
}
