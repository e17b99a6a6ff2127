package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls an OpenAI-compatible chat completions endpoint and holds
// it to the engine's response contract.
type Client struct {
	http         *http.Client
	url          string
	apiKey       string
	model        string
	systemPrompt string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a capability client. timeout bounds the whole call; the
// orchestrator never waits longer than this for a decision.
func New(url, apiKey, model, systemPrompt string, timeout time.Duration, opts ...Option) (*Client, error) {
	if url == "" || apiKey == "" {
		return nil, errors.New("capability url and api key required")
	}
	c := &Client{
		http:         &http.Client{Timeout: timeout},
		url:          url,
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Decide sends the daily context and returns the validated result plus
// the raw JSON document it was parsed from. The raw bytes are what gets
// persisted, so cached reads return the capability output verbatim.
func (c *Client) Decide(ctx context.Context, dailyContext any) (Result, []byte, error) {
	ctxJSON, err := json.Marshal(dailyContext)
	if err != nil {
		return Result{}, nil, fmt.Errorf("marshal daily context: %w", err)
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.systemPrompt},
			{Role: "user", Content: string(ctxJSON)},
		},
		Temperature:    0.3,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return Result{}, nil, fmt.Errorf("marshal capability request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, nil, fmt.Errorf("capability call: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, nil, fmt.Errorf("read capability response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, nil, fmt.Errorf("capability status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return Result{}, nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(cr.Choices) == 0 {
		return Result{}, nil, fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	raw := []byte(cr.Choices[0].Message.Content)
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := result.Validate(); err != nil {
		return Result{}, nil, err
	}
	return result, raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
