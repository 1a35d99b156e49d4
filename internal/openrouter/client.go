package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the OpenRouter API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// requestTimeout bounds one chat-completion call. Web-search-enabled
	// calls are slow; anything beyond this is treated as a retryable
	// timeout rather than left hanging.
	requestTimeout = 20 * time.Second

	appTitle   = "NewsForge"
	appReferer = "https://github.com/newsforge/newsforge"
)

// Client talks to an OpenRouter-compatible chat-completions API.
type Client struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewClient creates a client. The HTTP client carries no Timeout of its
// own; per-request deadlines come from the context so cancellation and
// timeout stay distinguishable.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		client:  &http.Client{},
	}
}

// Complete sends one chat-completion request and returns the validated
// envelope. Error classes:
//   - context.Canceled when the run's cancellation fired
//   - *TimeoutError when the per-request deadline fired
//   - *APIError when the envelope carries an error field
//   - *MalformedResponseError when choices[0].message is missing
//   - *ParseError / ErrIncompleteStream from response decoding
func (c *Client) Complete(ctx context.Context, model, prompt string, params map[string]any) (*Payload, error) {
	body := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	for k, v := range params {
		body[k] = v
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", c.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", appTitle)
	req.Header.Set("HTTP-Referer", appReferer)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.classify(ctx, reqCtx, fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	parsed, err := ParseResponse(resp)
	if err != nil {
		// Body reads can also be interrupted by cancellation or the deadline.
		return nil, c.classify(ctx, reqCtx, err)
	}

	payload := parsed.Payload
	if payload.Error != nil {
		return nil, &APIError{Message: payload.Error.Message}
	}
	if len(payload.Choices) == 0 || payload.Choices[0].Message == nil {
		return nil, &MalformedResponseError{Detail: "missing choices[0].message"}
	}
	return payload, nil
}

// classify maps a transport failure onto the error taxonomy: run
// cancellation wins over the per-request deadline, everything else passes
// through as a plain retryable error.
func (c *Client) classify(runCtx, reqCtx context.Context, err error) error {
	if runCtx.Err() == context.Canceled {
		return context.Canceled
	}
	if reqCtx.Err() == context.DeadlineExceeded {
		return &TimeoutError{After: requestTimeout}
	}
	return err
}
