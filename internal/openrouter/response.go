package openrouter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
	previewLimit = 200
)

// Usage holds token accounting from the API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Message is a chat message in the API's format.
type Message struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Choice is one completion choice. Streaming chunks carry Delta,
// final payloads carry Message.
type Choice struct {
	Message      *Message `json:"message,omitempty"`
	Delta        *Message `json:"delta,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

// ErrorPayload is the API-reported error field.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Payload is the uniform response envelope, collapsing the streaming-chunk
// and final-JSON shapes into one.
type Payload struct {
	Choices []Choice      `json:"choices,omitempty"`
	Usage   *Usage        `json:"usage,omitempty"`
	Error   *ErrorPayload `json:"error,omitempty"`
}

// Mode says which transport the response arrived on.
type Mode string

const (
	ModeJSON   Mode = "json"
	ModeStream Mode = "stream"
)

// ParsedResponse is a decoded response with its detected mode.
type ParsedResponse struct {
	Payload *Payload
	Mode    Mode
}

// ParseResponse decodes an API response, detecting single-JSON-body and
// SSE streaming transports by Content-Type.
func ParseResponse(resp *http.Response) (*ParsedResponse, error) {
	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return parseStream(resp.Body)
	}
	return parseJSONBody(resp.Body)
}

func parseJSONBody(r io.Reader) (*ParsedResponse, error) {
	text, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var payload Payload
	if err := json.Unmarshal(text, &payload); err != nil {
		return nil, &ParseError{Reason: err.Error(), Preview: preview(string(text))}
	}
	return &ParsedResponse{Payload: &payload, Mode: ModeJSON}, nil
}

// streamEvent distinguishes "carries choices" from "carries usage": usage
// often arrives on the final chunk while deltas carry partial content.
type streamEvent struct {
	Choices []Choice      `json:"choices"`
	Usage   *Usage        `json:"usage"`
	Error   *ErrorPayload `json:"error"`
}

func parseStream(r io.Reader) (*ParsedResponse, error) {
	var (
		buffer      string
		latest      *Payload
		latestUsage *Usage
	)

	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buffer = normalizeNewlines(buffer + string(chunk[:n]))
			for {
				i := strings.Index(buffer, "\n\n")
				if i < 0 {
					break
				}
				event := buffer[:i]
				buffer = buffer[i+2:]
				if perr := consumeEvent(event, &latest, &latestUsage); perr != nil {
					return nil, perr
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading stream: %w", err)
		}
	}

	// A stream may end without a final blank-line separator; the trailing
	// buffer still holds a complete event.
	if strings.TrimSpace(buffer) != "" {
		if perr := consumeEvent(buffer, &latest, &latestUsage); perr != nil {
			return nil, perr
		}
	}

	if latest == nil {
		return nil, ErrIncompleteStream
	}
	if latestUsage != nil && latest.Usage == nil {
		latest.Usage = latestUsage
	}
	return &ParsedResponse{Payload: latest, Mode: ModeStream}, nil
}

// consumeEvent decodes the data: lines of one SSE event, tracking the
// latest choices-bearing payload and the latest usage separately.
func consumeEvent(event string, latest **Payload, latestUsage **Usage) error {
	for _, line := range strings.Split(normalizeNewlines(event), "\n") {
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		entry := strings.TrimSpace(line[len(dataPrefix):])
		if entry == "" || entry == doneSentinel {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(entry), &ev); err != nil {
			return &ParseError{Reason: "invalid streaming data chunk: " + err.Error(), Preview: preview(entry)}
		}
		if ev.Usage != nil {
			*latestUsage = ev.Usage
		}
		if ev.Choices != nil {
			*latest = &Payload{Choices: ev.Choices, Usage: ev.Usage, Error: ev.Error}
		}
	}
	return nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func preview(s string) string {
	if len(s) > previewLimit {
		return s[:previewLimit]
	}
	return s
}
