package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	htmlFence    = "```html"
	genericFence = "```"
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// ExtractHTML pulls the markup out of a model reply. The first ```html block
// wins, then the first generic fenced block, then the whole reply. Only the
// first block is ever used.
func ExtractHTML(reply string) string {
	if _, after, ok := strings.Cut(reply, htmlFence); ok {
		body, _, _ := strings.Cut(after, genericFence)
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(reply, genericFence); ok {
		body, _, _ := strings.Cut(after, genericFence)
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(reply)
}

// LineKind classifies one line of a streamed chat-completion body.
type LineKind int

const (
	LineSkip      LineKind = iota // not a data line, or a data line with no content
	LineFragment                  // carries a content delta
	LineDone                      // terminal sentinel
	LineMalformed                 // data line whose payload is not a valid event
)

// ParseStreamLine decodes a single server-sent line. The fragment is only
// set for LineFragment.
func ParseStreamLine(line string) (LineKind, string) {
	data, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return LineSkip, ""
	}
	if strings.TrimSpace(data) == doneSentinel {
		return LineDone, ""
	}

	var event openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return LineMalformed, ""
	}
	if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
		return LineSkip, ""
	}
	return LineFragment, event.Choices[0].Delta.Content
}

// StatusError is a non-success HTTP response from the completion endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Body)
}

// DescribeError renders a remote-call failure as a message fit for display.
func DescribeError(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Error()
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("API error: %d - %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("API error: %d - %v", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return fmt.Sprintf("Error generating HTML: %v", err)
}
