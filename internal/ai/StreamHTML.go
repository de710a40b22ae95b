package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"deepsite_server/internal/ai/utils"
	"deepsite_server/internal/metrics"
)

const maxErrorBody = 64 << 10

// StreamHTML returns the generated markup as a lazy sequence of content
// deltas. The request is sent when iteration starts and the sequence can be
// ranged over once; later ranges yield nothing. Failures before the first
// fragment are reported and yield an empty sequence. A body that ends
// before the terminal sentinel reports MsgInterrupted after the last
// fragment.
func (g *Generator) StreamHTML(ctx context.Context, apiKey, userPrompt string, report Reporter) iter.Seq[string] {
	const mode = "stream"
	var consumed atomic.Bool

	return func(yield func(string) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}
		if apiKey == "" {
			g.fail(report, mode, MsgMissingAPIKey)
			return
		}

		start := time.Now()
		body, err := g.openStream(ctx, apiKey, userPrompt)
		if err != nil {
			g.fail(report, mode, utils.DescribeError(err))
			return
		}
		defer body.Close()
		defer func() {
			metrics.GenerationDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		}()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for scanner.Scan() {
			kind, fragment := utils.ParseStreamLine(scanner.Text())
			switch kind {
			case utils.LineDone:
				metrics.GenerationsTotal.WithLabelValues(mode, metrics.Status(true)).Inc()
				return
			case utils.LineMalformed:
				metrics.StreamFragmentsDropped.Inc()
			case utils.LineFragment:
				metrics.StreamFragmentsTotal.Inc()
				if !yield(fragment) {
					metrics.GenerationsTotal.WithLabelValues(mode, metrics.Status(false)).Inc()
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			g.logger.Warn("stream ended early", slog.String("error", err.Error()))
		}
		// The body ended without the terminal sentinel.
		g.fail(report, mode, MsgInterrupted)
	}
}

// openStream posts a streaming chat-completion request and returns the
// response body on a 2xx status.
func (g *Generator) openStream(ctx context.Context, apiKey, userPrompt string) (io.ReadCloser, error) {
	payload, err := json.Marshal(g.chatRequest(userPrompt, true))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &utils.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	return resp.Body, nil
}
