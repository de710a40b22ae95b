package ai

import (
	"context"
	"log/slog"
	"time"

	"deepsite_server/internal/ai/utils"
	"deepsite_server/internal/metrics"
)

// GenerateHTML asks the model for a complete page and returns the extracted
// markup. Every failure is reported through report and collapses into
// ("", false); nothing is retried.
func (g *Generator) GenerateHTML(ctx context.Context, apiKey, userPrompt string, report Reporter) (string, bool) {
	const mode = "sync"
	if apiKey == "" {
		g.fail(report, mode, MsgMissingAPIKey)
		return "", false
	}

	start := time.Now()
	resp, err := g.client(apiKey).CreateChatCompletion(ctx, g.chatRequest(userPrompt, false))
	metrics.GenerationDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err != nil {
		g.fail(report, mode, utils.DescribeError(err))
		return "", false
	}
	if len(resp.Choices) == 0 {
		g.fail(report, mode, "API error: empty response")
		return "", false
	}

	reply := resp.Choices[0].Message.Content
	g.logger.Debug("generation reply received",
		slog.Int("reply_bytes", len(reply)),
		slog.Int("total_tokens", resp.Usage.TotalTokens))

	metrics.GenerationsTotal.WithLabelValues(mode, metrics.Status(true)).Inc()
	return utils.ExtractHTML(reply), true
}
