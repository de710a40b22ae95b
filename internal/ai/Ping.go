package ai

import (
	"context"
	"errors"

	"deepsite_server/internal/ai/utils"
)

// Ping lists the models visible to apiKey, confirming that the endpoint is
// reachable and the key is accepted. It returns the number of models.
func (g *Generator) Ping(ctx context.Context, apiKey string) (int, error) {
	if apiKey == "" {
		return 0, ErrMissingAPIKey
	}
	models, err := g.client(apiKey).ListModels(ctx)
	if err != nil {
		return 0, errors.New(utils.DescribeError(err))
	}
	return len(models.Models), nil
}
