package council

import (
	"context"

	"github.com/conclave-ai/conclave/internal/llm"
	"github.com/conclave-ai/conclave/internal/model"
)

// CollectResponses runs Stage 1: the query goes to every council model
// concurrently with identical instructions, so models never learn the
// identities of their peers. A failed model is omitted; the survivors keep
// configuration order regardless of completion order.
func (c *Council) CollectResponses(ctx context.Context, query string) []model.ModelResponse {
	messages := llm.SystemUser(c.prompts.Stage1System, query)
	replies := llm.CallAll(ctx, c.provider, c.cfg.Models, messages)

	responses := make([]model.ModelResponse, 0, len(replies))
	for _, reply := range replies {
		if reply.Err != nil || reply.Text == "" {
			continue
		}

		prose, meta := ParseMetadata(reply.Text)
		resp := model.ModelResponse{
			Model:    reply.Model,
			Response: prose,
		}
		if meta != nil {
			resp.Confidence = meta.Confidence
			resp.ConfidenceSource = meta.Source
			resp.FactualClaims = meta.FactualClaims
			resp.KeyAssumptions = meta.KeyAssumptions
			resp.KnownUnknowns = meta.KnownUnknowns
		}
		responses = append(responses, resp)
	}

	return responses
}
