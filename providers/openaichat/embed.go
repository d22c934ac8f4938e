package openaichat

import (
	"context"

	"github.com/openai/openai-go"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/provider"
)

// Embed implements provider.EmbeddingModel against the OpenAI Embeddings
// API. Requests are issued in one batch; callers that need to stay under a
// provider's per-request input limit should chunk EmbeddingRequest.Inputs
// themselves.
func (c *Client) Embed(ctx context.Context, req provider.EmbeddingRequest) (*provider.EmbeddingResponse, error) {
	if c.embed == nil {
		return nil, llmerr.New(llmerr.MissingField, "openaichat: client was not constructed with embeddings support")
	}
	if req.Model == "" {
		return nil, llmerr.New(llmerr.MissingField, "openaichat: embedding model identifier is required")
	}
	if len(req.Inputs) == 0 {
		return nil, llmerr.New(llmerr.MissingField, "openaichat: at least one embedding input is required")
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(req.Model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: req.Inputs},
	}
	if req.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(req.Dimensions))
	}

	resp, err := c.embed.New(ctx, params)
	if err != nil {
		return nil, translateTransportError(err)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		vectors[i] = vec
	}
	return &provider.EmbeddingResponse{Vectors: vectors}, nil
}
