package gemini

import (
	"context"

	"google.golang.org/genai"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/provider"
)

// Embed implements provider.EmbeddingModel against Gemini's EmbedContent
// API. No in-pack reference exercises this call; the shape below follows
// the client.Models.* naming convention both Gemini adapter references use
// for GenerateContent, extrapolated to its embedding sibling.
func (c *Client) Embed(ctx context.Context, req provider.EmbeddingRequest) (*provider.EmbeddingResponse, error) {
	if req.Model == "" {
		return nil, llmerr.New(llmerr.MissingField, "gemini: embedding model identifier is required")
	}
	if len(req.Inputs) == 0 {
		return nil, llmerr.New(llmerr.MissingField, "gemini: at least one embedding input is required")
	}

	cfg := &genai.EmbedContentConfig{}
	if req.Dimensions > 0 {
		dim := int32(req.Dimensions)
		cfg.OutputDimensionality = &dim
	}

	vectors := make([][]float32, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		contents := []*genai.Content{{Parts: []*genai.Part{genai.NewPartFromText(in)}}}
		resp, err := c.models.EmbedContent(ctx, req.Model, contents, cfg)
		if err != nil {
			return nil, translateTransportError(err)
		}
		if len(resp.Embeddings) == 0 {
			return nil, llmerr.New(llmerr.ProviderError, "gemini: embed content returned no embeddings")
		}
		vectors = append(vectors, resp.Embeddings[0].Values)
	}
	return &provider.EmbeddingResponse{Vectors: vectors}, nil
}
