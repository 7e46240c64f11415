package embed

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// Compile-time interface check.
var _ Embedder = (*OpenAI)(nil)

// OpenAI is an [Embedder] backed by the OpenAI embeddings API. The requested
// dimension is passed through to the API so reduced-dimension variants of
// the text-embedding-3 family line up with the embeddings table.
type OpenAI struct {
	client oai.Client
	model  string
	dim    int
}

// NewOpenAI creates an OpenAI embedder for model with dim output dimensions.
func NewOpenAI(apiKey, model string, dim int) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embed: api key must not be empty")
	}
	if model == "" {
		model = oai.EmbeddingModelTextEmbedding3Small
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embed: dimension must be positive, got %d", dim)
	}
	return &OpenAI{
		client: oai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		dim:    dim,
	}, nil
}

// Embed implements [Embedder].
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model:      o.model,
		Dimensions: param.NewOpt(int64(o.dim)),
		Input: oai.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed: empty response")
	}
	vec := toFloat32(resp.Data[0].Embedding)
	if err := checkDim(len(vec), o.dim); err != nil {
		return nil, err
	}
	NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch implements [Embedder].
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := o.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model:      o.model,
		Dimensions: param.NewOpt(int64(o.dim)),
		Input: oai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embed: batch: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed: expected %d vectors, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, e := range resp.Data {
		if int(e.Index) >= len(texts) {
			return nil, fmt.Errorf("embed: unexpected index %d", e.Index)
		}
		vec := toFloat32(e.Embedding)
		if err := checkDim(len(vec), o.dim); err != nil {
			return nil, err
		}
		NormalizeL2(vec)
		out[e.Index] = vec
	}
	return out, nil
}

// Model implements [Embedder].
func (o *OpenAI) Model() string { return o.model }

// Dim implements [Embedder].
func (o *OpenAI) Dim() int { return o.dim }

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
