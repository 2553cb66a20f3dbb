package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jinford/doc-rag/internal/core/embedding"
)

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536

	// maxEmbeddingBatchSize はOpenAI Embeddings APIの1リクエスト最大入力数
	maxEmbeddingBatchSize = 100
)

// EmbedderConfig は Embedder の設定
type EmbedderConfig struct {
	APIKey    string
	Model     string // 省略時は DefaultEmbeddingModel
	Dimension int    // 省略時は DefaultEmbeddingDimension
}

// Embedder は OpenAI API を使用する embedding.Client 実装
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultEmbeddingDimension
	}

	return &Embedder{
		client:    openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     model,
		dimension: dimension,
	}, nil
}

var _ embedding.Client = (*Embedder)(nil)

// Embed は単一テキストのEmbeddingを生成する
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}
	return vectors[0], nil
}

// BatchEmbed は複数テキストのEmbeddingを入力と同じ順序で生成する
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}
	if len(texts) > maxEmbeddingBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds maximum of %d", len(texts), maxEmbeddingBatchSize)
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Dimensions: openai.Int(int64(e.dimension)),
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		vector := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vector[i] = float32(v)
		}
		vectors[data.Index] = vector
	}

	return vectors, nil
}

// Dimension は出力ベクトルの次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// MaxBatchSize はBatchEmbedの1回あたりの最大件数を返す
func (e *Embedder) MaxBatchSize() int {
	return maxEmbeddingBatchSize
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}
