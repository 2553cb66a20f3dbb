package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/embedding"
	"github.com/jinford/doc-rag/internal/core/index"
)

// DefaultLimit は検索件数未指定時のデフォルト値
const DefaultLimit = 5

// RetrievedChunk は検索で得られたチャンクとそのスコアを表す
type RetrievedChunk struct {
	DocumentID uuid.UUID // 所属ドキュメントID
	Ordinal    int       // ドキュメント内のチャンク番号
	Text       string    // チャンクのテキスト
	Score      float64   // コサイン類似度
}

// Service は質問文に対する関連チャンク検索を提供する
type Service struct {
	idx      index.Index
	embedder embedding.Client
	logger   *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(idx index.Index, embedder embedding.Client, opts ...ServiceOption) *Service {
	svc := &Service{
		idx:      idx,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Retrieve は質問をEmbeddingに変換してインデックスを検索し、
// ランク順・重複排除済みの候補チャンクを返す
//
// インデックスが空、またはフィルタ範囲に該当がない場合は空のスライスを
// 返す（エラーにしない）。Embedding生成の失敗は embedding.ErrUnavailable
// を伴ってそのまま伝播する
func (s *Service) Retrieve(ctx context.Context, question string, k int, filter mo.Option[uuid.UUID]) ([]*RetrievedChunk, error) {
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}
	if k <= 0 {
		k = DefaultLimit
	}

	queryVector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed question: %v", embedding.ErrUnavailable, err)
	}

	hits, err := s.idx.Search(ctx, queryVector, k, filter)
	if err != nil {
		// エントリが1件もないインデックスは「該当なし」として扱う
		if errors.Is(err, index.ErrEmptyIndex) {
			s.logger.Info("index is empty, returning no candidates")
			return []*RetrievedChunk{}, nil
		}
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	// インデックスは重複を返さない想定だが、チャンク同一性での排除を保証する
	type chunkKey struct {
		doc     uuid.UUID
		ordinal int
	}
	seen := make(map[chunkKey]struct{}, len(hits))

	results := make([]*RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		key := chunkKey{doc: hit.DocumentID, ordinal: hit.Ordinal}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		results = append(results, &RetrievedChunk{
			DocumentID: hit.DocumentID,
			Ordinal:    hit.Ordinal,
			Text:       hit.Text,
			Score:      hit.Score,
		})
	}

	s.logger.Info("retrieval completed",
		"question_length", len(question),
		"k", k,
		"candidates", len(results),
	)

	return results, nil
}
