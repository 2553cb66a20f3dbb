package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/answer"
	"github.com/jinford/doc-rag/internal/core/chunking"
	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/embedding"
	"github.com/jinford/doc-rag/internal/core/index"
	"github.com/jinford/doc-rag/internal/core/retrieval"
)

// ErrRollback はインジェスト失敗後のクリーンアップ自体が失敗した場合のエラー
// インデックスに部分的なドキュメントが残っている可能性があるため、
// 他のエラーと区別して扱う必要がある
var ErrRollback = errors.New("ingest rollback failed")

// IngestParams はドキュメントインジェストのパラメータ
type IngestParams struct {
	DocumentID uuid.UUID // ドキュメントID（未指定の場合は生成される）
	Title      string    // タイトル
	Text       string    // 抽出済みのプレーンテキスト
	PageCount  int       // 抽出時に推定されたページ数（任意）
}

// Stats はシステム全体の統計情報（観測専用、副作用なし）
type Stats struct {
	Documents    int // ドキュメント数
	Chunks       int // 総チャンク数
	Tokens       int // 総トークン数
	IndexEntries int // インデックスのエントリ数
}

// Service はインジェストと質問応答のパイプラインを調停する
// 各ステージの業務ロジックは持たず、順序付けとエラー変換のみを担う
type Service struct {
	chunker     *chunking.Chunker
	embedder    embedding.Client
	idx         index.Index
	docs        document.Repository
	retriever   *retrieval.Service
	synthesizer *answer.Synthesizer
	logger      *slog.Logger
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
func NewService(
	chunker *chunking.Chunker,
	embedder embedding.Client,
	idx index.Index,
	docs document.Repository,
	retriever *retrieval.Service,
	synthesizer *answer.Synthesizer,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		chunker:     chunker,
		embedder:    embedder,
		idx:         idx,
		docs:        docs,
		retriever:   retriever,
		synthesizer: synthesizer,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Ingest はテキストをチャンク化・Embedding生成・インデックス登録まで行う
//
// 全か無かの操作であり、途中で失敗（キャンセル含む）した場合は
// インデックスからこのドキュメントのエントリを取り除いてから返る。
// クリーンアップ自体の失敗は ErrRollback として区別して報告する
func (s *Service) Ingest(ctx context.Context, params IngestParams) (*document.Document, error) {
	docID := params.DocumentID
	if docID == uuid.Nil {
		docID = uuid.New()
	}

	pieces := s.chunker.Split(params.Text)

	s.logger.Info("ingest started",
		"document_id", docID.String(),
		"title", params.Title,
		"chunks", len(pieces),
	)

	totalTokens := 0
	for _, piece := range pieces {
		totalTokens += piece.Tokens
	}

	doc := &document.Document{
		ID:         docID,
		Title:      params.Title,
		ChunkCount: len(pieces),
		TokenCount: totalTokens,
		PageCount:  params.PageCount,
		CreatedAt:  time.Now().UTC(),
	}

	// 空ドキュメントはインデックスに触れずメタデータだけを残す
	if len(pieces) == 0 {
		if err := s.docs.Save(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to save document %s: %w", docID, err)
		}
		return doc, nil
	}

	entries, err := s.embedPieces(ctx, docID, pieces)
	if err != nil {
		return nil, s.rollback(ctx, docID, err)
	}

	if err := s.idx.Insert(ctx, docID, entries); err != nil {
		// 重複は何も挿入されていないため、既存エントリを巻き込むロールバックはしない
		if errors.Is(err, index.ErrDuplicateDocument) {
			return nil, fmt.Errorf("ingest of document %s failed: %w", docID, err)
		}
		return nil, s.rollback(ctx, docID, fmt.Errorf("failed to insert into index: %w", err))
	}

	if err := s.docs.Save(ctx, doc); err != nil {
		return nil, s.rollback(ctx, docID, fmt.Errorf("failed to save document metadata: %w", err))
	}

	s.logger.Info("ingest completed",
		"document_id", docID.String(),
		"chunks", doc.ChunkCount,
		"tokens", doc.TokenCount,
	)

	return doc, nil
}

// embedPieces はチャンクをEmbedderの最大バッチサイズ単位でベクトル化する
func (s *Service) embedPieces(ctx context.Context, docID uuid.UUID, pieces []*chunking.Piece) ([]*index.Entry, error) {
	batchSize := s.embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}

	entries := make([]*index.Entry, 0, len(pieces))
	for start := 0; start < len(pieces); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ingest cancelled: %w", err)
		}

		end := min(start+batchSize, len(pieces))
		batch := pieces[start:end]

		texts := make([]string, 0, len(batch))
		for _, piece := range batch {
			texts = append(texts, piece.Text)
		}

		vectors, err := s.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %v", embedding.ErrUnavailable, start, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: expected %d vectors, got %d", embedding.ErrUnavailable, len(batch), len(vectors))
		}

		for j, piece := range batch {
			entries = append(entries, &index.Entry{
				DocumentID: docID,
				Ordinal:    piece.Ordinal,
				Text:       piece.Text,
				Tokens:     piece.Tokens,
				Vector:     vectors[j],
			})
		}
	}

	return entries, nil
}

// rollback はインジェスト失敗後にインデックスのエントリを取り除く
// 呼び出し元のコンテキストがキャンセル済みでもクリーンアップは実行する
func (s *Service) rollback(ctx context.Context, docID uuid.UUID, cause error) error {
	s.logger.Warn("ingest failed, rolling back index entries",
		"document_id", docID.String(),
		"cause", cause.Error(),
	)

	if err := s.idx.Remove(context.WithoutCancel(ctx), docID); err != nil {
		return fmt.Errorf("%w: removing entries for document %s: %v (ingest error: %v)",
			ErrRollback, docID, err, cause)
	}

	return fmt.Errorf("ingest of document %s failed: %w", docID, cause)
}

// Query は質問に対して検索と回答合成を実行する
// 各ステージのエラーは文脈情報を付与してそのまま伝播し、
// 劣化した成功応答には変換しない
func (s *Service) Query(ctx context.Context, question string, filter mo.Option[uuid.UUID], k int) (*answer.Result, error) {
	ranked, err := s.retriever.Retrieve(ctx, question, k, filter)
	if err != nil {
		return nil, fmt.Errorf("query retrieval failed: %w", err)
	}

	result, err := s.synthesizer.Synthesize(ctx, question, ranked)
	if err != nil {
		return nil, fmt.Errorf("query synthesis failed: %w", err)
	}

	return result, nil
}

// Delete はドキュメントとそのインデックスエントリを削除する（冪等）
func (s *Service) Delete(ctx context.Context, docID uuid.UUID) error {
	if err := s.idx.Remove(ctx, docID); err != nil {
		return fmt.Errorf("failed to remove index entries for document %s: %w", docID, err)
	}
	if err := s.docs.Delete(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}

	s.logger.Info("document deleted", "document_id", docID.String())
	return nil
}

// Documents は全ドキュメントのメタデータを返す
func (s *Service) Documents(ctx context.Context) ([]*document.Document, error) {
	return s.docs.List(ctx)
}

// Stats はドキュメント数・チャンク数・インデックスサイズを返す
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	docStats, err := s.docs.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get document stats: %w", err)
	}

	idxStats, err := s.idx.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get index stats: %w", err)
	}

	return &Stats{
		Documents:    docStats.Documents,
		Chunks:       docStats.Chunks,
		Tokens:       docStats.Tokens,
		IndexEntries: idxStats.Entries,
	}, nil
}
