package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/doc-rag/internal/core/answer"
	"github.com/jinford/doc-rag/internal/core/chunking"
	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/index"
	"github.com/jinford/doc-rag/internal/core/rag"
	"github.com/jinford/doc-rag/internal/core/retrieval"
	"github.com/jinford/doc-rag/internal/infra/memory"
	"github.com/jinford/doc-rag/internal/infra/openai"
	"github.com/jinford/doc-rag/internal/infra/postgres"
	"github.com/jinford/doc-rag/internal/platform/config"
)

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	RAGService *rag.Service

	logger *slog.Logger
	db     *postgres.DB
}

// New は設定とロガーからコンテナを生成する
func New(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*ServiceContainer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	embedder, err := openai.NewEmbedder(openai.EmbedderConfig{
		APIKey:    cfg.OpenAI.APIKey,
		Model:     cfg.OpenAI.EmbeddingModel,
		Dimension: cfg.OpenAI.EmbeddingDimension,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder の初期化に失敗しました: %w", err)
	}

	llm, err := openai.NewClient(openai.ClientConfig{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.ChatModel,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("LLMクライアントの初期化に失敗しました: %w", err)
	}

	chunker, err := chunking.NewChunker(cfg.Chunking.SizeTokens, cfg.Chunking.OverlapTokens)
	if err != nil {
		return nil, fmt.Errorf("chunker の初期化に失敗しました: %w", err)
	}

	var (
		idx  index.Index
		docs document.Repository
		db   *postgres.DB
	)
	switch cfg.IndexBackend {
	case config.IndexBackendPostgres:
		db, err = postgres.Connect(ctx, postgres.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db.Pool, cfg.OpenAI.EmbeddingDimension); err != nil {
			db.Close()
			return nil, fmt.Errorf("スキーマ初期化に失敗しました: %w", err)
		}
		idx = postgres.NewIndex(db.Pool, cfg.OpenAI.EmbeddingDimension)
		docs = postgres.NewDocumentRepository(db.Pool)
	default:
		idx = memory.NewIndex(cfg.OpenAI.EmbeddingDimension)
		docs = memory.NewDocumentRepository()
	}

	retriever := retrieval.NewService(idx, embedder, retrieval.WithLogger(logger))

	synthesizer, err := answer.NewSynthesizer(llm,
		answer.WithMaxContextChunks(cfg.Answer.MaxContextChunks),
		answer.WithMaxContextTokens(cfg.Answer.MaxContextTokens),
		answer.WithLogger(logger),
	)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("synthesizer の初期化に失敗しました: %w", err)
	}

	ragService := rag.NewService(
		chunker,
		embedder,
		idx,
		docs,
		retriever,
		synthesizer,
		rag.WithLogger(logger),
	)

	return &ServiceContainer{
		RAGService: ragService,
		logger:     logger,
		db:         db,
	}, nil
}

// Close はコンテナが保持するリソースを解放する
func (c *ServiceContainer) Close() {
	if c.db != nil {
		c.db.Close()
	}
}
