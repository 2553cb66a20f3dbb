package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL はドキュメントとチャンクのテーブル定義
// embedding の次元はインデックス作成時の dimension と一致させること
const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id          uuid PRIMARY KEY,
	title       text NOT NULL,
	chunk_count integer NOT NULL DEFAULT 0,
	token_count integer NOT NULL DEFAULT 0,
	page_count  integer NOT NULL DEFAULT 0,
	created_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chunks (
	document_id uuid NOT NULL,
	ordinal     integer NOT NULL,
	content     text NOT NULL,
	tokens      integer NOT NULL,
	embedding   vector(%d) NOT NULL,
	PRIMARY KEY (document_id, ordinal)
);

CREATE INDEX IF NOT EXISTS chunks_embedding_idx
	ON chunks USING hnsw (embedding vector_cosine_ops);
`

// EnsureSchema はテーブルとインデックスを作成する（冪等）
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", dimension)
	}

	if _, err := pool.Exec(ctx, fmt.Sprintf(schemaDDL, dimension)); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
