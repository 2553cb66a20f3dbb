package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/index"
)

// Index は core/index.Index を実装する PostgreSQL + pgvector インデックス
//
// 同一ドキュメントへの Insert / Remove はドキュメント単位の
// アドバイザリロックで直列化する。Search はロックを取らない
type Index struct {
	pool      *pgxpool.Pool
	dimension int
}

// NewIndex は新しい Index を返す
// dimension はスキーマの vector 列の次元と一致している必要がある
func NewIndex(pool *pgxpool.Pool, dimension int) *Index {
	return &Index{pool: pool, dimension: dimension}
}

var _ index.Index = (*Index)(nil)

// Insert はドキュメントの全エントリをトランザクション内で一括追加する
func (idx *Index) Insert(ctx context.Context, documentID uuid.UUID, entries []*index.Entry) error {
	for _, entry := range entries {
		if len(entry.Vector) != idx.dimension {
			return fmt.Errorf("%w: entry %d has dimension %d, index has %d",
				index.ErrDimensionMismatch, entry.Ordinal, len(entry.Vector), idx.dimension)
		}
	}

	tx, err := idx.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := acquireDocumentLock(ctx, tx, documentID); err != nil {
		return err
	}

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM chunks WHERE document_id = $1)",
		uuidToPgtype(documentID),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check existing entries: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", index.ErrDuplicateDocument, documentID)
	}

	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(
			`INSERT INTO chunks (document_id, ordinal, content, tokens, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuidToPgtype(entry.DocumentID),
			int32(entry.Ordinal),
			entry.Text,
			int32(entry.Tokens),
			pgvector.NewVector(entry.Vector),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Remove はドキュメントの全エントリを削除する（冪等）
func (idx *Index) Remove(ctx context.Context, documentID uuid.UUID) error {
	tx, err := idx.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := acquireDocumentLock(ctx, tx, documentID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		"DELETE FROM chunks WHERE document_id = $1",
		uuidToPgtype(documentID),
	); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Search はコサイン類似度の上位k件を返す
// 同点は ordinal 昇順 → document_id 昇順で順序を固定する
func (idx *Index) Search(ctx context.Context, query []float32, k int, filter mo.Option[uuid.UUID]) ([]*index.Hit, error) {
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			index.ErrDimensionMismatch, len(query), idx.dimension)
	}
	if k <= 0 {
		return []*index.Hit{}, nil
	}

	var total int64
	if err := idx.pool.QueryRow(ctx, "SELECT count(*) FROM chunks").Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count index entries: %w", err)
	}
	if total == 0 {
		return nil, index.ErrEmptyIndex
	}

	filterID := pgtype.UUID{}
	if docID, ok := filter.Get(); ok {
		filterID = uuidToPgtype(docID)
	}

	rows, err := idx.pool.Query(ctx,
		`SELECT document_id, ordinal, content, 1 - (embedding <=> $1) AS score
		 FROM chunks
		 WHERE $2::uuid IS NULL OR document_id = $2
		 ORDER BY embedding <=> $1 ASC, ordinal ASC, document_id ASC
		 LIMIT $3`,
		pgvector.NewVector(query),
		filterID,
		int32(k),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	hits := make([]*index.Hit, 0, k)
	for rows.Next() {
		var (
			docID   pgtype.UUID
			ordinal int32
			content string
			score   float64
		)
		if err := rows.Scan(&docID, &ordinal, &content, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		hits = append(hits, &index.Hit{
			DocumentID: pgtypeToUUID(docID),
			Ordinal:    int(ordinal),
			Text:       content,
			Score:      score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}

	return hits, nil
}

// Stats はインデックスの統計情報を返す
func (idx *Index) Stats(ctx context.Context) (*index.Stats, error) {
	var (
		documents int64
		entries   int64
	)
	err := idx.pool.QueryRow(ctx,
		"SELECT count(DISTINCT document_id), count(*) FROM chunks",
	).Scan(&documents, &entries)
	if err != nil {
		return nil, fmt.Errorf("failed to get index stats: %w", err)
	}

	return &index.Stats{
		Documents: int(documents),
		Entries:   int(entries),
	}, nil
}
