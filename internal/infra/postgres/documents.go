package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/doc-rag/internal/core/document"
)

// DocumentRepository は core/document.Repository を実装する PostgreSQL リポジトリ
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository は新しい DocumentRepository を返す
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

var _ document.Repository = (*DocumentRepository)(nil)

func (r *DocumentRepository) Save(ctx context.Context, doc *document.Document) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO documents (id, title, chunk_count, token_count, page_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   chunk_count = EXCLUDED.chunk_count,
		   token_count = EXCLUDED.token_count,
		   page_count = EXCLUDED.page_count`,
		uuidToPgtype(doc.ID),
		doc.Title,
		int32(doc.ChunkCount),
		int32(doc.TokenCount),
		int32(doc.PageCount),
		timeToPgtype(doc.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, title, chunk_count, token_count, page_count, created_at
		 FROM documents WHERE id = $1`,
		uuidToPgtype(id),
	)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", document.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]*document.Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, chunk_count, token_count, page_count, created_at
		 FROM documents ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*document.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx,
		"DELETE FROM documents WHERE id = $1",
		uuidToPgtype(id),
	); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Stats(ctx context.Context) (*document.Stats, error) {
	var (
		documents int64
		chunks    int64
		tokens    int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT count(*), COALESCE(sum(chunk_count), 0), COALESCE(sum(token_count), 0)
		 FROM documents`,
	).Scan(&documents, &chunks, &tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to get document stats: %w", err)
	}

	return &document.Stats{
		Documents: int(documents),
		Chunks:    int(chunks),
		Tokens:    int(tokens),
	}, nil
}

func scanDocument(row pgx.Row) (*document.Document, error) {
	var (
		id         pgtype.UUID
		title      string
		chunkCount int32
		tokenCount int32
		pageCount  int32
		createdAt  pgtype.Timestamptz
	)
	if err := row.Scan(&id, &title, &chunkCount, &tokenCount, &pageCount, &createdAt); err != nil {
		return nil, err
	}

	return &document.Document{
		ID:         pgtypeToUUID(id),
		Title:      title,
		ChunkCount: int(chunkCount),
		TokenCount: int(tokenCount),
		PageCount:  int(pageCount),
		CreatedAt:  pgtypeToTime(createdAt),
	}, nil
}
