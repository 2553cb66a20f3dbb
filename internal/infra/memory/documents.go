package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jinford/doc-rag/internal/core/document"
)

// DocumentRepository は document.Repository のインメモリ実装
type DocumentRepository struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]*document.Document
}

// NewDocumentRepository は新しいインメモリリポジトリを作成する
func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		docs: make(map[uuid.UUID]*document.Document),
	}
}

var _ document.Repository = (*DocumentRepository)(nil)

// Save はドキュメントを保存する
func (r *DocumentRepository) Save(ctx context.Context, doc *document.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

// Get はドキュメントを取得する
func (r *DocumentRepository) Get(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", document.ErrNotFound, id)
	}
	copied := *doc
	return &copied, nil
}

// List は全ドキュメントを作成日時順で返す
func (r *DocumentRepository) List(ctx context.Context) ([]*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]*document.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		copied := *doc
		docs = append(docs, &copied)
	}
	sort.Slice(docs, func(a, b int) bool {
		return docs[a].CreatedAt.Before(docs[b].CreatedAt)
	})
	return docs, nil
}

// Delete はドキュメントを削除する（冪等）
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.docs, id)
	return nil
}

// Stats はドキュメントストアの統計情報を返す
func (r *DocumentRepository) Stats(ctx context.Context) (*document.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &document.Stats{Documents: len(r.docs)}
	for _, doc := range r.docs {
		stats.Chunks += doc.ChunkCount
		stats.Tokens += doc.TokenCount
	}
	return stats, nil
}
