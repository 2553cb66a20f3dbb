package postgres

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// documentLockID はドキュメントIDからアドバイザリロックIDを生成する
func documentLockID(docID uuid.UUID) int64 {
	h := sha256.New()
	h.Write([]byte("doc-rag:document:"))
	h.Write(docID[:])
	hash := h.Sum(nil)

	// ハッシュの最初の8バイトをint64として使用
	var id int64
	for i := range 8 {
		id = (id << 8) | int64(hash[i])
	}

	return id
}

// acquireDocumentLock はドキュメント単位のアドバイザリロックを取得する
// トランザクションスコープのロック（pg_advisory_xact_lock）を使用するため、
// トランザクション終了時に自動的に解放される
func acquireDocumentLock(ctx context.Context, tx pgx.Tx, docID uuid.UUID) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", documentLockID(docID)); err != nil {
		return fmt.Errorf("failed to acquire advisory lock for document %s: %w", docID, err)
	}
	return nil
}
