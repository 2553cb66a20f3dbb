package document

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound はドキュメントが存在しない場合のエラー
var ErrNotFound = errors.New("document not found")

// Document はインジェスト済みドキュメントのメタデータを表す
// インジェスト完了後は削除を除いて不変
type Document struct {
	ID         uuid.UUID // ドキュメントID
	Title      string    // タイトル
	ChunkCount int       // チャンク数
	TokenCount int       // 総トークン数
	PageCount  int       // 抽出時に推定されたページ数
	CreatedAt  time.Time // インジェスト完了日時
}

// Stats はドキュメントストアの統計情報を表す
type Stats struct {
	Documents int // ドキュメント数
	Chunks    int // 総チャンク数
	Tokens    int // 総トークン数
}

// Repository はドキュメントメタデータの永続化インターフェース
type Repository interface {
	// Save はドキュメントを保存する
	Save(ctx context.Context, doc *Document) error

	// Get はドキュメントを取得する
	// 存在しない場合は ErrNotFound を返す
	Get(ctx context.Context, id uuid.UUID) (*Document, error)

	// List は全ドキュメントを作成日時順で返す
	List(ctx context.Context) ([]*Document, error)

	// Delete はドキュメントを削除する
	// 存在しない場合も成功する（冪等）
	Delete(ctx context.Context, id uuid.UUID) error

	// Stats はドキュメントストアの統計情報を返す
	Stats(ctx context.Context) (*Stats, error)
}
