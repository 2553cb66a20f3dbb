package index

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

var (
	// ErrDimensionMismatch はベクトル次元がインデックスの次元と一致しない場合のエラー
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrDuplicateDocument は既にエントリを持つドキュメントへの再挿入エラー
	// 再インデックスする場合は先に Remove を呼ぶ必要がある
	ErrDuplicateDocument = errors.New("document already indexed")

	// ErrEmptyIndex はエントリが1件もないインデックスへの検索エラー
	// フィルタで絞った結果が空の場合はエラーではなく空の結果を返す
	ErrEmptyIndex = errors.New("index is empty")
)

// Entry はインデックスに格納する1チャンク分のベクトルとメタデータを表す
// DocumentID と Ordinal はチャンクへの弱参照であり、所有権を持たない
type Entry struct {
	DocumentID uuid.UUID // 所属ドキュメントID
	Ordinal    int       // ドキュメント内のチャンク番号（0始まり）
	Text       string    // チャンクのテキスト
	Tokens     int       // チャンクのトークン数
	Vector     []float32 // Embeddingベクトル
}

// Hit は類似度検索の結果1件を表す
type Hit struct {
	DocumentID uuid.UUID // 所属ドキュメントID
	Ordinal    int       // ドキュメント内のチャンク番号
	Text       string    // チャンクのテキスト
	Score      float64   // コサイン類似度（大きいほど関連が強い）
}

// Stats はインデックスの統計情報を表す
type Stats struct {
	Documents int // エントリを持つドキュメント数
	Entries   int // 総エントリ数
}

// Index はチャンクベクトルの格納と類似度検索を提供するインターフェース
//
// 類似度の尺度はコサイン類似度に固定する。スコアは呼び出しをまたいで
// 比較されるため（確信度の導出に使う）、実装は一貫した尺度を維持すること。
//
// 同一ドキュメントIDに対する Insert / Remove は実装側で直列化される。
// Search は無関係なドキュメントの変更と並行して実行してよい。
type Index interface {
	// Insert はドキュメントの全エントリを一括で追加する
	// 次元不一致は ErrDimensionMismatch、既存ドキュメントへの挿入は
	// ErrDuplicateDocument で失敗する
	Insert(ctx context.Context, documentID uuid.UUID, entries []*Entry) error

	// Remove はドキュメントの全エントリを削除する
	// エントリが存在しない場合も成功する（冪等）
	// 削除は後続の Search から即座に観測可能でなければならない
	Remove(ctx context.Context, documentID uuid.UUID) error

	// Search はクエリベクトルに類似する上位k件を返す
	// 類似度降順、同点は Ordinal 昇順 → DocumentID 昇順で順序を固定する
	// filter が指定された場合は該当ドキュメントのエントリのみが対象
	Search(ctx context.Context, query []float32, k int, filter mo.Option[uuid.UUID]) ([]*Hit, error)

	// Stats はインデックスの統計情報を返す（副作用なし）
	Stats(ctx context.Context) (*Stats, error)
}
