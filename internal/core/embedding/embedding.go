package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable は外部Embeddingサービスの呼び出し失敗を表す
// 一時的な障害であり、呼び出し側の判断でリトライ可能
var ErrUnavailable = errors.New("embedding service unavailable")

// Client はテキストを固定長ベクトルに変換する外部サービスのインターフェース
type Client interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed は複数テキストのEmbeddingを入力と同じ順序で生成する
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension は出力ベクトルの次元数を返す
	Dimension() int

	// MaxBatchSize はBatchEmbedの1回あたりの最大件数を返す
	MaxBatchSize() int
}
