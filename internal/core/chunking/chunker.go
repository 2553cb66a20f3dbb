package chunking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultChunkSizeTokens はチャンクあたりのデフォルトトークン数
	DefaultChunkSizeTokens = 500
	// DefaultOverlapTokens は隣接チャンク間のデフォルトオーバーラップトークン数
	DefaultOverlapTokens = 50

	// encodingName はチャンク分割に使用するトークナイザ
	// （OpenAIのtext-embedding-3-smallと互換のcl100k_base）
	encodingName = "cl100k_base"
)

// ErrInvalidChunkConfig はチャンク設定が不正な場合のエラー
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// Piece はチャンク分割の結果1件を表す
// トークンオフセットは同一入力・同一設定に対して常に再現可能
type Piece struct {
	Ordinal    int    // ドキュメント内のチャンク番号（0始まり）
	Text       string // チャンクのテキスト
	Tokens     int    // チャンクのトークン数
	StartToken int    // 入力トークン列上の開始位置
	EndToken   int    // 入力トークン列上の終了位置（排他）
}

// Chunker はテキストをトークン境界でオーバーラップ付きのチャンクに分割する
// 副作用を持たない純粋な変換であり、並行利用して安全
type Chunker struct {
	encoder *tiktoken.Tiktoken
	size    int
	overlap int
}

// NewChunker は新しいChunkerを作成する
// 0 < overlap < size を満たさない設定は ErrInvalidChunkConfig で失敗する
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkConfig, size)
	}
	if overlap <= 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must satisfy 0 < overlap < size, got overlap=%d size=%d", ErrInvalidChunkConfig, overlap, size)
	}

	encoder, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	return &Chunker{
		encoder: encoder,
		size:    size,
		overlap: overlap,
	}, nil
}

// Size はチャンクサイズ（トークン数）を返す
func (c *Chunker) Size() int {
	return c.size
}

// Overlap はオーバーラップトークン数を返す
func (c *Chunker) Overlap() int {
	return c.overlap
}

// CountTokens はテキストのトークン数を返す
func (c *Chunker) CountTokens(text string) int {
	return len(c.encoder.Encode(text, nil, nil))
}

// Split はテキストをチャンクに分割する
// ストライドは size - overlap で、連続するチャンクは常に overlap トークンを共有する
// （最終チャンクのみ size より短くなりうる）
// 空入力は空のスライスを返し、エラーにはしない
func (c *Chunker) Split(text string) []*Piece {
	if strings.TrimSpace(text) == "" {
		return []*Piece{}
	}

	tokens := c.encoder.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return []*Piece{}
	}

	stride := c.size - c.overlap
	pieces := make([]*Piece, 0, (len(tokens)+stride-1)/stride)

	for start := 0; ; start += stride {
		end := start + c.size
		if end > len(tokens) {
			end = len(tokens)
		}

		window := tokens[start:end]
		pieces = append(pieces, &Piece{
			Ordinal:    len(pieces),
			Text:       c.encoder.Decode(window),
			Tokens:     len(window),
			StartToken: start,
			EndToken:   end,
		})

		if end == len(tokens) {
			break
		}
	}

	return pieces
}
