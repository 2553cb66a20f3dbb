package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jinford/doc-rag/internal/core/retrieval"
)

const (
	// DefaultMaxContextChunks はコンテキストに含めるチャンク数の上限デフォルト
	DefaultMaxContextChunks = 5
	// DefaultMaxContextTokens はコンテキストの総トークン数の上限デフォルト
	DefaultMaxContextTokens = 3000

	// snippetMaxRunes は引用スニペットの最大文字数
	snippetMaxRunes = 200

	// contextEncoding はトークン予算の計測に使うエンコーディング
	contextEncoding = "cl100k_base"
)

// ErrSynthesis は外部言語モデルの呼び出し失敗を表す
// 一時的な障害であり、呼び出し側の判断でリトライ可能
var ErrSynthesis = errors.New("answer synthesis failed")

// Generator は回答を生成する外部言語モデルのインターフェース
type Generator interface {
	// GenerateAnswer はプロンプトに対するJSON形式の応答を返す
	GenerateAnswer(ctx context.Context, prompt string) (string, error)
}

// Synthesizer は検索済みチャンクから確信度と引用付きの回答を合成する
type Synthesizer struct {
	llm       Generator
	encoder   *tiktoken.Tiktoken
	maxChunks int
	maxTokens int
	logger    *slog.Logger
}

// SynthesizerOption は Synthesizer のオプション設定
type SynthesizerOption func(*Synthesizer)

// WithMaxContextChunks はコンテキストに含めるチャンク数の上限を設定する
func WithMaxContextChunks(n int) SynthesizerOption {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxChunks = n
		}
	}
}

// WithMaxContextTokens はコンテキストの総トークン数の上限を設定する
func WithMaxContextTokens(n int) SynthesizerOption {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithLogger は Synthesizer にロガーを設定する
func WithLogger(logger *slog.Logger) SynthesizerOption {
	return func(s *Synthesizer) {
		s.logger = logger
	}
}

// NewSynthesizer は新しい Synthesizer を作成する
func NewSynthesizer(llm Generator, opts ...SynthesizerOption) (*Synthesizer, error) {
	encoder, err := tiktoken.GetEncoding(contextEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	svc := &Synthesizer{
		llm:       llm,
		encoder:   encoder,
		maxChunks: DefaultMaxContextChunks,
		maxTokens: DefaultMaxContextTokens,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Synthesize は質問とランク付け済みチャンクから回答を合成する
//
// チャンクが空の場合は言語モデルを呼ばず、確信度0の定型回答を返す。
// 言語モデルが使用可能な確信度を返さない場合は、最上位チャンクの
// 類似度スコアを [0,1] にクランプした値を確信度とする
// （正規化済みEmbeddingのコサイン類似度に対する単調写像）
func (s *Synthesizer) Synthesize(ctx context.Context, question string, ranked []*retrieval.RetrievedChunk) (*Result, error) {
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	if len(ranked) == 0 {
		s.logger.Info("no candidate chunks, skipping language model")
		return &Result{
			Answer:     NoContentAnswer,
			Confidence: 0,
			Citations:  []Citation{},
		}, nil
	}

	contextChunks := s.buildContext(ranked)

	prompt := BuildAnswerPrompt(question, contextChunks)
	raw, err := s.llm.GenerateAnswer(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	resp, err := parseModelResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	confidence := s.resolveConfidence(resp.Confidence, contextChunks[0].Score)
	citations := s.resolveCitations(resp.Sources, contextChunks)

	s.logger.Info("answer synthesized",
		"context_chunks", len(contextChunks),
		"confidence", confidence,
		"citations", len(citations),
	)

	return &Result{
		Answer:     resp.Answer,
		Confidence: confidence,
		Citations:  citations,
	}, nil
}

// buildContext はランク順にチャンク数とトークン数の予算内でコンテキストを組み立てる
// 予算を超えるチャンクは黙って落とす（先頭チャンクは常に含める）
func (s *Synthesizer) buildContext(ranked []*retrieval.RetrievedChunk) []*retrieval.RetrievedChunk {
	budget := s.maxTokens
	selected := make([]*retrieval.RetrievedChunk, 0, s.maxChunks)

	for _, chunk := range ranked {
		if len(selected) >= s.maxChunks {
			break
		}
		tokens := len(s.encoder.Encode(chunk.Text, nil, nil))
		if len(selected) > 0 && tokens > budget {
			continue
		}
		selected = append(selected, chunk)
		budget -= tokens
	}

	return selected
}

// resolveConfidence は言語モデルの確信度を検証し、不正な場合は
// 最上位類似度スコアから決定的に導出する
func (s *Synthesizer) resolveConfidence(reported *float64, topScore float64) float64 {
	if reported != nil && *reported >= 0 && *reported <= 1 {
		return *reported
	}

	s.logger.Warn("model returned no usable confidence, deriving from top similarity",
		"top_score", topScore,
	)
	return clamp01(topScore)
}

// resolveCitations はモデルが報告したコンテキスト番号（1始まり）を
// チャンク参照に解決する。有効な番号が1つもない場合はコンテキスト全体を引用する
func (s *Synthesizer) resolveCitations(sources []int, contextChunks []*retrieval.RetrievedChunk) []Citation {
	cited := make([]*retrieval.RetrievedChunk, 0, len(sources))
	seen := make(map[int]struct{}, len(sources))
	for _, n := range sources {
		if n < 1 || n > len(contextChunks) {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		cited = append(cited, contextChunks[n-1])
	}

	if len(cited) == 0 {
		cited = contextChunks
	}

	citations := make([]Citation, 0, len(cited))
	for _, chunk := range cited {
		citations = append(citations, Citation{
			DocumentID: chunk.DocumentID,
			Ordinal:    chunk.Ordinal,
			Score:      chunk.Score,
			Snippet:    snippet(chunk.Text),
		})
	}
	return citations
}

// snippet はチャンクテキストの先頭200文字を抜粋する
func snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetMaxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:snippetMaxRunes]) + "..."
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
