package answer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jinford/doc-rag/internal/core/retrieval"
)

// BuildAnswerPrompt はドキュメント質問応答用のプロンプトを構築する
// LLMにはJSON形式（answer / confidence / reasoning / sources）での
// 応答を要求する。sources は根拠に使ったコンテキスト番号（1始まり）の配列
func BuildAnswerPrompt(question string, chunks []*retrieval.RetrievedChunk) string {
	var sb strings.Builder

	sb.WriteString("あなたはドキュメントの内容に基づいて質問に回答するアシスタントです。\n")
	sb.WriteString("以下のコンテキスト情報のみを根拠として、正確かつ簡潔に回答してください。\n\n")

	sb.WriteString("## 回答のガイドライン\n")
	sb.WriteString("- コンテキストに含まれる情報のみを使用して回答してください\n")
	sb.WriteString("- コンテキストに十分な情報がない場合は、その旨を明確に述べてください\n")
	sb.WriteString("- コンテキストが質問に明確に答えている場合: confidence 0.8〜1.0\n")
	sb.WriteString("- コンテキストが部分的に答えている場合: confidence 0.4〜0.7\n")
	sb.WriteString("- コンテキストがわずかに関連している場合: confidence 0.1〜0.3\n")
	sb.WriteString("- コンテキストが全く役に立たない場合: confidence 0.0\n\n")

	sb.WriteString("## コンテキスト\n")
	for i, chunk := range chunks {
		sb.WriteString(fmt.Sprintf("### [コンテキスト %d]\n", i+1))
		sb.WriteString(fmt.Sprintf("関連度スコア: %.3f\n", chunk.Score))
		sb.WriteString(chunk.Text)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## ユーザーの質問\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	sb.WriteString("## 出力形式\n")
	sb.WriteString("必ず次のJSON形式で回答してください:\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"answer\": \"回答本文\",\n")
	sb.WriteString("  \"confidence\": 0.85,\n")
	sb.WriteString("  \"reasoning\": \"確信度の根拠の簡潔な説明\",\n")
	sb.WriteString("  \"sources\": [1, 2]\n")
	sb.WriteString("}\n")
	sb.WriteString("sources には回答の根拠に使ったコンテキスト番号のみを含めてください。\n")

	return sb.String()
}

// modelResponse はLLMのJSON応答を表す
type modelResponse struct {
	Answer     string   `json:"answer"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Sources    []int    `json:"sources"`
}

// parseModelResponse はLLMの応答JSONを解析する
func parseModelResponse(raw string) (*modelResponse, error) {
	var resp modelResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	if resp.Answer == "" {
		return nil, fmt.Errorf("model response has no answer field")
	}
	return &resp, nil
}
