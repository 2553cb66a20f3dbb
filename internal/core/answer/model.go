package answer

import (
	"github.com/google/uuid"
)

// NoContentAnswer は関連チャンクが1件もなかった場合の回答文
const NoContentAnswer = "質問に関連する内容がドキュメント内に見つかりませんでした。"

// Result は質問応答の結果を表す
// クエリごとに生成される一時的な値であり、コアでは永続化しない
type Result struct {
	Answer     string     // LLMによる回答（または「該当なし」の定型文）
	Confidence float64    // 確信度 [0, 1]
	Citations  []Citation // 回答の根拠として実際に使用されたチャンク
}

// Citation は回答の根拠となったチャンクへの参照を表す
type Citation struct {
	DocumentID uuid.UUID // 所属ドキュメントID
	Ordinal    int       // ドキュメント内のチャンク番号
	Score      float64   // 検索時の類似度スコア
	Snippet    string    // 実際に使用されたチャンクテキストの抜粋
}
