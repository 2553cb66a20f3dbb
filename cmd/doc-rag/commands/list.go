package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// ListAction はドキュメント一覧を表示するコマンドのアクション
func ListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	docs, err := appCtx.Container.RAGService.Documents(ctx)
	if err != nil {
		slog.Error("ドキュメント一覧取得に失敗しました", "error", err)
		return err
	}

	if len(docs) == 0 {
		fmt.Println("インジェスト済みのドキュメントはありません")
		return nil
	}

	for _, doc := range docs {
		fmt.Printf("%s  %s (チャンク: %d, トークン: %d, 登録: %s)\n",
			doc.ID,
			doc.Title,
			doc.ChunkCount,
			doc.TokenCount,
			doc.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return nil
}
