package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// StatsAction はシステム統計を表示するコマンドのアクション
func StatsAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	stats, err := appCtx.Container.RAGService.Stats(ctx)
	if err != nil {
		slog.Error("統計情報取得に失敗しました", "error", err)
		return err
	}

	fmt.Printf("ドキュメント数:       %d\n", stats.Documents)
	fmt.Printf("総チャンク数:         %d\n", stats.Chunks)
	fmt.Printf("総トークン数:         %d\n", stats.Tokens)
	fmt.Printf("インデックスエントリ: %d\n", stats.IndexEntries)

	return nil
}
