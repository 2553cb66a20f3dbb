package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/internal/core/rag"
	"github.com/jinford/doc-rag/internal/infra/extract"
)

// IngestAction はファイルをインジェストするコマンドのアクション
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	filePath := cmd.String("file")
	title := cmd.String("title")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	extraction, err := extract.FromFile(filePath)
	if err != nil {
		return fmt.Errorf("テキスト抽出に失敗: %w", err)
	}
	if title == "" {
		title = extraction.Title
	}

	slog.Info("インジェストを開始", "file", filePath, "title", title)

	doc, err := appCtx.Container.RAGService.Ingest(ctx, rag.IngestParams{
		Title:     title,
		Text:      extraction.Text,
		PageCount: extraction.PageCount,
	})
	if err != nil {
		slog.Error("インジェストに失敗しました", "error", err)
		return err
	}

	fmt.Printf("ドキュメントを登録しました\n")
	fmt.Printf("  ID:      %s\n", doc.ID)
	fmt.Printf("  タイトル: %s\n", doc.Title)
	fmt.Printf("  チャンク: %d\n", doc.ChunkCount)
	fmt.Printf("  トークン: %d\n", doc.TokenCount)

	return nil
}
