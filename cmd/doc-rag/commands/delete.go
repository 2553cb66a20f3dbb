package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// DeleteAction はドキュメントを削除するコマンドのアクション
func DeleteAction(ctx context.Context, cmd *cli.Command) error {
	docIDStr := cmd.String("document")
	envFile := cmd.String("env")

	docID, err := uuid.Parse(docIDStr)
	if err != nil {
		return fmt.Errorf("不正なドキュメントID %q: %w", docIDStr, err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.RAGService.Delete(ctx, docID); err != nil {
		slog.Error("ドキュメント削除に失敗しました", "error", err)
		return err
	}

	fmt.Printf("ドキュメント %s を削除しました\n", docID)
	return nil
}
