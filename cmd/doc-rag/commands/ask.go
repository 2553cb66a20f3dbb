package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/urfave/cli/v3"
)

// AskAction は質問に回答するコマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	question := cmd.String("question")
	docIDStr := cmd.String("document")
	topK := cmd.Int("top-k")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	filter := mo.None[uuid.UUID]()
	if docIDStr != "" {
		docID, err := uuid.Parse(docIDStr)
		if err != nil {
			return fmt.Errorf("不正なドキュメントID %q: %w", docIDStr, err)
		}
		filter = mo.Some(docID)
	}

	slog.Info("質問応答を開始", "question", question, "top_k", topK)

	result, err := appCtx.Container.RAGService.Query(ctx, question, filter, int(topK))
	if err != nil {
		slog.Error("質問応答に失敗しました", "error", err)
		return err
	}

	fmt.Printf("回答:\n%s\n\n", result.Answer)
	fmt.Printf("確信度: %.2f\n", result.Confidence)

	if len(result.Citations) > 0 {
		fmt.Println("\n引用:")
		for i, c := range result.Citations {
			fmt.Printf("  [%d] document=%s chunk=%d score=%.3f\n", i+1, c.DocumentID, c.Ordinal, c.Score)
			fmt.Printf("      %s\n", c.Snippet)
		}
	}

	return nil
}
