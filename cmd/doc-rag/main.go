package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/doc-rag/cmd/doc-rag/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "doc-rag",
		Usage: "ドキュメントQ&A向け RAG パイプライン",
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "ドキュメントをインジェストしてインデックスに登録",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "file",
						Usage:    "インジェストするファイル（.txt / .md）",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "ドキュメントのタイトル（省略時はファイル名）",
					},
				},
				Action: commands.IngestAction,
			},
			{
				Name:  "ask",
				Usage: "インデックス済みドキュメントに質問",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "question",
						Usage:    "質問文",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "document",
						Usage: "検索対象を単一ドキュメントに絞るID",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "検索する候補チャンク数",
						Value: 5,
					},
				},
				Action: commands.AskAction,
			},
			{
				Name:  "delete",
				Usage: "ドキュメントとそのインデックスエントリを削除",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringFlag{
						Name:     "document",
						Usage:    "削除するドキュメントID",
						Required: true,
					},
				},
				Action: commands.DeleteAction,
			},
			{
				Name:  "list",
				Usage: "インジェスト済みドキュメント一覧を表示",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: commands.ListAction,
			},
			{
				Name:  "stats",
				Usage: "ドキュメント数・チャンク数・インデックスサイズを表示",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
				},
				Action: commands.StatsAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
