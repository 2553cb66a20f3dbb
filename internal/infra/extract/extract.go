package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat は対応していないファイル形式のエラー
var ErrUnsupportedFormat = errors.New("unsupported file format")

// wordsPerPage はページ数推定に使う1ページあたりの単語数の目安
const wordsPerPage = 500

// Extraction はファイルから抽出したテキストとメタ情報を表す
type Extraction struct {
	Text      string // 抽出したプレーンテキスト
	Title     string // ファイル名から導出したタイトル
	PageCount int    // 単語数から推定したページ数
}

// FromFile はプレーンテキスト系ファイル（.txt / .md / .markdown）から
// テキストを抽出する
func FromFile(path string) (*Extraction, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md", ".markdown":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file %s is not valid UTF-8", path)
	}

	text := strings.TrimSpace(string(data))
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return &Extraction{
		Text:      text,
		Title:     title,
		PageCount: estimatePages(text),
	}, nil
}

// estimatePages は単語数からページ数を推定する
// 空テキストは0ページ、それ以外は最低1ページとする
func estimatePages(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}

	pages := (words + wordsPerPage - 1) / wordsPerPage
	if pages < 1 {
		pages = 1
	}
	return pages
}
