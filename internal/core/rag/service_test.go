package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/answer"
	"github.com/jinford/doc-rag/internal/core/chunking"
	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/embedding"
	"github.com/jinford/doc-rag/internal/core/index"
	"github.com/jinford/doc-rag/internal/core/retrieval"
	"github.com/jinford/doc-rag/internal/infra/memory"
)

// keywordEmbedder はキーワードの出現回数をそのまま3次元ベクトルにする
// 決定的なEmbedding実装。failAt が正の場合、その回数目のバッチ呼び出しで失敗する
type keywordEmbedder struct {
	batchSize  int
	batchCalls int
	failAt     int
}

var keywords = []string{"red", "blue", "green"}

func (e *keywordEmbedder) vectorFor(text string) []float32 {
	vec := make([]float32, len(keywords))
	for i, kw := range keywords {
		vec[i] = float32(strings.Count(text, kw))
	}
	return vec
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *keywordEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls++
	if e.failAt > 0 && e.batchCalls >= e.failAt {
		return nil, errors.New("embedding service exploded")
	}

	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vectors = append(vectors, e.vectorFor(text))
	}
	return vectors, nil
}

func (e *keywordEmbedder) Dimension() int { return len(keywords) }

func (e *keywordEmbedder) MaxBatchSize() int {
	if e.batchSize > 0 {
		return e.batchSize
	}
	return 100
}

var _ embedding.Client = (*keywordEmbedder)(nil)

// citingLLM はコンテキスト1番を引用する固定JSON応答を返す
type citingLLM struct {
	calls int
}

func (g *citingLLM) GenerateAnswer(ctx context.Context, prompt string) (string, error) {
	g.calls++
	return `{"answer":"回答本文","confidence":0.9,"reasoning":"テスト","sources":[1]}`, nil
}

// recordingIndex は Insert / Remove の呼び出しを記録するスタブ
type recordingIndex struct {
	insertErr   error
	removeErr   error
	removeCalls int
	inserted    int
}

func (i *recordingIndex) Insert(ctx context.Context, documentID uuid.UUID, entries []*index.Entry) error {
	if i.insertErr != nil {
		return i.insertErr
	}
	i.inserted += len(entries)
	return nil
}

func (i *recordingIndex) Remove(ctx context.Context, documentID uuid.UUID) error {
	i.removeCalls++
	return i.removeErr
}

func (i *recordingIndex) Search(ctx context.Context, query []float32, k int, filter mo.Option[uuid.UUID]) ([]*index.Hit, error) {
	return []*index.Hit{}, nil
}

func (i *recordingIndex) Stats(ctx context.Context) (*index.Stats, error) {
	return &index.Stats{}, nil
}

func newTestService(t *testing.T, embedder embedding.Client, idx index.Index, llm answer.Generator, size, overlap int) (*Service, document.Repository) {
	t.Helper()

	chunker, err := chunking.NewChunker(size, overlap)
	require.NoError(t, err)

	docs := memory.NewDocumentRepository()
	retriever := retrieval.NewService(idx, embedder)
	synthesizer, err := answer.NewSynthesizer(llm)
	require.NoError(t, err)

	return NewService(chunker, embedder, idx, docs, retriever, synthesizer), docs
}

// 1200トークンのドキュメント（red 400 / blue 400 / green 400）を
// 500/50 設定でインジェストすると3チャンクになり、blue への質問では
// blue を最も多く含む2番目のチャンクが最上位になる
func TestService_EndToEndIngestAndQuery(t *testing.T) {
	embedder := &keywordEmbedder{}
	idx := memory.NewIndex(embedder.Dimension())
	llm := &citingLLM{}
	svc, _ := newTestService(t, embedder, idx, llm, 500, 50)

	text := strings.Repeat(" red", 400) + strings.Repeat(" blue", 400) + strings.Repeat(" green", 400)

	doc, err := svc.Ingest(context.Background(), IngestParams{
		Title: "colors",
		Text:  text,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, doc.ChunkCount)
	assert.Equal(t, 1200, doc.TokenCount)

	result, err := svc.Query(context.Background(), "blue", mo.None[uuid.UUID](), 3)
	require.NoError(t, err)

	assert.Equal(t, "回答本文", result.Answer)
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	require.NotEmpty(t, result.Citations)
	// sources:[1] はランク1位のチャンクを指す
	assert.Equal(t, 1, result.Citations[0].Ordinal, "the chunk with the most blue tokens must rank first")
	assert.Equal(t, 1, llm.calls)
}

func TestService_QueryWithFilterExcludesOtherDocuments(t *testing.T) {
	embedder := &keywordEmbedder{}
	idx := memory.NewIndex(embedder.Dimension())
	svc, _ := newTestService(t, embedder, idx, &citingLLM{}, 16, 4)

	docRed, err := svc.Ingest(context.Background(), IngestParams{Title: "red doc", Text: strings.Repeat(" red", 30)})
	require.NoError(t, err)
	docBlue, err := svc.Ingest(context.Background(), IngestParams{Title: "blue doc", Text: strings.Repeat(" blue", 30)})
	require.NoError(t, err)

	// blue に最も近いのは docBlue のチャンクだが、フィルタで docRed に限定する
	result, err := svc.Query(context.Background(), "blue", mo.Some(docRed.ID), 10)
	require.NoError(t, err)

	require.NotEmpty(t, result.Citations)
	for _, citation := range result.Citations {
		assert.Equal(t, docRed.ID, citation.DocumentID)
		assert.NotEqual(t, docBlue.ID, citation.DocumentID)
	}
}

func TestService_QueryEmptyScopeSkipsModel(t *testing.T) {
	embedder := &keywordEmbedder{}
	idx := memory.NewIndex(embedder.Dimension())
	llm := &citingLLM{}
	svc, _ := newTestService(t, embedder, idx, llm, 16, 4)

	_, err := svc.Ingest(context.Background(), IngestParams{Title: "red doc", Text: strings.Repeat(" red", 30)})
	require.NoError(t, err)

	// 存在しないドキュメントに絞ると検索結果は空になり、LLMは呼ばれない
	result, err := svc.Query(context.Background(), "blue", mo.Some(uuid.New()), 10)
	require.NoError(t, err)

	assert.Equal(t, answer.NoContentAnswer, result.Answer)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.Citations)
	assert.Zero(t, llm.calls)
}

func TestService_IngestRollsBackOnEmbeddingFailure(t *testing.T) {
	// バッチサイズ1で3チャンク → 3回目のEmbedding呼び出しで失敗させる
	embedder := &keywordEmbedder{batchSize: 1, failAt: 3}
	idx := memory.NewIndex(embedder.Dimension())
	svc, docs := newTestService(t, embedder, idx, &citingLLM{}, 16, 4)

	survivor, err := svc.Ingest(context.Background(), IngestParams{Title: "red doc", Text: strings.Repeat(" red", 10)})
	require.NoError(t, err)

	failedID := uuid.New()
	longText := strings.Repeat(" blue", 40) // 16/4 設定で3チャンク以上になる長さ
	_, err = svc.Ingest(context.Background(), IngestParams{
		DocumentID: failedID,
		Title:      "blue doc",
		Text:       longText,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, embedding.ErrUnavailable)

	// 失敗したドキュメントのエントリはインデックスに一切残らない
	hits, err := idx.Search(context.Background(), []float32{0, 1, 0}, 10, mo.None[uuid.UUID]())
	require.NoError(t, err)
	for _, hit := range hits {
		assert.NotEqual(t, failedID, hit.DocumentID)
		assert.Equal(t, survivor.ID, hit.DocumentID)
	}

	// メタデータも残らない
	_, err = docs.Get(context.Background(), failedID)
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestService_IngestRollsBackOnInsertFailure(t *testing.T) {
	embedder := &keywordEmbedder{}
	idx := &recordingIndex{insertErr: errors.New("disk full")}
	svc, _ := newTestService(t, embedder, idx, &citingLLM{}, 16, 4)

	_, err := svc.Ingest(context.Background(), IngestParams{Title: "doc", Text: strings.Repeat(" red", 30)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRollback)
	assert.Equal(t, 1, idx.removeCalls, "rollback must remove partial entries")
}

func TestService_RollbackFailureIsReportedDistinctly(t *testing.T) {
	embedder := &keywordEmbedder{}
	idx := &recordingIndex{
		insertErr: errors.New("disk full"),
		removeErr: errors.New("index corrupted"),
	}
	svc, _ := newTestService(t, embedder, idx, &citingLLM{}, 16, 4)

	_, err := svc.Ingest(context.Background(), IngestParams{Title: "doc", Text: strings.Repeat(" red", 30)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRollback)
}

func TestService_IngestCancellationTriggersRollback(t *testing.T) {
	embedder := &keywordEmbedder{batchSize: 1}
	idx := &recordingIndex{}
	svc, _ := newTestService(t, embedder, idx, &citingLLM{}, 16, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Ingest(ctx, IngestParams{Title: "doc", Text: strings.Repeat(" red", 30)})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, idx.removeCalls, "cancellation must leave no partial entries")
}

func TestService_IngestRejectsDuplicateDocument(t *testing.T) {
	embedder := &keywordEmbedder{}
	idx := memory.NewIndex(embedder.Dimension())
	svc, _ := newTestService(t, embedder, idx, &citingLLM{}, 16, 4)

	docID := uuid.New()
	_, err := svc.Ingest(context.Background(), IngestParams{DocumentID: docID, Title: "doc", Text: strings.Repeat(" red", 30)})
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), IngestParams{DocumentID: docID, Title: "doc again", Text: strings.Repeat(" red", 30)})
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrDuplicateDocument)

	// 重複エラーは既存のインデックスエントリを巻き込まない
	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5, mo.None[uuid.UUID]())
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestService_DeleteIsIdempotent(t *testing.T) {
	embedder := &keywordEmbedder{}
	idx := memory.NewIndex(embedder.Dimension())
	svc, _ := newTestService(t, embedder, idx, &citingLLM{}, 16, 4)

	doc, err := svc.Ingest(context.Background(), IngestParams{Title: "doc", Text: strings.Repeat(" red", 30)})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), doc.ID))
	require.NoError(t, svc.Delete(context.Background(), doc.ID))
	require.NoError(t, svc.Delete(context.Background(), uuid.New()))

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Documents)
	assert.Zero(t, stats.IndexEntries)
}

func TestService_StatsReflectsIngestedDocuments(t *testing.T) {
	embedder := &keywordEmbedder{}
	idx := memory.NewIndex(embedder.Dimension())
	svc, _ := newTestService(t, embedder, idx, &citingLLM{}, 16, 4)

	first, err := svc.Ingest(context.Background(), IngestParams{Title: "a", Text: strings.Repeat(" red", 30)})
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), IngestParams{Title: "b", Text: strings.Repeat(" blue", 10)})
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, first.ChunkCount+second.ChunkCount, stats.Chunks)
	assert.Equal(t, first.TokenCount+second.TokenCount, stats.Tokens)
	assert.Equal(t, stats.Chunks, stats.IndexEntries)
}

func TestService_IngestEmptyTextCreatesEmptyDocument(t *testing.T) {
	embedder := &keywordEmbedder{}
	idx := memory.NewIndex(embedder.Dimension())
	svc, docs := newTestService(t, embedder, idx, &citingLLM{}, 16, 4)

	doc, err := svc.Ingest(context.Background(), IngestParams{Title: "empty", Text: "   "})
	require.NoError(t, err)
	assert.Zero(t, doc.ChunkCount)

	saved, err := docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "empty", saved.Title)

	// インデックスには何も入っていない
	_, err = idx.Search(context.Background(), []float32{1, 0, 0}, 5, mo.None[uuid.UUID]())
	assert.ErrorIs(t, err, index.ErrEmptyIndex)
}
