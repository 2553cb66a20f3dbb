package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/embedding"
	"github.com/jinford/doc-rag/internal/core/index"
)

type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

func (e *stubEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (e *stubEmbedder) Dimension() int    { return len(e.vector) }
func (e *stubEmbedder) MaxBatchSize() int { return 100 }

type stubIndex struct {
	hits      []*index.Hit
	searchErr error
	lastK     int
	lastQuery []float32
}

func (i *stubIndex) Insert(ctx context.Context, documentID uuid.UUID, entries []*index.Entry) error {
	return nil
}

func (i *stubIndex) Remove(ctx context.Context, documentID uuid.UUID) error {
	return nil
}

func (i *stubIndex) Search(ctx context.Context, query []float32, k int, filter mo.Option[uuid.UUID]) ([]*index.Hit, error) {
	i.lastK = k
	i.lastQuery = query
	if i.searchErr != nil {
		return nil, i.searchErr
	}
	return i.hits, nil
}

func (i *stubIndex) Stats(ctx context.Context) (*index.Stats, error) {
	return &index.Stats{}, nil
}

func TestService_RetrieveAppliesDefaultLimit(t *testing.T) {
	docID := uuid.New()
	idx := &stubIndex{hits: []*index.Hit{
		{DocumentID: docID, Ordinal: 0, Text: "chunk", Score: 0.9},
	}}
	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}

	svc := NewService(idx, embedder)
	results, err := svc.Retrieve(context.Background(), "question", 0, mo.None[uuid.UUID]())

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, DefaultLimit, idx.lastK)
	assert.Equal(t, []float32{1, 0, 0}, idx.lastQuery)
	assert.Equal(t, 1, embedder.calls)
}

func TestService_RetrievePropagatesEmbeddingFailure(t *testing.T) {
	idx := &stubIndex{}
	embedder := &stubEmbedder{err: errors.New("connection refused")}

	svc := NewService(idx, embedder)
	_, err := svc.Retrieve(context.Background(), "question", 3, mo.None[uuid.UUID]())

	require.Error(t, err)
	assert.ErrorIs(t, err, embedding.ErrUnavailable)
}

func TestService_RetrieveTreatsEmptyIndexAsNoCandidates(t *testing.T) {
	idx := &stubIndex{searchErr: index.ErrEmptyIndex}
	embedder := &stubEmbedder{vector: []float32{1}}

	svc := NewService(idx, embedder)
	results, err := svc.Retrieve(context.Background(), "question", 3, mo.None[uuid.UUID]())

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_RetrieveDeduplicatesByChunkIdentity(t *testing.T) {
	docID := uuid.New()
	otherID := uuid.New()
	idx := &stubIndex{hits: []*index.Hit{
		{DocumentID: docID, Ordinal: 1, Text: "a", Score: 0.9},
		{DocumentID: docID, Ordinal: 1, Text: "a", Score: 0.9},
		{DocumentID: otherID, Ordinal: 1, Text: "b", Score: 0.8},
	}}
	embedder := &stubEmbedder{vector: []float32{1}}

	svc := NewService(idx, embedder)
	results, err := svc.Retrieve(context.Background(), "question", 5, mo.None[uuid.UUID]())

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, docID, results[0].DocumentID)
	assert.Equal(t, otherID, results[1].DocumentID)
}

func TestService_RetrieveRejectsEmptyQuestion(t *testing.T) {
	svc := NewService(&stubIndex{}, &stubEmbedder{vector: []float32{1}})
	_, err := svc.Retrieve(context.Background(), "", 3, mo.None[uuid.UUID]())
	require.Error(t, err)
}
