package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunker_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "zero size", size: 0, overlap: 0},
		{name: "negative size", size: -1, overlap: 0},
		{name: "zero overlap", size: 100, overlap: 0},
		{name: "negative overlap", size: 100, overlap: -5},
		{name: "overlap equals size", size: 100, overlap: 100},
		{name: "overlap exceeds size", size: 100, overlap: 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.size, tt.overlap)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidChunkConfig)
		})
	}
}

func TestChunker_SplitEmptyInput(t *testing.T) {
	c, err := NewChunker(DefaultChunkSizeTokens, DefaultOverlapTokens)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t  "))
}

func TestChunker_SplitShortInputProducesSingleChunk(t *testing.T) {
	c, err := NewChunker(DefaultChunkSizeTokens, DefaultOverlapTokens)
	require.NoError(t, err)

	text := "短い入力はそのまま1つのチャンクになる。"
	pieces := c.Split(text)

	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].Ordinal)
	assert.Equal(t, text, pieces[0].Text)
	assert.Equal(t, c.CountTokens(text), pieces[0].Tokens)
	assert.Equal(t, 0, pieces[0].StartToken)
}

// strings.Repeat(" the", n) はcl100k_baseでちょうどnトークンになる
func repeatedTokens(n int) string {
	return strings.Repeat(" the", n)
}

func TestChunker_Split1200TokensInto3Chunks(t *testing.T) {
	c, err := NewChunker(500, 50)
	require.NoError(t, err)

	text := repeatedTokens(1200)
	require.Equal(t, 1200, c.CountTokens(text))

	pieces := c.Split(text)
	require.Len(t, pieces, 3)

	assert.Equal(t, 0, pieces[0].StartToken)
	assert.Equal(t, 500, pieces[0].EndToken)
	assert.Equal(t, 450, pieces[1].StartToken)
	assert.Equal(t, 950, pieces[1].EndToken)
	assert.Equal(t, 900, pieces[2].StartToken)
	assert.Equal(t, 1200, pieces[2].EndToken)

	for i, p := range pieces {
		assert.Equal(t, i, p.Ordinal)
		assert.Equal(t, p.EndToken-p.StartToken, p.Tokens)
	}
}

func TestChunker_SplitIsIdempotent(t *testing.T) {
	c, err := NewChunker(20, 5)
	require.NoError(t, err)

	text := "Go is an open source programming language that makes it simple to build secure, scalable systems. " +
		"The language was designed at Google and is used in production by many companies."

	first := c.Split(text)
	second := c.Split(text)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].StartToken, second[i].StartToken)
		assert.Equal(t, first[i].EndToken, second[i].EndToken)
	}
}

func TestChunker_OverlapRegionsReconstructOriginal(t *testing.T) {
	c, err := NewChunker(16, 4)
	require.NoError(t, err)

	text := "The quick brown fox jumps over the lazy dog. " +
		"Pack my box with five dozen liquor jugs. " +
		"How vexingly quick daft zebras jump. " +
		"Sphinx of black quartz, judge my vow."

	pieces := c.Split(text)
	require.NotEmpty(t, pieces)

	// オーバーラップ領域を除いたトークン区間を連結すると元のトークン列を復元する
	stride := c.Size() - c.Overlap()
	prevEnd := 0
	for i, p := range pieces {
		if i > 0 {
			assert.Equal(t, prevEnd-c.Overlap(), p.StartToken, "chunk %d must start overlap tokens before the previous end", i)
			assert.Equal(t, stride*i, p.StartToken)
		}
		prevEnd = p.EndToken
	}
	assert.Equal(t, c.CountTokens(text), prevEnd)
}

func TestChunker_ExactMultipleOfSizeHasNoTrailingChunk(t *testing.T) {
	c, err := NewChunker(100, 10)
	require.NoError(t, err)

	pieces := c.Split(repeatedTokens(100))
	require.Len(t, pieces, 1)
	assert.Equal(t, 100, pieces[0].Tokens)
}
