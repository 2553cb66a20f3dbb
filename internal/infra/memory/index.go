package memory

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/index"
)

// Index は index.Index のインメモリ実装
//
// ベクトルは挿入時に正規化して保持するため、検索は内積の計算だけで
// コサイン類似度が得られる（変更のたびに他エントリを再計算しない）。
// 同一ドキュメントIDへの Insert / Remove はドキュメント単位のロックで
// 直列化し、Search は読み取りロックのみで並行実行できる
type Index struct {
	mu        sync.RWMutex
	docs      map[uuid.UUID][]storedEntry
	dimension int
	entries   int

	docLocks sync.Map // map[uuid.UUID]*sync.Mutex
}

type storedEntry struct {
	ordinal int
	text    string
	tokens  int
	vector  []float32 // 正規化済み
}

// NewIndex は新しいインメモリインデックスを作成する
// dimension が0の場合は最初の Insert で次元が確定する
func NewIndex(dimension int) *Index {
	return &Index{
		docs:      make(map[uuid.UUID][]storedEntry),
		dimension: dimension,
	}
}

var _ index.Index = (*Index)(nil)

// docLock はドキュメント単位の変更ロックを返す
func (i *Index) docLock(documentID uuid.UUID) *sync.Mutex {
	actual, _ := i.docLocks.LoadOrStore(documentID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// Insert はドキュメントの全エントリを一括で追加する
func (i *Index) Insert(ctx context.Context, documentID uuid.UUID, entries []*index.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	lock := i.docLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, exists := i.docs[documentID]; exists {
		return fmt.Errorf("%w: %s", index.ErrDuplicateDocument, documentID)
	}

	dimension := i.dimension
	if dimension == 0 {
		dimension = len(entries[0].Vector)
	}

	stored := make([]storedEntry, 0, len(entries))
	for _, entry := range entries {
		if len(entry.Vector) != dimension {
			return fmt.Errorf("%w: expected %d, got %d (document %s, chunk %d)",
				index.ErrDimensionMismatch, dimension, len(entry.Vector), documentID, entry.Ordinal)
		}
		stored = append(stored, storedEntry{
			ordinal: entry.Ordinal,
			text:    entry.Text,
			tokens:  entry.Tokens,
			vector:  normalize(entry.Vector),
		})
	}

	i.dimension = dimension
	i.docs[documentID] = stored
	i.entries += len(stored)
	return nil
}

// Remove はドキュメントの全エントリを削除する（冪等）
func (i *Index) Remove(ctx context.Context, documentID uuid.UUID) error {
	lock := i.docLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	i.mu.Lock()
	defer i.mu.Unlock()

	if stored, exists := i.docs[documentID]; exists {
		i.entries -= len(stored)
		delete(i.docs, documentID)
	}
	return nil
}

// Search はコサイン類似度の上位k件を返す
func (i *Index) Search(ctx context.Context, query []float32, k int, filter mo.Option[uuid.UUID]) ([]*index.Hit, error) {
	if k <= 0 {
		return []*index.Hit{}, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.entries == 0 {
		return nil, index.ErrEmptyIndex
	}
	if i.dimension != 0 && len(query) != i.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", index.ErrDimensionMismatch, i.dimension, len(query))
	}

	normalized := normalize(query)

	var hits []*index.Hit
	if docID, ok := filter.Get(); ok {
		hits = i.scoreDocument(docID, normalized, i.docs[docID])
	} else {
		for id, stored := range i.docs {
			hits = append(hits, i.scoreDocument(id, normalized, stored)...)
		}
	}

	// 類似度降順、同点は Ordinal 昇順 → DocumentID 昇順
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		if hits[a].Ordinal != hits[b].Ordinal {
			return hits[a].Ordinal < hits[b].Ordinal
		}
		return bytes.Compare(hits[a].DocumentID[:], hits[b].DocumentID[:]) < 0
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	if hits == nil {
		hits = []*index.Hit{}
	}
	return hits, nil
}

func (i *Index) scoreDocument(documentID uuid.UUID, query []float32, stored []storedEntry) []*index.Hit {
	hits := make([]*index.Hit, 0, len(stored))
	for _, entry := range stored {
		hits = append(hits, &index.Hit{
			DocumentID: documentID,
			Ordinal:    entry.ordinal,
			Text:       entry.text,
			Score:      dot(query, entry.vector),
		})
	}
	return hits
}

// Stats はインデックスの統計情報を返す
func (i *Index) Stats(ctx context.Context) (*index.Stats, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return &index.Stats{
		Documents: len(i.docs),
		Entries:   i.entries,
	}, nil
}

// normalize はベクトルを単位長に正規化したコピーを返す
// ゼロベクトルはそのまま返す
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// dot は2つの同次元ベクトルの内積を返す
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
