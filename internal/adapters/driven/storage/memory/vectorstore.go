// Package memory provides in-memory implementations of driven port
// interfaces, used in tests and as a non-durable fallback.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quillgraph/quill-cli/internal/core/domain"
	"github.com/quillgraph/quill-cli/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// It honours the same atomicity contract as the durable store: an
// UpsertBlocks call is all-or-nothing.
type VectorStore struct {
	mu         sync.RWMutex
	dimensions int
	blocks     map[string]domain.Block
	vectors    map[string][]float32
	syncState  map[string]string

	// Now is the clock used for EmbeddedAt stamps. Settable in tests.
	Now func() time.Time
}

// NewVectorStore creates a new in-memory vector store with a fixed dimension.
func NewVectorStore(dimensions int) *VectorStore {
	return &VectorStore{
		dimensions: dimensions,
		blocks:     make(map[string]domain.Block),
		vectors:    make(map[string][]float32),
		syncState:  make(map[string]string),
		Now:        time.Now,
	}
}

// UpsertBlocks stores blocks and vectors together, or not at all.
func (s *VectorStore) UpsertBlocks(_ context.Context, blocks []domain.Block, vectors [][]float32) error {
	if len(blocks) != len(vectors) {
		return fmt.Errorf("upsert blocks: %w: %d blocks, %d vectors",
			domain.ErrInvalidInput, len(blocks), len(vectors))
	}

	// Validate everything before touching state so a bad entry cannot
	// leave a partial batch visible.
	for i := range vectors {
		if len(vectors[i]) != s.dimensions {
			return fmt.Errorf("upsert block %s: %w: got %d, store holds %d",
				blocks[i].UID, domain.ErrDimensionMismatch, len(vectors[i]), s.dimensions)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	embeddedAt := s.Now().UnixMilli()
	for i := range blocks {
		block := blocks[i]
		block.EmbeddedAt = embeddedAt
		s.blocks[block.UID] = block

		vector := make([]float32, len(vectors[i]))
		copy(vector, vectors[i])
		s.vectors[block.UID] = vector
	}
	return nil
}

// GetBlock retrieves block metadata by UID.
func (s *VectorStore) GetBlock(_ context.Context, uid string) (*domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, ok := s.blocks[uid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &block, nil
}

// Search performs brute-force KNN over all stored vectors.
func (s *VectorStore) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("search: %w: got %d, store holds %d",
			domain.ErrDimensionMismatch, len(query), s.dimensions)
	}
	if k <= 0 {
		return []driven.VectorHit{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(s.vectors))
	for uid, vector := range s.vectors {
		var sum float64
		for i := range query {
			d := float64(query[i]) - float64(vector[i])
			sum += d * d
		}
		hits = append(hits, driven.VectorHit{UID: uid, Distance: sum})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].UID < hits[j].UID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// AllUIDs returns the UIDs of every stored block.
func (s *VectorStore) AllUIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uids := make([]string, 0, len(s.blocks))
	for uid := range s.blocks {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids, nil
}

// Counts returns the number of stored blocks and vectors.
func (s *VectorStore) Counts(_ context.Context) (blocks, vectors int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks), len(s.vectors), nil
}

// GetSyncState reads a sync-state value.
func (s *VectorStore) GetSyncState(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.syncState[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return value, nil
}

// SetSyncState writes a sync-state value.
func (s *VectorStore) SetSyncState(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncState[key] = value
	return nil
}

// Reset discards all blocks, vectors and sync state.
func (s *VectorStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = make(map[string]domain.Block)
	s.vectors = make(map[string][]float32)
	s.syncState = make(map[string]string)
	return nil
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}
