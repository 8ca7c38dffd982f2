package services

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/quillgraph/quill-cli/internal/adapters/driven/storage/memory"
	"github.com/quillgraph/quill-cli/internal/core/domain"
)

const testDimensions = 4

// mockGraphClient implements driven.GraphClient for testing.
type mockGraphClient struct {
	all            []domain.Block
	modified       []domain.Block
	ancestors      map[string][]string
	fetchAllErr    error
	fetchModErr    error
	ancestorErr    error
	fetchAllCalls  int
	fetchModCalls  int
	lastSinceParam int64

	// blockFetch, when set, stalls FetchAll until the channel is closed.
	blockFetch chan struct{}
}

func (m *mockGraphClient) FetchAll(_ context.Context) ([]domain.Block, error) {
	m.fetchAllCalls++
	if m.blockFetch != nil {
		<-m.blockFetch
	}
	if m.fetchAllErr != nil {
		return nil, m.fetchAllErr
	}
	return append([]domain.Block(nil), m.all...), nil
}

func (m *mockGraphClient) FetchModifiedSince(_ context.Context, ts int64) ([]domain.Block, error) {
	m.fetchModCalls++
	m.lastSinceParam = ts
	if m.fetchModErr != nil {
		return nil, m.fetchModErr
	}
	var out []domain.Block
	for _, b := range m.modified {
		if b.EditTime > ts {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockGraphClient) FetchAncestorChain(_ context.Context, uid string) ([]string, error) {
	if m.ancestorErr != nil {
		return nil, m.ancestorErr
	}
	return m.ancestors[uid], nil
}

func (m *mockGraphClient) Close() error { return nil }

// mockEmbedder implements driven.EmbeddingService with deterministic
// vectors derived from the text, so identical text always embeds the same.
type mockEmbedder struct {
	embedErr   error
	batchErr   error
	embedCalls int
	batchTexts [][]string
}

func deterministicVector(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, testDimensions)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000) / 1000.0
	}
	return vec
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.embedCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return deterministicVector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.embedCalls += len(texts)
	m.batchTexts = append(m.batchTexts, append([]string(nil), texts...))
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = deterministicVector(text)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return testDimensions }

func (m *mockEmbedder) ModelName() string { return "mock-embed" }

func (m *mockEmbedder) Ping(_ context.Context) error { return nil }

func (m *mockEmbedder) Close() error { return nil }

// flakyStore wraps the in-memory store and fails UpsertBlocks a set
// number of times before letting calls through.
type flakyStore struct {
	*memory.VectorStore
	upsertFailures int
	upsertCalls    int
}

func (s *flakyStore) UpsertBlocks(ctx context.Context, blocks []domain.Block, vectors [][]float32) error {
	s.upsertCalls++
	if s.upsertFailures > 0 {
		s.upsertFailures--
		return fmt.Errorf("disk full")
	}
	return s.VectorStore.UpsertBlocks(ctx, blocks, vectors)
}
