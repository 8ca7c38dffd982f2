package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quillgraph/quill-cli/internal/core/domain"
	"github.com/quillgraph/quill-cli/internal/core/ports/driven"
	"github.com/quillgraph/quill-cli/internal/core/ports/driving"
	"github.com/quillgraph/quill-cli/internal/logger"
)

// Ensure SearchRanker implements the interface.
var _ driving.SearchService = (*SearchRanker)(nil)

// SearchRanker answers semantic queries: it refreshes the index with a
// bounded incremental sync, embeds the query, retrieves nearest neighbours
// and ranks them by similarity plus recency boost.
type SearchRanker struct {
	store    driven.VectorStore
	embedder driven.EmbeddingService
	sync     driving.SyncService

	now func() time.Time
}

// NewSearchRanker creates a search ranker. The sync service is optional:
// when nil, searches run against the index as-is.
func NewSearchRanker(
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	syncService driving.SyncService,
) *SearchRanker {
	return &SearchRanker{
		store:    store,
		embedder: embedder,
		sync:     syncService,
		now:      time.Now,
	}
}

// Search performs semantic search over the indexed graph.
func (s *SearchRanker) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}
	if opts.MinSimilarity < 0 {
		opts.MinSimilarity = 0
	}

	// Refresh the index first so the query sees recent edits. Sync
	// failure degrades to searching the existing index; it never fails
	// the query.
	s.refreshIndex(ctx, opts)

	_, vectorCount, err := s.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}
	if vectorCount == 0 {
		logger.Info("Index is empty, nothing to search")
		return []domain.SearchResult{}, domain.ErrIndexEmpty
	}

	logger.Debug("Generating query embedding...")
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w: %w", domain.ErrModelUnavailable, err)
	}
	logger.Debug("Query embedding: %d dimensions", len(queryVec))

	// Over-fetch so the similarity filter still leaves enough candidates.
	k := limit * domain.OverFetchMultiplier
	hits, err := s.store.Search(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("KNN candidates: %d (k=%d)", len(hits), k)

	results, err := s.rank(ctx, hits, opts)
	if err != nil {
		return nil, err
	}

	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	logger.Info("Final results: %d", len(results))
	return results, nil
}

// refreshIndex runs a bounded incremental sync before the query. All
// failures are logged and swallowed: a stale index still answers.
func (s *SearchRanker) refreshIndex(ctx context.Context, opts domain.SearchOptions) {
	if s.sync == nil || opts.SkipSync {
		return
	}

	timeout := opts.SyncTimeout
	if timeout <= 0 {
		timeout = domain.DefaultSyncTimeout
	}
	syncCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report, err := s.sync.IncrementalSync(syncCtx)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		logger.Debug("Sync already running, searching current index")
	case errors.Is(err, domain.ErrIndexNotInitialized):
		logger.Debug("Index not initialized, searching current index")
	case err != nil:
		logger.Warn("Pre-search sync failed, searching stale index: %v", err)
	case report.BlocksProcessed > 0:
		logger.Info("Pre-search sync embedded %d blocks", report.BlocksProcessed)
	}
}

// rank converts distances to similarities, applies the raw-similarity
// threshold, adds the recency boost and orders by adjusted score.
func (s *SearchRanker) rank(
	ctx context.Context,
	hits []driven.VectorHit,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	now := s.now().UnixMilli()
	results := make([]domain.SearchResult, 0, len(hits))

	for _, hit := range hits {
		similarity := domain.SimilarityFromDistance(hit.Distance)
		if similarity < opts.MinSimilarity {
			continue
		}

		block, err := s.store.GetBlock(ctx, hit.UID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Vector without metadata should not happen under the
				// atomic upsert contract; skip rather than fail.
				logger.Warn("Hit %s has no stored metadata, skipping", hit.UID)
				continue
			}
			return nil, fmt.Errorf("get block %s: %w", hit.UID, err)
		}

		boost := domain.RecencyBoost(block.EditTime, now, opts.RecencyWindowDays, opts.RecencyMaxBoost)
		results = append(results, domain.SearchResult{
			Block:      *block,
			Similarity: similarity,
			Score:      similarity + boost,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Block.UID < results[j].Block.UID
	})

	return results, nil
}
