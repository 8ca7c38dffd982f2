package cli

import (
	"context"
	"time"

	"github.com/quillgraph/quill-cli/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results  []domain.SearchResult
	err      error
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

// mockSyncService is a mock implementation of driving.SyncService.
type mockSyncService struct {
	fullReport        *domain.SyncReport
	incrementalReport *domain.SyncReport
	status            *domain.IndexStatus
	fullErr           error
	incrementalErr    error
	statusErr         error
	fullCalls         int
	incrementalCalls  int
}

func (m *mockSyncService) FullSync(_ context.Context) (*domain.SyncReport, error) {
	m.fullCalls++
	return m.fullReport, m.fullErr
}

func (m *mockSyncService) IncrementalSync(_ context.Context) (*domain.SyncReport, error) {
	m.incrementalCalls++
	return m.incrementalReport, m.incrementalErr
}

func (m *mockSyncService) Status(_ context.Context) (*domain.IndexStatus, error) {
	return m.status, m.statusErr
}

// setupTestServices swaps the package-level services for mocks with
// canned data. The returned cleanup restores the originals.
func setupTestServices() func() {
	oldSearch := searchService
	oldSync := syncService

	searchService = &mockSearchService{
		results: []domain.SearchResult{
			{
				Block: domain.Block{
					UID:         "block-1",
					Content:     "Draft the release notes",
					PageUID:     "page-1",
					PageTitle:   "Release Planning",
					ParentChain: []string{"Q3 Goals"},
				},
				Similarity: 0.81,
				Score:      0.86,
				Rank:       1,
			},
		},
	}
	syncService = &mockSyncService{
		incrementalReport: &domain.SyncReport{
			RunID:           "run-incr",
			BlocksProcessed: 2,
			Elapsed:         120 * time.Millisecond,
			NewWatermark:    5000,
		},
		fullReport: &domain.SyncReport{
			RunID:           "run-full",
			Full:            true,
			BlocksProcessed: 10,
			Elapsed:         900 * time.Millisecond,
			NewWatermark:    5000,
		},
		status: &domain.IndexStatus{
			BlockCount:     10,
			EmbeddingCount: 10,
			Watermark:      5000,
			Status:         domain.SyncCompleted,
		},
	}

	return func() {
		searchService = oldSearch
		syncService = oldSync
	}
}
