package mcp

import (
	"context"

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
