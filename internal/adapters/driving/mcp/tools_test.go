package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillgraph/quill-cli/internal/core/domain"
)

func newTestServer(t *testing.T, search *mockSearchService, sync *mockSyncService) *Server {
	t.Helper()
	server, err := NewServer(&Ports{Search: search, Sync: sync})
	require.NoError(t, err)
	return server
}

func TestServer_handleSemanticSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearchService{
			results: []domain.SearchResult{
				{
					Block: domain.Block{
						UID:         "block-1",
						Content:     "Ship the beta",
						PageUID:     "page-1",
						PageTitle:   "Planning",
						ParentChain: []string{"Project goals"},
					},
					Similarity: 0.82,
					Score:      0.87,
					Rank:       1,
				},
			},
		}
		server := newTestServer(t, mockSearch, &mockSyncService{})

		input := SearchInput{Query: "beta release"}
		_, output, err := server.handleSemanticSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "block-1", output.Results[0].UID)
		assert.Equal(t, "Ship the beta", output.Results[0].Content)
		assert.Equal(t, "Planning", output.Results[0].PageTitle)
		assert.Equal(t, []string{"Project goals"}, output.Results[0].ParentChain)
		assert.Equal(t, 0.82, output.Results[0].Similarity)
		assert.Equal(t, 0.87, output.Results[0].Score)
	})

	t.Run("applies defaults when options omitted", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server := newTestServer(t, mockSearch, &mockSyncService{})

		_, _, err := server.handleSemanticSearch(ctx, nil, SearchInput{Query: "q"})

		require.NoError(t, err)
		assert.Equal(t, domain.DefaultSearchLimit, mockSearch.lastOpts.Limit)
		assert.Equal(t, domain.DefaultMinSimilarity, mockSearch.lastOpts.MinSimilarity)
	})

	t.Run("passes through custom options", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server := newTestServer(t, mockSearch, &mockSyncService{})

		input := SearchInput{Query: "q", Limit: 5, MinSimilarity: 0.6}
		_, _, err := server.handleSemanticSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 5, mockSearch.lastOpts.Limit)
		assert.Equal(t, 0.6, mockSearch.lastOpts.MinSimilarity)
	})

	t.Run("empty index yields hint instead of error", func(t *testing.T) {
		mockSearch := &mockSearchService{err: domain.ErrIndexEmpty}
		server := newTestServer(t, mockSearch, &mockSyncService{})

		_, output, err := server.handleSemanticSearch(ctx, nil, SearchInput{Query: "q"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.NotEmpty(t, output.Message)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockSearch := &mockSearchService{err: errors.New("model offline")}
		server := newTestServer(t, mockSearch, &mockSyncService{})

		_, _, err := server.handleSemanticSearch(ctx, nil, SearchInput{Query: "q"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "model offline")
	})
}

func TestServer_handleSyncIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("incremental by default", func(t *testing.T) {
		mockSync := &mockSyncService{
			incrementalReport: &domain.SyncReport{
				RunID:           "run-1",
				BlocksProcessed: 3,
				Elapsed:         1500 * time.Millisecond,
				NewWatermark:    4000,
			},
		}
		server := newTestServer(t, &mockSearchService{}, mockSync)

		_, output, err := server.handleSyncIndex(ctx, nil, SyncInput{})

		require.NoError(t, err)
		assert.Equal(t, 1, mockSync.incrementalCalls)
		assert.Equal(t, 0, mockSync.fullCalls)
		assert.Equal(t, "run-1", output.RunID)
		assert.False(t, output.Full)
		assert.Equal(t, 3, output.BlocksProcessed)
		assert.Equal(t, int64(1500), output.ElapsedMillis)
		assert.Equal(t, int64(4000), output.Watermark)
	})

	t.Run("full when requested", func(t *testing.T) {
		mockSync := &mockSyncService{
			fullReport: &domain.SyncReport{RunID: "run-2", Full: true},
		}
		server := newTestServer(t, &mockSearchService{}, mockSync)

		_, output, err := server.handleSyncIndex(ctx, nil, SyncInput{Full: true})

		require.NoError(t, err)
		assert.Equal(t, 1, mockSync.fullCalls)
		assert.Equal(t, 0, mockSync.incrementalCalls)
		assert.True(t, output.Full)
	})

	t.Run("uninitialized index falls back to full sync", func(t *testing.T) {
		mockSync := &mockSyncService{
			incrementalErr: domain.ErrIndexNotInitialized,
			fullReport:     &domain.SyncReport{RunID: "run-3", Full: true},
		}
		server := newTestServer(t, &mockSearchService{}, mockSync)

		_, output, err := server.handleSyncIndex(ctx, nil, SyncInput{})

		require.NoError(t, err)
		assert.Equal(t, 1, mockSync.incrementalCalls)
		assert.Equal(t, 1, mockSync.fullCalls)
		assert.True(t, output.Full)
	})

	t.Run("concurrent sync error surfaces", func(t *testing.T) {
		mockSync := &mockSyncService{incrementalErr: domain.ErrSyncInProgress}
		server := newTestServer(t, &mockSearchService{}, mockSync)

		_, _, err := server.handleSyncIndex(ctx, nil, SyncInput{})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSyncInProgress)
		assert.Equal(t, 0, mockSync.fullCalls)
	})
}

func TestServer_handleIndexStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("reports index state", func(t *testing.T) {
		mockSync := &mockSyncService{
			status: &domain.IndexStatus{
				BlockCount:     120,
				EmbeddingCount: 120,
				Watermark:      9000,
				Status:         domain.SyncCompleted,
				Running:        false,
			},
		}
		server := newTestServer(t, &mockSearchService{}, mockSync)

		_, output, err := server.handleIndexStatus(ctx, nil, struct{}{})

		require.NoError(t, err)
		assert.Equal(t, 120, output.BlockCount)
		assert.Equal(t, 120, output.EmbeddingCount)
		assert.Equal(t, int64(9000), output.Watermark)
		assert.Equal(t, "completed", output.Status)
		assert.False(t, output.SyncRunning)
	})

	t.Run("returns error on status failure", func(t *testing.T) {
		mockSync := &mockSyncService{statusErr: errors.New("db locked")}
		server := newTestServer(t, &mockSearchService{}, mockSync)

		_, _, err := server.handleIndexStatus(ctx, nil, struct{}{})

		require.Error(t, err)
	})
}
