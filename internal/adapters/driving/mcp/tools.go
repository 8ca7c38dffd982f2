package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quillgraph/quill-cli/internal/core/domain"
)

// SearchInput is the input schema for the semantic_search tool.
type SearchInput struct {
	Query         string  `json:"query" jsonschema:"the natural language query to search the graph with"`
	Limit         int     `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	MinSimilarity float64 `json:"min_similarity,omitempty" jsonschema:"minimum similarity threshold between 0 and 1 (default 0.3)"`
}

// SearchOutput is the output schema for the semantic_search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
	// Message carries a hint when the index has no embeddings yet.
	Message string `json:"message,omitempty"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	UID         string   `json:"uid"`
	Content     string   `json:"content"`
	PageTitle   string   `json:"page_title"`
	PageUID     string   `json:"page_uid"`
	ParentChain []string `json:"parent_chain,omitempty"`
	Similarity  float64  `json:"similarity"`
	Score       float64  `json:"score"`
}

// SyncInput is the input schema for the sync_index tool.
type SyncInput struct {
	Full bool `json:"full,omitempty" jsonschema:"rebuild the index from scratch instead of syncing incrementally"`
}

// SyncOutput is the output schema for the sync_index tool.
type SyncOutput struct {
	RunID           string `json:"run_id"`
	Full            bool   `json:"full"`
	BlocksProcessed int    `json:"blocks_processed"`
	ElapsedMillis   int64  `json:"elapsed_ms"`
	Watermark       int64  `json:"watermark"`
}

// StatusOutput is the output schema for the index_status tool.
type StatusOutput struct {
	BlockCount     int    `json:"block_count"`
	EmbeddingCount int    `json:"embedding_count"`
	Watermark      int64  `json:"watermark"`
	Status         string `json:"status"`
	SyncRunning    bool   `json:"sync_running"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "semantic_search",
		Description: "Search the Roam graph by meaning, ranked by similarity and recency",
	}, s.handleSemanticSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_index",
		Description: "Sync the semantic index with the graph (incremental by default)",
	}, s.handleSyncIndex)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_status",
		Description: "Report semantic index size, sync watermark and sync state",
	}, s.handleIndexStatus)
}

// handleSemanticSearch handles the semantic_search tool invocation.
func (s *Server) handleSemanticSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.DefaultSearchOptions()
	if input.Limit > 0 {
		opts.Limit = input.Limit
	}
	if input.MinSimilarity > 0 {
		opts.MinSimilarity = input.MinSimilarity
	}

	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		if errors.Is(err, domain.ErrIndexEmpty) {
			return nil, SearchOutput{
				Results: []SearchResultOutput{},
				Message: "the index has no embeddings yet, run the sync_index tool with full=true first",
			}, nil
		}
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			UID:         results[i].Block.UID,
			Content:     results[i].Block.Content,
			PageTitle:   results[i].Block.PageTitle,
			PageUID:     results[i].Block.PageUID,
			ParentChain: results[i].Block.ParentChain,
			Similarity:  results[i].Similarity,
			Score:       results[i].Score,
		}
	}

	return nil, output, nil
}

// handleSyncIndex handles the sync_index tool invocation.
func (s *Server) handleSyncIndex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SyncInput,
) (*mcp.CallToolResult, SyncOutput, error) {
	var (
		report *domain.SyncReport
		err    error
	)
	if input.Full {
		report, err = s.ports.Sync.FullSync(ctx)
	} else {
		report, err = s.ports.Sync.IncrementalSync(ctx)
		// A graph that was never synced has no watermark to start from.
		if errors.Is(err, domain.ErrIndexNotInitialized) {
			report, err = s.ports.Sync.FullSync(ctx)
		}
	}
	if err != nil {
		return nil, SyncOutput{}, err
	}

	return nil, SyncOutput{
		RunID:           report.RunID,
		Full:            report.Full,
		BlocksProcessed: report.BlocksProcessed,
		ElapsedMillis:   report.Elapsed.Milliseconds(),
		Watermark:       report.NewWatermark,
	}, nil
}

// handleIndexStatus handles the index_status tool invocation.
func (s *Server) handleIndexStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, StatusOutput, error) {
	status, err := s.ports.Sync.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}

	return nil, StatusOutput{
		BlockCount:     status.BlockCount,
		EmbeddingCount: status.EmbeddingCount,
		Watermark:      status.Watermark,
		Status:         string(status.Status),
		SyncRunning:    status.Running,
	}, nil
}
