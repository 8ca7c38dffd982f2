package driving

import (
	"context"

	"github.com/quillgraph/quill-cli/internal/core/domain"
)

// SearchService answers meaning-based queries against the vector index.
type SearchService interface {
	// Search embeds the query, retrieves nearest neighbours, applies the
	// similarity threshold and recency boost, and returns results ordered
	// by descending adjusted score.
	//
	// Searching an index with zero vectors returns an empty result set
	// together with domain.ErrIndexEmpty so callers can suggest a full sync.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
