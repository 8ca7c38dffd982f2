package driven

import (
	"context"

	"github.com/quillgraph/quill-cli/internal/core/domain"
)

// GraphClient fetches blocks from the source note graph over its remote
// query protocol. The source only supports pull-based polling; there is
// no push notification and no reliable deletion signal.
//
// Implementations retry transient failures with bounded exponential
// backoff and wrap retry-exhausted failures in domain.ErrSourceUnreachable.
type GraphClient interface {
	// FetchAll returns every block in the graph with its metadata.
	FetchAll(ctx context.Context) ([]domain.Block, error)

	// FetchModifiedSince returns blocks whose edit time is strictly
	// greater than the given epoch-millisecond timestamp.
	FetchModifiedSince(ctx context.Context, timestamp int64) ([]domain.Block, error)

	// FetchAncestorChain returns the contents of a block's ancestors,
	// ordered from root to immediate parent. Used to backfill hierarchical
	// context for a single block.
	FetchAncestorChain(ctx context.Context, uid string) ([]string, error)

	// Close releases resources.
	Close() error
}
