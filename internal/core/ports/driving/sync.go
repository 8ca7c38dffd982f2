package driving

import (
	"context"

	"github.com/quillgraph/quill-cli/internal/core/domain"
)

// SyncService keeps the vector index current with the source graph.
//
// At most one sync (full or incremental) runs per index instance at a
// time; a request made while one is in flight returns
// domain.ErrSyncInProgress instead of running in parallel.
type SyncService interface {
	// FullSync discards the index and repopulates it from every block in
	// the source graph, then sets the watermark to the maximum edit time
	// observed in the fetched snapshot.
	FullSync(ctx context.Context) (*domain.SyncReport, error)

	// IncrementalSync fetches only blocks edited after the current
	// watermark, embeds and upserts them, and advances the watermark to
	// the maximum edit time durably committed. With no changes it is a
	// no-op. Returns domain.ErrIndexNotInitialized when no full sync has
	// ever completed.
	IncrementalSync(ctx context.Context) (*domain.SyncReport, error)

	// Status reports the current index state.
	Status(ctx context.Context) (*domain.IndexStatus, error)
}
