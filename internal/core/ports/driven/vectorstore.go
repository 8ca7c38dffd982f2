package driven

import (
	"context"

	"github.com/quillgraph/quill-cli/internal/core/domain"
)

// VectorStore is the persistence boundary for the index: block metadata,
// vectors and sync state live behind it.
//
// Upserts are atomic per block: after UpsertBlocks either both the metadata
// and the vector for a block are visible, or neither is. A whole call is one
// sub-batch commit, the unit of durable progress during sync.
type VectorStore interface {
	// UpsertBlocks stores blocks and their vectors in a single atomic
	// commit. vectors must be parallel to blocks (same length, same order).
	// The store stamps each block's EmbeddedAt on commit.
	UpsertBlocks(ctx context.Context, blocks []domain.Block, vectors [][]float32) error

	// GetBlock retrieves block metadata by UID.
	// Returns domain.ErrNotFound if the block has never been committed.
	GetBlock(ctx context.Context, uid string) (*domain.Block, error)

	// Search returns the k nearest stored vectors to the query vector,
	// ordered by ascending distance with ties broken by UID so results
	// are deterministic. Distance is squared Euclidean.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// AllUIDs returns the UIDs of every stored block, for reconciliation
	// and testing.
	AllUIDs(ctx context.Context) ([]string, error)

	// Counts returns the number of stored blocks and vectors. The two are
	// equal except transiently inside an upsert transaction.
	Counts(ctx context.Context) (blocks, vectors int, err error)

	// GetSyncState reads a sync-state value.
	// Returns domain.ErrNotFound if the key has never been set.
	GetSyncState(ctx context.Context, key string) (string, error)

	// SetSyncState writes a sync-state value. Independent of block upserts.
	SetSyncState(ctx context.Context, key, value string) error

	// Reset discards all blocks, vectors and sync state, for a full rebuild.
	Reset(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// VectorHit represents a nearest-neighbour search result.
type VectorHit struct {
	// UID is the matched block.
	UID string

	// Distance is the squared Euclidean distance to the query vector.
	Distance float64
}
