package domain

import "time"

// Sync-state keys persisted in the store's key/value sync-state table.
const (
	// SyncStateWatermark holds the last-sync watermark: the maximum
	// edit time (epoch ms) up to which the index is known complete.
	// It is monotonically non-decreasing and only advances past work
	// that is durably committed.
	SyncStateWatermark = "last_sync_timestamp"

	// SyncStateStatus holds the index lifecycle status.
	SyncStateStatus = "status"
)

// SyncStatus describes the index lifecycle.
type SyncStatus string

// Index lifecycle states.
const (
	SyncNotInitialized SyncStatus = "not_initialized"
	SyncInProgress     SyncStatus = "in_progress"
	SyncCompleted      SyncStatus = "completed"
)

// SyncReport summarises one completed sync run.
type SyncReport struct {
	// RunID uniquely identifies the sync run.
	RunID string

	// Full is true for a full rebuild, false for an incremental sync.
	Full bool

	// BlocksProcessed is the number of blocks embedded and upserted.
	BlocksProcessed int

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration

	// NewWatermark is the watermark after the run, in epoch milliseconds.
	// Unchanged when the run was a no-op.
	NewWatermark int64
}

// IndexStatus is a point-in-time snapshot of the index.
type IndexStatus struct {
	// BlockCount is the number of blocks with stored metadata.
	BlockCount int

	// EmbeddingCount is the number of stored vectors.
	EmbeddingCount int

	// Watermark is the current sync watermark in epoch milliseconds,
	// zero when no sync has completed.
	Watermark int64

	// Status is the index lifecycle state.
	Status SyncStatus

	// Running is true while a sync is in flight in this process.
	Running bool
}
