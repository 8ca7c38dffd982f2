package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync is already running.
	// Concurrent sync requests are coalesced, never run in parallel.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrIndexNotInitialized indicates no full sync has completed yet,
	// so there is no watermark to sync incrementally from.
	ErrIndexNotInitialized = errors.New("index not initialized")

	// ErrIndexEmpty indicates a search ran against zero stored vectors.
	// This is a distinguishable status rather than a failure: callers
	// should suggest running a full sync.
	ErrIndexEmpty = errors.New("index is empty")

	// ErrModelUnavailable indicates the embedding model cannot be reached
	// or loaded. It is fatal to the calling sync or search operation;
	// embedding work must not be retried per item across it.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrSourceUnreachable indicates the source graph API could not be
	// reached after bounded retries. Incremental sync failures during
	// search degrade to searching the existing index.
	ErrSourceUnreachable = errors.New("source graph unreachable")

	// ErrStoreWrite indicates a durable store write failed. Writes are
	// retried at the sub-batch level; repeated failure aborts the sync
	// and preserves the prior watermark.
	ErrStoreWrite = errors.New("store write failed")

	// ErrDimensionMismatch indicates a vector's length does not match the
	// index's fixed dimension. Mixing embedding models requires a full rebuild.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
