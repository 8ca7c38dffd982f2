package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillgraph/quill-cli/internal/core/domain"
	"github.com/quillgraph/quill-cli/internal/core/ports/driven"
	"github.com/quillgraph/quill-cli/internal/core/ports/driving"
	"github.com/quillgraph/quill-cli/internal/logger"
)

// Ensure SyncCoordinator implements the interface.
var _ driving.SyncService = (*SyncCoordinator)(nil)

// Default sync batching values.
const (
	DefaultEmbedBatchSize = 64
	DefaultCommitSize     = 256
)

// SyncConfig holds per-instance sync tuning. Passed explicitly at
// construction so the coordinator is testable without process-wide setup.
type SyncConfig struct {
	// EmbedBatchSize is the number of texts sent to the embedding model
	// per call. Bounds peak memory during a long sync.
	EmbedBatchSize int

	// CommitSize is the number of blocks committed per atomic sub-batch.
	// A long sync interrupted between sub-batches keeps all committed
	// progress and the watermark reflects exactly that.
	CommitSize int
}

// withDefaults fills zero fields with the default batching values.
func (c SyncConfig) withDefaults() SyncConfig {
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if c.CommitSize <= 0 {
		c.CommitSize = DefaultCommitSize
	}
	return c
}

// runStatus tracks an in-flight sync for progress reporting.
type runStatus struct {
	runID           string
	full            bool
	blocksProcessed int
}

// SyncCoordinator reconciles the vector index with the current state of
// the source graph: it detects new or changed blocks, re-embeds them and
// advances the sync watermark past durably committed work only.
type SyncCoordinator struct {
	graph    driven.GraphClient
	store    driven.VectorStore
	embedder driven.EmbeddingService
	cfg      SyncConfig

	// runMu enforces the single-sync-in-flight rule. A sync requested
	// while one is running is coalesced, never run in parallel, because
	// interleaved watermark advances could skip blocks.
	runMu sync.Mutex

	mu      sync.RWMutex
	current *runStatus

	now func() time.Time
}

// NewSyncCoordinator creates a sync coordinator.
func NewSyncCoordinator(
	graph driven.GraphClient,
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	cfg SyncConfig,
) *SyncCoordinator {
	return &SyncCoordinator{
		graph:    graph,
		store:    store,
		embedder: embedder,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// FullSync discards the index and repopulates it from the entire graph.
func (s *SyncCoordinator) FullSync(ctx context.Context) (*domain.SyncReport, error) {
	if !s.runMu.TryLock() {
		return nil, domain.ErrSyncInProgress
	}
	defer s.runMu.Unlock()

	start := s.now()
	report := &domain.SyncReport{RunID: uuid.NewString(), Full: true}
	s.setStatus(&runStatus{runID: report.RunID, full: true})
	defer s.clearStatus()

	logger.Section("Full Sync")
	logger.Info("Run %s: fetching all blocks", report.RunID)

	blocks, err := s.graph.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch all blocks: %w", err)
	}

	// The watermark target is computed from the fetched snapshot before
	// embedding begins, so edits racing the sync are picked up next time.
	maxEdit := maxEditTime(blocks)
	logger.Info("Run %s: %d blocks fetched, target watermark %d", report.RunID, len(blocks), maxEdit)

	if err := s.store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset store: %w", err)
	}
	if err := s.store.SetSyncState(ctx, domain.SyncStateStatus, string(domain.SyncInProgress)); err != nil {
		return nil, fmt.Errorf("set sync status: %w", err)
	}

	processed, watermark, err := s.processBatches(ctx, blocks)
	report.BlocksProcessed = processed
	report.NewWatermark = watermark
	if err != nil {
		return nil, err
	}

	// An empty graph still completes: watermark 0 lets incremental sync
	// pick up the first blocks ever created.
	if err := s.store.SetSyncState(ctx, domain.SyncStateWatermark, strconv.FormatInt(maxEdit, 10)); err != nil {
		return nil, fmt.Errorf("set watermark: %w", err)
	}
	report.NewWatermark = maxEdit

	if err := s.store.SetSyncState(ctx, domain.SyncStateStatus, string(domain.SyncCompleted)); err != nil {
		return nil, fmt.Errorf("set sync status: %w", err)
	}

	report.Elapsed = s.now().Sub(start)
	logger.Info("Full sync complete: %d blocks in %s, watermark %d",
		report.BlocksProcessed, report.Elapsed, report.NewWatermark)
	return report, nil
}

// IncrementalSync embeds only blocks edited after the current watermark.
func (s *SyncCoordinator) IncrementalSync(ctx context.Context) (*domain.SyncReport, error) {
	if !s.runMu.TryLock() {
		return nil, domain.ErrSyncInProgress
	}
	defer s.runMu.Unlock()

	watermark, err := s.watermark(ctx)
	if err != nil {
		return nil, err
	}

	start := s.now()
	report := &domain.SyncReport{RunID: uuid.NewString(), NewWatermark: watermark}
	s.setStatus(&runStatus{runID: report.RunID})
	defer s.clearStatus()

	logger.Section("Incremental Sync")
	logger.Debug("Run %s: fetching blocks modified since %d", report.RunID, watermark)

	blocks, err := s.graph.FetchModifiedSince(ctx, watermark)
	if err != nil {
		return nil, fmt.Errorf("fetch modified blocks: %w", err)
	}

	if len(blocks) == 0 {
		report.Elapsed = s.now().Sub(start)
		logger.Debug("Run %s: no changes, watermark unchanged", report.RunID)
		return report, nil
	}

	logger.Info("Run %s: %d changed blocks", report.RunID, len(blocks))
	s.backfillAncestors(ctx, blocks)

	processed, newWatermark, err := s.processBatches(ctx, blocks)
	report.BlocksProcessed = processed
	if newWatermark > watermark {
		report.NewWatermark = newWatermark
	}
	if err != nil {
		return nil, err
	}

	report.Elapsed = s.now().Sub(start)
	logger.Info("Incremental sync complete: %d blocks in %s, watermark %d",
		report.BlocksProcessed, report.Elapsed, report.NewWatermark)
	return report, nil
}

// Status reports the current index state.
func (s *SyncCoordinator) Status(ctx context.Context) (*domain.IndexStatus, error) {
	blocks, vectors, err := s.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}

	status := &domain.IndexStatus{
		BlockCount:     blocks,
		EmbeddingCount: vectors,
		Status:         domain.SyncNotInitialized,
	}

	if raw, err := s.store.GetSyncState(ctx, domain.SyncStateStatus); err == nil {
		status.Status = domain.SyncStatus(raw)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get sync status: %w", err)
	}

	if raw, err := s.store.GetSyncState(ctx, domain.SyncStateWatermark); err == nil {
		wm, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			return nil, fmt.Errorf("parse watermark %q: %w", raw, parseErr)
		}
		status.Watermark = wm
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get watermark: %w", err)
	}

	s.mu.RLock()
	status.Running = s.current != nil
	s.mu.RUnlock()

	return status, nil
}

// watermark reads the persisted watermark, translating a missing key into
// ErrIndexNotInitialized.
func (s *SyncCoordinator) watermark(ctx context.Context) (int64, error) {
	raw, err := s.store.GetSyncState(ctx, domain.SyncStateWatermark)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, domain.ErrIndexNotInitialized
	}
	if err != nil {
		return 0, fmt.Errorf("get watermark: %w", err)
	}
	wm, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse watermark %q: %w", raw, err)
	}
	return wm, nil
}

// processBatches embeds and commits blocks in atomic sub-batches, advancing
// the watermark after each durable commit. Blocks are processed in edit-time
// order so the watermark never runs ahead of uncommitted work.
func (s *SyncCoordinator) processBatches(
	ctx context.Context,
	blocks []domain.Block,
) (processed int, watermark int64, err error) {
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].EditTime != blocks[j].EditTime {
			return blocks[i].EditTime < blocks[j].EditTime
		}
		return blocks[i].UID < blocks[j].UID
	})

	for offset := 0; offset < len(blocks); offset += s.cfg.CommitSize {
		if err := ctx.Err(); err != nil {
			return processed, watermark, err
		}

		end := offset + s.cfg.CommitSize
		if end > len(blocks) {
			end = len(blocks)
		}
		batch := blocks[offset:end]

		vectors, err := s.embedBatch(ctx, batch)
		if err != nil {
			return processed, watermark, err
		}

		if err := s.commitBatch(ctx, batch, vectors); err != nil {
			return processed, watermark, err
		}
		processed += len(batch)
		s.addProcessed(len(batch))

		// Sorted order makes the sub-batch maximum the committed prefix
		// maximum, which is exactly how far the watermark may advance.
		batchMax := batch[len(batch)-1].EditTime
		if batchMax > watermark {
			watermark = batchMax
			if err := s.store.SetSyncState(ctx, domain.SyncStateWatermark,
				strconv.FormatInt(watermark, 10)); err != nil {
				return processed, watermark, fmt.Errorf("advance watermark: %w", err)
			}
		}

		logger.Debug("Committed sub-batch of %d blocks, watermark %d", len(batch), watermark)
	}

	return processed, watermark, nil
}

// embedBatch generates vectors for one sub-batch, splitting it into
// model-sized chunks. A model failure is fatal to the run, not retried
// per item.
func (s *SyncCoordinator) embedBatch(ctx context.Context, batch []domain.Block) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].EmbeddingText()
	}

	vectors := make([][]float32, 0, len(batch))
	for offset := 0; offset < len(texts); offset += s.cfg.EmbedBatchSize {
		end := offset + s.cfg.EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		chunk, err := s.embedder.EmbedBatch(ctx, texts[offset:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w: %w", domain.ErrModelUnavailable, err)
		}
		vectors = append(vectors, chunk...)
	}

	return vectors, nil
}

// commitBatch upserts one sub-batch atomically, retrying once before
// aborting the sync with the prior watermark intact.
func (s *SyncCoordinator) commitBatch(ctx context.Context, batch []domain.Block, vectors [][]float32) error {
	err := s.store.UpsertBlocks(ctx, batch, vectors)
	if err == nil {
		return nil
	}

	logger.Warn("Sub-batch commit failed, retrying once: %v", err)
	if err := s.store.UpsertBlocks(ctx, batch, vectors); err != nil {
		return fmt.Errorf("commit sub-batch: %w: %w", domain.ErrStoreWrite, err)
	}
	return nil
}

// backfillAncestors fills in missing ancestor chains for nested blocks so
// hierarchical context reaches the embedding. Best effort: a block whose
// chain cannot be fetched is embedded without it.
func (s *SyncCoordinator) backfillAncestors(ctx context.Context, blocks []domain.Block) {
	for i := range blocks {
		if blocks[i].ParentUID == "" || len(blocks[i].ParentChain) > 0 {
			continue
		}
		chain, err := s.graph.FetchAncestorChain(ctx, blocks[i].UID)
		if err != nil {
			logger.Warn("Backfill ancestors for %s failed: %v", blocks[i].UID, err)
			continue
		}
		blocks[i].ParentChain = chain
	}
}

// maxEditTime returns the maximum edit time across blocks, zero when empty.
func maxEditTime(blocks []domain.Block) int64 {
	var max int64
	for i := range blocks {
		if blocks[i].EditTime > max {
			max = blocks[i].EditTime
		}
	}
	return max
}

// setStatus records the in-flight run.
func (s *SyncCoordinator) setStatus(status *runStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = status
}

// addProcessed bumps the in-flight run's progress counter.
func (s *SyncCoordinator) addProcessed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.blocksProcessed += n
	}
}

// clearStatus removes the in-flight run marker.
func (s *SyncCoordinator) clearStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
