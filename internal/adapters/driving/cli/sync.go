package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillgraph/quill-cli/internal/core/domain"
)

var syncFull bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the index with the graph",
	Long: `Updates the local vector index from the Roam graph.

By default only blocks edited since the last sync are re-embedded.
Use --full to rebuild the index from scratch, which is required on
first use and is the only way to drop blocks deleted in Roam.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "rebuild the index from scratch")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncService == nil {
		return errors.New("sync service not configured, run 'quill settings' to set up the Roam connection")
	}

	ctx := cmd.Context()

	if syncFull {
		cmd.Println("Rebuilding index from scratch...")
	} else {
		cmd.Println("Syncing index...")
	}

	report, err := syncWithProgress(ctx, cmd, syncFull)
	if errors.Is(err, domain.ErrIndexNotInitialized) {
		cmd.Println("Index not initialised yet, running a full sync instead.")
		report, err = syncWithProgress(ctx, cmd, true)
	}
	if err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			cmd.Println("A sync is already running.")
			return nil
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	cmd.Printf("Synced %d blocks in %s (watermark %d).\n",
		report.BlocksProcessed, report.Elapsed.Round(time.Millisecond), report.NewWatermark)
	return nil
}

// syncWithProgress runs the sync while displaying progress updates.
func syncWithProgress(ctx context.Context, cmd *cobra.Command, full bool) (*domain.SyncReport, error) {
	type result struct {
		report *domain.SyncReport
		err    error
	}

	resCh := make(chan result, 1)
	go func() {
		var r result
		if full {
			r.report, r.err = syncService.FullSync(ctx)
		} else {
			r.report, r.err = syncService.IncrementalSync(ctx)
		}
		resCh <- r
	}()

	// Poll status every 500ms
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case res := <-resCh:
			return res.report, res.err
		case <-ticker.C:
			// Best effort progress, errors are ignored
			status, err := syncService.Status(ctx)
			if err == nil && status.EmbeddingCount > lastCount {
				cmd.Printf("\rEmbedded %d blocks...", status.EmbeddingCount)
				lastCount = status.EmbeddingCount
			}
		}
	}
}
