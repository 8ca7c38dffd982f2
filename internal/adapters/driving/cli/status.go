package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillgraph/quill-cli/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	Long:  `Shows the size of the local vector index, the sync watermark and the sync state.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if syncService == nil {
		return errors.New("sync service not configured, run 'quill settings' to set up the Roam connection")
	}

	status, err := syncService.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	cmd.Println("Index Status")
	cmd.Println("============")
	cmd.Printf("  Blocks:     %d\n", status.BlockCount)
	cmd.Printf("  Embeddings: %d\n", status.EmbeddingCount)
	cmd.Printf("  State:      %s\n", status.Status)
	if status.Watermark > 0 {
		cmd.Printf("  Last sync:  %s\n", time.UnixMilli(status.Watermark).Format(time.RFC3339))
	} else {
		cmd.Printf("  Last sync:  never\n")
	}
	if status.Running {
		cmd.Println("  A sync is currently running.")
	}

	if status.Status == domain.SyncNotInitialized {
		cmd.Println()
		cmd.Println("Run 'quill sync --full' to build the index.")
	}

	return nil
}
