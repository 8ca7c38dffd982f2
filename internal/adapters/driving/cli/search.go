package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillgraph/quill-cli/internal/core/domain"
)

var (
	searchLimit         int
	searchMinSimilarity float64
	searchRecencyWindow float64
	searchRecencyBoost  float64
	searchSkipSync      bool
	searchJSON          bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the graph by meaning",
	Long: `Performs semantic search over the indexed Roam graph.
Blocks are ranked by vector similarity to the query, with a boost for
recently edited blocks. The index is refreshed with a quick incremental
sync before searching unless --skip-sync is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultSearchLimit, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchMinSimilarity, "min-similarity", domain.DefaultMinSimilarity, "minimum similarity threshold (0-1)")
	searchCmd.Flags().Float64Var(&searchRecencyWindow, "recency-window", domain.DefaultRecencyWindowDays, "recency boost window in days")
	searchCmd.Flags().Float64Var(&searchRecencyBoost, "recency-boost", domain.DefaultRecencyMaxBoost, "maximum recency boost added to similarity")
	searchCmd.Flags().BoolVar(&searchSkipSync, "skip-sync", false, "search the index as-is without refreshing")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured, run 'quill settings' to set up the Roam connection")
	}

	opts := searchOptions(cmd)

	results, err := searchService.Search(cmd.Context(), query, opts)
	if err != nil {
		if errors.Is(err, domain.ErrIndexEmpty) {
			cmd.Println("The index is empty. Run 'quill sync --full' to build it.")
			return nil
		}
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

// searchOptions merges flags over configured defaults. A flag the user
// set explicitly always wins.
func searchOptions(cmd *cobra.Command) domain.SearchOptions {
	opts := domain.DefaultSearchOptions()
	opts.Limit = searchLimit
	opts.SkipSync = searchSkipSync

	if configStore != nil {
		if v := configStore.GetFloat("search.min_similarity"); v > 0 {
			opts.MinSimilarity = v
		}
		if v := configStore.GetFloat("search.recency_window_days"); v > 0 {
			opts.RecencyWindowDays = v
		}
		if v := configStore.GetFloat("search.recency_max_boost"); v > 0 {
			opts.RecencyMaxBoost = v
		}
	}

	if cmd.Flags().Changed("min-similarity") {
		opts.MinSimilarity = searchMinSimilarity
	}
	if cmd.Flags().Changed("recency-window") {
		opts.RecencyWindowDays = searchRecencyWindow
	}
	if cmd.Flags().Changed("recency-boost") {
		opts.RecencyMaxBoost = searchRecencyBoost
	}

	return opts
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		block := results[i].Block

		cmd.Printf("  [%d] %s (similarity %.2f, score %.2f)\n",
			results[i].Rank, block.PageTitle, results[i].Similarity, results[i].Score)
		if len(block.ParentChain) > 0 {
			cmd.Printf("      Path: %s\n", strings.Join(block.ParentChain, " > "))
		}
		cmd.Printf("      %s\n", snippet(block.Content))
		cmd.Println()
	}

	return nil
}

// snippet truncates long block content for table output.
func snippet(content string) string {
	const maxLen = 120
	content = strings.ReplaceAll(content, "\n", " ")
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "..."
}
