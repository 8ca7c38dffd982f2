// Package cli implements the quill command line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quillgraph/quill-cli/internal/adapters/driven/config/file"
	"github.com/quillgraph/quill-cli/internal/adapters/driven/embedding/ollama"
	"github.com/quillgraph/quill-cli/internal/adapters/driven/embedding/openai"
	"github.com/quillgraph/quill-cli/internal/adapters/driven/graph/roam"
	"github.com/quillgraph/quill-cli/internal/adapters/driven/storage/sqlite"
	"github.com/quillgraph/quill-cli/internal/core/ports/driven"
	"github.com/quillgraph/quill-cli/internal/core/ports/driving"
	"github.com/quillgraph/quill-cli/internal/core/services"
	"github.com/quillgraph/quill-cli/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var verbose bool

// Services wired at startup. Commands nil-check these so informational
// commands (version, settings) still work when wiring fails, e.g. before
// the Roam token is configured.
var (
	configStore   driven.ConfigStore
	searchService driving.SearchService
	syncService   driving.SyncService
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Semantic search over your Roam graph",
	Long: `Quill maintains a local vector index of a Roam Research graph and
searches it by meaning. Results are ranked by semantic similarity with a
boost for recently edited blocks.

The index lives in ~/.quill and is kept up to date with incremental
syncs against the Roam backend API.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Execute wires the services and runs the root command.
func Execute() error {
	if err := initServices(); err != nil {
		// Commands that need the missing services report it themselves.
		logger.Debug("Service wiring incomplete: %v", err)
	}
	return rootCmd.Execute()
}

// initServices builds the adapter stack from configuration. Credentials
// come from the config file with environment variable fallback.
func initServices() error {
	store, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	configStore = store

	token := store.GetString("roam.api_token")
	if token == "" {
		token = os.Getenv("ROAM_API_TOKEN")
	}
	graphName := store.GetString("roam.graph")
	if graphName == "" {
		graphName = os.Getenv("ROAM_GRAPH_NAME")
	}

	embedder, err := buildEmbedder(store)
	if err != nil {
		return err
	}

	graphClient, err := roam.NewClient(roam.Config{
		BaseURL: store.GetString("roam.base_url"),
		Token:   token,
		Graph:   graphName,
	})
	if err != nil {
		return fmt.Errorf("roam client: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	dataDir := filepath.Join(home, ".quill", "data")

	vectorStore, err := sqlite.NewStore(dataDir, graphName, embedder.Dimensions())
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}

	coordinator := services.NewSyncCoordinator(graphClient, vectorStore, embedder, services.SyncConfig{
		EmbedBatchSize: store.GetInt("sync.embed_batch_size"),
		CommitSize:     store.GetInt("sync.commit_size"),
	})
	syncService = coordinator
	searchService = services.NewSearchRanker(vectorStore, embedder, coordinator)

	return nil
}

// buildEmbedder constructs the embedding service selected by configuration.
// Defaults to a local Ollama instance.
func buildEmbedder(cfg driven.ConfigStore) (driven.EmbeddingService, error) {
	provider := cfg.GetString("embedding.provider")
	switch provider {
	case "", "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.GetString("embedding.base_url"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
		}), nil
	case "openai":
		apiKey := cfg.GetString("embedding.api_key")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return openai.NewEmbeddingService(openai.Config{
			APIKey:     apiKey,
			BaseURL:    cfg.GetString("embedding.base_url"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}
