package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the Roam connection, embedding provider and
search defaults. Settings are stored in ~/.quill/config.toml.

Keys use dot notation, for example:
  roam.graph                  Roam graph name
  roam.api_token              Roam API token
  embedding.provider          ollama (default) or openai
  embedding.model             embedding model name
  search.min_similarity       default similarity threshold
  search.recency_window_days  recency boost window
  search.recency_max_boost    maximum recency boost`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a setting value",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not available")
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Roam]")
	printSetting(cmd, "Graph", configStore.GetString("roam.graph"))
	if token := configStore.GetString("roam.api_token"); token != "" {
		cmd.Printf("  API Token: %s\n", maskAPIKey(token))
	} else {
		cmd.Printf("  API Token: (not set)\n")
	}
	cmd.Println()

	cmd.Println("[Embedding]")
	provider := configStore.GetString("embedding.provider")
	if provider == "" {
		provider = "ollama"
	}
	cmd.Printf("  Provider: %s\n", provider)
	printSetting(cmd, "Model", configStore.GetString("embedding.model"))
	printSetting(cmd, "Base URL", configStore.GetString("embedding.base_url"))
	cmd.Println()

	cmd.Println("[Search]")
	printFloatSetting(cmd, "Min similarity", configStore.GetFloat("search.min_similarity"))
	printFloatSetting(cmd, "Recency window (days)", configStore.GetFloat("search.recency_window_days"))
	printFloatSetting(cmd, "Recency max boost", configStore.GetFloat("search.recency_max_boost"))

	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not available")
	}

	val, ok := configStore.Get(args[0])
	if !ok {
		return fmt.Errorf("key %q is not set", args[0])
	}
	cmd.Printf("%v\n", val)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not available")
	}

	key, raw := args[0], args[1]
	if err := configStore.Set(key, parseSettingValue(raw)); err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}

	cmd.Printf("Set %s\n", key)
	return nil
}

// parseSettingValue stores booleans and numbers typed, everything else
// as a string.
func parseSettingValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func printSetting(cmd *cobra.Command, label, value string) {
	if value == "" {
		value = "(not set)"
	}
	cmd.Printf("  %s: %s\n", label, value)
}

func printFloatSetting(cmd *cobra.Command, label string, value float64) {
	if value == 0 {
		cmd.Printf("  %s: (default)\n", label)
		return
	}
	cmd.Printf("  %s: %g\n", label, value)
}

// maskAPIKey hides the middle of an API key for display.
func maskAPIKey(key string) string {
	if len(key) > 8 {
		return key[:4] + "..." + key[len(key)-4:]
	}
	return "***"
}
