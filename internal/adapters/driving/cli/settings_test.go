package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillgraph/quill-cli/internal/adapters/driven/config/file"
)

// setupTestConfig swaps the package-level config store for one backed by
// a temp directory. The returned cleanup restores the original.
func setupTestConfig(t *testing.T) func() {
	t.Helper()
	old := configStore

	store, err := file.NewConfigStore(t.TempDir())
	require.NoError(t, err)
	configStore = store

	return func() { configStore = old }
}

func TestSettingsCmd_Use(t *testing.T) {
	assert.Equal(t, "settings", settingsCmd.Use)
}

func TestSettingsCmd_ShowDisplaysSections(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	require.NoError(t, configStore.Set("roam.graph", "my-notes"))
	require.NoError(t, configStore.Set("roam.api_token", "roam-token-123456789"))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"settings", "show"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "[Roam]")
	assert.Contains(t, out, "my-notes")
	assert.Contains(t, out, "[Embedding]")
	assert.Contains(t, out, "[Search]")
	// Token is masked, never shown in full
	assert.NotContains(t, out, "roam-token-123456789")
	assert.Contains(t, out, "roam...6789")
}

func TestSettingsCmd_SetAndGet(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"settings", "set", "search.min_similarity", "0.5"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Set search.min_similarity")
	assert.InDelta(t, 0.5, configStore.GetFloat("search.min_similarity"), 1e-9)

	buf.Reset()
	rootCmd.SetArgs([]string{"settings", "get", "search.min_similarity"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "0.5")
}

func TestSettingsCmd_GetMissingKey(t *testing.T) {
	cleanup := setupTestConfig(t)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"settings", "get", "no.such.key"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not set")
}

func TestParseSettingValue_Types(t *testing.T) {
	assert.Equal(t, true, parseSettingValue("true"))
	assert.Equal(t, int64(42), parseSettingValue("42"))
	assert.Equal(t, 0.35, parseSettingValue("0.35"))
	assert.Equal(t, "ollama", parseSettingValue("ollama"))
}
