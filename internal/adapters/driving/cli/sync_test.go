package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quillgraph/quill-cli/internal/core/domain"
)

func TestSyncCmd_Use(t *testing.T) {
	assert.Equal(t, "sync", syncCmd.Use)
}

func TestSyncCmd_HasFullFlag(t *testing.T) {
	flag := syncCmd.Flags().Lookup("full")
	assert.NotNil(t, flag, "full flag should exist")
	assert.Equal(t, "false", flag.DefValue)
}

func TestSyncCmd_IncrementalByDefault(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	mock := syncService.(*mockSyncService)
	assert.Equal(t, 1, mock.incrementalCalls)
	assert.Equal(t, 0, mock.fullCalls)
	assert.Contains(t, buf.String(), "Synced 2 blocks")
}

func TestSyncCmd_FullFlag(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync", "--full"})
	defer func() {
		rootCmd.SetArgs(nil)
		syncFull = false
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	mock := syncService.(*mockSyncService)
	assert.Equal(t, 1, mock.fullCalls)
	assert.Equal(t, 0, mock.incrementalCalls)
	assert.Contains(t, buf.String(), "Synced 10 blocks")
}

func TestSyncCmd_FallsBackToFullWhenUninitialized(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	syncService.(*mockSyncService).incrementalErr = domain.ErrIndexNotInitialized

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	mock := syncService.(*mockSyncService)
	assert.Equal(t, 1, mock.incrementalCalls)
	assert.Equal(t, 1, mock.fullCalls)
	assert.Contains(t, buf.String(), "full sync instead")
}

func TestSyncCmd_AlreadyRunning(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	syncService.(*mockSyncService).incrementalErr = domain.ErrSyncInProgress

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "already running")
}

func TestSyncCmd_ServiceNotConfigured(t *testing.T) {
	oldService := syncService
	syncService = nil
	defer func() {
		syncService = oldService
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"sync"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
