package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRemoveSocketIgnoresMissingPath(t *testing.T) {
	// Must not panic or log a failure for a path that was never created.
	removeSocket(filepath.Join(t.TempDir(), "never-existed.sock"))
}

func TestRemoveSocketIgnoresEmptyPath(t *testing.T) {
	removeSocket("")
}

func TestRemoveSocketRemovesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leftover.sock")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	removeSocket(path)

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestRemoveSysvShmNoopsOnZeroID(t *testing.T) {
	// id 0 means "never created" (spec §4.7); must be a safe no-op, not
	// an attempt to IPC_RMID a real id 0 segment.
	removeSysvShm(0)
}

func TestRemoveSysvSemNoopsOnZeroID(t *testing.T) {
	removeSysvSem(0)
}

func TestCleanupRunsEveryStepEvenWithNoResourcesCreated(t *testing.T) {
	// Every field zero/empty is the common case for a server that never
	// got far enough to create a shm segment or semaphore set; cleanup
	// must not fail or panic.
	cleanup(Resources{})
}
