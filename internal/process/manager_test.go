package process

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_PIDLifecycle(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "nested"))

	assert.Equal(t, 0, m.ReadPID())
	assert.False(t, m.IsRunning())

	require.NoError(t, m.WritePID())
	assert.Equal(t, os.Getpid(), m.ReadPID())
	assert.True(t, m.IsRunning(), "the test process is alive")

	info, err := os.Stat(m.PIDFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	m.CleanupPID()
	assert.NoFileExists(t, m.PIDFile())
	assert.NoError(t, m.Stop(), "stopping without a PID file is a no-op")
}

func TestManager_StalePID(t *testing.T) {
	m := NewManager(t.TempDir())

	// a PID far above any default pid_max
	require.NoError(t, os.WriteFile(m.PIDFile(), []byte(strconv.Itoa(1<<30)), 0o600))

	assert.False(t, m.IsRunning())
	assert.NoFileExists(t, m.PIDFile(), "stale PID files are removed")
}

func TestManager_InvalidPID(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, os.WriteFile(m.PIDFile(), []byte("not-a-pid"), 0o600))

	assert.Equal(t, 0, m.ReadPID())
	assert.False(t, m.IsRunning())
}
