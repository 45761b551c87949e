//go:build unix

package fileguard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestProbeExclusive_HeldLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.xlsx")
	touch(t, path)

	holder, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	defer holder.Close()
	require.NoError(t, unix.Flock(int(holder.Fd()), unix.LOCK_EX))

	err = New().Check([]string{path})
	assert.True(t, IsLocked(err))

	require.NoError(t, unix.Flock(int(holder.Fd()), unix.LOCK_UN))
	assert.NoError(t, New().Check([]string{path}))
}

func TestProbeExclusive_ReadOnlySource(t *testing.T) {
	dir := t.TempDir()
	ops := filepath.Join(dir, "operations.xlsx")
	require.NoError(t, os.WriteFile(ops, []byte("x"), 0o444))

	assert.NoError(t, New(filepath.Join(dir, "history.xlsx")).Check([]string{ops}))
	assert.NoError(t, probeExclusive(ops, false))
}

func TestProbeExclusive_ReadOnlyProbeSeesHeldLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operations.xlsx")
	touch(t, path)

	holder, err := os.Open(path)
	require.NoError(t, err)
	defer holder.Close()
	require.NoError(t, unix.Flock(int(holder.Fd()), unix.LOCK_EX))

	assert.ErrorIs(t, probeExclusive(path, false), errHeld)
}
