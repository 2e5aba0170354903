package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLocker_LockUnlock(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	require.NoError(t, l.Lock("block"))
	require.NoError(t, l.Unlock("block"))
	require.NoError(t, l.Lock("block"))
	require.NoError(t, l.Unlock("block"))
}

func TestFileLocker_LockRejectsWhenAlreadyHeldByThisProcess(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	require.NoError(t, l.Lock("block"))
	assert.Error(t, l.Lock("block"))
	require.NoError(t, l.Unlock("block"))
}

func TestFileLocker_LockRejectsWhenHeldByLiveOtherProcess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "block.lock")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	l := New(dir)
	assert.Error(t, l.Lock("block"))
}

func TestFileLocker_LockReclaimsStaleLockFromDeadProcess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "block.lock")
	// pid 1 belongs to init inside most containers and sandboxes, so pick
	// an implausibly large pid instead to stand in for a dead process.
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0o644))

	l := New(dir)
	require.NoError(t, l.Lock("block"))
	require.NoError(t, l.Unlock("block"))
}

func TestFileLocker_UnlockWithoutLockIsNoop(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	assert.NoError(t, l.Unlock("block"))
}
