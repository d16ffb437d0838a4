package os_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tmos "github.com/stvaults/vaulthub/libs/os"
)

func TestEnsureDir(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "a", "b")

	require.NoError(t, tmos.EnsureDir(dir, 0700))
	assert.True(t, tmos.FileExists(dir))
	// existing directories are left alone
	require.NoError(t, tmos.EnsureDir(dir, 0700))

	file := filepath.Join(tmp, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))
	assert.Error(t, tmos.EnsureDir(filepath.Join(file, "sub"), 0700))
}

func TestFileExists(t *testing.T) {
	tmp := t.TempDir()
	assert.False(t, tmos.FileExists(filepath.Join(tmp, "missing")))
	assert.True(t, tmos.FileExists(tmp))
}
