package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	_, err := ResolvePath("")
	assert.Error(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	resolved, err := ResolvePath("~/sitebox")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "sitebox"), resolved)

	resolved, err = ResolvePath("a/../b")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(resolved))
	assert.Equal(t, "b", filepath.Base(resolved))
}

func TestEnsureDirAndExists(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "x", "y")

	require.NoError(t, EnsureDir(nested))
	assert.True(t, DirExists(nested))
	assert.False(t, FileExists(nested))

	file := filepath.Join(nested, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("hi"), 0o644))
	assert.True(t, FileExists(file))
	assert.False(t, DirExists(file))

	// EnsureDir on an existing dir is a no-op
	require.NoError(t, EnsureDir(nested))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "sub", "dst.txt")

	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))
	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
