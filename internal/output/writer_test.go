package output

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdoutWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewStdoutWriter(&buf)

	data := []byte("0.1 12.5\n0.2 13.0\n")
	require.NoError(t, w.Write(data))
	assert.Equal(t, string(data), buf.String())
}

func TestStdoutWriter_NilDefault(t *testing.T) {
	w := NewStdoutWriter(nil)
	assert.NotNil(t, w)
}

func TestFileWriter_Write(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed", "sample02.dat")

	w := NewFileWriter(path)
	data := []byte("# q_A^-1 I\n0.1 12.5\n")
	require.NoError(t, w.Write(data))

	got, err := os.ReadFile(path) //nolint:gosec // test
	require.NoError(t, err)
	assert.Equal(t, string(data), string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestFileWriter_NoTemporaryFilesLeft(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, NewFileWriter(filepath.Join(dir, "a.dat")).Write([]byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.dat", entries[0].Name())
}

func TestFileWriter_CustomPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.dat")

	w := NewFileWriter(path, WithPermissions(0o600))
	require.NoError(t, w.Write([]byte("data")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileWriter_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample01.dat")

	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644)) //nolint:gosec // test

	err := NewFileWriter(path).Write([]byte("new"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExists))

	got, err := os.ReadFile(path) //nolint:gosec // test
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

func TestFileWriter_WriteExclusiveRefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample01.dat")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644)) //nolint:gosec // test

	err := NewFileWriter(path).writeExclusive([]byte("new"))
	assert.ErrorIs(t, err, ErrExists)
}

func TestFileWriter_Path(t *testing.T) {
	w := NewFileWriter("/tmp/test.dat")
	assert.Equal(t, "/tmp/test.dat", w.Path())
}

func TestFileWriter_InvalidPath(t *testing.T) {
	w := NewFileWriter("/dev/null/impossible/path.dat")
	err := w.Write([]byte("data"))
	assert.Error(t, err)
}
