package cryptox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrGenerateSecret(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nested", "hmac.secret")

	first, err := LoadOrGenerateSecret(file)
	require.NoError(t, err)
	require.Len(t, first, 43)

	info, err := os.Stat(file)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadOrGenerateSecret(file)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestLoadOrGenerateSecret_ExistingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "hmac.secret")
	require.NoError(t, os.WriteFile(file, []byte("  hand-written\n"), 0600))

	secret, err := LoadOrGenerateSecret(file)
	require.NoError(t, err)
	require.Equal(t, []byte("hand-written"), secret)
}

func TestLoadOrGenerateSecret_EmptyFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "hmac.secret")
	require.NoError(t, os.WriteFile(file, []byte("\n"), 0600))

	_, err := LoadOrGenerateSecret(file)
	require.Error(t, err)
}
