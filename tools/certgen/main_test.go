package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/InventarisHub/internal/certgen"
)

func TestSplitHosts(t *testing.T) {
	assert.Equal(t, []string{"localhost", "127.0.0.1"}, splitHosts(" localhost, ,127.0.0.1,"))
	assert.Nil(t, splitHosts(""))
}

func TestRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	require.NoError(t, run(dir, []string{"localhost"}))

	for _, name := range []string{certgen.CAFile, certgen.CAKeyFile, certgen.ServerCertFile, certgen.ServerKeyFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	assert.Error(t, run(dir, nil))
}
