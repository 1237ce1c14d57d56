package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_NoFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))

	tok, ok := s.Token()
	assert.False(t, ok)
	assert.Empty(t, tok)
	assert.NoError(t, s.Clear())
}

func TestSetToken_PersistsAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	require.NoError(t, NewStore(path).SetToken("abc"))

	tok, ok := NewStore(path).Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]string
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "abc", onDisk[TokenKey])

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSetToken_Empty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))
	assert.Error(t, s.SetToken(""))
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewStore(path)
	require.NoError(t, s.SetToken("abc"))

	require.NoError(t, s.Clear())

	_, ok := s.Token()
	assert.False(t, ok)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestClear_KeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":"abc","theme":"dark"}`), 0600))
	s := NewStore(path)

	require.NoError(t, s.Clear())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark"}`, string(raw))
}

func TestToken_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not-json"), 0600))
	s := NewStore(path)

	_, ok := s.Token()
	assert.False(t, ok)

	require.NoError(t, s.SetToken("fresh"))
	tok, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "fresh", tok)
}

func TestConcurrentReplace(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "session.json"))
	tokens := []string{"one", "two", "three", "four"}

	var wg sync.WaitGroup
	for _, tok := range tokens {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			_ = s.SetToken(tok)
		}(tok)
	}
	wg.Wait()

	got, ok := s.Token()
	require.True(t, ok)
	assert.Contains(t, tokens, got)
}
