package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestJsonRoundTrip(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "sample.json")

	require.NoError(t, fs.WriteJsonFile(path, sample{Name: "a", Count: 2}))

	var got sample
	require.NoError(t, fs.ReadJsonFile(path, &got))
	assert.Equal(t, sample{Name: "a", Count: 2}, got)

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestIsFileExists(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "present")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	ok, err := fs.IsFileExists(path)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = fs.IsFileExists(path + ".missing")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestReadYamlFile_KeepsUnsetFields(t *testing.T) {
	fs := NewFileService()
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: b\n"), 0600))

	got := sample{Count: 7}
	require.NoError(t, fs.ReadYamlFile(path, &got))
	assert.Equal(t, sample{Name: "b", Count: 7}, got)

	require.NoError(t, os.WriteFile(path, []byte("unknown: 1\n"), 0600))
	assert.Error(t, fs.ReadYamlFile(path, &got))

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0600))
	assert.NoError(t, fs.ReadYamlFile(empty, &got))
}
