package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inject.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadInjected(t *testing.T) {
	entries, err := loadInjected("")
	require.NoError(t, err)
	assert.Nil(t, entries)

	path := writeFile(t, `[{"title":"Fedora","url":"https://fedora.example","description":"Fast and free","insert_rank":1}]`)
	entries, err = loadInjected(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Fedora", entries[0].Title)
	assert.Equal(t, 1, entries[0].InsertionRank)

	_, err = loadInjected(writeFile(t, `{"title":"not an array"}`))
	assert.Error(t, err)

	_, err = loadInjected(writeFile(t, `[{"description":"no title"}]`))
	assert.Error(t, err)

	_, err = loadInjected(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestBuildSearchRequest(t *testing.T) {
	req, err := buildSearchRequest(searchFlags{query: "q", objective: "o", noWait: true})
	require.NoError(t, err)
	assert.Equal(t, "q", req.SearchPrompt)
	assert.Equal(t, "o", req.Objective)
	assert.False(t, req.ShouldWait())
	assert.Equal(t, 8, req.MaxResults, "defaults fill unset fields")

	req, err = buildSearchRequest(searchFlags{query: "q", objective: "o", maxResults: 3})
	require.NoError(t, err)
	assert.True(t, req.ShouldWait())
	assert.Equal(t, 3, req.MaxResults)
}
