package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/llmbait/models"
)

func TestSummarize(t *testing.T) {
	sel := 1
	o := &models.SearchOutcome{
		Results: []models.SearchResult{
			{Rank: 1, RelevanceScore: 7.5},
			{Rank: 2, RelevanceScore: 9.2, IsInjected: true},
			{Rank: 3, RelevanceScore: 8.0, IsInjected: true},
		},
		SelectedIndex: &sel,
		TotalResults:  3,
		ElapsedMillis: 4200,
	}
	rr := summarize(o, 1)
	assert.True(t, rr.Success)
	assert.Equal(t, 2, rr.InjectedFound)
	assert.Equal(t, 9.2, rr.InjectedScore)
	assert.True(t, rr.PickedInjected)
	assert.Equal(t, 2, rr.PickedRank)

	o.SelectedIndex = nil
	rr = summarize(o, 2)
	assert.False(t, rr.PickedInjected)
	assert.Zero(t, rr.PickedRank)
}

func TestComputeStats(t *testing.T) {
	assert.Nil(t, computeStats([]runResult{{Success: false}}))

	stats := computeStats([]runResult{
		{Success: true, PickedInjected: true, ElapsedMs: 1000, InjectedScore: 9},
		{Success: true, ElapsedMs: 3000, InjectedScore: 5},
		{Success: false, Error: "boom"},
	})
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Successes)
	assert.Equal(t, 0.5, stats.WinRate)
	assert.Equal(t, 2000.0, stats.AvgElapsedMs)
	assert.Equal(t, 7.0, stats.AvgInjectedScore)
}

func TestLoadScenarios(t *testing.T) {
	set, err := loadScenarios("")
	require.NoError(t, err)
	assert.Equal(t, defaultScenarios, set)

	path := filepath.Join(t.TempDir(), "s.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"label":"x","query":"q","objective":"o"}]`), 0o600))
	set, err = loadScenarios(path)
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, "q", set[0].Query)

	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o600))
	_, err = loadScenarios(path)
	assert.Error(t, err)
}
