package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldr-dev/caldr/recurrence"
)

func TestParse_EmptyUsesDefaults(t *testing.T) {
	f, err := Parse([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, ProfileDefault, f.Profile)
	assert.Equal(t, BackendMemory, f.Storage.Backend)
	assert.Equal(t, recurrence.DefaultConfig, f.ExpansionConfig())
}

func TestParse_ProfileSelection(t *testing.T) {
	f, err := Parse([]byte("profile: low-memory\n"))
	require.NoError(t, err)
	assert.Equal(t, recurrence.LowMemoryConfig, f.ExpansionConfig())

	f, err = Parse([]byte("profile: no-cache\n"))
	require.NoError(t, err)
	assert.False(t, f.ExpansionConfig().CacheEnabled)
}

func TestParse_OverridesOnTopOfProfile(t *testing.T) {
	doc := `
profile: high-performance
expansion:
  max_occurrences: 250
  cache:
    ttl: 1m
conflict:
  search_increments: [5m, 20m]
  max_search_attempts: 12
`
	f, err := Parse([]byte(doc))
	require.NoError(t, err)

	exp := f.ExpansionConfig()
	assert.Equal(t, 250, exp.MaxOccurrences)
	assert.Equal(t, time.Minute, exp.CacheConfig.TTL)
	// Untouched knobs keep the profile's values.
	assert.Equal(t, recurrence.HighPerformanceConfig.DefaultHorizon, exp.DefaultHorizon)
	assert.Equal(t, recurrence.HighPerformanceConfig.CacheConfig.MaxEntries, exp.CacheConfig.MaxEntries)

	det := f.ConflictConfig()
	assert.Equal(t, []time.Duration{5 * time.Minute, 20 * time.Minute}, det.SearchIncrements)
	assert.Equal(t, 12, det.MaxSearchAttempts)
	assert.Equal(t, 15*time.Minute, det.MinShortenDuration)
}

func TestParse_ExplicitZeroOverrides(t *testing.T) {
	doc := `
expansion:
  cache:
    enabled: false
`
	f, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.False(t, f.ExpansionConfig().CacheEnabled)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown profile", "profile: turbo\n"},
		{"unknown backend", "storage:\n  backend: redis\n"},
		{"sqlite without path", "storage:\n  backend: sqlite\n"},
		{"bad duration", "expansion:\n  horizon: soon\n"},
		{"malformed yaml", "profile: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caldr.yaml")
	doc := "profile: default\nstorage:\n  backend: sqlite\n  path: /tmp/caldr.db\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, f.Storage.Backend)
	assert.Equal(t, "/tmp/caldr.db", f.Storage.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
