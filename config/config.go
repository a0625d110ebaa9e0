// Package config loads engine configuration from YAML. A file selects one of
// the built-in profiles and may override individual knobs on top of it, so a
// minimal deployment ships a two-line file and a tuned one spells out only
// what differs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/caldr-dev/caldr/conflict"
	"github.com/caldr-dev/caldr/recurrence"
)

// Profile names accepted in the YAML file.
const (
	ProfileDefault         = "default"
	ProfileHighPerformance = "high-performance"
	ProfileLowMemory       = "low-memory"
	ProfileNoCache         = "no-cache"
)

// Storage backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Duration wraps time.Duration so YAML values can be written as "15m" or
// "720h" instead of nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// File mirrors the YAML document. Override fields are pointers so that an
// absent key keeps the profile's value while an explicit zero overrides it.
type File struct {
	Profile string  `yaml:"profile"`
	Storage Storage `yaml:"storage"`

	Expansion struct {
		Horizon        *Duration `yaml:"horizon"`
		MaxOccurrences *int      `yaml:"max_occurrences"`
		Cache          struct {
			Enabled         *bool     `yaml:"enabled"`
			TTL             *Duration `yaml:"ttl"`
			MaxEntries      *int      `yaml:"max_entries"`
			CleanupInterval *Duration `yaml:"cleanup_interval"`
		} `yaml:"cache"`
	} `yaml:"expansion"`

	Conflict struct {
		Window               *Duration  `yaml:"window"`
		SearchIncrements     []Duration `yaml:"search_increments"`
		MaxSearchAttempts    *int       `yaml:"max_search_attempts"`
		MinShortenDuration   *Duration  `yaml:"min_shorten_duration"`
		ExpansionConcurrency *int       `yaml:"expansion_concurrency"`
	} `yaml:"conflict"`
}

// Storage selects the event repository backend.
type Storage struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and validates it.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	if f.Profile == "" {
		f.Profile = ProfileDefault
	}
	if f.Storage.Backend == "" {
		f.Storage.Backend = BackendMemory
	}

	switch f.Profile {
	case ProfileDefault, ProfileHighPerformance, ProfileLowMemory, ProfileNoCache:
	default:
		return nil, fmt.Errorf("config: unknown profile %q", f.Profile)
	}
	switch f.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if f.Storage.Path == "" {
			return nil, fmt.Errorf("config: sqlite backend requires storage.path")
		}
	default:
		return nil, fmt.Errorf("config: unknown storage backend %q", f.Storage.Backend)
	}

	return &f, nil
}

// ExpansionConfig materializes the recurrence configuration: profile defaults
// with the file's overrides applied.
func (f *File) ExpansionConfig() recurrence.Config {
	cfg := expansionProfile(f.Profile)

	if f.Expansion.Horizon != nil {
		cfg.DefaultHorizon = time.Duration(*f.Expansion.Horizon)
	}
	if f.Expansion.MaxOccurrences != nil {
		cfg.MaxOccurrences = *f.Expansion.MaxOccurrences
	}
	if f.Expansion.Cache.Enabled != nil {
		cfg.CacheEnabled = *f.Expansion.Cache.Enabled
	}
	if f.Expansion.Cache.TTL != nil {
		cfg.CacheConfig.TTL = time.Duration(*f.Expansion.Cache.TTL)
	}
	if f.Expansion.Cache.MaxEntries != nil {
		cfg.CacheConfig.MaxEntries = *f.Expansion.Cache.MaxEntries
	}
	if f.Expansion.Cache.CleanupInterval != nil {
		cfg.CacheConfig.CleanupInterval = time.Duration(*f.Expansion.Cache.CleanupInterval)
	}
	return cfg
}

// ConflictConfig materializes the conflict configuration the same way.
func (f *File) ConflictConfig() conflict.Config {
	cfg := conflict.DefaultConfig

	if f.Conflict.Window != nil {
		cfg.DefaultWindow = time.Duration(*f.Conflict.Window)
	}
	if len(f.Conflict.SearchIncrements) > 0 {
		increments := make([]time.Duration, len(f.Conflict.SearchIncrements))
		for i, d := range f.Conflict.SearchIncrements {
			increments[i] = time.Duration(d)
		}
		cfg.SearchIncrements = increments
	}
	if f.Conflict.MaxSearchAttempts != nil {
		cfg.MaxSearchAttempts = *f.Conflict.MaxSearchAttempts
	}
	if f.Conflict.MinShortenDuration != nil {
		cfg.MinShortenDuration = time.Duration(*f.Conflict.MinShortenDuration)
	}
	if f.Conflict.ExpansionConcurrency != nil {
		cfg.ExpansionConcurrency = *f.Conflict.ExpansionConcurrency
	}
	return cfg
}

func expansionProfile(name string) recurrence.Config {
	switch name {
	case ProfileHighPerformance:
		return recurrence.HighPerformanceConfig
	case ProfileLowMemory:
		return recurrence.LowMemoryConfig
	case ProfileNoCache:
		return recurrence.DisabledCacheConfig
	default:
		return recurrence.DefaultConfig
	}
}
