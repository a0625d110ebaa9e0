package recurrence

import "time"

// Config holds tuning options for occurrence expansion.
type Config struct {
	// DefaultHorizon caps expansion of rules that carry neither UNTIL nor
	// COUNT, measured from the event's start. Without it an unbounded
	// rule would never terminate.
	DefaultHorizon time.Duration

	// MaxOccurrences is the absolute per-expansion safety cap, applied on
	// top of any rule or per-call bound.
	MaxOccurrences int

	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig
}

// DefaultConfig provides sensible defaults for production use.
var DefaultConfig = Config{
	DefaultHorizon: 2 * 365 * 24 * time.Hour,
	MaxOccurrences: 1000,
	CacheEnabled:   true,
	CacheConfig:    DefaultCacheConfig,
}

// HighPerformanceConfig trades expansion depth for speed in high-traffic
// scenarios.
var HighPerformanceConfig = Config{
	DefaultHorizon: 365 * 24 * time.Hour,
	MaxOccurrences: 500,
	CacheEnabled:   true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute,
		MaxEntries:      5000,
		CleanupInterval: 10 * time.Minute,
	},
}

// LowMemoryConfig is optimized for memory-constrained environments.
var LowMemoryConfig = Config{
	DefaultHorizon: 2 * 365 * 24 * time.Hour,
	MaxOccurrences: 1000,
	CacheEnabled:   true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 2 * time.Minute,
	},
}

// DisabledCacheConfig turns off caching entirely.
var DisabledCacheConfig = Config{
	DefaultHorizon: 2 * 365 * 24 * time.Hour,
	MaxOccurrences: 1000,
	CacheEnabled:   false,
}
