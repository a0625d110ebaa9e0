// Package caldr is a recurrence and conflict engine for calendar events. It
// expands recurrence rules into concrete occurrences, detects overlaps
// between a candidate event and an existing calendar, and proposes minimal
// reschedulings when conflicts are found.
package caldr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/caldr-dev/caldr/config"
	"github.com/caldr-dev/caldr/conflict"
	"github.com/caldr-dev/caldr/recurrence"
	"github.com/caldr-dev/caldr/storage"
	"github.com/caldr-dev/caldr/storage/memory"
	"github.com/caldr-dev/caldr/storage/sqlite"
)

// Options configures an Engine. The zero value of every field has a working
// default: an in-memory repository, the default expansion and conflict
// configurations, no holiday calendar and slog's default logger.
type Options struct {
	Repository storage.Repository
	Expansion  recurrence.Config
	Conflict   conflict.Config
	Holidays   recurrence.HolidayProvider
	Logger     *slog.Logger
}

// Engine bundles the generator, detector and resolver behind one façade and
// owns the shared expansion cache.
type Engine struct {
	repo      storage.Repository
	generator *recurrence.Generator
	cache     *recurrence.Cache
	detector  *conflict.Detector
	resolver  *conflict.Resolver
	logger    *slog.Logger
}

// New assembles an engine from options.
func New(opts Options) *Engine {
	if opts.Repository == nil {
		opts.Repository = memory.New()
	}
	// Only a fully zero expansion config means "use the defaults"; a
	// partially filled one keeps its fields and the generator defaults the
	// rest individually. Conflict config is always defaulted per field by
	// the detector and resolver.
	if opts.Expansion == (recurrence.Config{}) {
		opts.Expansion = recurrence.DefaultConfig
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	var cache *recurrence.Cache
	if opts.Expansion.CacheEnabled {
		cache = recurrence.NewCache(opts.Expansion.CacheConfig)
	}

	generator := recurrence.NewGenerator(opts.Expansion, opts.Holidays)
	detector := conflict.NewDetector(opts.Repository, generator, cache, opts.Conflict, opts.Logger)

	return &Engine{
		repo:      opts.Repository,
		generator: generator,
		cache:     cache,
		detector:  detector,
		resolver:  conflict.NewResolver(detector, opts.Conflict, opts.Logger),
		logger:    opts.Logger,
	}
}

// NewFromConfig assembles an engine from a loaded configuration file,
// constructing the storage backend it names.
func NewFromConfig(f *config.File, holidays recurrence.HolidayProvider, logger *slog.Logger) (*Engine, error) {
	var repo storage.Repository
	switch f.Storage.Backend {
	case config.BackendSQLite:
		store, err := sqlite.New(f.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("caldr: opening sqlite storage: %w", err)
		}
		repo = store
	default:
		repo = memory.New()
	}

	return New(Options{
		Repository: repo,
		Expansion:  f.ExpansionConfig(),
		Conflict:   f.ConflictConfig(),
		Holidays:   holidays,
		Logger:     logger,
	}), nil
}

// Repository exposes the underlying event store for CRUD access.
func (e *Engine) Repository() storage.Repository {
	return e.repo
}

// RecurringDates expands an event's recurrence rule into occurrences up to
// the given bound. Non-recurring events yield their single occurrence when it
// falls inside the bound. Results are served from the cache when possible.
//
// When the safety cap cuts the series short, the capped prefix is returned
// together with a *recurrence.TruncatedError; truncated results are never
// cached.
func (e *Engine) RecurringDates(event storage.Event, until time.Time, opts recurrence.ExpansionOptions) ([]recurrence.Occurrence, error) {
	if e.cache == nil {
		return e.generator.Expand(event, until, opts)
	}

	key := recurrence.Key(event, until, opts)
	if occs, ok := e.cache.Get(key); ok {
		return occs, nil
	}
	occs, err := e.generator.Expand(event, until, opts)
	if err != nil {
		return occs, err
	}
	e.cache.Set(key, occs)
	return occs, nil
}

// DetectConflicts expands the candidate and every event in the calendar and
// reports each overlapping occurrence pair. excludeEventID names a stored
// event to ignore, typically the candidate's own persisted version during an
// update.
func (e *Engine) DetectConflicts(ctx context.Context, calendarID string, candidate storage.Event, excludeEventID string, opts recurrence.ExpansionOptions) ([]conflict.Report, error) {
	return e.detector.DetectConflicts(ctx, calendarID, candidate, excludeEventID, opts)
}

// SuggestResolutions proposes ways to reschedule a conflicted candidate:
// minimal forward and backward shifts that clear the calendar, and a
// shortened slot inside the original range when a wide enough gap exists.
func (e *Engine) SuggestResolutions(ctx context.Context, calendarID string, candidate storage.Event, excludeEventID string, conflicts []conflict.Report, opts recurrence.ExpansionOptions) ([]conflict.Suggestion, error) {
	return e.resolver.SuggestResolutions(ctx, calendarID, candidate, excludeEventID, conflicts, opts)
}

// CacheStats reports expansion cache statistics. The zero value is returned
// when caching is disabled.
func (e *Engine) CacheStats() recurrence.CacheStats {
	if e.cache == nil {
		return recurrence.CacheStats{}
	}
	return e.cache.Stats()
}

// Close releases the cache's cleanup goroutine and closes the repository if
// it holds external resources.
func (e *Engine) Close() error {
	if e.cache != nil {
		e.cache.Close()
	}
	if closer, ok := e.repo.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
