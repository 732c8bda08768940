package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nholik/case-sentinel/internal/fetch"
	"github.com/nholik/case-sentinel/internal/healthcheck"
	"github.com/nholik/case-sentinel/internal/metrics"
	"github.com/nholik/case-sentinel/internal/notify"
	"github.com/nholik/case-sentinel/internal/poller"
	"github.com/nholik/case-sentinel/internal/source"
	"github.com/rs/zerolog"
)

// Settings holds the process-wide polling parameters.
type Settings struct {
	PollInterval  time.Duration
	FetchTimeout  time.Duration
	NotifyTimeout time.Duration
}

// FetcherFactory builds the fetcher for one source.
type FetcherFactory func(src source.Source, timeout time.Duration) (fetch.Fetcher, error)

// Coordinator manages one Poller per source. Pollers share nothing but the
// state store and never wait on each other.
type Coordinator struct {
	logger         zerolog.Logger
	settings       Settings
	sources        []source.Source
	store          poller.Store
	notifier       notify.Notifier
	metrics        *metrics.Metrics
	tracker        *healthcheck.Tracker
	fetcherFactory FetcherFactory
	pollerOptions  []poller.Option
	pollers        map[source.ID]*poller.Poller
	pollerErrors   map[source.ID]error
	mu             sync.RWMutex
}

// Option customizes coordinator behavior.
type Option func(*Coordinator)

// WithNotifier enables update notifications for every poller.
func WithNotifier(notifier notify.Notifier) Option {
	return func(c *Coordinator) {
		c.notifier = notifier
	}
}

// WithMetrics shares a metrics collector with every poller.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithTracker shares a health tracker with every poller.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(c *Coordinator) {
		c.tracker = tracker
	}
}

// WithFetcherFactory overrides how per-source fetchers are built.
func WithFetcherFactory(factory FetcherFactory) Option {
	return func(c *Coordinator) {
		c.fetcherFactory = factory
	}
}

// WithPollerOptions appends options applied to every poller (primarily for testing).
func WithPollerOptions(opts ...poller.Option) Option {
	return func(c *Coordinator) {
		c.pollerOptions = append(c.pollerOptions, opts...)
	}
}

// New constructs a Coordinator for the given sources.
func New(logger zerolog.Logger, settings Settings, sources []source.Source, store poller.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:       logger,
		settings:     settings,
		sources:      sources,
		store:        store,
		pollers:      make(map[source.ID]*poller.Poller),
		pollerErrors: make(map[source.ID]error),
		fetcherFactory: func(src source.Source, timeout time.Duration) (fetch.Fetcher, error) {
			return fetch.NewHTTPFetcher(timeout, 0,
				fetch.WithLogger(logger.With().Str("source", string(src.ID)).Logger()))
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run starts all pollers in parallel and blocks until the context is canceled
// or a poller fails fatally. The first fatal error cancels the other pollers
// and is returned.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info().
		Int("sources", len(c.sources)).
		Msg("starting coordinator")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, src := range c.sources {
		wg.Add(1)
		go func(src source.Source) {
			defer wg.Done()
			if err := c.spawnPoller(ctx, src); err != nil {
				cancel()
			}
		}(src)
	}

	wg.Wait()
	c.logger.Info().Msg("all pollers stopped")

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, src := range c.sources {
		if err := c.pollerErrors[src.ID]; err != nil {
			return fmt.Errorf("poller %s: %w", src.ID, err)
		}
	}
	return nil
}

// spawnPoller creates and runs a single Poller for src.
func (c *Coordinator) spawnPoller(ctx context.Context, src source.Source) error {
	sourceLogger := c.logger.With().Str("source", string(src.ID)).Logger()

	// Determine timeout: per-source override or global default
	timeout := c.settings.FetchTimeout
	if src.Timeout > 0 {
		timeout = src.Timeout
	}

	fetcher, err := c.fetcherFactory(src, timeout)
	if err != nil {
		sourceLogger.Error().Err(err).Msg("failed to initialize fetcher")
		c.recordError(src.ID, err)
		return err
	}

	opts := []poller.Option{
		poller.WithFetcher(fetcher),
		poller.WithStore(c.store),
		poller.WithMetrics(c.metrics),
		poller.WithTracker(c.tracker),
	}
	if c.notifier != nil {
		opts = append(opts, poller.WithNotifier(c.notifier, c.settings.NotifyTimeout))
	}
	opts = append(opts, c.pollerOptions...)

	p := poller.New(sourceLogger, src, c.settings.PollInterval, opts...)

	c.mu.Lock()
	c.pollers[src.ID] = p
	c.mu.Unlock()

	sourceLogger.Info().Str("url", src.URL).Dur("timeout", timeout).Msg("poller started")

	if err := p.Run(ctx); err != nil {
		sourceLogger.Error().Err(err).Msg("poller exited with error")
		c.recordError(src.ID, err)
		return err
	}
	sourceLogger.Info().Msg("poller exited cleanly")
	return nil
}

// recordError records a per-source error for later reporting.
func (c *Coordinator) recordError(id source.ID, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pollerErrors[id] = err
}

// Pollers returns a copy of the pollers map.
func (c *Coordinator) Pollers() map[source.ID]*poller.Poller {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[source.ID]*poller.Poller, len(c.pollers))
	for k, v := range c.pollers {
		result[k] = v
	}
	return result
}
