package poller

import (
	"context"
	"errors"
	"time"

	"github.com/nholik/case-sentinel/internal/fetch"
	"github.com/nholik/case-sentinel/internal/healthcheck"
	"github.com/nholik/case-sentinel/internal/metrics"
	"github.com/nholik/case-sentinel/internal/notify"
	"github.com/nholik/case-sentinel/internal/record"
	"github.com/nholik/case-sentinel/internal/source"
	"github.com/rs/zerolog"
)

const defaultNotifyTimeout = 15 * time.Second

// Ticker is the minimal interface needed for driving the poller loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// Store is the state the poller reads from and commits to.
type Store interface {
	Get(id source.ID) (record.Record, bool)
	Commit(ctx context.Context, id source.ID, rec record.Record) error
}

// Poller drives the fetch, extract, detect, commit and notify cycle for one source.
type Poller struct {
	logger        zerolog.Logger
	src           source.Source
	pollInterval  time.Duration
	tickerFactory func(time.Duration) Ticker
	runOnce       func(context.Context) error
	fetcher       fetch.Fetcher
	store         Store
	notifier      notify.Notifier
	notifyTimeout time.Duration
	metrics       *metrics.Metrics
	tracker       *healthcheck.Tracker
}

// Option customizes poller behavior.
type Option func(*Poller)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(p *Poller) {
		p.tickerFactory = factory
	}
}

// WithRunOnce overrides the single-cycle execution step.
func WithRunOnce(runOnce func(context.Context) error) Option {
	return func(p *Poller) {
		p.runOnce = runOnce
	}
}

// WithFetcher sets the fetcher used by the default cycle.
func WithFetcher(fetcher fetch.Fetcher) Option {
	return func(p *Poller) {
		p.fetcher = fetcher
	}
}

// WithStore sets the state store records are committed to.
func WithStore(store Store) Option {
	return func(p *Poller) {
		p.store = store
	}
}

// WithNotifier enables update notifications. A nil notifier disables them.
func WithNotifier(notifier notify.Notifier, timeout time.Duration) Option {
	return func(p *Poller) {
		p.notifier = notifier
		if timeout > 0 {
			p.notifyTimeout = timeout
		}
	}
}

// WithMetrics records cycle metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

// WithTracker records cycle timing for health endpoints.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(p *Poller) {
		p.tracker = tracker
	}
}

// New constructs a Poller for src with the given logger and poll interval.
func New(logger zerolog.Logger, src source.Source, pollInterval time.Duration, opts ...Option) *Poller {
	p := &Poller{
		logger:        logger,
		src:           src,
		pollInterval:  pollInterval,
		notifyTimeout: defaultNotifyTimeout,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
	}
	p.runOnce = p.defaultRunOnce

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Source returns the polled source.
func (p *Poller) Source() source.Source {
	return p.src
}

// Run polls until the context is canceled. Cycles run on a single goroutine,
// so they never overlap; a tick that fires during a slow cycle is held by the
// ticker and at most one is pending. Runtime errors abort only the current
// cycle. Any other error (a failed state write) stops the poller.
func (p *Poller) Run(ctx context.Context) error {
	if p.pollInterval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}

	// Run immediately on startup
	if err := p.cycle(ctx); err != nil {
		return err
	}

	ticker := p.tickerFactory(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("poller stopped")
			return nil
		case <-ticker.C():
			if err := p.cycle(ctx); err != nil {
				return err
			}
		}
	}
}

// RunOnce executes a single cycle of the poller.
func (p *Poller) RunOnce(ctx context.Context) error {
	return p.runOnce(ctx)
}

func (p *Poller) cycle(ctx context.Context) error {
	err := p.RunOnce(ctx)
	if err == nil {
		return nil
	}

	var runtimeErr *RuntimeError
	if errors.As(err, &runtimeErr) {
		if ctx.Err() != nil {
			return nil
		}
		p.logger.Warn().Err(err).Str("op", runtimeErr.Op).Msg("poll cycle aborted")
		return nil
	}

	p.logger.Error().Err(err).Msg("poll cycle failed")
	return err
}

func (p *Poller) defaultRunOnce(ctx context.Context) error {
	if p.fetcher == nil || p.store == nil {
		return errors.New("poller requires a fetcher and a store")
	}

	id := p.src.ID
	start := time.Now()

	p.logger.Debug().Str("url", p.src.URL).Msg("fetching")
	body, err := p.fetcher.Fetch(ctx, p.src.URL)
	if err != nil {
		p.metrics.IncFetchErrors(string(id))
		p.tracker.RecordCycle(string(id), time.Since(start), err)
		return wrapRuntime("fetch", err)
	}

	candidate, err := p.src.Extractor.Extract(body)
	if err != nil {
		p.metrics.IncExtractionErrors(string(id))
		p.tracker.RecordCycle(string(id), time.Since(start), err)
		return wrapRuntime("extract", err)
	}

	var previous *record.Record
	if stored, ok := p.store.Get(id); ok {
		previous = &stored
	}
	updated := record.IsUpdated(candidate, previous)
	rec := candidate.WithUpdated(updated)

	// The commit must finish even if shutdown starts mid-cycle.
	if err := p.store.Commit(context.WithoutCancel(ctx), id, rec); err != nil {
		return err
	}

	duration := time.Since(start)
	p.logger.Info().
		Interface("record", rec).
		Bool("updated_data", updated).
		Dur("duration", duration).
		Msg("set state")

	p.metrics.ObserveCycleDuration(string(id), duration)
	p.metrics.SetLastSuccessfulCycleTimestamp(string(id), time.Now())
	p.tracker.RecordCycle(string(id), duration, nil)

	if updated {
		p.metrics.IncUpdates(string(id))
		p.notify(ctx, rec)
	}

	return nil
}

func (p *Poller) notify(ctx context.Context, rec record.Record) {
	if p.notifier == nil {
		return
	}

	notifyCtx, cancel := context.WithTimeout(ctx, p.notifyTimeout)
	defer cancel()

	if err := p.notifier.Notify(notifyCtx, notify.Update{Source: p.src, Record: rec}); err != nil {
		p.metrics.IncNotificationFailures(string(p.src.ID))
		p.logger.Warn().Err(err).Msg("notification failed")
		return
	}
	p.logger.Info().Msg("notification sent")
}
