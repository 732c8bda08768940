package poller

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nholik/case-sentinel/internal/fetch"
	"github.com/nholik/case-sentinel/internal/notify"
	"github.com/nholik/case-sentinel/internal/record"
	"github.com/nholik/case-sentinel/internal/source"
	"github.com/nholik/case-sentinel/internal/state"
	"github.com/rs/zerolog"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
	mu      sync.Mutex
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeFetcher struct {
	body []byte
	err  error
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	return f.body, f.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, update notify.Update) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, update.Message())
	return n.err
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type failingStore struct {
	err error
}

func (s *failingStore) Get(source.ID) (record.Record, bool) {
	return record.Record{}, false
}

func (s *failingStore) Commit(context.Context, source.ID, record.Record) error {
	return s.err
}

func registrySource(t *testing.T, id source.ID) source.Source {
	t.Helper()
	registry, err := source.NewRegistry(map[source.ID]source.Override{
		source.Minnesota: {URL: "https://example.com/mn"},
	})
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	src, ok := registry.Get(id)
	if !ok {
		t.Fatalf("source %s missing", id)
	}
	return src
}

func loadedStore(t *testing.T) *state.Store {
	t.Helper()
	store := state.NewStore(state.NewFileStore(filepath.Join(t.TempDir(), "state.json"), zerolog.Nop()), zerolog.Nop())
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load store: %v", err)
	}
	return store
}

func riPayload(positive int) []byte {
	return []byte(`google.visualization.Query.setResponse({"table":{"rows":[` +
		`{"c":[{"v":"Positive"},{"v":` + strconv.Itoa(positive) + `}]},` +
		`{"c":[{"v":"Negative"},{"v":5}]},` +
		`{"c":[{"v":"Pending"},{"v":2}]},` +
		`{"c":[{"v":"Quarantine"},{"v":1}]}]}});`)
}

func TestPoller_Run_TriggersRunOnceOnTicks(t *testing.T) {
	ticker := &fakeTicker{ch: make(chan time.Time, 2)}
	runCalls := make(chan struct{}, 3)

	p := New(zerolog.Nop(), source.Source{ID: source.Oregon}, time.Second,
		WithTickerFactory(func(time.Duration) Ticker {
			return ticker
		}),
		WithRunOnce(func(context.Context) error {
			runCalls <- struct{}{}
			return nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	ticker.ch <- time.Now()
	ticker.ch <- time.Now()

	// one immediate run plus two ticks
	if !waitForCalls(runCalls, 3, time.Second) {
		t.Fatalf("expected three run calls")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("poller did not stop after cancel")
	}

	if !ticker.Stopped() {
		t.Fatalf("expected ticker to be stopped")
	}
}

func TestPoller_Run_RejectsZeroPollInterval(t *testing.T) {
	p := New(zerolog.Nop(), source.Source{ID: source.Oregon}, 0)

	if err := p.Run(context.Background()); err == nil {
		t.Fatalf("expected error for zero poll interval")
	}
}

func TestPoller_Run_ContinuesAfterRuntimeError(t *testing.T) {
	ticker := &fakeTicker{ch: make(chan time.Time, 1)}
	runCalls := make(chan struct{}, 2)

	p := New(zerolog.Nop(), source.Source{ID: source.Federal}, time.Second,
		WithTickerFactory(func(time.Duration) Ticker {
			return ticker
		}),
		WithRunOnce(func(context.Context) error {
			runCalls <- struct{}{}
			return wrapRuntime("fetch", errors.New("connection refused"))
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()

	ticker.ch <- time.Now()
	if !waitForCalls(runCalls, 2, time.Second) {
		t.Fatalf("expected poller to keep running after runtime error")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}

func TestPoller_Run_StopsOnPersistError(t *testing.T) {
	diskErr := &state.PersistError{Source: source.RhodeIsland, Err: errors.New("read-only file system")}
	src := registrySource(t, source.RhodeIsland)

	p := New(zerolog.Nop(), src, time.Second,
		WithTickerFactory(func(time.Duration) Ticker {
			return &fakeTicker{ch: make(chan time.Time)}
		}),
		WithFetcher(&fakeFetcher{body: riPayload(10)}),
		WithStore(&failingStore{err: diskErr}),
	)

	err := p.Run(context.Background())
	var persistErr *state.PersistError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected PersistError, got %v", err)
	}
}

func TestPoller_RunOnce_DetectsUpdateAndNotifies(t *testing.T) {
	store := loadedStore(t)
	src := registrySource(t, source.RhodeIsland)
	ctx := context.Background()

	previous := record.New(map[string]int64{
		"positive_cases": 10,
		"negative_tests": 5,
		"pending_tests":  2,
		"quarantine":     1,
	})
	if err := store.Commit(ctx, source.RhodeIsland, previous); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	notifier := &recordingNotifier{}
	p := New(zerolog.Nop(), src, time.Second,
		WithFetcher(&fakeFetcher{body: riPayload(12)}),
		WithStore(store),
		WithNotifier(notifier, time.Second),
	)

	if err := p.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	got, ok := store.Get(source.RhodeIsland)
	if !ok {
		t.Fatalf("expected stored record")
	}
	if !got.Updated() {
		t.Fatalf("expected updated_data=true")
	}
	if positive, _ := got.Get("positive_cases"); positive != 12 {
		t.Fatalf("expected positive 12, got %d", positive)
	}

	messages := notifier.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected one notification, got %d", len(messages))
	}
	if !strings.Contains(messages[0], "Positive: 12") {
		t.Fatalf("unexpected notification: %q", messages[0])
	}
}

func TestPoller_RunOnce_SameRecordTwice(t *testing.T) {
	store := loadedStore(t)
	src := registrySource(t, source.RhodeIsland)
	notifier := &recordingNotifier{}

	p := New(zerolog.Nop(), src, time.Second,
		WithFetcher(&fakeFetcher{body: riPayload(7)}),
		WithStore(store),
		WithNotifier(notifier, time.Second),
	)

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("first RunOnce error: %v", err)
	}
	first, _ := store.Get(source.RhodeIsland)
	if !first.Updated() {
		t.Fatalf("first observation must be flagged as updated")
	}

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce error: %v", err)
	}
	second, _ := store.Get(source.RhodeIsland)
	if second.Updated() {
		t.Fatalf("unchanged record must be stored with updated_data=false")
	}

	if got := len(notifier.Messages()); got != 1 {
		t.Fatalf("expected a single notification, got %d", got)
	}
}

func TestPoller_RunOnce_ExtractionErrorLeavesState(t *testing.T) {
	store := loadedStore(t)
	src := registrySource(t, source.Federal)
	ctx := context.Background()

	previous := record.New(map[string]int64{"positive_cases": 15, "deaths": 0}).WithUpdated(true)
	if err := store.Commit(ctx, source.Federal, previous); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	notifier := &recordingNotifier{}
	p := New(zerolog.Nop(), src, time.Second,
		WithFetcher(&fakeFetcher{body: []byte(`<html><body><p>Page moved</p></body></html>`)}),
		WithStore(store),
		WithNotifier(notifier, time.Second),
	)

	err := p.RunOnce(ctx)
	var runtimeErr *RuntimeError
	if !errors.As(err, &runtimeErr) || runtimeErr.Op != "extract" {
		t.Fatalf("expected extract runtime error, got %v", err)
	}
	var extractErr *source.ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected wrapped ExtractionError, got %v", err)
	}

	got, _ := store.Get(source.Federal)
	if !got.Equal(previous) {
		t.Fatalf("state changed after extraction error")
	}
	if len(notifier.Messages()) != 0 {
		t.Fatalf("expected no notification")
	}
}

func TestPoller_RunOnce_FetchTimeoutLeavesState(t *testing.T) {
	store := loadedStore(t)
	src := registrySource(t, source.NewYork)
	ctx := context.Background()

	previous := record.New(map[string]int64{"upstate_cases": 1, "nyc_cases": 2, "total_cases": 3})
	if err := store.Commit(ctx, source.NewYork, previous); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	notifier := &recordingNotifier{}
	timeoutErr := &fetch.FetchError{URL: src.URL, Err: context.DeadlineExceeded}
	p := New(zerolog.Nop(), src, time.Second,
		WithFetcher(&fakeFetcher{err: timeoutErr}),
		WithStore(store),
		WithNotifier(notifier, time.Second),
	)

	err := p.RunOnce(ctx)
	var runtimeErr *RuntimeError
	if !errors.As(err, &runtimeErr) || runtimeErr.Op != "fetch" {
		t.Fatalf("expected fetch runtime error, got %v", err)
	}

	got, _ := store.Get(source.NewYork)
	if !got.Equal(previous) {
		t.Fatalf("state changed after fetch timeout")
	}
	if len(notifier.Messages()) != 0 {
		t.Fatalf("expected no notification")
	}
}

func TestPoller_RunOnce_NotificationFailureKeepsCommit(t *testing.T) {
	store := loadedStore(t)
	src := registrySource(t, source.RhodeIsland)
	notifier := &recordingNotifier{err: errors.New("webhook down")}

	p := New(zerolog.Nop(), src, time.Second,
		WithFetcher(&fakeFetcher{body: riPayload(3)}),
		WithStore(store),
		WithNotifier(notifier, time.Second),
	)

	if err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("notification failure must not fail the cycle: %v", err)
	}
	if _, ok := store.Get(source.RhodeIsland); !ok {
		t.Fatalf("expected committed record")
	}
}

func waitForCalls(ch <-chan struct{}, count int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for i := 0; i < count; i++ {
		select {
		case <-ch:
		case <-deadline:
			return false
		}
	}
	return true
}
