package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/nholik/case-sentinel/internal/source"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const httpErrorBodyLimit = 1024

type timingConfig struct {
	timeout      time.Duration
	rateInterval time.Duration
	rateBurst    int
}

var defaultTiming = timingConfig{
	timeout:      10 * time.Second,
	rateInterval: 1 * time.Second,
	rateBurst:    1,
}

// Option customizes delivery timing.
type Option func(*timingConfig)

// WithTimeout bounds each outbound request.
func WithTimeout(timeout time.Duration) Option {
	return func(t *timingConfig) {
		t.timeout = timeout
	}
}

// WithRateLimit overrides the per-source rate limit (primarily for testing).
func WithRateLimit(interval time.Duration, burst int) Option {
	return func(t *timingConfig) {
		t.rateInterval = interval
		t.rateBurst = burst
	}
}

func applyOptions(opts []Option) timingConfig {
	timing := defaultTiming
	for _, opt := range opts {
		opt(&timing)
	}
	return timing
}

// httpPoster makes exactly one delivery attempt per message.
type httpPoster struct {
	logger      zerolog.Logger
	serviceName string
	webhookURL  string
	contentType string
	client      *retryablehttp.Client
	timing      timingConfig
	limiters    map[source.ID]*rate.Limiter
	limiterMu   sync.Mutex
}

func newHTTPPoster(logger zerolog.Logger, serviceName, webhookURL, contentType string, timing timingConfig) *httpPoster {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.CheckRetry = func(_ context.Context, _ *http.Response, _ error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		logger.Debug().
			Str("service", serviceName).
			Str("host", req.URL.Host).
			Int("attempt", attempt+1).
			Msg("sending notification request")
	}
	client.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
		logger.Debug().
			Str("service", serviceName).
			Int("status", resp.StatusCode).
			Msg("notification response received")
	}
	client.HTTPClient = &http.Client{Timeout: timing.timeout}

	return &httpPoster{
		logger:      logger,
		serviceName: serviceName,
		webhookURL:  webhookURL,
		contentType: contentType,
		client:      client,
		timing:      timing,
		limiters:    make(map[source.ID]*rate.Limiter),
	}
}

func (n *httpPoster) waitForRateLimit(ctx context.Context, id source.ID) error {
	limiter := n.getLimiter(id)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (n *httpPoster) getLimiter(id source.ID) *rate.Limiter {
	if n.timing.rateInterval <= 0 {
		return nil
	}

	n.limiterMu.Lock()
	defer n.limiterMu.Unlock()

	limiter, ok := n.limiters[id]
	if ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Every(n.timing.rateInterval), n.timing.rateBurst)
	n.limiters[id] = limiter
	return limiter
}

func (n *httpPoster) post(ctx context.Context, id source.ID, payload []byte) error {
	if err := n.waitForRateLimit(ctx, id); err != nil {
		return fmt.Errorf("%s rate limit: %w", n.serviceName, err)
	}
	return n.postOnce(ctx, payload)
}

func (n *httpPoster) postOnce(ctx context.Context, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, n.timing.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", n.serviceName, err)
	}
	req.Header.Set("Content-Type", n.contentType)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", n.serviceName, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, httpErrorBodyLimit))
	bodyText := strings.TrimSpace(string(body))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if bodyText != "" {
		return fmt.Errorf("%s request failed: %s (%s)", n.serviceName, resp.Status, bodyText)
	}
	return fmt.Errorf("%s request failed: %s", n.serviceName, resp.Status)
}
