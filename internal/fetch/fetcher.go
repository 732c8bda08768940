package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	defaultMaxBytes  int64 = 5 << 20
	defaultUserAgent       = "case-sentinel/1.0 (+https://github.com/nholik/case-sentinel)"
)

// Fetcher retrieves raw page content for a source.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetchError reports a network failure, timeout or non-success response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the fetch was cut off by its deadline.
func (e *FetchError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// HTTPFetcher retrieves pages over HTTP with a bounded timeout and body size.
type HTTPFetcher struct {
	client   *resty.Client
	timeout  time.Duration
	maxBytes int64
}

// Option customizes HTTPFetcher behavior.
type Option func(*HTTPFetcher)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(f *HTTPFetcher) {
		f.client.SetHeader("User-Agent", agent)
	}
}

// WithLogger routes client diagnostics to logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *HTTPFetcher) {
		f.client.SetLogger(restyLogger{logger: logger})
	}
}

// NewHTTPFetcher constructs an HTTPFetcher. Each Fetch is bounded by timeout.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64, opts ...Option) (*HTTPFetcher, error) {
	if timeout <= 0 {
		return nil, errors.New("timeout must be greater than zero")
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	client.SetHeader("User-Agent", defaultUserAgent)

	f := &HTTPFetcher{
		client:   client,
		timeout:  timeout,
		maxBytes: maxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch downloads url once. It never retries; a failed cycle waits for the next tick.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, &FetchError{URL: url, Err: errors.New("url must not be empty")}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode(), Err: errors.New(resp.Status())}
	}

	body, err := readWithLimit(raw, f.maxBytes)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if len(body) == 0 {
		return nil, &FetchError{URL: url, Err: errors.New("response body is empty")}
	}
	return body, nil
}

func readWithLimit(r io.Reader, maxBytes int64) ([]byte, error) {
	limited := io.LimitReader(r, maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBytes)
	}
	return body, nil
}

type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn().Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}
