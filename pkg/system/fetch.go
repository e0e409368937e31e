package system

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

// Fetcher retrieves remote content. Failures are classified so the
// executor knows what is worth retrying.
type Fetcher interface {
	// Fetch downloads the URL and returns its content. Timeouts,
	// connection resets, and 5xx statuses come back as transient
	// errors; 4xx statuses are permanent.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches over HTTP(S) with a bounded request timeout.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout.
// Zero means 60 seconds.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, engine.NewPermanentError("invalid download URL", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyFetchError(url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, engine.NewTransientError(
			fmt.Sprintf("fetch %s: server returned %s", url, resp.Status), nil)
	case resp.StatusCode >= 400:
		return nil, engine.NewPermanentError(
			fmt.Sprintf("fetch %s: server returned %s", url, resp.Status), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, engine.NewTransientError(fmt.Sprintf("fetch %s: read body", url), err)
	}
	return body, nil
}

// classifyFetchError separates retryable network conditions from
// permanent ones.
func classifyFetchError(url string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return engine.NewTransientError(fmt.Sprintf("fetch %s: timeout", url), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return engine.NewTransientError(fmt.Sprintf("fetch %s: timeout", url), err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// Connection refused/reset: the host may simply not be ready.
		return engine.NewTransientError(fmt.Sprintf("fetch %s: %s", url, opErr.Op), err)
	}

	return engine.NewPermanentError(fmt.Sprintf("fetch %s", url), err)
}
