package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cal-sync/backend/internal/config"
	"github.com/cal-sync/backend/internal/logging"
)

// maxFeedBytes caps a downloaded feed. A rental calendar is a few KiB.
const maxFeedBytes = 10 << 20

// Fetcher downloads ICS feeds. It makes exactly one attempt per call.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a fetcher whose requests are bounded by timeout.
// A non-positive timeout selects the default of 10 seconds.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = config.DefaultFetchTimeout
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch downloads the feed at feedURL and returns its body. Every failure is
// a *FetchError whose message never contains the full URL.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (string, error) {
	redacted := logging.RedactURL(feedURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return "", &FetchError{URL: redacted, Err: errors.New("invalid feed URL")}
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	req.Header.Set("User-Agent", "cal-sync/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		// *url.Error repeats the full URL; keep only its cause.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", &FetchError{URL: redacted, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{
			URL:        redacted,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return "", &FetchError{URL: redacted, Err: fmt.Errorf("reading body: %w", err)}
	}
	if len(body) > maxFeedBytes {
		return "", &FetchError{URL: redacted, Err: fmt.Errorf("feed exceeds %d bytes", maxFeedBytes)}
	}

	return string(body), nil
}
