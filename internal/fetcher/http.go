package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/filmlab/boxrdd/internal/resilience"
)

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig

	// Limiters maps hostname to a polite rate limiter. Hosts without an
	// entry share a conservative default of one request per second.
	Limiters map[string]*rate.Limiter
}

// HTTPClient implements Fetcher using net/http.
type HTTPClient struct {
	client   *http.Client
	opts     Options
	limiters map[string]*rate.Limiter
	fallback *rate.Limiter
}

var _ Fetcher = (*HTTPClient)(nil)

// LimiterForDelay builds a limiter that allows one request per delay,
// with no burst, matching the fixed inter-request delay the sites expect.
func LimiterForDelay(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		delay = time.Second
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// New creates an HTTPClient with the given options.
func New(opts Options) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	limiters := make(map[string]*rate.Limiter, len(opts.Limiters))
	for host, lim := range opts.Limiters {
		limiters[host] = lim
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
		fallback: LimiterForDelay(time.Second),
	}
}

func (c *HTTPClient) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return c.fallback
	}
	if lim, ok := c.limiters[u.Host]; ok {
		return lim
	}
	return c.fallback
}

// Get fetches the URL and returns the response body.
func (c *HTTPClient) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.GetWithHeaders(ctx, rawURL, nil)
}

// GetWithHeaders fetches the URL with extra request headers. Transient
// statuses (429/403/5xx) and network errors are retried with backoff;
// other non-200 statuses return a StatusError immediately.
func (c *HTTPClient) GetWithHeaders(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	lim := c.limiterFor(rawURL)

	body, err := resilience.DoVal(ctx, c.opts.Retry, func(ctx context.Context) ([]byte, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
		return c.doOnce(ctx, rawURL, headers)
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	return body, nil
}

func (c *HTTPClient) doOnce(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{URL: rawURL, Code: resp.StatusCode}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			zap.L().Warn("transient http status, will retry",
				zap.String("url", rawURL),
				zap.Int("status", resp.StatusCode),
			)
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}
	return body, nil
}

func asStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
