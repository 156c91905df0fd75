// Package fstopo locates and downloads USFS FSTopo quadrangle rasters
// through the data.fs.usda.gov raster gateway. The gateway is a plain
// website, not a formal API: coverage is discovered by scraping the
// per-block quad index page, and any drift in its markup is treated as
// absence rather than an error.
package fstopo

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientOptions configures the raster gateway client.
type ClientOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RatePerSec float64 // request rate against the gateway
	Quiet      bool    // suppress per-file progress bars
}

// Client talks to the FSTopo raster gateway with rate limiting and
// retry on transport failures.
type Client struct {
	http    *http.Client
	base    *url.URL
	opts    ClientOptions
	limiter *rate.Limiter
}

// NewClient creates a Client for the given gateway base URL.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "fstopo/1.0"
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 4
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fstopo: parse base URL %q", opts.BaseURL)
	}
	if !base.IsAbs() {
		return nil, eris.Errorf("fstopo: base URL %q is not absolute", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	burst := int(opts.RatePerSec)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		base:    base,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), burst),
	}, nil
}

// indexURL builds the quad index page URL for a block.
func (c *Client) indexURL(blockID string) string {
	ref := &url.URL{
		Path:     "quad-index.php",
		RawQuery: url.Values{"blockID": {blockID}}.Encode(),
	}
	return c.base.ResolveReference(ref).String()
}

// get performs a GET with rate limiting, retrying network failures and
// 429s with exponential backoff. HTTP status handling is left to the
// caller, since a non-200 from the gateway usually means sparse
// coverage rather than failure.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	var lastErr error
	for attempt := range c.opts.MaxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		resp, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			zap.L().Warn("http request failed, retrying",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http 429 from %s", rawURL)
			zap.L().Warn("rate limited (429), backing off",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
			)
			c.backoff(ctx, attempt)
			continue
		}

		return resp, nil
	}

	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(d) / 2))
	d = d + jitter

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
