// Package meetjestad loads the latest Meet je Stad sensor readings as the standard dataset.
package meetjestad

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"

	"regiokaart/internal/apperr"
	"regiokaart/internal/logger"
	"regiokaart/internal/metrics"
)

const (
	DefaultBaseURL = "https://meetjestad.net/data/"
	metricSource   = "meetjestad"
	// timeFormat is the start/end query format, always UTC.
	timeFormat = "2006-01-02,15:04"
	// stampFormat is the reading timestamp format, UTC.
	stampFormat = "2006-01-02 15:04:05"
)

// Reading is one sensor message. Sensors that lack a field send null.
type Reading struct {
	Row         int      `json:"row"`
	ID          int      `json:"id"`
	Timestamp   string   `json:"timestamp"`
	Longitude   *float64 `json:"longitude"`
	Latitude    *float64 `json:"latitude"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// Time parses Timestamp; unparsable stamps give the zero time.
func (r Reading) Time() time.Time {
	t, err := time.ParseInLocation(stampFormat, r.Timestamp, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

type Client struct {
	baseURL string
	http    *http.Client
	retries uint64
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetries sets how often a failed request is retried with exponential backoff.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = uint64(n)
		}
	}
}

// NewClient talks to baseURL, DefaultBaseURL when empty. Without WithHTTPClient requests time out after 10s.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}, retries: 3}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL is the endpoint readings are fetched from; it is kept as dataset provenance.
func (c *Client) BaseURL() string { return c.baseURL }

// Fetch returns every reading sent between start and end. start must be before end; an empty answer is
// an Upstream error.
func (c *Client) Fetch(ctx context.Context, start, end time.Time) ([]Reading, error) {
	if !start.Before(end) {
		return nil, apperr.New(apperr.Invalid, fmt.Sprintf("start %s must be earlier than end %s", start.Format(time.RFC3339), end.Format(time.RFC3339)))
	}
	q := url.Values{}
	q.Set("type", "sensors")
	q.Set("format", "json")
	q.Set("start", start.UTC().Format(timeFormat))
	q.Set("end", end.UTC().Format(timeFormat))
	u := c.baseURL + "?" + q.Encode()

	var out []Reading
	op := func() error {
		rs, err := c.get(ctx, u)
		if err != nil {
			return err
		}
		out = rs
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, apperr.Wrap(apperr.Upstream, "Meet je Stad data kon niet opgehaald worden", err)
	}
	if len(out) == 0 {
		return nil, apperr.New(apperr.Upstream, fmt.Sprintf("No data found for start date (%s) and end date (%s)",
			start.UTC().Format(timeFormat), end.UTC().Format(timeFormat)))
	}
	return out, nil
}

// get does one request. Client errors are permanent; server and transport errors are retried.
func (c *Client) get(ctx context.Context, u string) ([]Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	t0 := time.Now()
	metrics.UpstreamRequestsTotal.WithLabelValues(metricSource).Inc()
	logger.L().Debug("meetjestad_req", "url", u)
	resp, err := c.http.Do(req)
	if err != nil {
		logger.L().Error("meetjestad_http_error", "err", err)
		metrics.UpstreamFailTotal.WithLabelValues(metricSource).Inc()
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamFailTotal.WithLabelValues(metricSource).Inc()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamFailTotal.WithLabelValues(metricSource).Inc()
		err := fmt.Errorf("meetjestad: status %d", resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	var rs []Reading
	if err := sonic.ConfigStd.Unmarshal(body, &rs); err != nil {
		logger.L().Error("meetjestad_decode_error", "err", err)
		metrics.UpstreamFailTotal.WithLabelValues(metricSource).Inc()
		return nil, backoff.Permanent(err)
	}
	dur := time.Since(t0).Milliseconds()
	metrics.UpstreamDurationMs.WithLabelValues(metricSource).Observe(float64(dur))
	logger.L().Debug("meetjestad_resp", "readings", len(rs), "duration_ms", dur)
	return rs, nil
}
