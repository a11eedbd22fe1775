// Package dataplatform loads GeoJSON datasets published on ckan.dataplatform.nl.
package dataplatform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/paulmach/orb"

	"regiokaart/internal/apperr"
	"regiokaart/internal/dataset"
	"regiokaart/internal/geobind"
	"regiokaart/internal/logger"
	"regiokaart/internal/metrics"
	"regiokaart/internal/table"
)

// Host must appear in every dataset URL.
const Host = "ckan.dataplatform.nl"

const metricSource = "dataplatform"

type Client struct {
	http    *http.Client
	retries uint64
	// allowAny skips the host check; tests serve from httptest.
	allowAny bool
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = uint64(n)
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{http: &http.Client{Timeout: 30 * time.Second}, retries: 2}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CheckURL rejects URLs outside the dataplatform.
func (c *Client) CheckURL(url string) error {
	if c.allowAny || strings.Contains(url, Host) {
		return nil
	}
	return apperr.New(apperr.Invalid, "All dataplatform urls should start with "+Host)
}

// Fetch downloads and decodes the FeatureCollection at url.
func (c *Client) Fetch(ctx context.Context, url string) (*table.FeatureCollection, error) {
	if err := c.CheckURL(url); err != nil {
		return nil, err
	}
	var fc *table.FeatureCollection
	op := func() error {
		got, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		fc = got
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if apperr.KindOf(err) == apperr.DecodeFailed {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.Upstream, "dataplatform dataset kon niet opgehaald worden", err)
	}
	return fc, nil
}

func (c *Client) get(ctx context.Context, url string) (*table.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	t0 := time.Now()
	metrics.UpstreamRequestsTotal.WithLabelValues(metricSource).Inc()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.L().Error("dataplatform_http_error", "url", url, "err", err)
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
		err := fmt.Errorf("dataplatform: HTTP Error %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		if resp.StatusCode < http.StatusInternalServerError {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	var fc table.FeatureCollection
	if err := sonic.ConfigStd.Unmarshal(body, &fc); err != nil {
		metrics.UpstreamFailTotal.WithLabelValues(metricSource).Inc()
		return nil, backoff.Permanent(apperr.Wrap(apperr.DecodeFailed, "dataplatform answer is not GeoJSON", err))
	}
	if fc.Type != "" && fc.Type != "FeatureCollection" {
		return nil, backoff.Permanent(apperr.New(apperr.DecodeFailed, "dataplatform answer is a "+fc.Type+", not a FeatureCollection"))
	}
	metrics.UpstreamDurationMs.WithLabelValues(metricSource).Observe(float64(time.Since(t0).Milliseconds()))
	return &fc, nil
}

// ReadType is latlong when every geometry is a point and unknown otherwise.
func ReadType(t *table.Table) geobind.Mode {
	if !t.HasGeometry() || t.Len() == 0 {
		return geobind.ModeUnknown
	}
	for i := 0; i < t.Len(); i++ {
		if _, ok := t.GeometryAt(i).(orb.Point); !ok {
			return geobind.ModeUnknown
		}
	}
	return geobind.ModeLatLong
}

// Load fetches url and stores it in s under name (defaulted when blank). The URL is kept as provenance.
func (c *Client) Load(ctx context.Context, s *dataset.Store, name, url string) (*dataset.Dataset, error) {
	fc, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	t := table.FromFeatureCollection(fc, nil)
	d, err := dataset.New(s.UniqueName(name), t, ReadType(t))
	if err != nil {
		return nil, err
	}
	d.Source.URL = url
	if err := s.Put(d); err != nil {
		return nil, err
	}
	metrics.IngestFilesTotal.WithLabelValues(metricSource).Inc()
	metrics.IngestRowsTotal.Add(float64(t.Len()))
	logger.L().Info("dataset_loaded", "name", d.Name, "url", url, "read_type", d.ReadType, "rows", t.Len(), "cols", len(d.Columns))
	return d, nil
}
