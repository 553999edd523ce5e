package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"property-valuation/metrics"
	"property-valuation/models"
	"property-valuation/utils"
)

const (
	// radiusParam widens the upstream search to neighbouring postcode sectors.
	radiusParam = "n=2"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// Client fetches price-per-floor-area series from the pricing API.
type Client struct {
	baseURL    string
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	logger     *utils.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds a single request. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMetrics records fetch outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock overrides the clock used for synthetic series.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Client for baseURL + endpoint.
func New(baseURL, endpoint string, logger *utils.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		endpoint:   "/" + strings.TrimPrefix(endpoint, "/"),
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves the series for postcode. The returned series is sorted
// ascending by year with unique years but is not yet repaired.
//
// An unparseable payload is not an error: Fetch returns a synthetic series
// tagged SourceSynthetic instead.
func (c *Client) Fetch(ctx context.Context, postcode string) (*models.PricingResult, error) {
	postcode = strings.TrimSpace(postcode)
	if postcode == "" {
		return nil, &InvalidInputError{Field: "postcode", Reason: "must not be empty"}
	}

	body, err := c.get(ctx, postcode)
	if err != nil {
		c.metrics.ObserveFetch(metrics.FetchError)
		return nil, err
	}

	var series models.PricingSeries
	if err := json.Unmarshal(RepairNaN(body), &series); err != nil {
		c.logger.Warn("[pricing] Unparseable payload for %q, serving synthetic series: %v", postcode, err)
		c.metrics.ObserveFetch(metrics.FetchSynthetic)
		return &models.PricingResult{
			Source:   models.SourceSynthetic,
			Postcode: postcode,
			Series:   SyntheticSeries(postcode, c.now()),
		}, nil
	}

	c.metrics.ObserveFetch(metrics.FetchLive)
	c.logger.Debug("[pricing] %q → %d points", postcode, len(series.Points))
	return &models.PricingResult{
		Source:   models.SourceLive,
		Postcode: postcode,
		Series:   series.Normalize(),
	}, nil
}

func (c *Client) get(ctx context.Context, postcode string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL := c.baseURL + c.endpoint + "?postcode=" + EncodePostcode(postcode) + "&" + radiusParam
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &UpstreamFetchError{Reason: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &UpstreamFetchError{Reason: fmt.Sprintf("timeout after %v", c.timeout), Err: err}
		}
		return nil, &UpstreamFetchError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &UpstreamFetchError{StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &UpstreamFetchError{Reason: "read body", Err: err}
	}
	return body, nil
}

// NormalizePostcode upper-cases a postcode and collapses whitespace, so that
// "sw4  0es" and "SW4 0ES" share one cache key.
func NormalizePostcode(postcode string) string {
	return strings.ToUpper(strings.Join(strings.Fields(postcode), " "))
}

// EncodePostcode renders a postcode for the query string. Spaces travel as
// "+" as the upstream API expects.
func EncodePostcode(postcode string) string {
	return url.QueryEscape(strings.Join(strings.Fields(postcode), " "))
}
