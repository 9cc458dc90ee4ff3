package mcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ringvault/ringvault/internal/models"
	"github.com/ringvault/ringvault/internal/query"
)

// HTTPClient implements DataSource by calling the RingVault REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func windowParams(name string, n int) url.Values {
	v := url.Values{}
	v.Set(name, strconv.Itoa(n))
	return v
}

func (c *HTTPClient) HeartRate(ctx context.Context, hours int, includeZero bool) (*query.SeriesResult, error) {
	params := windowParams("hours", hours)
	params.Set("include_zero", strconv.FormatBool(includeZero))

	var res query.SeriesResult
	if err := c.get(ctx, query.EndpointPath(models.KindHeartRate), params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Series(ctx context.Context, kind models.Kind, hours int) (*query.SeriesResult, error) {
	path := query.EndpointPath(kind)
	if !query.IsSeries(kind) || path == "" {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownKind, kind)
	}

	var res query.SeriesResult
	if err := c.get(ctx, path, windowParams("hours", hours), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Days(ctx context.Context, kind models.Kind, days int) (*query.SeriesResult, error) {
	if !query.IsDaily(kind) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownKind, kind)
	}

	var res query.SeriesResult
	if err := c.get(ctx, query.EndpointPath(kind), windowParams("days", days), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) ManualMeasurements(ctx context.Context, hours int, measurementType string) (*query.ManualResult, error) {
	params := windowParams("hours", hours)
	if measurementType != "" {
		params.Set("type", measurementType)
	}

	var res query.ManualResult
	if err := c.get(ctx, query.EndpointPath(models.KindManualMeasurements), params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Profile(ctx context.Context, kind models.Kind) (*query.ProfileResult, error) {
	if !kind.Singleton() {
		return nil, fmt.Errorf("%w: %s is not a profile", models.ErrUnknownKind, kind)
	}

	var res query.ProfileResult
	if err := c.get(ctx, query.EndpointPath(kind), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (*query.StatsResult, error) {
	var res query.StatsResult
	if err := c.get(ctx, "/api/stats", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
