package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/pushreps/internal/models"
	"github.com/claude/pushreps/internal/session"
)

// HTTPClient implements DataSource by calling the PushReps REST API.
// Used for stdio MCP mode where the binary runs locally but the tracker
// runs elsewhere.
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

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
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

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) Summary(ctx context.Context) (models.ProgressSummary, error) {
	var s models.ProgressSummary
	err := c.get(ctx, "/api/v1/progress", nil, &s)
	return s, err
}

func (c *HTTPClient) WeeklyHistogram(ctx context.Context, ref time.Time) ([]models.DayBucket, error) {
	params := url.Values{}
	params.Set("date", ref.Format(time.DateOnly))

	var days []models.DayBucket
	if err := c.get(ctx, "/api/v1/progress/weekly", params, &days); err != nil {
		return nil, err
	}
	return days, nil
}

func (c *HTTPClient) RecentSessions(ctx context.Context, limit int) ([]models.SessionRecord, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var recs []models.SessionRecord
	if err := c.get(ctx, "/api/v1/progress/recent", params, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *HTTPClient) SessionState(ctx context.Context) (session.State, error) {
	var st session.State
	err := c.get(ctx, "/api/v1/session", nil, &st)
	return st, err
}
