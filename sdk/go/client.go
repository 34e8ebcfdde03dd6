package tablerosdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Tablero HTTP API client.
type Client struct {
	BaseURL     string
	DashboardID string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, dashboardID string) *Client {
	return &Client{
		BaseURL:     baseURL,
		DashboardID: dashboardID,
		Timeout:     10 * time.Second,
	}
}

// Indicator represents the API indicator model (partial).
type Indicator struct {
	ID              string  `json:"id"`
	DashboardID     string  `json:"dashboard_id"`
	Name            string  `json:"name"`
	Area            string  `json:"area"`
	Target          float64 `json:"target"`
	Actual          float64 `json:"actual"`
	MeasurementDate string  `json:"measurement_date"`
	Status          string  `json:"status"`
}

// Risk represents the API risk model (partial).
type Risk struct {
	ID          string `json:"id"`
	DashboardID string `json:"dashboard_id"`
	Name        string `json:"name"`
	Area        string `json:"area"`
	Impact      string `json:"impact"`
	Probability string `json:"probability"`
	Exposure    int    `json:"exposure"`
	Status      string `json:"status"`
}

// ImportEntry represents one ledger row.
type ImportEntry struct {
	ID              string   `json:"id"`
	DashboardID     string   `json:"dashboard_id"`
	FileName        string   `json:"file_name"`
	FileHash        string   `json:"file_hash"`
	Date            string   `json:"date"`
	Kind            string   `json:"kind"`
	IndicatorsCount int      `json:"indicators_count"`
	ActivitiesCount int      `json:"activities_count"`
	RisksCount      int      `json:"risks_count"`
	Status          string   `json:"status"`
	ErrorMessage    string   `json:"error_message,omitempty"`
	ImportedBy      string   `json:"imported_by"`
	Areas           []string `json:"areas"`
}

// ImportResult is the response of a successful import.
type ImportResult struct {
	Entry      ImportEntry `json:"entry"`
	Indicators []Indicator `json:"indicators"`
	Risks      []Risk      `json:"risks"`
}

// AreaSummary aggregates a dashboard area.
type AreaSummary struct {
	Area        string  `json:"area"`
	Indicators  int     `json:"indicators"`
	Achieved    int     `json:"achieved"`
	AtRisk      int     `json:"at_risk"`
	Critical    int     `json:"critical"`
	Activities  int     `json:"activities"`
	AvgProgress float64 `json:"avg_progress"`
	Risks       int     `json:"risks"`
	MaxExposure int     `json:"max_exposure"`
}

// Event represents a log entry.
type Event struct {
	ID          int64          `json:"id"`
	TS          string         `json:"ts"`
	Type        string         `json:"type"`
	DashboardID string         `json:"dashboard_id"`
	EntityID    string         `json:"entity_id"`
	EntityKind  string         `json:"entity_kind"`
	Payload     map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Import uploads a report file. fileName selects the parser by extension.
func (c *Client) Import(ctx context.Context, fileName string, content []byte) (ImportResult, error) {
	body := map[string]any{
		"file_name": fileName,
		"content":   content,
	}
	var resp ImportResult
	err := c.do(ctx, http.MethodPost, c.dashboardPath("imports"), body, &resp)
	return resp, err
}

// History returns the import ledger, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]ImportEntry, error) {
	endpoint := c.dashboardPath("imports")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []ImportEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// DeleteImport removes one ledger entry.
func (c *Client) DeleteImport(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("v0/imports/%s", url.PathEscape(id))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// Indicators lists indicators, optionally filtered by area.
func (c *Client) Indicators(ctx context.Context, area string) ([]Indicator, error) {
	endpoint := c.dashboardPath("indicators")
	if area != "" {
		endpoint = fmt.Sprintf("%s?area=%s", endpoint, url.QueryEscape(area))
	}
	var resp []Indicator
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Risks lists risks ordered by exposure.
func (c *Client) Risks(ctx context.Context, area string) ([]Risk, error) {
	endpoint := c.dashboardPath("risks")
	if area != "" {
		endpoint = fmt.Sprintf("%s?area=%s", endpoint, url.QueryEscape(area))
	}
	var resp []Risk
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Summary returns per-area aggregates.
func (c *Client) Summary(ctx context.Context) ([]AreaSummary, error) {
	var resp []AreaSummary
	err := c.do(ctx, http.MethodGet, c.dashboardPath("summary"), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := c.dashboardPath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) dashboardPath(p string) string {
	dashboard := url.PathEscape(c.DashboardID)
	return fmt.Sprintf("v0/dashboards/%s/%s", dashboard, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
