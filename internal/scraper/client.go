package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/hfujita/wattsync/pkg/models"
)

// ErrFetchFailed marks any failure to obtain usable usage data from the
// scraper addon: transport errors, timeouts, non-2xx responses,
// malformed bodies, and empty result sets. Fetch failures are expected
// steady-state noise from the upstream scraper, so callers test with
// errors.Is and treat them as a recoverable outcome rather than a fault.
var ErrFetchFailed = errors.New("fetching usage data from scraper failed")

// The scraper addon drives a headless browser, so usage requests can
// take a while to come back.
const fetchTimeout = 60 * time.Second

// Client wraps the HTTP API of the remote scraper addon for one account.
type Client struct {
	baseURL        string
	username       string
	password       string
	customerNumber string
	httpClient     *http.Client
}

// New creates a scraper client for the addon at baseURL.
func New(baseURL, username, password, customerNumber string) *Client {
	return &Client{
		baseURL:        baseURL,
		username:       username,
		password:       password,
		customerNumber: customerNumber,
		httpClient:     &http.Client{Timeout: fetchTimeout},
	}
}

// VerifyCredentials calls POST /login to check the stored credentials.
// It returns true only on a 2xx response. Transport errors are returned
// as-is so that setup flows can tell an unreachable scraper apart from
// rejected credentials.
func (c *Client) VerifyCredentials(ctx context.Context) (bool, error) {
	body, err := json.Marshal(loginRequest{
		Username:       c.username,
		Password:       c.password,
		CustomerNumber: c.customerNumber,
	})
	if err != nil {
		return false, fmt.Errorf("encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("calling login endpoint: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// FetchUsageForDate calls GET /electricity-usages for the given calendar
// date and parses the result into a batch of interval readings. Null
// usages are preserved as nil, never coerced to zero. Every failure mode
// wraps ErrFetchFailed.
func (c *Client) FetchUsageForDate(ctx context.Context, date time.Time) (models.UsageBatch, error) {
	params := url.Values{}
	params.Set("username", c.username)
	params.Set("password", c.password)
	params.Set("customerNumber", c.customerNumber)
	params.Set("date", date.Format("2006-01-02"))

	reqURL := fmt.Sprintf("%s/electricity-usages?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrFetchFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: scraper returned status %d: %s", ErrFetchFailed, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrFetchFailed, err)
	}

	var records []wireRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: parsing response body: %v", ErrFetchFailed, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: scraper returned no records for %s", ErrFetchFailed, date.Format("2006-01-02"))
	}

	batch := make(models.UsageBatch, 0, len(records))
	for _, rec := range records {
		ts, err := parseRecordTime(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing record timestamp %q: %v", ErrFetchFailed, rec.Date, err)
		}
		batch = append(batch, models.UsageRecord{Timestamp: ts, Usage: rec.Usage})
	}

	return batch, nil
}

type loginRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	CustomerNumber string `json:"customerNumber"`
}

// wireRecord matches one element of the scraper's JSON response.
type wireRecord struct {
	Date  string   `json:"date"`
	Usage *float64 `json:"usage"`
}

// parseRecordTime accepts the ISO-8601 variants the addon emits: full
// RFC 3339, or a naive local timestamp without offset.
func parseRecordTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
}
