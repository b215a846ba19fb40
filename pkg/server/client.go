package server

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

	"github.com/grokify/bytelens/pkg/backend"
	"github.com/grokify/bytelens/pkg/scan"
)

// Client talks to a running API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL, for example
// "http://127.0.0.1:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Analyze uploads data under name and returns the server's record.
func (c *Client) Analyze(ctx context.Context, name string, data []byte) (*scan.Record, error) {
	u := c.baseURL + "/api/analyze?" + url.Values{"name": {name}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var rec scan.Record
	if err := c.do(req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecords queries stored records. Filter fields map to the query
// parameters of GET /api/records.
func (c *Client) ListRecords(ctx context.Context, filter *backend.RecordFilter) (*RecordsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/records?"+filterQuery(filter).Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp RecordsResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRecord fetches one stored record. It returns backend.ErrNotFound when
// the server has no record with that ID.
func (c *Client) GetRecord(ctx context.Context, id string) (*scan.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/records/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var rec scan.Record
	if err := c.do(req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Stats fetches aggregate statistics over the records matching filter.
func (c *Client) Stats(ctx context.Context, filter *backend.RecordFilter) (*backend.RecordStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/records/stats?"+filterQuery(filter).Encode(), nil)
	if err != nil {
		return nil, err
	}

	var stats backend.RecordStats
	if err := c.do(req, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && strings.HasPrefix(req.URL.Path, "/api/records/") && req.URL.Path != "/api/records/stats" {
		return backend.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func filterQuery(filter *backend.RecordFilter) url.Values {
	q := url.Values{}
	if filter == nil {
		return q
	}
	if filter.Limit > 0 {
		q.Set("limit", fmt.Sprint(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", fmt.Sprint(filter.Offset))
	}
	if !filter.Desc {
		q.Set("order", "asc")
	}
	if filter.HiddenOnly {
		q.Set("hidden", "true")
	}
	if !filter.StartTime.IsZero() {
		q.Set("since", filter.StartTime.UTC().Format(time.RFC3339))
	}
	for _, f := range filter.Formats {
		q.Add("format", f)
	}
	for _, e := range filter.Encodings {
		q.Add("encoding", e)
	}
	if filter.NamePattern != "" {
		q.Set("name", filter.NamePattern)
	}
	return q
}
