package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/grokify/bytelens/pkg/analysis"
	"github.com/grokify/bytelens/pkg/backend"
	"github.com/grokify/bytelens/pkg/observability"
	"github.com/grokify/bytelens/pkg/scan"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}

func newTestServer(t *testing.T, store backend.RecordStore) *httptest.Server {
	t.Helper()
	s := New(&Config{MaxUploadSize: 1024, DumpWidth: 16, Version: "test"})
	if store != nil {
		s.SetStore(store)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/octet-stream", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
}

func TestHandleAnalyze(t *testing.T) {
	store := backend.NewMemoryRecordStore(nil)
	defer store.Close()
	ts := newTestServer(t, store)

	resp := post(t, ts.URL+"/api/analyze?name=logo.png", pngHeader)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var rec scan.Record
	decode(t, resp, &rec)

	if rec.ID == "" {
		t.Error("stored record has no ID")
	}
	if rec.Name != "logo.png" {
		t.Errorf("Name = %q, want logo.png", rec.Name)
	}
	if rec.FormatName() != "PNG" {
		t.Errorf("format = %q, want PNG", rec.FormatName())
	}
	if rec.Size != int64(len(pngHeader)) {
		t.Errorf("Size = %d, want %d", rec.Size, len(pngHeader))
	}
	if store.Size() != 1 {
		t.Errorf("store size = %d, want 1", store.Size())
	}
}

func TestHandleAnalyzeWithoutStore(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts.URL+"/api/analyze", []byte("pass\u200Bword"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var rec scan.Record
	decode(t, resp, &rec)

	if rec.ID != "" {
		t.Errorf("unstored record has ID %q", rec.ID)
	}
	if rec.Name != "upload" {
		t.Errorf("Name = %q, want upload", rec.Name)
	}
	if len(rec.Analysis.HiddenCharacters) != 1 {
		t.Fatalf("hidden = %d, want 1", len(rec.Analysis.HiddenCharacters))
	}
	if rec.Analysis.HiddenCharacters[0].Position != 4 {
		t.Errorf("Position = %d, want 4", rec.Analysis.HiddenCharacters[0].Position)
	}
}

func TestHandleAnalyzeTooLarge(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts.URL+"/api/analyze", bytes.Repeat([]byte("a"), 2048))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

func TestHandleInspect(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLen    int
		wantFirst  string
	}{
		{name: "whole buffer", query: "", wantStatus: http.StatusOK, wantLen: 10, wantFirst: "89"},
		{name: "range", query: "?offset=1&length=3", wantStatus: http.StatusOK, wantLen: 3, wantFirst: "50"},
		{name: "hex offset", query: "?offset=0x8", wantStatus: http.StatusOK, wantLen: 2, wantFirst: "00"},
		{name: "past end", query: "?offset=100", wantStatus: http.StatusOK, wantLen: 0},
		{name: "max length", query: "?offset=1&length=9223372036854775807", wantStatus: http.StatusOK, wantLen: 9, wantFirst: "50"},
		{name: "bad offset", query: "?offset=-1", wantStatus: http.StatusBadRequest},
		{name: "bad length", query: "?length=x", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/api/inspect"+tt.query, pngHeader)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var details []analysis.ByteDetail
			decode(t, resp, &details)
			if len(details) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(details), tt.wantLen)
			}
			if tt.wantLen > 0 && details[0].Hex != tt.wantFirst {
				t.Errorf("first hex = %s, want %s", details[0].Hex, tt.wantFirst)
			}
		})
	}
}

func TestHandleDump(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts.URL+"/api/dump?offset=4&width=4", []byte("ABCDEFGHIJ"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %s, want text/plain", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2:\n%s", len(lines), body)
	}
	if !strings.HasPrefix(lines[0], "00000004  45 46 47 48") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "|IJ|") {
		t.Errorf("second line = %q", lines[1])
	}

	if resp := post(t, ts.URL+"/api/dump?width=0", []byte("x")); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("width=0 status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleDumpMaxLength(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts.URL+"/api/dump?offset=1&length=9223372036854775807&width=16", []byte("ABCDEF"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "00000001  42 43 44 45 46") {
		t.Errorf("dump = %q, want the bytes from offset 1 to the end", body)
	}
	if !strings.Contains(string(body), "|BCDEF|") {
		t.Errorf("dump = %q, missing ASCII column", body)
	}
}

func TestHandleRecords(t *testing.T) {
	store := backend.NewMemoryRecordStore(nil)
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inputs := []struct {
		name string
		data []byte
	}{
		{"logo.png", pngHeader},
		{"readme.txt", []byte("hello world")},
		{"hidden.txt", []byte("the pass\u200Bword field is ready for review")},
	}
	var ids []string
	for i, in := range inputs {
		rec := scan.NewRecord(in.name, in.data, int64(len(in.data)))
		rec.AnalyzedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Store(ctx, rec); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
		ids = append(ids, rec.ID)
	}

	ts := newTestServer(t, store)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantTotal  int64
		wantFirst  string
	}{
		{name: "default newest first", query: "", wantStatus: http.StatusOK, wantTotal: 3, wantFirst: "hidden.txt"},
		{name: "ascending", query: "?order=asc", wantStatus: http.StatusOK, wantTotal: 3, wantFirst: "logo.png"},
		{name: "format", query: "?format=PNG", wantStatus: http.StatusOK, wantTotal: 1, wantFirst: "logo.png"},
		{name: "hidden", query: "?hidden=true", wantStatus: http.StatusOK, wantTotal: 1, wantFirst: "hidden.txt"},
		{name: "name pattern", query: "?name=*.txt&order=asc", wantStatus: http.StatusOK, wantTotal: 2, wantFirst: "readme.txt"},
		{name: "paged", query: "?limit=1&offset=1", wantStatus: http.StatusOK, wantTotal: 3, wantFirst: "readme.txt"},
		{name: "bad limit", query: "?limit=0", wantStatus: http.StatusBadRequest},
		{name: "limit too large", query: "?limit=1001", wantStatus: http.StatusBadRequest},
		{name: "bad hidden", query: "?hidden=maybe", wantStatus: http.StatusBadRequest},
		{name: "bad since", query: "?since=yesterday", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, ts.URL+"/api/records"+tt.query)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var out RecordsResponse
			decode(t, resp, &out)
			if out.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", out.Total, tt.wantTotal)
			}
			if len(out.Records) == 0 {
				t.Fatal("no records returned")
			}
			if out.Records[0].Name != tt.wantFirst {
				t.Errorf("first = %s, want %s", out.Records[0].Name, tt.wantFirst)
			}
		})
	}

	t.Run("detail", func(t *testing.T) {
		resp := get(t, ts.URL+"/api/records/"+ids[2])
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var rec scan.Record
		decode(t, resp, &rec)
		if rec.ID != ids[2] || len(rec.Analysis.HiddenCharacters) != 1 {
			t.Errorf("unexpected record %s with %d hits", rec.ID, len(rec.Analysis.HiddenCharacters))
		}
	})

	t.Run("detail not found", func(t *testing.T) {
		if resp := get(t, ts.URL+"/api/records/nope"); resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("stats", func(t *testing.T) {
		resp := get(t, ts.URL+"/api/records/stats")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var stats backend.RecordStats
		decode(t, resp, &stats)
		if stats.TotalRecords != 3 || stats.WithHidden != 1 {
			t.Errorf("stats = %+v", stats)
		}
	})
}

func TestHandleRecordsUnavailable(t *testing.T) {
	ts := newTestServer(t, backend.DiscardRecordStore{})

	for _, path := range []string{"/api/records", "/api/records/abc", "/api/records/stats"} {
		if resp := get(t, ts.URL+path); resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, resp.StatusCode)
		}
	}

	var info InfoResponse
	decode(t, get(t, ts.URL+"/api/info"), &info)
	if !info.Storage || info.Queryable {
		t.Errorf("info = %+v, want storage without queries", info)
	}
	if len(info.Signatures) != len(analysis.Signatures()) {
		t.Errorf("signatures = %d, want %d", len(info.Signatures), len(analysis.Signatures()))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)

	if resp := get(t, ts.URL+"/api/analyze"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/analyze = %d, want 405", resp.StatusCode)
	}
}

func TestServerMetricsAndHealth(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := observability.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	health := observability.NewHealthChecker()

	s := New(nil)
	s.SetMetrics(m)
	s.SetHealthChecker(health)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	deadline := time.Now().Add(2 * time.Second)
	for !health.IsReady() {
		if time.Now().After(deadline) {
			t.Fatal("server never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if resp := post(t, base+"/api/analyze", []byte("hello")); resp.StatusCode != http.StatusOK {
		t.Errorf("analyze status = %d", resp.StatusCode)
	}
	if resp := get(t, base+"/readyz"); resp.StatusCode != http.StatusOK {
		t.Errorf("readyz status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	if health.IsReady() {
		t.Error("still ready after shutdown")
	}
}

func TestClient(t *testing.T) {
	store := backend.NewMemoryRecordStore(nil)
	defer store.Close()
	ts := newTestServer(t, store)
	c := NewClient(ts.URL + "/")
	ctx := context.Background()

	rec, err := c.Analyze(ctx, "logo.png", pngHeader)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if rec.FormatName() != "PNG" {
		t.Errorf("format = %q, want PNG", rec.FormatName())
	}

	list, err := c.ListRecords(ctx, &backend.RecordFilter{Formats: []string{"PNG"}, Limit: 10, Desc: true})
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if list.Total != 1 || list.Records[0].ID != rec.ID {
		t.Errorf("list = %+v", list)
	}

	got, err := c.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Digests.SHA256 != rec.Digests.SHA256 {
		t.Errorf("SHA256 = %s, want %s", got.Digests.SHA256, rec.Digests.SHA256)
	}

	if _, err := c.GetRecord(ctx, "missing"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("GetRecord missing = %v, want ErrNotFound", err)
	}

	bad := NewClient(newTestServer(t, nil).URL)
	if _, err := bad.ListRecords(ctx, nil); err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("ListRecords without storage = %v, want 503 error", err)
	}
}

func TestFilterQuery(t *testing.T) {
	q := filterQuery(&backend.RecordFilter{
		Limit:       5,
		Formats:     []string{"PNG", "PDF"},
		HiddenOnly:  true,
		NamePattern: "*.txt",
	})

	if q.Get("limit") != "5" || q.Get("order") != "asc" || q.Get("hidden") != "true" || q.Get("name") != "*.txt" {
		t.Errorf("query = %s", q.Encode())
	}
	if len(q["format"]) != 2 {
		t.Errorf("format = %v", q["format"])
	}
	if q.Has("offset") || q.Has("since") {
		t.Errorf("unexpected keys in %s", q.Encode())
	}
}
