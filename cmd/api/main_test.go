package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/dataset"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/ollama"
)

func testStore(t *testing.T) *dataset.Store {
	t.Helper()
	ds, err := dataset.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open dataset: %v", err)
	}
	t.Cleanup(func() { ds.Close() })
	return ds
}

// testMux registers the dataset routes the way run does so PathValue works.
func testMux(ds *dataset.Store) *http.ServeMux {
	logger := slog.New(slog.DiscardHandler)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/threads", handleThreads(ds, logger))
	mux.HandleFunc("GET /api/threads/{id}", handleThread(ds, logger))
	mux.HandleFunc("GET /api/threads/{id}/comments", handleThreadComments(ds, logger))
	mux.HandleFunc("GET /api/runs", handleRuns(ds, logger))
	return mux
}

func seedThread(t *testing.T, ds *dataset.Store) {
	t.Helper()
	ctx := context.Background()
	if err := ds.SaveThread(ctx, domain.Thread{ID: "thread1", Title: "generics", Subreddit: "golang"}); err != nil {
		t.Fatalf("save thread: %v", err)
	}
	author := "gopher"
	comments := []domain.FlatComment{
		{ID: "c1", Author: &author, Body: "first", Permalink: "/r/golang/comments/thread1/generics/c1/"},
		{ID: "c2", Author: &author, Body: "second", Permalink: "/r/golang/comments/thread1/generics/c2/"},
	}
	if err := ds.SaveComments(ctx, "thread1", comments); err != nil {
		t.Fatalf("save comments: %v", err)
	}
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testMux(testStore(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf(`status field = %q, want "ok"`, body["status"])
	}
}

func TestHandleThreads(t *testing.T) {
	ds := testStore(t)
	seedThread(t, ds)

	rec := httptest.NewRecorder()
	testMux(ds).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Threads []domain.Thread `json:"threads"`
		Count   int             `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Threads) != 1 {
		t.Fatalf("got %d threads, want 1", resp.Count)
	}
	if resp.Threads[0].Title != "generics" {
		t.Errorf("title = %q, want %q", resp.Threads[0].Title, "generics")
	}
}

func TestHandleThreads_EmptyIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	testMux(testStore(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads", nil))

	if !strings.Contains(rec.Body.String(), `"threads":[]`) {
		t.Errorf("empty list should encode as [], got %s", rec.Body.String())
	}
}

func TestHandleThread(t *testing.T) {
	ds := testStore(t)
	seedThread(t, ds)

	rec := httptest.NewRecorder()
	testMux(ds).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads/thread1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Thread           domain.Thread `json:"thread"`
		ArchivedComments int           `json:"archived_comments"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Thread.ID != "thread1" {
		t.Errorf("thread id = %q, want thread1", resp.Thread.ID)
	}
	if resp.ArchivedComments != 2 {
		t.Errorf("archived_comments = %d, want 2", resp.ArchivedComments)
	}
}

func TestHandleThread_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	testMux(testStore(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleThreadComments(t *testing.T) {
	ds := testStore(t)
	seedThread(t, ds)

	rec := httptest.NewRecorder()
	testMux(ds).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads/thread1/comments?limit=1&offset=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		ThreadID string              `json:"thread_id"`
		Comments []domain.FlatComment `json:"comments"`
		Count    int                 `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("got %d comments, want 1", resp.Count)
	}
	if resp.Comments[0].ID != "c2" {
		t.Errorf("offset 1 should return c2, got %q", resp.Comments[0].ID)
	}
}

func TestHandleRuns(t *testing.T) {
	ds := testStore(t)
	if err := ds.SaveRun(context.Background(), dataset.Run{ID: "run1", ThreadID: "thread1", Source: "live", Comments: 2}); err != nil {
		t.Fatalf("save run: %v", err)
	}

	rec := httptest.NewRecorder()
	testMux(ds).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Runs  []dataset.Run `json:"runs"`
		Count int           `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Runs[0].ID != "run1" {
		t.Fatalf("runs = %+v, want one run1", resp.Runs)
	}
}

func TestHandleSearch_RejectsBadBody(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{not json"))

	handleSearch(nil, nil, logger)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSearch_RequiresQuery(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"  "}`))

	handleSearch(nil, nil, logger)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSearch_EmbedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	logger := slog.New(slog.DiscardHandler)
	embed := ollama.NewEmbedClient(srv.URL, "nomic-embed-text")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"goroutine leak"}`))

	handleSearch(nil, embed, logger)(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		url  string
		def  int
		want int
	}{
		{"/x", 10, 10},
		{"/x?limit=25", 10, 25},
		{"/x?limit=0", 10, 0},
		{"/x?limit=-3", 10, 10},
		{"/x?limit=abc", 10, 10},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.url, nil)
		if got := queryInt(r, "limit", tt.def); got != tt.want {
			t.Errorf("queryInt(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("ARCHIVE_TEST_KEY", "set")
	if got := envOr("ARCHIVE_TEST_KEY", "fallback"); got != "set" {
		t.Errorf("envOr = %q, want set", got)
	}
	if got := envOr("ARCHIVE_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("envOr = %q, want fallback", got)
	}
}
