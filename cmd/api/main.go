// Command api serves the comment archive over HTTP: thread and comment
// listings from the SQLite dataset, conversation lookups from the Neo4j
// graph, and semantic search over Qdrant. The graph and search routes are
// only registered when their stores are configured.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/dataset"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/graph"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/semantic"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/metrics"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/mid"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/ollama"
)

var met = metrics.New()

var mSearches = met.Counter("reddit_api_searches_total", "Semantic search requests served")

// Config holds all environment-based configuration. NEO4J_URL and
// QDRANT_URL are opt-in: leaving either empty serves the API without
// that backend's routes.
type Config struct {
	Port       string
	DBPath     string
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string
	QdrantURL  string
	Collection string
	OllamaURL  string
	Model      string
	CORSOrigin string
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		DBPath:     envOr("ARCHIVE_DB", "archive.db"),
		Neo4jURL:   os.Getenv("NEO4J_URL"),
		Neo4jUser:  envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:  os.Getenv("NEO4J_PASS"),
		QdrantURL:  os.Getenv("QDRANT_URL"),
		Collection: envOr("QDRANT_COLLECTION", "reddit_comments"),
		OllamaURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		Model:      envOr("OLLAMA_MODEL", "nomic-embed-text"),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ds, err := dataset.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer ds.Close()

	met.CollectRuntime(ctx, "reddit_api", 15*time.Second)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", met.Handler())
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/threads", handleThreads(ds, logger))
	mux.HandleFunc("GET /api/threads/{id}", handleThread(ds, logger))
	mux.HandleFunc("GET /api/threads/{id}/comments", handleThreadComments(ds, logger))
	mux.HandleFunc("GET /api/runs", handleRuns(ds, logger))

	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(ctx)
		gs := graph.New(driver)

		mux.HandleFunc("GET /api/graph/stats", handleGraphStats(gs, logger))
		mux.HandleFunc("GET /api/graph/commenters", handleTopCommenters(gs, logger))
		mux.HandleFunc("GET /api/graph/threads", handleBusiestThreads(gs, logger))
		mux.HandleFunc("GET /api/comments/{id}/replies", handleReplies(gs, logger))
		mux.HandleFunc("GET /api/comments/{id}/ancestry", handleAncestry(gs, logger))
		logger.Info("graph routes enabled", "url", cfg.Neo4jURL)
	}

	if cfg.QdrantURL != "" {
		vs, err := semantic.New(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer vs.Close()
		embedder := ollama.NewEmbedClient(cfg.OllamaURL, cfg.Model)

		mux.HandleFunc("POST /api/search", handleSearch(vs, embedder, logger))
		logger.Info("search route enabled", "collection", cfg.Collection)
	}

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("reddit-archive-api"),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleThreads(ds *dataset.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threads, err := ds.Threads(r.Context(), queryInt(r, "limit", 50))
		if err != nil {
			logger.Error("list threads failed", "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if threads == nil {
			threads = []domain.Thread{}
		}
		writeJSON(w, map[string]any{"threads": threads, "count": len(threads)})
	}
}

func handleThread(ds *dataset.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		t, err := ds.GetThread(r.Context(), id)
		if err != nil {
			logger.Error("get thread failed", "thread", id, "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if t == nil {
			http.Error(w, `{"error":"thread not found"}`, http.StatusNotFound)
			return
		}
		n, err := ds.CountComments(r.Context(), id)
		if err != nil {
			logger.Error("count comments failed", "thread", id, "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"thread": t, "archived_comments": n})
	}
}

func handleThreadComments(ds *dataset.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		comments, err := ds.CommentsByThread(r.Context(), id,
			queryInt(r, "limit", 100), queryInt(r, "offset", 0))
		if err != nil {
			logger.Error("list comments failed", "thread", id, "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if comments == nil {
			comments = []domain.FlatComment{}
		}
		writeJSON(w, map[string]any{"thread_id": id, "comments": comments, "count": len(comments)})
	}
}

func handleRuns(ds *dataset.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := ds.Runs(r.Context(), queryInt(r, "limit", 20))
		if err != nil {
			logger.Error("list runs failed", "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []dataset.Run{}
		}
		writeJSON(w, map[string]any{"runs": runs, "count": len(runs)})
	}
}

func handleGraphStats(gs *graph.GraphStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nodes, err := gs.NodeCounts(r.Context())
		if err != nil {
			logger.Error("node counts failed", "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		rels, err := gs.RelationshipCounts(r.Context())
		if err != nil {
			logger.Error("relationship counts failed", "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"nodes": nodes, "relationships": rels})
	}
}

func handleTopCommenters(gs *graph.GraphStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := gs.TopCommenters(r.Context(), queryInt(r, "limit", 10))
		if err != nil {
			logger.Error("top commenters failed", "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if stats == nil {
			stats = []graph.CommenterStats{}
		}
		writeJSON(w, map[string]any{"commenters": stats})
	}
}

func handleBusiestThreads(gs *graph.GraphStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := gs.BusiestThreads(r.Context(), queryInt(r, "limit", 10))
		if err != nil {
			logger.Error("busiest threads failed", "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if stats == nil {
			stats = []graph.ThreadStats{}
		}
		writeJSON(w, map[string]any{"threads": stats})
	}
}

func handleReplies(gs *graph.GraphStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		replies, err := gs.RepliesOf(r.Context(), id)
		if err != nil {
			logger.Error("replies lookup failed", "comment", id, "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if replies == nil {
			replies = []graph.CommentNode{}
		}
		writeJSON(w, map[string]any{"comment_id": id, "replies": replies})
	}
}

func handleAncestry(gs *graph.GraphStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		chain, err := gs.AncestryOf(r.Context(), id)
		if err != nil {
			logger.Error("ancestry lookup failed", "comment", id, "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if chain == nil {
			chain = []graph.CommentNode{}
		}
		writeJSON(w, map[string]any{"comment_id": id, "ancestry": chain})
	}
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
	Author   string `json:"author,omitempty"`
}

// SearchResponse is the JSON response for POST /api/search.
type SearchResponse struct {
	Results []semantic.SearchResult `json:"results"`
	Count   int                     `json:"count"`
}

func handleSearch(vs *semantic.VectorStore, embed *ollama.EmbedClient, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			http.Error(w, `{"error":"query is required"}`, http.StatusBadRequest)
			return
		}
		if req.TopK < 1 || req.TopK > 100 {
			req.TopK = 10
		}

		vec, err := embed.Embed(r.Context(), req.Query)
		if err != nil {
			logger.Error("query embed failed", "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		filters := map[string]string{}
		if req.ThreadID != "" {
			filters["thread_id"] = req.ThreadID
		}
		if req.Author != "" {
			filters["author"] = req.Author
		}

		results, err := vs.SearchFiltered(r.Context(), vec, req.TopK, filters)
		if err != nil {
			logger.Error("search failed", "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if results == nil {
			results = []semantic.SearchResult{}
		}
		mSearches.Inc()
		writeJSON(w, SearchResponse{Results: results, Count: len(results)})
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// queryInt reads an integer query parameter, falling back to def when the
// parameter is absent or not a non-negative integer.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
