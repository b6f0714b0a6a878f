// Command archive feeds harvested comment records into the local archive:
// a SQLite dataset, an optional Neo4j conversation graph, and an optional
// Qdrant semantic index. Records arrive live over NATS, from JSON Lines
// files replayed one-shot with -in, or from a directory scanned on an
// interval with -dir.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/dataset"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/graph"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/ingest"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/semantic"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/metrics"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/ollama"
)

var met = metrics.New()

var (
	mRecords    = func(mode string) *metrics.Counter { return met.Counter(metrics.WithLabels("reddit_archive_records_total", "mode", mode), "Comments archived") }
	mErrors     = func(stage string) *metrics.Counter { return met.Counter(metrics.WithLabels("reddit_archive_errors_total", "stage", stage), "Archive errors") }
	mThreads    = met.Counter("reddit_archive_threads_total", "Threads touched by replay")
	mIndexed    = met.Counter("reddit_archive_indexed_total", "Comments indexed into the vector store")
	mFiles      = met.Counter("reddit_archive_files_processed_total", "Replay files processed")
	mDedupSkips = met.Counter("reddit_archive_dedup_skips_total", "Duplicate comments skipped")
	mLastScan   = met.Gauge("reddit_archive_last_scan_timestamp", "Epoch of last directory scan")
	mReplayDur  = met.Histogram("reddit_archive_replay_duration_seconds", "Per-file replay time", nil)
)

const vectorDims = 768 // nomic-embed-text

// Config holds the flag-based configuration.
type Config struct {
	NATSURL     string
	InPath      string
	Dir         string
	Interval    time.Duration
	StatePath   string
	DBPath      string
	Neo4jURL    string
	Neo4jUser   string
	Neo4jPass   string
	QdrantAddr  string
	Collection  string
	OllamaURL   string
	Model       string
	MetricsPort int
}

func main() {
	var cfg Config

	flag.StringVar(&cfg.NATSURL, "nats", "", "NATS URL; when set, records are consumed live")
	flag.StringVar(&cfg.InPath, "in", "", "JSON Lines file to replay once")
	flag.StringVar(&cfg.Dir, "dir", "", "directory of JSON Lines files to scan on an interval")
	flag.DurationVar(&cfg.Interval, "interval", 30*time.Second, "directory scan interval")
	flag.StringVar(&cfg.StatePath, "state", "", "processed files state (default <dir>/.archive-state.json)")
	flag.StringVar(&cfg.DBPath, "db", "archive.db", "SQLite archive path")
	flag.StringVar(&cfg.Neo4jURL, "neo4j", "", "Neo4j bolt URL; empty disables the graph store")
	flag.StringVar(&cfg.Neo4jUser, "neo4j-user", "neo4j", "Neo4j username")
	flag.StringVar(&cfg.Neo4jPass, "neo4j-pass", "", "Neo4j password")
	flag.StringVar(&cfg.QdrantAddr, "qdrant", "", "Qdrant gRPC address; empty disables the semantic index")
	flag.StringVar(&cfg.Collection, "collection", "reddit_comments", "Qdrant collection name")
	flag.StringVar(&cfg.OllamaURL, "ollama", "http://localhost:11434", "Ollama base URL")
	flag.StringVar(&cfg.Model, "model", "nomic-embed-text", "Ollama embedding model")
	flag.IntVar(&cfg.MetricsPort, "metrics-port", 9091, "Prometheus sidecar port (0 = off)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("archive failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	if cfg.InPath == "" && cfg.Dir == "" && cfg.NATSURL == "" {
		return fmt.Errorf("nothing to do: set -in, -dir, or -nats")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsPort > 0 {
		met.CollectRuntime(ctx, "reddit_archive", 15*time.Second)
		met.ServeAsync(cfg.MetricsPort)
	}

	ds, err := dataset.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer ds.Close()
	logger.Info("dataset open", "path", cfg.DBPath)

	var gs *graph.GraphStore
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j connect: %w", err)
		}
		defer driver.Close(ctx)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("neo4j verify: %w", err)
		}
		gs = graph.New(driver)
		logger.Info("graph store connected", "url", cfg.Neo4jURL)
	}

	var ix *semantic.Indexer
	if cfg.QdrantAddr != "" {
		vs, err := semantic.New(cfg.QdrantAddr, cfg.Collection)
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer vs.Close()
		if err := vs.EnsureCollection(ctx, vectorDims); err != nil {
			return fmt.Errorf("qdrant ensure collection: %w", err)
		}
		embedder := ollama.NewEmbedClient(cfg.OllamaURL, cfg.Model)
		ix = semantic.NewIndexer(vs, embedder, logger)
		logger.Info("semantic index ready", "collection", cfg.Collection, "dims", vectorDims)
	}

	deps := ingest.Deps{
		Dataset: ds,
		DeduplicateF: func(ctx context.Context, id string) (bool, error) {
			seen, err := ds.HasComment(ctx, id)
			if seen && err == nil {
				mDedupSkips.Inc()
			}
			return seen, err
		},
		Logger: logger,
	}
	// The optional stores stay out of Deps entirely when disabled so the
	// pipeline's nil checks see a nil interface, not a nil pointer.
	if gs != nil {
		deps.Graph = gs
	}
	if ix != nil {
		deps.Index = ix
	}

	if cfg.InPath != "" {
		if err := replayFile(ctx, cfg.InPath, deps, logger, ds); err != nil {
			return err
		}
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()

		liveDeps := deps
		liveDeps.Dataset = countingDataset{inner: ds}
		sub, err := ingest.StartConsumer(nc, liveDeps)
		if err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
		defer sub.Unsubscribe()

		threadStores := []ingest.ThreadWriter{ds}
		if gs != nil {
			threadStores = append(threadStores, gs)
		}
		tsub, err := ingest.StartThreadConsumer(nc, logger, threadStores...)
		if err != nil {
			return fmt.Errorf("start thread consumer: %w", err)
		}
		defer tsub.Unsubscribe()
		logger.Info("consuming records", "subject", ingest.Subject)
	}

	if cfg.Dir != "" {
		return watchDir(ctx, cfg, deps, logger, ds)
	}
	if cfg.NATSURL != "" {
		<-ctx.Done()
		logger.Info("shutting down")
	}
	return nil
}

// watchDir rescans the replay directory on the configured interval. A file
// is keyed by name and size so appended files get picked up again; a file
// that fails stays unmarked and is retried on the next scan.
func watchDir(ctx context.Context, cfg Config, deps ingest.Deps, logger *slog.Logger, ds *dataset.Store) error {
	statePath := cfg.StatePath
	if statePath == "" {
		statePath = filepath.Join(cfg.Dir, ".archive-state.json")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create replay dir: %w", err)
	}
	processed := loadState(statePath)
	logger.Info("watching for harvested records", "dir", cfg.Dir, "interval", cfg.Interval)

	scan := func() {
		mLastScan.Set(time.Now().Unix())
		entries, err := os.ReadDir(cfg.Dir)
		if err != nil {
			mErrors("scan").Inc()
			logger.Error("readdir failed", "error", err)
			return
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") || e.Name()[0] == '.' {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			key := fmt.Sprintf("%s:%d", e.Name(), info.Size())
			if processed[key] {
				continue
			}
			if err := replayFile(ctx, filepath.Join(cfg.Dir, e.Name()), deps, logger, ds); err != nil {
				logger.Warn("replay failed, will retry on next scan", "file", e.Name(), "error", err)
				continue
			}
			processed[key] = true
			saveState(statePath, processed)
		}
	}

	scan()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			scan()
		}
	}
}

// replayFile runs one JSON Lines file through the archive pipeline and
// records the pass in the runs table.
func replayFile(ctx context.Context, path string, deps ingest.Deps, logger *slog.Logger, ds *dataset.Store) error {
	f, err := os.Open(path)
	if err != nil {
		mErrors("open").Inc()
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	start := time.Now()
	stats, err := ingest.Replay(ctx, f, deps)
	mReplayDur.Since(start)
	if err != nil {
		mErrors("replay").Inc()
		return fmt.Errorf("replay %s: %w", path, err)
	}

	mRecords("replay").Add(int64(stats.Records))
	mThreads.Add(int64(stats.Threads))
	mIndexed.Add(int64(stats.Indexed))
	mFiles.Inc()

	rec := dataset.Run{
		ID:         uuid.NewString(),
		Source:     path,
		Comments:   stats.Records,
		StartedAt:  start,
		FinishedAt: time.Now(),
	}
	if err := ds.SaveRun(ctx, rec); err != nil {
		logger.Warn("run record failed", "error", err)
	}
	logger.Info("replay done", "file", path, "records", stats.Records, "threads", stats.Threads, "indexed", stats.Indexed)
	return nil
}

// countingDataset counts live-consumed batches into the records counter.
type countingDataset struct {
	inner ingest.DatasetWriter
}

func (c countingDataset) SaveComments(ctx context.Context, threadID string, comments []domain.FlatComment) error {
	err := c.inner.SaveComments(ctx, threadID, comments)
	if err == nil {
		mRecords("nats").Add(int64(len(comments)))
	}
	return err
}

func loadState(path string) map[string]bool {
	m := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	json.Unmarshal(data, &m)
	return m
}

func saveState(path string, m map[string]bool) {
	data, _ := json.Marshal(m)
	os.WriteFile(path, data, 0o644)
}
