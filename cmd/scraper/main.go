// Command scraper downloads one Reddit thread's comment section via the
// public JSON endpoint, flattens the comment tree, resolves "more"
// placeholders, and emits the records as JSON Lines or NATS messages.
// Records go to stdout; logs go to stderr so the two never interleave.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/harvest"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/ingest"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/reddit"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/sink"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/fn"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/metrics"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/natsutil"
)

var met = metrics.New()

var (
	mComments      = met.Counter("reddit_scraper_comments_total", "Comments emitted to the sink")
	mBatches       = met.Counter("reddit_scraper_batches_total", "Continuation batches requested")
	mBatchFailures = met.Counter("reddit_scraper_batch_failures_total", "Continuation batches failed and skipped")
)

// Config holds the flag-based configuration.
type Config struct {
	URL         string
	MaxComments string
	InputPath   string
	Proxies     []string
	OutPath     string
	NATSURL     string
	Subject     string
	MetricsPort int
}

func main() {
	var cfg Config
	var proxyList string

	flag.StringVar(&cfg.URL, "url", "", "thread URL to harvest")
	flag.StringVar(&cfg.MaxComments, "max-comments", "20", `result cap; empty or non-numeric means unbounded`)
	flag.StringVar(&cfg.InputPath, "input", "", "JSON input document (url, maxComments, proxies)")
	flag.StringVar(&proxyList, "proxy", "", "comma-separated proxy URLs, rotated per attempt")
	flag.StringVar(&cfg.OutPath, "out", "", "output file for JSON Lines records (default stdout)")
	flag.StringVar(&cfg.NATSURL, "nats", "", "NATS URL; when set, records are published to -subject")
	flag.StringVar(&cfg.Subject, "subject", ingest.Subject, "NATS subject for published records")
	flag.IntVar(&cfg.MetricsPort, "metrics-port", 0, "Prometheus sidecar port (0 = off)")
	flag.Parse()

	cfg.Proxies = splitList(proxyList)

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(cfg, logger, explicit); err != nil {
		logger.Error("harvest failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger, explicit map[string]bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	in, err := buildInput(cfg, explicit)
	if err != nil {
		return err
	}

	if cfg.MetricsPort > 0 {
		met.CollectRuntime(ctx, "reddit_scraper", 15*time.Second)
		met.ServeAsync(cfg.MetricsPort)
	}

	var sinks []sink.Sink
	var threads harvest.ThreadSink
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		sinks = append(sinks, sink.NewNATS(nc, cfg.Subject))
		threads = &threadPublisher{nc: nc}
		logger.Info("publishing records", "subject", cfg.Subject)
	}
	if cfg.OutPath != "" {
		f, err := os.Create(cfg.OutPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		sinks = append(sinks, sink.NewBuffered(sink.NewJSONL(f), sink.DefaultFlushEvery))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, sink.NewJSONL(os.Stdout))
	}
	var out sink.Sink = sinks[0]
	if len(sinks) > 1 {
		out = sink.NewMulti(sinks...)
	}

	client := reddit.NewClient(reddit.Config{
		Proxies: in.Proxies,
		Logger:  logger,
	})
	h := harvest.New(client, out, harvest.Options{Logger: logger, Threads: threads})

	stats, runErr := h.Run(ctx, in)
	closeErr := out.Close()

	mComments.Add(int64(stats.Comments))
	mBatches.Add(int64(stats.Batches))
	mBatchFailures.Add(int64(stats.BatchFailures))

	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("close sink: %w", closeErr)
	}
	return nil
}

// buildInput merges the three input sources. Flags win over the JSON input
// document, which wins over environment defaults. The flag default for
// -max-comments only applies when neither flag nor document supplied a cap.
func buildInput(cfg Config, explicit map[string]bool) (domain.Input, error) {
	var in domain.Input
	if cfg.InputPath != "" {
		data, err := os.ReadFile(cfg.InputPath)
		if err != nil {
			return in, fmt.Errorf("read input: %w", err)
		}
		if in, err = domain.ParseInput(data); err != nil {
			return in, err
		}
	}

	if cfg.URL != "" {
		in.URL = cfg.URL
	}
	if in.URL == "" {
		in.URL = os.Getenv("REDDIT_URL")
	}

	if explicit["max-comments"] || in.MaxComments == nil {
		in.MaxComments = cfg.MaxComments
	}

	if len(cfg.Proxies) > 0 {
		in.Proxies = cfg.Proxies
	}
	if len(in.Proxies) == 0 {
		in.Proxies = splitList(os.Getenv("REDDIT_PROXIES"))
	}
	return in, nil
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	return fn.FilterMap(strings.Split(s, ","), func(p string) (string, bool) {
		p = strings.TrimSpace(p)
		return p, p != ""
	})
}

// threadPublisher forwards the thread document to the archive's thread
// subject so the archiver can store title and subreddit metadata.
type threadPublisher struct {
	nc *nats.Conn
}

func (p *threadPublisher) SaveThread(ctx context.Context, t domain.Thread) error {
	return natsutil.Publish(ctx, p.nc, ingest.ThreadSubject, t)
}
