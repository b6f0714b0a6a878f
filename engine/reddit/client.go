package reddit

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/fn"
)

// Fixed browser-like headers sent on every request.
const (
	browserUA      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.9"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRetryBase = 2 * time.Second
	maxAttempts      = 3
)

// Config controls client behavior.
type Config struct {
	// Base is the endpoint root for continuation requests.
	// Defaults to BaseURL.
	Base string
	// Proxies are rotated across attempts when set.
	Proxies []string
	// Timeout bounds each individual attempt. Defaults to 30s.
	Timeout time.Duration
	// RetryBase is the first backoff wait; it doubles per attempt.
	// Defaults to 2s.
	RetryBase time.Duration
	Logger    *slog.Logger
}

// Client fetches thread and continuation documents from Reddit's public
// JSON API. Requests ride plain HTTP/1.1 with browser headers; any non-200
// is retried up to 3 attempts with doubling backoff. The caller drives
// requests one at a time.
type Client struct {
	cfg      Config
	client   *http.Client
	base     *http.Transport
	proxySeq atomic.Uint64
}

// NewClient creates a Client with the given config.
func NewClient(cfg Config) *Client {
	if cfg.Base == "" {
		cfg.Base = BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{cfg: cfg}
	// Empty TLSNextProto disables HTTP/2 negotiation; every request stays
	// on a single plain stream.
	c.base = &http.Transport{
		Proxy:             c.proxyFor,
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	c.client = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(c.base),
	}
	return c
}

// proxyFor rotates through the configured proxies, one per request.
func (c *Client) proxyFor(*http.Request) (*url.URL, error) {
	if len(c.cfg.Proxies) == 0 {
		return nil, nil
	}
	n := c.proxySeq.Add(1)
	raw := c.cfg.Proxies[int((n-1)%uint64(len(c.cfg.Proxies)))]
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("proxy %q: %w", raw, err)
	}
	return u, nil
}

// FetchThread downloads and parses the thread document for threadURL.
func (c *Client) FetchThread(ctx context.Context, threadURL string) (domain.Thread, []Thing, error) {
	jsonURL := ThreadJSONURL(threadURL)
	body, err := c.fetch(ctx, jsonURL)
	if err != nil {
		return domain.Thread{}, nil, err
	}
	return ParseThread(jsonURL, body)
}

// FetchMore resolves one continuation batch of up to MaxMoreBatch ids.
func (c *Client) FetchMore(ctx context.Context, postID string, ids []string) ([]Thing, error) {
	u := MoreChildrenURL(c.cfg.Base, postID, ids)
	body, err := c.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	return ParseMoreChildren(u, body)
}

// fetch GETs rawURL with the fixed headers. Transport errors and non-200
// statuses are retried; decoding happens in the callers so a malformed body
// is final, never retried.
func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	attempts := 0
	lastStatus := 0

	result := fn.Retry(ctx, fn.RetryOpts{
		MaxAttempts: maxAttempts,
		InitialWait: c.cfg.RetryBase,
		MaxWait:     c.cfg.Timeout,
		RetryIf: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	}, func(ctx context.Context) fn.Result[[]byte] {
		attempts++
		body, status, err := c.doGet(ctx, rawURL)
		if err != nil {
			if status != 0 {
				lastStatus = status
			}
			c.cfg.Logger.Warn("fetch attempt failed",
				"url", rawURL, "attempt", attempts, "status", status, "error", err)
			return fn.Err[[]byte](err)
		}
		lastStatus = status
		return fn.Ok(body)
	})

	body, err := result.Unwrap()
	if err != nil {
		return nil, &domain.TransportError{URL: rawURL, Status: lastStatus, Attempts: attempts, Err: err}
	}
	return body, nil
}

func (c *Client) doGet(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("http %d from %s", resp.StatusCode, rawURL)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
