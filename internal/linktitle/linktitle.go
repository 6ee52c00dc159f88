// Package linktitle resolves the <title> of evidence links, caching the
// results.
package linktitle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; TallyBot/1.0)"

	// maxBodyBytes caps how much of a page is read looking for <title>.
	maxBodyBytes = 1 << 20
)

// Cache stores resolved titles by URL.
type Cache interface {
	LinkTitle(ctx context.Context, url string) (title string, ok bool, err error)
	SaveLinkTitle(ctx context.Context, url, title string) error
}

// Resolver looks up titles in the cache and fetches them on a miss.
// Concurrent misses for the same URL share one fetch.
type Resolver struct {
	cache     Cache
	client    *http.Client
	userAgent string
	logger    *slog.Logger
	group     singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.client.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent when fetching.
func WithUserAgent(ua string) Option {
	return func(r *Resolver) {
		if ua != "" {
			r.userAgent = ua
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its timeout is kept as is.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.client = c
	}
}

// WithLogger sets the resolver logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver creates a Resolver backed by cache.
func NewResolver(cache Cache, opts ...Option) *Resolver {
	r := &Resolver{
		cache:     cache,
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the title of the page at url. It never fails: fetch and
// parse errors are logged and yield "". Only non-empty titles are cached.
func (r *Resolver) Resolve(ctx context.Context, url string) string {
	if title, ok, err := r.cache.LinkTitle(ctx, url); err != nil {
		r.logger.Warn("link title cache lookup failed", slog.String("url", url), slog.String("error", err.Error()))
	} else if ok {
		return title
	}

	v, _, _ := r.group.Do(url, func() (any, error) {
		// Detach from the first caller so its cancellation does not fail
		// the callers sharing this fetch.
		fetchCtx := context.WithoutCancel(ctx)
		title, err := r.fetch(fetchCtx, url)
		if err != nil {
			r.logger.Info("link title fetch failed", slog.String("url", url), slog.String("error", err.Error()))
			return "", nil
		}
		if title != "" {
			if err := r.cache.SaveLinkTitle(fetchCtx, url, title); err != nil {
				r.logger.Warn("link title cache save failed", slog.String("url", url), slog.String("error", err.Error()))
			}
		}
		return title, nil
	})
	return v.(string)
}

func (r *Resolver) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("linktitle: build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("linktitle: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("linktitle: unexpected status %d", resp.StatusCode)
	}
	return ExtractTitle(io.LimitReader(resp.Body, maxBodyBytes))
}

// ExtractTitle returns the trimmed text of the first <title> element, or ""
// when there is none.
func ExtractTitle(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	inTitle := false
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", fmt.Errorf("linktitle: parse html: %w", err)
			}
			return strings.TrimSpace(b.String()), nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				b.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if inTitle && string(name) == "title" {
				return strings.Join(strings.Fields(b.String()), " "), nil
			}
		}
	}
}
