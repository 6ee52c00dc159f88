package linktitle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type memCache struct {
	mu     sync.Mutex
	titles map[string]string
}

func newMemCache() *memCache { return &memCache{titles: map[string]string{}} }

func (m *memCache) LinkTitle(_ context.Context, url string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.titles[url]
	return t, ok, nil
}

func (m *memCache) SaveLinkTitle(_ context.Context, url, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.titles[url]; !ok {
		m.titles[url] = title
	}
	return nil
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", `<html><head><title>Hello</title></head></html>`, "Hello"},
		{"whitespace", "<title>\n  Big   News \n</title>", "Big News"},
		{"entities", `<title>Tom &amp; Jerry</title>`, "Tom & Jerry"},
		{"missing", `<html><body>no title</body></html>`, ""},
		{"first wins", `<title>One</title><title>Two</title>`, "One"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractTitle(strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("ExtractTitle: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveFetchesAndCaches(t *testing.T) {
	var hits atomic.Int32
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Write([]byte(`<html><title>Evidence</title></html>`))
	}))
	defer srv.Close()

	cache := newMemCache()
	r := NewResolver(cache, WithUserAgent("test-agent"))
	ctx := context.Background()

	if got := r.Resolve(ctx, srv.URL); got != "Evidence" {
		t.Fatalf("Resolve = %q", got)
	}
	if got := r.Resolve(ctx, srv.URL); got != "Evidence" {
		t.Fatalf("cached Resolve = %q", got)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}
	if ua, _ := gotUA.Load().(string); ua != "test-agent" {
		t.Errorf("User-Agent = %q", ua)
	}
}

func TestResolveFailuresYieldEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			time.Sleep(200 * time.Millisecond)
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<p>untitled</p>`))
	}))
	defer srv.Close()

	cache := newMemCache()
	r := NewResolver(cache, WithTimeout(50*time.Millisecond))
	ctx := context.Background()

	for _, url := range []string{srv.URL + "/missing", srv.URL + "/slow", srv.URL + "/untitled", "://bad"} {
		if got := r.Resolve(ctx, url); got != "" {
			t.Errorf("Resolve(%s) = %q, want empty", url, got)
		}
	}
	if len(cache.titles) != 0 {
		t.Errorf("empty titles cached: %v", cache.titles)
	}
}

func TestResolveSharesConcurrentFetch(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte(`<title>Shared</title>`))
	}))
	defer srv.Close()

	r := NewResolver(newMemCache())
	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), srv.URL)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, got := range results {
		if got != "Shared" {
			t.Errorf("result %d = %q", i, got)
		}
	}
	if n := hits.Load(); n < 1 || n > int32(len(results)) {
		t.Errorf("hits = %d", n)
	}
}
