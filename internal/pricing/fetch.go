package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	log "github.com/sirupsen/logrus"
)

// DefaultURL is the upstream LiteLLM price catalog.
const DefaultURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

// DefaultTTL is how long a cached catalog is considered fresh.
const DefaultTTL = time.Hour

const cacheFileName = "pricing-litellm.json"

// ErrNoCatalog means the upstream fetch failed and no cached copy exists,
// so costs cannot be computed at all.
var ErrNoCatalog = errors.New("pricing catalog unavailable")

// Loader fetches the price catalog, caching it on disk. A fresh cache is
// served without touching the network; a stale cache is used as a fallback
// when the fetch fails.
type Loader struct {
	CacheDir string
	URL      string
	TTL      time.Duration
	Client   *http.Client
}

// NewLoader returns a loader with the default cache location, URL and TTL.
func NewLoader() *Loader {
	return &Loader{
		CacheDir: filepath.Join(xdg.CacheHome, "tokgraph"),
		URL:      DefaultURL,
		TTL:      DefaultTTL,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type cacheEnvelope struct {
	Timestamp time.Time             `json:"timestamp"`
	Data      map[string]ModelPrice `json:"data"`
}

// Load returns the price catalog, preferring a fresh disk cache over the
// network. Returns an error wrapping ErrNoCatalog only when both the fetch
// and the cache come up empty.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	cached, cachedOK := l.readCache()
	if cachedOK && time.Since(cached.Timestamp) < l.TTL {
		return NewCatalog(cached.Data), nil
	}

	data, err := l.fetch(ctx)
	if err == nil {
		l.writeCache(data)
		return NewCatalog(data), nil
	}

	if cachedOK {
		log.WithError(err).Warn("pricing fetch failed, using stale cache")
		return NewCatalog(cached.Data), nil
	}
	return nil, fmt.Errorf("fetch pricing: %v: %w", err, ErrNoCatalog)
}

func (l *Loader) fetch(ctx context.Context) (map[string]ModelPrice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, err
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog fetch returned %s", resp.Status)
	}

	var data map[string]ModelPrice
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	delete(data, "sample_spec")
	return data, nil
}

func (l *Loader) cachePath() string {
	return filepath.Join(l.CacheDir, cacheFileName)
}

func (l *Loader) readCache() (cacheEnvelope, bool) {
	raw, err := os.ReadFile(l.cachePath())
	if err != nil {
		return cacheEnvelope{}, false
	}
	var env cacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Data) == 0 {
		return cacheEnvelope{}, false
	}
	return env, true
}

// writeCache persists the catalog atomically. Failures are logged and
// swallowed; a missing cache only costs a refetch next run.
func (l *Loader) writeCache(data map[string]ModelPrice) {
	if err := os.MkdirAll(l.CacheDir, 0o755); err != nil {
		log.WithError(err).Warn("cannot create pricing cache dir")
		return
	}

	raw, err := json.Marshal(cacheEnvelope{Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		log.WithError(err).Warn("cannot encode pricing cache")
		return
	}

	tmp := l.cachePath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		log.WithError(err).Warn("cannot write pricing cache")
		return
	}
	if err := os.Rename(tmp, l.cachePath()); err != nil {
		os.Remove(tmp)
		log.WithError(err).Warn("cannot replace pricing cache")
	}
}
