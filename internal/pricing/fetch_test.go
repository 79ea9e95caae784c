package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCacheFile(t *testing.T, dir string, env cacheEnvelope) {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFileName), data, 0o644))
}

func TestLoadFetchesAndCaches(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(map[string]ModelPrice{
			"gpt-5":       {Input: 1e-6, Output: 2e-6},
			"sample_spec": {},
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	loader := &Loader{CacheDir: dir, URL: srv.URL, TTL: time.Hour, Client: srv.Client()}

	catalog, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.Len())
	assert.Equal(t, 1, hits)

	// second load is served from the fresh cache
	catalog, err = loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.Len())
	assert.Equal(t, 1, hits)
}

func TestLoadPrefersFreshCache(t *testing.T) {
	dir := t.TempDir()
	writeCacheFile(t, dir, cacheEnvelope{
		Timestamp: time.Now().UTC(),
		Data:      map[string]ModelPrice{"cached-model": {Input: 1e-6}},
	})

	loader := &Loader{CacheDir: dir, URL: "http://127.0.0.1:0/unreachable", TTL: time.Hour}

	catalog, err := loader.Load(context.Background())
	require.NoError(t, err)
	_, ok := catalog.Resolve("cached-model")
	assert.True(t, ok)
}

func TestLoadFallsBackToStaleCache(t *testing.T) {
	dir := t.TempDir()
	writeCacheFile(t, dir, cacheEnvelope{
		Timestamp: time.Now().UTC().Add(-48 * time.Hour),
		Data:      map[string]ModelPrice{"stale-model": {Input: 1e-6}},
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	loader := &Loader{CacheDir: dir, URL: srv.URL, TTL: time.Hour, Client: srv.Client()}

	catalog, err := loader.Load(context.Background())
	require.NoError(t, err)
	_, ok := catalog.Resolve("stale-model")
	assert.True(t, ok)
}

func TestLoadNoCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	loader := &Loader{CacheDir: t.TempDir(), URL: srv.URL, TTL: time.Hour, Client: srv.Client()}

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCatalog)
}
