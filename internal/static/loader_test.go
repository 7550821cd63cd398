package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapeo-verde/mapeo-verde-api/internal/fetcher"
)

func testFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1, Backoff: time.Millisecond, RatePerSec: 1000})
}

func TestLoader_NotConfigured(t *testing.T) {
	l := NewLoader(nil, "", "")
	assert.False(t, l.Configured())
	_, err := l.Load(context.Background(), "boletines.json")
	assert.ErrorIs(t, err, ErrNotConfigured)

	var nilLoader *Loader
	_, err = nilLoader.Load(context.Background(), "boletines.json")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLoader_Dir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boletines.json"), []byte(`[]`), 0o644))

	l := NewLoader(nil, "", dir)
	data, err := l.Load(context.Background(), "boletines.json")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	_, err = l.Load(context.Background(), "missing.json")
	assert.Error(t, err)
}

func TestLoader_URLWithETag(t *testing.T) {
	var full atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mapeo-verde/gacetas_semarnat_analizadas.json", r.URL.Path)
		if r.Header.Get("If-None-Match") == `"g1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("ETag", `"g1"`)
		w.Write([]byte(`{"analyses":[]}`))
	}))
	defer srv.Close()

	l := NewLoader(testFetcher(), srv.URL+"/mapeo-verde/", "")
	require.True(t, l.Configured())

	for range 2 {
		data, err := l.Load(context.Background(), "gacetas_semarnat_analizadas.json")
		require.NoError(t, err)
		assert.Equal(t, `{"analyses":[]}`, string(data))
	}
	assert.Equal(t, int32(1), full.Load())
}

func TestLoader_URLNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	l := NewLoader(testFetcher(), srv.URL, "")
	_, err := l.Load(context.Background(), "boletines.json")
	assert.Error(t, err)
}
