package static

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/fetcher"
)

// ErrNotConfigured is returned by Load when neither a base URL nor a
// directory is set.
var ErrNotConfigured = eris.New("static: no asset source configured")

// Loader reads public assets by file name, over HTTP or from disk.
type Loader struct {
	fetcher fetcher.Fetcher
	baseURL string
	dir     string

	mu    sync.Mutex
	cache map[string]cachedAsset
}

type cachedAsset struct {
	etag string
	data []byte
}

// NewLoader creates a loader. baseURL wins over dir when both are set.
func NewLoader(f fetcher.Fetcher, baseURL, dir string) *Loader {
	return &Loader{
		fetcher: f,
		baseURL: strings.TrimRight(baseURL, "/"),
		dir:     dir,
		cache:   make(map[string]cachedAsset),
	}
}

// Configured reports whether Load has a source to read from.
func (l *Loader) Configured() bool {
	return l != nil && ((l.baseURL != "" && l.fetcher != nil) || l.dir != "")
}

// Load returns the raw bytes of the named asset. Over HTTP, an unchanged
// ETag serves the previous body.
func (l *Loader) Load(ctx context.Context, name string) ([]byte, error) {
	switch {
	case l == nil:
		return nil, ErrNotConfigured
	case l.baseURL != "" && l.fetcher != nil:
		return l.loadURL(ctx, name)
	case l.dir != "":
		data, err := os.ReadFile(filepath.Join(l.dir, filepath.Base(name)))
		if err != nil {
			return nil, eris.Wrapf(err, "static: read %s", name)
		}
		return data, nil
	default:
		return nil, ErrNotConfigured
	}
}

func (l *Loader) loadURL(ctx context.Context, name string) ([]byte, error) {
	u := l.baseURL + "/" + path.Base(name)

	l.mu.Lock()
	prev, hasPrev := l.cache[u]
	l.mu.Unlock()

	body, etag, changed, err := l.fetcher.DownloadIfChanged(ctx, u, prev.etag)
	if err != nil {
		return nil, eris.Wrapf(err, "static: fetch %s", name)
	}
	if !changed && hasPrev {
		zap.L().Debug("static: asset unchanged", zap.String("url", u))
		return prev.data, nil
	}
	if body == nil {
		return nil, eris.Errorf("static: empty response for %s", name)
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(body, fetcher.DefaultMaxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "static: read %s", name)
	}

	if etag != "" {
		l.mu.Lock()
		l.cache[u] = cachedAsset{etag: etag, data: data}
		l.mu.Unlock()
	}
	return data, nil
}
