package provider

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

	"github.com/mapeo-verde/mapeo-verde-api/internal/data"
	"github.com/mapeo-verde/mapeo-verde-api/internal/fetcher"
	"github.com/mapeo-verde/mapeo-verde-api/internal/ical"
	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
	"github.com/mapeo-verde/mapeo-verde-api/internal/static"
)

type stubCalendar struct {
	events  []model.Event
	calls   atomic.Int32
	release chan struct{} // blocks the first call until closed
}

func (s *stubCalendar) FetchEvents(ctx context.Context) []model.Event {
	if s.calls.Add(1) == 1 && s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
		}
	}
	return s.events
}

func TestRefresh_AllSourcesFail(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1, Backoff: time.Millisecond, RatePerSec: 1000})
	p := New(Deps{
		Access:   data.NewAccess(nil, nil, nil, nil),
		Calendar: ical.NewAdapter(f, ical.Config{URL: down.URL + "/basic.ics"}, nil),
		Loader:   static.NewLoader(f, down.URL, ""),
	})

	state := p.Refresh(context.Background())
	fb := static.Fallbacks()

	assert.Equal(t, fb.GreenAreas, state.GreenAreas)
	assert.Equal(t, fb.Events, state.Events)
	require.NotNil(t, state.Projects)
	require.NotNil(t, state.Gazettes)
	assert.Empty(t, state.Projects)
	assert.Empty(t, state.Gazettes)
	assert.False(t, state.Loading)
	assert.Equal(t, ErrorFallback, state.Error)
	for k, v := range state.Sources {
		assert.Equal(t, OriginFallback, v, k)
	}
	assert.Equal(t, uint64(1), state.Epoch)
}

func TestRefresh_StaticFilesAndCalendar(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boletines.json"),
		[]byte(`[{"id":"B1","fecha":"2025-03-01","proyectos_ingresados":[{"numero":1,"nombre_proyecto":"Plaza Norte"}]}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gacetas_semarnat_analizadas.json"),
		[]byte(`{"analyses":[{"analisis_completo":{"registros":[{"proyecto_nombre":"Parque Solar"}]}}]}`), 0o644))

	cal := &stubCalendar{events: []model.Event{{ID: "live-1", Title: "Plantación", Date: "2025-05-01"}}}
	p := New(Deps{
		Calendar: cal,
		Loader:   static.NewLoader(nil, "", dir),
	})

	state := p.Refresh(context.Background())
	assert.Empty(t, state.Error)
	require.Len(t, state.Projects, 1)
	assert.Equal(t, "B1-1", state.Projects[0].ID)
	require.Len(t, state.Gazettes, 1)
	assert.Equal(t, "GAC-1-1", state.Gazettes[0].ID)
	require.Len(t, state.Events, 1)
	assert.Equal(t, "live-1", state.Events[0].ID)

	assert.Equal(t, OriginStaticFile, state.Sources[KeyProjects])
	assert.Equal(t, OriginStaticFile, state.Sources[KeyGazettes])
	assert.Equal(t, OriginCalendar, state.Sources[KeyEvents])
	assert.Equal(t, OriginFallback, state.Sources[KeyGreenAreas])
}

func TestRefresh_StaleEpochDropped(t *testing.T) {
	cal := &stubCalendar{
		events:  []model.Event{{ID: "ev"}},
		release: make(chan struct{}),
	}
	p := New(Deps{Calendar: cal})

	slow := make(chan State)
	go func() { slow <- p.Refresh(context.Background()) }()

	require.Eventually(t, func() bool { return cal.calls.Load() == 1 }, time.Second, time.Millisecond)
	fresh := p.Refresh(context.Background())
	assert.Equal(t, uint64(2), fresh.Epoch)

	close(cal.release)
	stale := <-slow

	assert.Equal(t, uint64(2), stale.Epoch, "stale refresh returns the newer committed state")
	assert.Equal(t, uint64(2), p.Snapshot().Epoch)
	assert.False(t, p.Snapshot().Loading)
}

func TestSnapshot_IsCopy(t *testing.T) {
	p := New(Deps{})
	s := p.Snapshot()
	require.NotEmpty(t, s.GreenAreas)

	s.GreenAreas[0].Name = "mutated"
	s.Sources[KeyEvents] = "mutated"
	s.GreenAreas[0].Tags = append(s.GreenAreas[0].Tags, "x")

	again := p.Snapshot()
	assert.NotEqual(t, "mutated", again.GreenAreas[0].Name)
	assert.Equal(t, OriginFallback, again.Sources[KeyEvents])
}

func TestNew_InitialState(t *testing.T) {
	p := New(Deps{})
	s := p.Snapshot()
	assert.NotNil(t, s.Projects)
	assert.NotNil(t, s.Gazettes)
	assert.NotEmpty(t, s.Events)
	assert.Equal(t, uint64(0), s.Epoch)
	assert.True(t, s.Loading)

	p.Refresh(context.Background())
	assert.False(t, p.Snapshot().Loading)
}

func TestRun_InitialLoadAndStop(t *testing.T) {
	cal := &stubCalendar{events: []model.Event{{ID: "ev"}}}
	p := New(Deps{Calendar: cal, Config: Config{RefreshInterval: 10 * time.Millisecond, CleanupInterval: 10 * time.Millisecond}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return cal.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, OriginCalendar, p.Snapshot().Sources[KeyEvents])
}
