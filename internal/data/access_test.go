package data

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapeo-verde/mapeo-verde-api/internal/cache"
	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
	"github.com/mapeo-verde/mapeo-verde-api/internal/resilience"
	"github.com/mapeo-verde/mapeo-verde-api/internal/store"
)

// fakeBackend serves canned rows and documents. Zero values are empty
// tables.
type fakeBackend struct {
	mu         sync.Mutex
	greenAreas []model.GreenArea
	projects   []model.Project
	gazettes   []model.Gazette
	events     []model.Event
	documents  map[string][]byte
	err        error
	delay      time.Duration

	tableCalls  atomic.Int32
	submissions []*model.Submission
}

func (f *fakeBackend) wait(ctx context.Context) error {
	f.tableCalls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeBackend) GreenAreas(ctx context.Context) ([]model.GreenArea, error) {
	return f.greenAreas, f.wait(ctx)
}

func (f *fakeBackend) Projects(ctx context.Context) ([]model.Project, error) {
	return f.projects, f.wait(ctx)
}

func (f *fakeBackend) Gazettes(ctx context.Context) ([]model.Gazette, error) {
	return f.gazettes, f.wait(ctx)
}

func (f *fakeBackend) Events(ctx context.Context) ([]model.Event, error) {
	return f.events, f.wait(ctx)
}

func (f *fakeBackend) Document(_ context.Context, table, name string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.documents[table+"/"+name], nil
}

func (f *fakeBackend) PutDocument(context.Context, string, string, []byte) error { return nil }

func (f *fakeBackend) InsertSubmission(_ context.Context, sub *model.Submission) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sub.ID = "sub-1"
	f.submissions = append(f.submissions, sub)
	return nil
}

func (f *fakeBackend) Seed(context.Context, store.SeedData) (int64, error) { return 0, nil }
func (f *fakeBackend) Migrate(context.Context) error                      { return nil }
func (f *fakeBackend) Ping(context.Context) error                         { return nil }
func (f *fakeBackend) Close() error                                       { return nil }

var fallbackAreas = []model.GreenArea{{ID: 99, Name: "Parque de respaldo"}}

func TestAccess_NoBackendReturnsFallback(t *testing.T) {
	a := NewAccess(nil, nil, nil, nil)
	ctx := context.Background()

	areas, live := a.FetchGreenAreas(ctx, DefaultOptions().WithFallback(fallbackAreas))
	assert.False(t, live)
	assert.Equal(t, fallbackAreas, areas)

	projects := a.Projects(ctx, DefaultOptions())
	require.NotNil(t, projects, "nil fallback must become an empty slice")
	assert.Empty(t, projects)

	assert.NotNil(t, a.Gazettes(ctx, DefaultOptions()))
	assert.NotNil(t, a.Events(ctx, DefaultOptions()))
}

func TestAccess_FallbackOfWrongTypeIgnored(t *testing.T) {
	a := NewAccess(nil, nil, nil, nil)
	events := a.Events(context.Background(), DefaultOptions().WithFallback(fallbackAreas))
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestAccess_RelationalTierWins(t *testing.T) {
	fb := &fakeBackend{greenAreas: []model.GreenArea{{ID: 1, Name: "Parque México"}}}
	a := NewAccess(fb, nil, nil, nil)

	areas, live := a.FetchGreenAreas(context.Background(), DefaultOptions().WithFallback(fallbackAreas))
	assert.True(t, live)
	require.Len(t, areas, 1)
	assert.Equal(t, "Parque México", areas[0].Name)
}

func TestAccess_JSONTierUnwrapsObject(t *testing.T) {
	fb := &fakeBackend{documents: map[string][]byte{
		store.TableAreasJSON + "/": []byte(`{"areas":[{"id":4,"name":"Jardín del Encino","lat":21.87,"lng":-102.29}]}`),
	}}
	a := NewAccess(fb, nil, nil, nil)

	areas := a.GreenAreas(context.Background(), DefaultOptions())
	require.Len(t, areas, 1)
	assert.Equal(t, "Jardín del Encino", areas[0].Name)
}

func TestAccess_ProjectsFromBoletinesBlob(t *testing.T) {
	fb := &fakeBackend{documents: map[string][]byte{
		store.TableBoletinesJSON + "/": []byte(`{"boletines":[{"id":"B1","fecha":"2025-03-01","proyectos_ingresados":[{"numero":1,"nombre_proyecto":"Fraccionamiento Norte"}]}]}`),
	}}
	a := NewAccess(fb, nil, nil, nil)

	projects := a.Projects(context.Background(), DefaultOptions())
	require.Len(t, projects, 1)
	assert.Equal(t, "B1-1", projects[0].ID)
	assert.Equal(t, model.StatusIngreso, projects[0].Status)
}

func TestAccess_EventsFromDocumentosBlob(t *testing.T) {
	fb := &fakeBackend{documents: map[string][]byte{
		store.TableDocumentosJSON + "/" + store.EventsDocument: []byte(`[{"id":"e1","title":"Limpieza del río","date":"2025-02-01"}]`),
	}}
	a := NewAccess(fb, nil, nil, nil)

	events, live := a.FetchEvents(context.Background(), DefaultOptions())
	assert.True(t, live)
	require.Len(t, events, 1)
	assert.Equal(t, "Limpieza del río", events[0].Title)
}

func TestAccess_EmptyBackendFallsBack(t *testing.T) {
	a := NewAccess(&fakeBackend{}, nil, nil, nil)

	areas, live := a.FetchGreenAreas(context.Background(), DefaultOptions().WithFallback(fallbackAreas))
	assert.False(t, live)
	assert.Equal(t, fallbackAreas, areas)
}

func TestAccess_CachesResult(t *testing.T) {
	fb := &fakeBackend{projects: []model.Project{{ID: "P1"}}}
	a := NewAccess(fb, cache.NewQueryCache(time.Minute), nil, nil)
	ctx := context.Background()

	first := a.Projects(ctx, DefaultOptions())
	second := a.Projects(ctx, DefaultOptions())
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fb.tableCalls.Load())

	// Returned slices are copies of the cached value.
	first[0].ID = "mutated"
	third := a.Projects(ctx, DefaultOptions())
	assert.Equal(t, "P1", third[0].ID)

	a.Invalidate()
	a.Projects(ctx, DefaultOptions())
	assert.Equal(t, int32(2), fb.tableCalls.Load())
}

func TestAccess_NoCacheOption(t *testing.T) {
	fb := &fakeBackend{projects: []model.Project{{ID: "P1"}}}
	a := NewAccess(fb, nil, nil, nil)
	ctx := context.Background()

	a.Projects(ctx, Options{})
	a.Projects(ctx, Options{})
	assert.Equal(t, int32(2), fb.tableCalls.Load())
	assert.Equal(t, 0, a.Cache().Len())
}

func TestAccess_ConcurrentReadsDeduplicated(t *testing.T) {
	fb := &fakeBackend{gazettes: []model.Gazette{{ID: "GAC-1-1"}}, delay: 50 * time.Millisecond}
	a := NewAccess(fb, nil, nil, nil)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := a.Gazettes(context.Background(), Options{})
			assert.Len(t, got, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fb.tableCalls.Load())
}

func TestAccess_BreakerOpensAfterFailures(t *testing.T) {
	fb := &fakeBackend{err: errors.New("permission denied for table projects")}
	breakers := resilience.NewBreakers(resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	a := NewAccess(fb, nil, nil, breakers)
	ctx := context.Background()

	// One read runs both tiers, each a breaker failure.
	got := a.Projects(ctx, Options{Fallback: []model.Project{{ID: "static"}}})
	require.Len(t, got, 1)
	assert.Equal(t, "static", got[0].ID)
	assert.Equal(t, resilience.Open, breakers.Get(BackendBreaker).State())

	calls := fb.tableCalls.Load()
	a.Projects(ctx, Options{})
	assert.Equal(t, calls, fb.tableCalls.Load(), "open circuit must not reach the backend")
}

func TestAccess_Submit(t *testing.T) {
	ctx := context.Background()

	noBackend := NewAccess(nil, nil, nil, nil)
	err := noBackend.Submit(ctx, &model.Submission{Type: "voluntariado", Email: "ana@example.com"})
	assert.ErrorIs(t, err, store.ErrNoBackend)

	err = noBackend.Submit(ctx, &model.Submission{})
	var verr *store.ValidationError
	assert.ErrorAs(t, err, &verr, "validation runs before the backend check")

	fb := &fakeBackend{}
	a := NewAccess(fb, nil, nil, nil)
	sub := &model.Submission{Type: "voluntariado", Email: "ana@example.com"}
	require.NoError(t, a.Submit(ctx, sub))
	assert.Equal(t, "sub-1", sub.ID)
	assert.Len(t, fb.submissions, 1)
}

func TestUnwrapList(t *testing.T) {
	list, err := unwrapList[model.Event]([]byte(`{"events":[{"id":"a"}]}`), "events")
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = unwrapList[model.Event]([]byte(`{"other":[]}`), "events")
	require.NoError(t, err)
	assert.Nil(t, list)

	list, err = unwrapList[model.Event](nil, "events")
	require.NoError(t, err)
	assert.Nil(t, list)

	_, err = unwrapList[model.Event]([]byte(`"text"`), "events")
	assert.Error(t, err)
}
