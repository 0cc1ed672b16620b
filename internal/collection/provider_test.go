package collection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizzems/internal/models"
	"quizzems/pkg/cache"
)

func TestDBProvider(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	coll := capitalsCollection("")
	require.NoError(t, repo.Create(ctx, coll))

	p := NewDBProvider(repo)
	raw, err := p.FetchByID(ctx, coll.ID)
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "Capitals", raw.Category)
	assert.Equal(t, "Unknown", raw.Author)
	assert.Len(t, raw.Items, 3)

	raw, err = p.FetchByID(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, raw)
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/c1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "c1",
				"category": "Capitals",
				"author": "8f1c",
				"shuffle": true,
				"profiles": {"username": "jane", "username_slug": "jane"},
				"items": [{"id": "1", "question": "France?", "answer": "Paris"}]
			}`))
		case "/collections/broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/collections/empty":
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL+"/", nil)
	ctx := context.Background()

	raw, err := p.FetchByID(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.Equal(t, "jane", raw.Author)
	assert.Equal(t, "jane", raw.AuthorSlug)
	assert.True(t, raw.Shuffle)
	require.Len(t, raw.Items, 1)
	assert.Equal(t, "Paris", raw.Items[0].Answer)

	raw, err = p.FetchByID(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = p.FetchByID(ctx, "empty")
	assert.NoError(t, err)
	assert.Nil(t, raw)

	_, err = p.FetchByID(ctx, "broken")
	assert.Error(t, err)
}

type fakeValues struct {
	rows [][]interface{}
	err  error
	got  []string
}

func (f *fakeValues) Values(_ context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	f.got = []string{spreadsheetID, readRange}
	return f.rows, f.err
}

func TestSheetsProvider(t *testing.T) {
	src := &fakeValues{rows: [][]interface{}{
		{"Capital of France?", "Paris"},
		{},
		{"Capital of Peru?"},
		{" Capital of Chile? ", "Santiago "},
	}}
	p := NewSheetsProviderFromSource(src, "")

	raw, err := p.FetchByID(context.Background(), "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sheet-1", DefaultSheetRange}, src.got)
	require.Len(t, raw.Items, 3)
	assert.Equal(t, "Paris", raw.Items[0].Answer)
	assert.Equal(t, "", raw.Items[1].Answer)
	assert.Equal(t, "Capital of Chile?", raw.Items[2].Question)
	assert.Equal(t, "Santiago", raw.Items[2].Answer)

	src.rows = nil
	raw, err = p.FetchByID(context.Background(), "sheet-1")
	assert.NoError(t, err)
	assert.Nil(t, raw)

	src.err = errors.New("quota")
	_, err = p.FetchByID(context.Background(), "sheet-1")
	assert.Error(t, err)
}

type countingProvider struct {
	mu    sync.Mutex
	calls int
	coll  *models.RawCollection
}

func (p *countingProvider) FetchByID(_ context.Context, id string) (*models.RawCollection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.coll == nil || p.coll.ID != id {
		return nil, nil
	}
	return p.coll, nil
}

func TestCachedProviderReadsThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	next := &countingProvider{coll: &models.RawCollection{ID: "c1", Category: "Capitals"}}
	p := NewCachedProvider(next, rc, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		raw, err := p.FetchByID(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "Capitals", raw.Category)
	}
	assert.Equal(t, 1, next.calls)

	p.Invalidate(ctx, "c1")
	_, err := p.FetchByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)

	raw, err := p.FetchByID(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, raw)
	assert.False(t, mr.Exists("collection:missing"), "misses are not cached")
}

func TestCachedProviderSurvivesCacheOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	next := &countingProvider{coll: &models.RawCollection{ID: "c1", Category: "Capitals"}}
	p := NewCachedProvider(next, rc, time.Minute)
	mr.Close()

	raw, err := p.FetchByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Capitals", raw.Category)
}
