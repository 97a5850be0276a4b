package books_test

import (
	"context"
	"testing"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/apiclient"
	"github.com/bookwrightapp/bookwright/pkg/books"
	"github.com/bookwrightapp/bookwright/pkg/config"
	"github.com/bookwrightapp/bookwright/pkg/credits"
	"github.com/bookwrightapp/bookwright/pkg/errcodes"
	"github.com/bookwrightapp/bookwright/pkg/localstore"
	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/bookwrightapp/bookwright/pkg/querycache"
	"github.com/bookwrightapp/bookwright/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv   *testutils.Server
	svc   *books.Service
	cache *querycache.Cache
	store *localstore.Store
}

func newFixture(t *testing.T, baseURL string) *fixture {
	t.Helper()

	f := &fixture{}
	if baseURL == "" {
		f.srv = testutils.NewServer(t)
		baseURL = f.srv.URL
	}

	cfg := &config.Config{
		APIBaseURL:          baseURL,
		RequestTimeout:      5 * time.Second,
		BalanceStaleAfter:   time.Minute,
		BookStaleAfter:      time.Minute,
		CreditsPollInterval: time.Hour,
		CacheDir:            t.TempDir(),
	}

	api := apiclient.New(cfg, func() string { return testutils.LicenseKey })
	f.cache = querycache.New()

	store, err := localstore.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	f.store = store

	creditsSvc := credits.NewService(cfg, api, f.cache)
	f.svc = books.NewService(cfg, api, f.cache, creditsSvc, store)
	return f
}

func validCreatePayload() books.CreateBookPayload {
	return books.CreateBookPayload{
		Title:       "The Lantern Atlas",
		Description: "A cartographer inherits a map that redraws itself every night at moonrise.",
		BookType:    models.BookTypeFiction,
		TargetPages: 5,
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("rejects an invalid payload before any request", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "")

		p := validCreatePayload()
		p.Description = "too short"
		_, err := f.svc.Create(context.Background(), p)
		require.Error(t, err)

		apiErr := &errcodes.Error{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "validation_error", apiErr.Code)
		assert.Equal(t, 0, f.srv.RequestCount("POST /v1/books"))
	})

	t.Run("guards the projected cost before any request", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "")
		f.srv.SetBalance(100, 95) // 5 remaining, book needs 7

		_, err := f.svc.Create(context.Background(), validCreatePayload())
		require.Error(t, err)

		apiErr := &errcodes.Error{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "insufficient_credits", apiErr.Code)
		assert.Equal(t, 0, f.srv.RequestCount("POST /v1/books"))
	})

	t.Run("defaults target pages and invalidates the listing and balance", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "")
		ctx := context.Background()

		// Warm both cache entries.
		_, err := f.svc.List(ctx, books.ListBooksQuery{})
		require.NoError(t, err)

		p := validCreatePayload()
		p.TargetPages = 0 // defaulted to 25
		resp, err := f.svc.Create(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, 25, resp.Book.TargetPages)

		list, err := f.svc.List(ctx, books.ListBooksQuery{})
		require.NoError(t, err)
		assert.Equal(t, 1, list.Total)
		assert.Equal(t, 2, f.srv.RequestCount("GET /v1/books"))
	})
}

func TestGeneratePage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	ctx := context.Background()

	book := &models.Book{Title: "Pagewise", Description: "d", TargetPages: 2, Pages: []*models.Page{}}
	f.srv.SeedBook(book)

	resp, err := f.svc.GeneratePage(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, resp.Book.Pages, 1)
	assert.Equal(t, 1, resp.Book.Pages[0].PageNumber)

	t.Run("invalidates the book detail entry", func(t *testing.T) {
		_, ok := f.cache.Peek(querycache.KeyBook(book.ID))
		assert.False(t, ok)
	})

	t.Run("fails the guard without a request when broke", func(t *testing.T) {
		f.srv.SetBalance(10, 10)
		f.cache.Invalidate(querycache.KeyCredits)

		before := f.srv.RequestCount("POST /v1/books/" + book.ID + "/pages")
		_, err := f.svc.GeneratePage(ctx, book.ID)
		require.Error(t, err)
		assert.Equal(t, before, f.srv.RequestCount("POST /v1/books/"+book.ID+"/pages"))
	})
}

func TestUpdatePage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	ctx := context.Background()

	book := &models.Book{
		Title: "Edits", Description: "d", TargetPages: 2,
		Pages: []*models.Page{{ID: "p1", PageNumber: 1, Content: "<p>v1</p>", Version: 1}},
	}
	f.srv.SeedBook(book)

	updated, err := f.svc.UpdatePage(ctx, book.ID, 1, books.UpdatePagePayload{Content: "<p>v2</p>", BaseVersion: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Page(1).Version)

	t.Run("stale base version surfaces the conflict", func(t *testing.T) {
		_, err := f.svc.UpdatePage(ctx, book.ID, 1, books.UpdatePagePayload{Content: "<p>v3</p>", BaseVersion: 1})
		require.Error(t, err)

		apiErr := &errcodes.Error{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "conflict", apiErr.Code)
	})
}

func TestReorderPages(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	ctx := context.Background()

	book := &models.Book{
		Title: "Shuffle", Description: "d", TargetPages: 3,
		Pages: []*models.Page{
			{ID: "p1", PageNumber: 1, Version: 1},
			{ID: "p2", PageNumber: 2, Version: 1},
			{ID: "p3", PageNumber: 3, Version: 1},
		},
	}
	f.srv.SeedBook(book)

	reorderPath := "PUT /v1/books/" + book.ID + "/pages/reorder"

	tests := []struct {
		name    string
		pageIDs []string
	}{
		{"partial set", []string{"p1", "p2"}},
		{"duplicate id", []string{"p1", "p1", "p2"}},
		{"unknown id", []string{"p1", "p2", "p9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name+" is rejected before any request", func(t *testing.T) {
			_, err := f.svc.ReorderPages(ctx, book, books.ReorderPagesPayload{PageIDs: tt.pageIDs})
			require.Error(t, err)

			apiErr := &errcodes.Error{}
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "validation_error", apiErr.Code)
			assert.Equal(t, 0, f.srv.RequestCount(reorderPath))
		})
	}

	t.Run("full permutation goes through", func(t *testing.T) {
		updated, err := f.svc.ReorderPages(ctx, book, books.ReorderPagesPayload{PageIDs: []string{"p2", "p3", "p1"}})
		require.NoError(t, err)
		assert.Equal(t, "p2", updated.Pages[0].ID)
		assert.True(t, updated.HasContiguousPages())
		assert.Equal(t, 1, f.srv.RequestCount(reorderPath))
	})
}

func TestComplete(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	ctx := context.Background()

	book := &models.Book{
		Title: "Done Soon", Description: "d", TargetPages: 1,
		Pages: []*models.Page{{ID: "p1", PageNumber: 1, Version: 1}},
	}
	f.srv.SeedBook(book)

	resp, err := f.svc.Complete(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, resp.Book.IsCompleted)
	assert.Equal(t, 98, f.srv.Balance().Remaining)
}

func TestOfflineFallback(t *testing.T) {
	t.Parallel()

	// Seed a snapshot through a live fixture, then point a second service at
	// an unreachable address backed by the same cache dir.
	live := newFixture(t, "")
	ctx := context.Background()

	book := &models.Book{Title: "Offline Reading", Description: "d", TargetPages: 1, Pages: []*models.Page{}}
	live.srv.SeedBook(book)
	_, err := live.svc.Retrieve(ctx, book.ID)
	require.NoError(t, err)

	cfg := &config.Config{
		APIBaseURL:          "http://127.0.0.1:1",
		RequestTimeout:      500 * time.Millisecond,
		BalanceStaleAfter:   time.Minute,
		BookStaleAfter:      time.Minute,
		CreditsPollInterval: time.Hour,
	}
	api := apiclient.New(cfg, func() string { return testutils.LicenseKey })
	cache := querycache.New()
	creditsSvc := credits.NewService(cfg, api, cache)
	offline := books.NewService(cfg, api, cache, creditsSvc, live.store)

	result, err := offline.Retrieve(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, result.Stale)
	assert.Equal(t, "Offline Reading", result.Book.Title)

	list, err := offline.List(ctx, books.ListBooksQuery{})
	require.NoError(t, err)
	assert.True(t, list.Stale)
	assert.Equal(t, 1, list.Total)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "")
	ctx := context.Background()

	book := &models.Book{Title: "Gone", Description: "d", TargetPages: 1, Pages: []*models.Page{}}
	f.srv.SeedBook(book)

	_, err := f.svc.Retrieve(ctx, book.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, book.ID))
	assert.Nil(t, f.srv.Book(book.ID))

	_, err = f.svc.RetrieveLocal(ctx, book.ID)
	require.Error(t, err)
}
