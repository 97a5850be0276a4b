package localstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/config"
	"github.com/bookwrightapp/bookwright/pkg/errcodes"
	"github.com/bookwrightapp/bookwright/pkg/localstore"
	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *localstore.Store {
	t.Helper()
	store, err := localstore.Open(&config.Config{CacheDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func TestBookSnapshots(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	book := &models.Book{
		ID:          "book_1",
		Title:       "Salt and Starlight",
		Description: "A lighthouse keeper's daughter maps the constellations nobody else can see.",
		TargetPages: 10,
		Pages: []*models.Page{
			{ID: "p1", PageNumber: 1, Content: "<p>one</p>", Version: 3},
		},
	}

	t.Run("missing snapshot is a not found error", func(t *testing.T) {
		_, _, err := store.Book(ctx, "book_1")
		require.Error(t, err)
		apiErr := &errcodes.Error{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "not_found", apiErr.Code)
	})

	t.Run("save and read back", func(t *testing.T) {
		require.NoError(t, store.SaveBook(ctx, book))

		got, fetchedAt, err := store.Book(ctx, "book_1")
		require.NoError(t, err)
		assert.Equal(t, book.Title, got.Title)
		require.Len(t, got.Pages, 1)
		assert.Equal(t, 3, got.Pages[0].Version)
		assert.WithinDuration(t, time.Now(), fetchedAt, 5*time.Second)
	})

	t.Run("save again overwrites", func(t *testing.T) {
		book.Title = "Salt and Starlight, Revised"
		require.NoError(t, store.SaveBook(ctx, book))

		got, _, err := store.Book(ctx, "book_1")
		require.NoError(t, err)
		assert.Equal(t, "Salt and Starlight, Revised", got.Title)

		books, err := store.Books(ctx)
		require.NoError(t, err)
		assert.Len(t, books, 1)
	})

	t.Run("delete drops the snapshot", func(t *testing.T) {
		require.NoError(t, store.DeleteBook(ctx, "book_1"))
		_, _, err := store.Book(ctx, "book_1")
		require.Error(t, err)
	})
}

func TestBalanceSnapshot(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	_, _, err := store.Balance(ctx)
	require.Error(t, err)

	require.NoError(t, store.SaveBalance(ctx, &models.CreditBalance{Total: 100, Used: 30, Remaining: 70}))
	require.NoError(t, store.SaveBalance(ctx, &models.CreditBalance{Total: 100, Used: 40, Remaining: 60}))

	balance, fetchedAt, err := store.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, balance.Remaining)
	assert.WithinDuration(t, time.Now(), fetchedAt, 5*time.Second)
}

func TestSaveBooks(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBooks(ctx, []*models.Book{
		{ID: "book_a", Title: "A"},
		{ID: "book_b", Title: "B"},
	}))

	books, err := store.Books(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 2)
}
