package apiclient_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/apiclient"
	"github.com/bookwrightapp/bookwright/pkg/config"
	"github.com/bookwrightapp/bookwright/pkg/errcodes"
	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/bookwrightapp/bookwright/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *testutils.Server, key string) *apiclient.Client {
	t.Helper()
	cfg := &config.Config{
		APIBaseURL:     srv.URL,
		RequestTimeout: 10 * time.Second,
	}
	return apiclient.New(cfg, func() string { return key })
}

func seedBook(srv *testutils.Server, pages int) *models.Book {
	book := &models.Book{
		Title:       "The Clockwork Garden",
		Description: "A sprawling tale of gears and greenery in a city that winds itself.",
		BookType:    models.BookTypeFiction,
		TargetPages: 5,
		Pages:       []*models.Page{},
	}
	for i := 1; i <= pages; i++ {
		book.Pages = append(book.Pages, &models.Page{
			ID:         "p" + string(rune('0'+i)),
			PageNumber: i,
			Content:    "<p>page</p>",
			Version:    1,
		})
	}
	srv.SeedBook(book)
	return book
}

func TestValidateLicense(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	client := newTestClient(t, srv, "")
	ctx := context.Background()

	t.Run("accepts a valid key", func(t *testing.T) {
		info, err := client.ValidateLicense(ctx, testutils.LicenseKey)
		require.NoError(t, err)
		assert.True(t, info.Valid)
		assert.Equal(t, testutils.CustomerID, info.CustomerID)
		assert.Equal(t, testutils.Plan, info.Plan)
	})

	t.Run("surfaces the server message for a bad key", func(t *testing.T) {
		_, err := client.ValidateLicense(ctx, "bw_test_wrong")
		require.Error(t, err)

		apiErr := &errcodes.Error{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "License key is invalid.", apiErr.Message)
	})
}

func TestAuthHeader(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	ctx := context.Background()

	t.Run("authenticated requests carry the bearer token", func(t *testing.T) {
		client := newTestClient(t, srv, testutils.LicenseKey)
		balance, err := client.RetrieveCredits(ctx)
		require.NoError(t, err)
		assert.Equal(t, 100, balance.Remaining)
	})

	t.Run("missing token maps to an auth error", func(t *testing.T) {
		client := newTestClient(t, srv, "")
		_, err := client.RetrieveCredits(ctx)
		require.Error(t, err)
		assert.True(t, errcodes.IsAuthError(err))
	})
}

func TestBookLifecycle(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	client := newTestClient(t, srv, testutils.LicenseKey)
	ctx := context.Background()

	resp, err := client.CreateBook(ctx, apiclient.CreateBookRequest{
		Title:       "Voyage of the Paper Swan",
		Description: "An illustrated adventure following a folded bird across three oceans.",
		BookType:    models.BookTypeChildrens,
		TargetPages: 3,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Book)
	require.NotNil(t, resp.Credits)
	assert.Equal(t, 100, resp.Credits.Remaining)

	bookID := resp.Book.ID

	for i := 1; i <= 3; i++ {
		pageResp, err := client.GeneratePage(ctx, bookID)
		require.NoError(t, err)
		assert.Len(t, pageResp.Book.Pages, i)
		assert.Equal(t, i, pageResp.Book.Pages[i-1].PageNumber)
	}

	// One more than target_pages is rejected.
	_, err = client.GeneratePage(ctx, bookID)
	require.Error(t, err)
	apiErr := &errcodes.Error{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)

	completeResp, err := client.CompleteBook(ctx, bookID)
	require.NoError(t, err)
	assert.True(t, completeResp.Book.IsCompleted)
	require.NotNil(t, completeResp.Book.CoverURL)

	book, err := client.RetrieveBook(ctx, bookID)
	require.NoError(t, err)
	assert.True(t, book.IsCompleted)
	assert.True(t, book.HasContiguousPages())

	// 3 pages + completion (cover + finalize)
	assert.Equal(t, 95, srv.Balance().Remaining)
}

func TestListBooks(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	client := newTestClient(t, srv, testutils.LicenseKey)
	ctx := context.Background()

	seedBook(srv, 0)
	archived := seedBook(srv, 0)
	archived.Title = "Shelved Draft"
	_, err := client.ArchiveBook(ctx, archived.ID)
	require.NoError(t, err)

	t.Run("excludes archived books by default", func(t *testing.T) {
		resp, err := client.ListBooks(ctx, apiclient.ListBooksQuery{})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Total)
	})

	t.Run("includes archived books on request", func(t *testing.T) {
		resp, err := client.ListBooks(ctx, apiclient.ListBooksQuery{IncludeArchived: true})
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Total)
	})

	t.Run("filters by search term", func(t *testing.T) {
		resp, err := client.ListBooks(ctx, apiclient.ListBooksQuery{Search: "shelved", IncludeArchived: true})
		require.NoError(t, err)
		require.Equal(t, 1, resp.Total)
		assert.Equal(t, "Shelved Draft", resp.Books[0].Title)
	})
}

func TestUpdatePage(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	client := newTestClient(t, srv, testutils.LicenseKey)
	ctx := context.Background()
	book := seedBook(srv, 2)

	t.Run("saves against the current version", func(t *testing.T) {
		updated, err := client.UpdatePage(ctx, book.ID, 1, apiclient.UpdatePageRequest{
			Content:     "<p>revised</p>",
			BaseVersion: 1,
		})
		require.NoError(t, err)
		page := updated.Page(1)
		require.NotNil(t, page)
		assert.Equal(t, "<p>revised</p>", page.Content)
		assert.Equal(t, 2, page.Version)
	})

	t.Run("rejects a stale base version with a conflict", func(t *testing.T) {
		_, err := client.UpdatePage(ctx, book.ID, 1, apiclient.UpdatePageRequest{
			Content:     "<p>stale edit</p>",
			BaseVersion: 1,
		})
		require.Error(t, err)
		apiErr := &errcodes.Error{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

		// The conflicting write didn't land.
		assert.Equal(t, "<p>revised</p>", srv.Book(book.ID).Page(1).Content)
	})
}

func TestReorderPages(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	client := newTestClient(t, srv, testutils.LicenseKey)
	ctx := context.Background()
	book := seedBook(srv, 3)

	t.Run("renumbers pages by submitted order", func(t *testing.T) {
		updated, err := client.ReorderPages(ctx, book.ID, apiclient.ReorderPagesRequest{
			PageIDs: []string{"p3", "p1", "p2"},
		})
		require.NoError(t, err)
		require.Len(t, updated.Pages, 3)
		assert.Equal(t, "p3", updated.Pages[0].ID)
		assert.Equal(t, 1, updated.Pages[0].PageNumber)
		assert.True(t, updated.HasContiguousPages())
	})

	t.Run("rejects a partial permutation", func(t *testing.T) {
		_, err := client.ReorderPages(ctx, book.ID, apiclient.ReorderPagesRequest{
			PageIDs: []string{"p1", "p2"},
		})
		require.Error(t, err)
		apiErr := &errcodes.Error{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	})

	t.Run("rejects duplicate page ids", func(t *testing.T) {
		_, err := client.ReorderPages(ctx, book.ID, apiclient.ReorderPagesRequest{
			PageIDs: []string{"p1", "p1", "p2"},
		})
		require.Error(t, err)
	})
}

func TestExportBook(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	client := newTestClient(t, srv, testutils.LicenseKey)
	ctx := context.Background()
	book := seedBook(srv, 2)

	t.Run("returns the artifact with its content type and filename", func(t *testing.T) {
		blob, err := client.ExportBook(ctx, book.ID, models.ExportFormatEPUB)
		require.NoError(t, err)
		assert.Equal(t, models.ExportFormatEPUB.ContentType(), blob.ContentType)
		assert.Equal(t, "export.epub", blob.Filename)
		assert.NotEmpty(t, blob.Data)
	})

	t.Run("rejects an unknown format", func(t *testing.T) {
		_, err := client.ExportBook(ctx, book.ID, models.ExportFormat("mobi"))
		require.Error(t, err)
	})

	t.Run("bundle download is a zip", func(t *testing.T) {
		blob, err := client.ExportAllBooks(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, "application/zip", blob.ContentType)
		assert.NotEmpty(t, blob.Data)
	})

	t.Run("cover download is an image", func(t *testing.T) {
		blob, err := client.DownloadCover(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, "image/png", blob.ContentType)
	})

	t.Run("json on an export endpoint maps to an error", func(t *testing.T) {
		srv.FailNextWith(http.StatusOK, "weird", "unexpected json body")
		_, err := client.ExportBook(ctx, book.ID, models.ExportFormatPDF)
		require.Error(t, err)
	})
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	client := newTestClient(t, srv, testutils.LicenseKey)
	ctx := context.Background()

	resetAt := time.Now().Add(90 * time.Second)
	srv.TripRateLimit(resetAt)

	_, err := client.RetrieveCredits(ctx)
	require.Error(t, err)

	gotReset, limited := errcodes.IsRateLimited(err)
	require.True(t, limited)
	assert.WithinDuration(t, resetAt, gotReset, 2*time.Second)
}

func TestInsufficientCredits(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	client := newTestClient(t, srv, testutils.LicenseKey)
	ctx := context.Background()

	srv.SetBalance(10, 10)

	_, err := client.CreateBook(ctx, apiclient.CreateBookRequest{
		Title:       "No Budget",
		Description: "A manuscript that never got the funding it deserved from anyone.",
		BookType:    models.BookTypeNonFiction,
		TargetPages: 2,
	})
	require.Error(t, err)

	apiErr := &errcodes.Error{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Equal(t, "insufficient_credits", apiErr.Code)
}

func TestNetworkUnavailable(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		APIBaseURL:     "http://127.0.0.1:1",
		RequestTimeout: 500 * time.Millisecond,
	}
	client := apiclient.New(cfg, func() string { return testutils.LicenseKey })

	_, err := client.RetrieveCredits(context.Background())
	require.Error(t, err)

	apiErr := &errcodes.Error{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "network_unavailable", apiErr.Code)
}

func TestAccountEndpoints(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	client := newTestClient(t, srv, testutils.LicenseKey)
	ctx := context.Background()

	t.Run("affiliate stats", func(t *testing.T) {
		stats, err := client.AffiliateStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, "WRIGHT20", stats.ReferralCode)
		assert.Equal(t, "https://bookwright.app/?ref=WRIGHT20", stats.ReferralLink("https://bookwright.app"))
	})

	t.Run("subscription status", func(t *testing.T) {
		sub, err := client.SubscriptionStatus(ctx)
		require.NoError(t, err)
		assert.True(t, sub.IsActive())
		assert.Equal(t, 100, sub.MonthlyCredits)
	})

	t.Run("plans", func(t *testing.T) {
		plans, err := client.ListPlans(ctx)
		require.NoError(t, err)
		require.Len(t, plans, 3)
		assert.True(t, plans[1].IsCurrent)
	})

	t.Run("marketing copy charges a credit", func(t *testing.T) {
		book := seedBook(srv, 1)
		before := srv.Balance().Remaining

		resp, err := client.GenerateMarketing(ctx, book.ID)
		require.NoError(t, err)
		require.NotNil(t, resp.Marketing)
		assert.NotEmpty(t, resp.Marketing.Tagline)
		assert.Equal(t, before-1, srv.Balance().Remaining)
	})
}
