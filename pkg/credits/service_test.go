package credits_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/apiclient"
	"github.com/bookwrightapp/bookwright/pkg/config"
	"github.com/bookwrightapp/bookwright/pkg/credits"
	"github.com/bookwrightapp/bookwright/pkg/errcodes"
	"github.com/bookwrightapp/bookwright/pkg/querycache"
	"github.com/bookwrightapp/bookwright/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, srv *testutils.Server, staleAfter time.Duration) (*credits.Service, *querycache.Cache) {
	t.Helper()
	cfg := &config.Config{
		APIBaseURL:          srv.URL,
		RequestTimeout:      10 * time.Second,
		BalanceStaleAfter:   staleAfter,
		CreditsPollInterval: time.Hour,
	}
	api := apiclient.New(cfg, func() string { return testutils.LicenseKey })
	cache := querycache.New()
	return credits.NewService(cfg, api, cache), cache
}

func TestCreationCost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 27, credits.CreationCost(25))
	assert.Equal(t, 3, credits.CreationCost(1))
}

func TestBalance(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	svc, cache := newService(t, srv, time.Minute)
	ctx := context.Background()

	balance, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, balance.Remaining)

	t.Run("fresh reads come from cache", func(t *testing.T) {
		srv.SetBalance(100, 40)
		balance, err := svc.Balance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 100, balance.Remaining)
		assert.Equal(t, 1, srv.RequestCount("GET /v1/credits"))
	})

	t.Run("invalidation forces a refetch", func(t *testing.T) {
		cache.Invalidate(querycache.KeyCredits)
		balance, err := svc.Balance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 60, balance.Remaining)
		assert.Equal(t, 2, srv.RequestCount("GET /v1/credits"))
	})
}

func TestEnsureAffordable(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	svc, _ := newService(t, srv, time.Minute)
	ctx := context.Background()

	srv.SetBalance(100, 90)

	t.Run("passes when the balance covers the cost", func(t *testing.T) {
		require.NoError(t, svc.EnsureAffordable(ctx, 10))
	})

	t.Run("fails with insufficient credits when it does not", func(t *testing.T) {
		err := svc.EnsureAffordable(ctx, 11)
		require.Error(t, err)

		apiErr := &errcodes.Error{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
		assert.Equal(t, "insufficient_credits", apiErr.Code)
		assert.Contains(t, apiErr.Message, "11 credits")
		assert.Contains(t, apiErr.Message, "10 remain")
	})

	t.Run("guard is served from cache", func(t *testing.T) {
		before := srv.RequestCount("GET /v1/credits")
		require.Error(t, svc.EnsureAffordable(ctx, 1000))
		assert.Equal(t, before, srv.RequestCount("GET /v1/credits"))
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	srv := testutils.NewServer(t)
	svc, _ := newService(t, srv, time.Hour)
	ctx := context.Background()

	_, err := svc.Balance(ctx)
	require.NoError(t, err)

	srv.SetBalance(200, 0)
	require.NoError(t, svc.Refresh(ctx))

	balance, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, balance.Remaining)
}
