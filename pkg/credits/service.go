// Package credits exposes the server-authoritative credit balance and the
// affordability guards that run before credit-consuming actions. The balance
// is never adjusted arithmetically on this side: mutations invalidate the
// cache entry and the next read refetches.
package credits

import (
	"context"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/apiclient"
	"github.com/bookwrightapp/bookwright/pkg/config"
	"github.com/bookwrightapp/bookwright/pkg/errcodes"
	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/bookwrightapp/bookwright/pkg/querycache"
	"github.com/pkg/errors"
)

// Credit costs per action. Creation itself is free; the server charges per
// generated page and a flat amount at completion for cover and finalization.
const (
	PageCost       = 1
	CompletionCost = 2
	ExportCost     = 1
	MarketingCost  = 1
)

// CreationCost is the projected total for generating a full book: one credit
// per page plus completion. A 25-page book costs 27 credits.
func CreationCost(targetPages int) int {
	return targetPages*PageCost + CompletionCost
}

type Service struct {
	api   *apiclient.Client
	cache *querycache.Cache

	staleAfter   time.Duration
	pollInterval time.Duration
}

func NewService(cfg *config.Config, api *apiclient.Client, cache *querycache.Cache) *Service {
	return &Service{
		api:          api,
		cache:        cache,
		staleAfter:   cfg.BalanceStaleAfter,
		pollInterval: cfg.CreditsPollInterval,
	}
}

// Balance returns the last server-fetched balance, refetching when the cache
// entry is stale or was invalidated by a mutation.
func (s *Service) Balance(ctx context.Context) (*models.CreditBalance, error) {
	return querycache.Fetch(ctx, s.cache, querycache.KeyCredits, s.staleAfter, func(ctx context.Context) (*models.CreditBalance, error) {
		return s.api.RetrieveCredits(ctx)
	})
}

// Refresh forces a refetch regardless of staleness.
func (s *Service) Refresh(ctx context.Context) error {
	s.cache.Invalidate(querycache.KeyCredits)
	_, err := s.Balance(ctx)
	return errors.WithStack(err)
}

// Poller keeps the balance entry warm between mutations. Callers run it in
// the background for the lifetime of the session.
func (s *Service) Poller() *querycache.Poller {
	return querycache.NewPoller(querycache.KeyCredits, s.pollInterval, s.Refresh)
}

// StartPolling runs the poller until ctx is canceled.
func (s *Service) StartPolling(ctx context.Context) {
	go s.Poller().Run(ctx)
}

// EnsureAffordable fails with InsufficientCredits when the balance can't
// cover cost. The balance may be served from cache; no request ever reaches
// the guarded endpoint when the check fails.
func (s *Service) EnsureAffordable(ctx context.Context, cost int) error {
	balance, err := s.Balance(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if balance.Remaining < cost {
		return errors.WithStack(errcodes.InsufficientCredits(cost, balance.Remaining))
	}
	return nil
}
