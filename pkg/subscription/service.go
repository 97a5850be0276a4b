// Package subscription exposes plan status and the plan catalog.
package subscription

import (
	"context"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/apiclient"
	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/bookwrightapp/bookwright/pkg/querycache"
)

const (
	statusStaleAfter = time.Minute
	plansStaleAfter  = 10 * time.Minute
)

type Service struct {
	api   *apiclient.Client
	cache *querycache.Cache
}

func NewService(api *apiclient.Client, cache *querycache.Cache) *Service {
	return &Service{api: api, cache: cache}
}

// Status returns the cached subscription state.
func (s *Service) Status(ctx context.Context) (*models.Subscription, error) {
	return querycache.Fetch(ctx, s.cache, querycache.KeySubscription, statusStaleAfter, func(ctx context.Context) (*models.Subscription, error) {
		return s.api.SubscriptionStatus(ctx)
	})
}

// Plans returns the cached plan catalog.
func (s *Service) Plans(ctx context.Context) ([]*models.Plan, error) {
	return querycache.Fetch(ctx, s.cache, querycache.KeyPlans, plansStaleAfter, func(ctx context.Context) ([]*models.Plan, error) {
		return s.api.ListPlans(ctx)
	})
}
