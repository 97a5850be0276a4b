// Package marketing generates promotional copy for completed books.
package marketing

import (
	"context"

	"github.com/bookwrightapp/bookwright/pkg/apiclient"
	"github.com/bookwrightapp/bookwright/pkg/credits"
	"github.com/bookwrightapp/bookwright/pkg/querycache"
)

type Service struct {
	api     *apiclient.Client
	cache   *querycache.Cache
	credits *credits.Service
}

func NewService(api *apiclient.Client, cache *querycache.Cache, creditsSvc *credits.Service) *Service {
	return &Service{api: api, cache: cache, credits: creditsSvc}
}

// Generate produces marketing copy for a book. Guards one credit and
// invalidates the balance on success.
func (s *Service) Generate(ctx context.Context, bookID string) (*apiclient.MarketingResponse, error) {
	if err := s.credits.EnsureAffordable(ctx, credits.MarketingCost); err != nil {
		return nil, err
	}

	resp, err := s.api.GenerateMarketing(ctx, bookID)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(querycache.KeyCredits)
	return resp, nil
}
