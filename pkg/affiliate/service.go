// Package affiliate exposes the referral dashboard numbers.
package affiliate

import (
	"context"
	"time"

	"github.com/bookwrightapp/bookwright/pkg/apiclient"
	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/bookwrightapp/bookwright/pkg/querycache"
)

// staleAfter is generous; affiliate numbers move slowly.
const staleAfter = 5 * time.Minute

type Service struct {
	api   *apiclient.Client
	cache *querycache.Cache

	siteBaseURL string
}

func NewService(api *apiclient.Client, cache *querycache.Cache, siteBaseURL string) *Service {
	return &Service{api: api, cache: cache, siteBaseURL: siteBaseURL}
}

// Stats returns the cached affiliate stats.
func (s *Service) Stats(ctx context.Context) (*models.AffiliateStats, error) {
	return querycache.Fetch(ctx, s.cache, querycache.KeyAffiliate, staleAfter, func(ctx context.Context) (*models.AffiliateStats, error) {
		return s.api.AffiliateStats(ctx)
	})
}

// ReferralLink renders the shareable URL for the current referral code.
func (s *Service) ReferralLink(ctx context.Context) (string, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return "", err
	}
	return stats.ReferralLink(s.siteBaseURL), nil
}
