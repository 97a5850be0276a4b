package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bookwrightapp/bookwright/pkg/models"
)

// LicenseInfo is the server's answer to a validation call.
type LicenseInfo struct {
	CustomerID string `json:"customer_id"`
	Plan       string `json:"plan"`
	Valid      bool   `json:"valid"`
}

type validateLicenseRequest struct {
	LicenseKey string `json:"license_key"`
}

// ValidateLicense checks a candidate key before it is persisted. The key is
// passed explicitly since there is no session yet. A single call, no retries:
// the server's verdict (and its error message) is final.
func (c *Client) ValidateLicense(ctx context.Context, licenseKey string) (*LicenseInfo, error) {
	var info LicenseInfo
	if err := c.do(ctx, http.MethodPost, "/v1/licenses/validate", nil, validateLicenseRequest{LicenseKey: licenseKey}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) RetrieveCredits(ctx context.Context) (*models.CreditBalance, error) {
	var balance models.CreditBalance
	if err := c.do(ctx, http.MethodGet, "/v1/credits", nil, nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

type MarketingResponse struct {
	Marketing *models.MarketingCopy `json:"marketing"`
	Credits   *models.CreditBalance `json:"credits,omitempty"`
}

// GenerateMarketing produces tagline/blurb/keyword copy for a completed
// book. Consumes one credit.
func (c *Client) GenerateMarketing(ctx context.Context, bookID string) (*MarketingResponse, error) {
	var resp MarketingResponse
	if err := c.do(ctx, http.MethodPost, "/v1/books/"+url.PathEscape(bookID)+"/marketing", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AffiliateStats(ctx context.Context) (*models.AffiliateStats, error) {
	var stats models.AffiliateStats
	if err := c.do(ctx, http.MethodGet, "/v1/affiliate/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) SubscriptionStatus(ctx context.Context) (*models.Subscription, error) {
	var sub models.Subscription
	if err := c.do(ctx, http.MethodGet, "/v1/subscription", nil, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

type listPlansResponse struct {
	Plans []*models.Plan `json:"plans"`
}

func (c *Client) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	var resp listPlansResponse
	if err := c.do(ctx, http.MethodGet, "/v1/subscription/plans", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Plans, nil
}
