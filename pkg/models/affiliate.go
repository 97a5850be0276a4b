package models

import "time"

type AffiliateStats struct {
	ReferralCode    string    `json:"referral_code"`
	Clicks          int       `json:"clicks"`
	Signups         int       `json:"signups"`
	Conversions     int       `json:"conversions"`
	PendingPayout   int64     `json:"pending_payout_cents"`
	LifetimeEarning int64     `json:"lifetime_earnings_cents"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ReferralLink renders the shareable affiliate URL for the given site base.
func (s *AffiliateStats) ReferralLink(siteBaseURL string) string {
	if s.ReferralCode == "" {
		return ""
	}
	return siteBaseURL + "/?ref=" + s.ReferralCode
}
