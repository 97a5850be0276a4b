package models

import "time"

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusNone     = "none"
)

type Subscription struct {
	Status           string     `json:"status"`
	PlanID           string     `json:"plan_id,omitempty"`
	PlanName         string     `json:"plan_name,omitempty"`
	RenewsAt         *time.Time `json:"renews_at,omitempty"`
	CancelsAt        *time.Time `json:"cancels_at,omitempty"`
	MonthlyCredits   int        `json:"monthly_credits"`
	PurchaseCheckout string     `json:"purchase_checkout_url,omitempty"`
}

type Plan struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PriceCents     int64  `json:"price_cents"`
	MonthlyCredits int    `json:"monthly_credits"`
	IsCurrent      bool   `json:"is_current"`
}

func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}
