package models

import "time"

// Tier is a subscription level controlling the daily check quota.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// User is the durable user aggregate. Token is the bearer credential
// issued at creation time.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Token       string    `json:"-"`
	Tier        Tier      `json:"tier"`
	SearchCount int       `json:"search_count"`
	WindowStart time.Time `json:"window_start"`
	CreatedAt   time.Time `json:"created_at"`
}

// QuotaWindow is the mutable quota state read by the usage limiter.
type QuotaWindow struct {
	Tier        Tier
	Count       int
	WindowStart time.Time
}

// QuotaStatus reports remaining checks for the current calendar day.
type QuotaStatus struct {
	Tier      Tier `json:"tier"`
	Limit     int  `json:"limit"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}
