package domain

import "time"

// RateSnapshot is the last resolved benchmark rate.
type RateSnapshot struct {
	Provider          string    `json:"provider"`
	SeriesCode        string    `json:"seriesCode"`
	ReferenceDate     string    `json:"referenceDate,omitempty"`
	DailyRatePercent  float64   `json:"dailyRatePercent"`
	AnnualRatePercent float64   `json:"annualRatePercent"`
	FetchedAt         time.Time `json:"fetchedAt"`
	ExpiresAt         time.Time `json:"expiresAt"`
	FromCache         bool      `json:"fromCache"`
	Stale             bool      `json:"stale"`
	Fallback          bool      `json:"fallback"`
	Warning           string    `json:"warning,omitempty"`
}

// Expired reports whether the snapshot's TTL has elapsed at now.
func (s RateSnapshot) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
