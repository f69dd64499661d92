package domain

import "time"

// Visit is one counted view of a profile. Exactly one of VisitorID and IP is set.
type Visit struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	VisitorID string    `json:"visitor,omitempty"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VisitorKey identifies a distinct viewer of a profile
type VisitorKey struct {
	VisitorID string
	IP        string
}

// Authenticated reports whether the key refers to a signed-in viewer
func (k VisitorKey) Authenticated() bool {
	return k.VisitorID != ""
}

// Activity is the daily visit report for a profile
type Activity struct {
	Today         int64        `json:"today"`
	DailyActivity []DailyVisit `json:"daily_activity"`
}

type DailyVisit struct {
	Date  string `json:"date"` // YYYY-MM-DD, UTC
	Count int64  `json:"count"`
}
