package domain

import "time"

// Profile is a user account together with its public link-in-bio page
type Profile struct {
	ID          string       `json:"id"`
	Handle      string       `json:"handle"`
	Name        string       `json:"name"`
	Email       string       `json:"email,omitempty"`
	Password    string       `json:"-"` // bcrypt hash
	Description string       `json:"description"`
	Image       string       `json:"image"`
	Links       []SocialLink `json:"links"`
	Stats       ProfileStats `json:"stats"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// SocialLink is one entry of the profile's link list
type SocialLink struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// ProfileStats are the running counters embedded in a profile
type ProfileStats struct {
	TotalVisits    int64          `json:"total_visits"`
	UniqueVisitors []string       `json:"unique_visitors"`
	VisitHistory   []VisitHistory `json:"visit_history"`
}

// VisitHistory is one entry of the embedded visit log
type VisitHistory struct {
	VisitorID string    `json:"visitor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PublicProfile is what anyone may see at /{handle}
type PublicProfile struct {
	ID          string       `json:"id"`
	Handle      string       `json:"handle"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Image       string       `json:"image"`
	Links       []SocialLink `json:"links"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Stats       PublicStats  `json:"stats"`
}

type PublicStats struct {
	TotalVisits    int64   `json:"total_visits"`
	UniqueVisitors int64   `json:"unique_visitors"`
	RecentVisits   []Visit `json:"recent_visits"`
}
