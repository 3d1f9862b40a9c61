package model

// User is a normalized end-user record from the upstream helpdesk API.
// Timestamps are kept as raw strings because upstream records may carry
// missing or malformed values; derivation code parses them explicitly and
// excludes records it cannot parse.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	CreatedAt    string `json:"created_at"`
	LastActiveAt string `json:"last_active_at"`
	Active       bool   `json:"active"`
}

// UserStats are the aggregate figures shown on the dashboard cards.
type UserStats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	NewThisMonth int `json:"new_this_month"`
}

// Registration is one row of the recent-registrations table: a user created
// within the last 48 hours, newest first.
type Registration struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"` // display-formatted
	Status    string `json:"status"`     // "active" or "inactive"
}
