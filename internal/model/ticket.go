package model

import "fmt"

// Ticket is a normalized support ticket record from the upstream helpdesk
// API. UserName and UserEmail come from the optional embedded user
// sub-record and may be empty.
type Ticket struct {
	ID            int64    `json:"id"`
	UserID        int64    `json:"user_id"`
	Subject       string   `json:"subject"`
	Message       string   `json:"message"`
	Status        Status   `json:"status"`
	Category      Category `json:"category"`
	AdminResponse string   `json:"admin_response,omitempty"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
	ResolvedAt    string   `json:"resolved_at,omitempty"`
	UserName      string   `json:"user_name,omitempty"`
	UserEmail     string   `json:"user_email,omitempty"`
}

// DisplayName resolves the name shown for the ticket's owner, falling back
// to "User #<id>" when the upstream record carries no name.
func (t Ticket) DisplayName() string {
	if t.UserName != "" {
		return t.UserName
	}
	return fmt.Sprintf("User #%d", t.UserID)
}

// Row converts a ticket to its display shape.
func (t Ticket) Row() TicketRow {
	return TicketRow{
		ID:            t.ID,
		UserName:      t.DisplayName(),
		Subject:       t.Subject,
		Message:       t.Message,
		Status:        t.Status.Display(),
		Category:      string(t.Category),
		AdminResponse: t.AdminResponse,
		CreatedAt:     FormatTimestamp(t.CreatedAt),
	}
}

// TicketRow is the view shape for the triage table and the ticket dialog.
// Status carries the hyphenated display form; CreatedAt is pre-formatted.
type TicketRow struct {
	ID            int64  `json:"id"`
	UserName      string `json:"user_name"`
	Subject       string `json:"subject"`
	Message       string `json:"message"`
	Status        string `json:"status"`
	Category      string `json:"category"`
	AdminResponse string `json:"admin_response,omitempty"`
	CreatedAt     string `json:"created_at"`
}
