package upstream

import (
	"strings"

	"github.com/opsdesk/opsdesk/internal/model"
)

// The upstream helpdesk API emits the same attribute under either a
// camelCase or a snake_case key depending on which backend revision produced
// the record. Normalization happens exactly once, here: the camelCase
// variant wins, snake_case is the fallback, and anything still missing
// degrades to the type's zero value. Nothing outside this package ever sees
// the raw field forms.

type userWire struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	CreatedAt     string `json:"createdAt"`
	CreatedAtS    string `json:"created_at"`
	LastActiveAt  string `json:"lastActiveAt"`
	LastActiveAtS string `json:"last_active_at"`
	IsActive      *bool  `json:"isActive"`
	IsActiveS     *bool  `json:"is_active"`
}

func (w userWire) normalize() model.User {
	return model.User{
		ID:           w.ID,
		Name:         pickString(w.Name, w.FullName),
		Email:        w.Email,
		CreatedAt:    pickString(w.CreatedAt, w.CreatedAtS),
		LastActiveAt: pickString(w.LastActiveAt, w.LastActiveAtS),
		Active:       pickBool(w.IsActive, w.IsActiveS),
	}
}

type ticketUserWire struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type ticketWire struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"userId"`
	UserIDS        int64           `json:"user_id"`
	Subject        string          `json:"subject"`
	Message        string          `json:"message"`
	Status         string          `json:"status"`
	Category       string          `json:"category"`
	AdminResponse  string          `json:"adminResponse"`
	AdminResponseS string          `json:"admin_response"`
	CreatedAt      string          `json:"createdAt"`
	CreatedAtS     string          `json:"created_at"`
	UpdatedAt      string          `json:"updatedAt"`
	UpdatedAtS     string          `json:"updated_at"`
	ResolvedAt     string          `json:"resolvedAt"`
	ResolvedAtS    string          `json:"resolved_at"`
	User           *ticketUserWire `json:"user"`
}

func (w ticketWire) normalize() model.Ticket {
	status, err := model.ParseStatus(w.Status)
	if err != nil {
		// Every record is kept at load time. An out-of-lifecycle status is
		// carried through in canonical form; the transition table leaves such
		// a ticket with no legal moves.
		status = model.Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(w.Status)), "-", "_"))
	}

	t := model.Ticket{
		ID:            w.ID,
		UserID:        pickInt(w.UserID, w.UserIDS),
		Subject:       w.Subject,
		Message:       w.Message,
		Status:        status,
		Category:      model.ParseCategory(w.Category),
		AdminResponse: pickString(w.AdminResponse, w.AdminResponseS),
		CreatedAt:     pickString(w.CreatedAt, w.CreatedAtS),
		UpdatedAt:     pickString(w.UpdatedAt, w.UpdatedAtS),
		ResolvedAt:    pickString(w.ResolvedAt, w.ResolvedAtS),
	}
	if w.User != nil {
		t.UserName = pickString(w.User.Name, w.User.FullName)
		t.UserEmail = w.User.Email
	}
	return t
}

func pickString(camel, snake string) string {
	if camel != "" {
		return camel
	}
	return snake
}

func pickBool(camel, snake *bool) bool {
	if camel != nil {
		return *camel
	}
	if snake != nil {
		return *snake
	}
	return false
}

func pickInt(camel, snake int64) int64 {
	if camel != 0 {
		return camel
	}
	return snake
}
