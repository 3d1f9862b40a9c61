package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle stage of a support ticket. The canonical form uses
// underscores (what the upstream API persists); the display form uses hyphens.
// All code outside the upstream boundary works with these constants only.
type Status string

const (
	StatusNew        Status = "new"
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// ParseStatus accepts a status in either the underscore or hyphen form and
// returns the canonical Status. Unknown values are rejected.
func ParseStatus(s string) (Status, error) {
	canonical := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if canonical.Known() {
		return canonical, nil
	}
	return "", fmt.Errorf("unknown ticket status %q", s)
}

// Known reports whether s is one of the lifecycle constants. Upstream records
// can carry statuses outside the lifecycle; they are kept but have no legal
// transitions.
func (s Status) Known() bool {
	switch s {
	case StatusNew, StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Display returns the hyphenated form shown to admins, e.g. "in-progress".
func (s Status) Display() string {
	return strings.ReplaceAll(string(s), "_", "-")
}

// transitions is the allowed-transition table for admin-driven actions.
// Tickets only move forward along new → open → in_progress → resolved →
// closed; anything else is illegal.
var transitions = map[Status][]Status{
	StatusNew:        {StatusOpen, StatusInProgress},
	StatusOpen:       {StatusInProgress},
	StatusInProgress: {StatusResolved},
	StatusResolved:   {StatusClosed},
	StatusClosed:     {},
}

// CanTransition reports whether an admin action may move a ticket from one
// status to another.
func (s Status) CanTransition(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Next returns the statuses reachable from s by an admin action.
func (s Status) Next() []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// Category classifies a support ticket.
type Category string

const (
	CategoryGeneral   Category = "general"
	CategoryTechnical Category = "technical"
	CategoryBilling   Category = "billing"
	CategoryAccount   Category = "account"
	CategoryOther     Category = "other"
)

// ParseCategory normalizes a category string, falling back to "other" for
// anything unrecognized. Upstream records are not trusted to be clean.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryGeneral:
		return CategoryGeneral
	case CategoryTechnical:
		return CategoryTechnical
	case CategoryBilling:
		return CategoryBilling
	case CategoryAccount:
		return CategoryAccount
	default:
		return CategoryOther
	}
}
