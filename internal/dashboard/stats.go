package dashboard

import (
	"sort"
	"time"

	"github.com/opsdesk/opsdesk/internal/model"
)

const (
	activeWindow     = 24 * time.Hour
	recentWindow     = 48 * time.Hour
	recentUsersLimit = 5
)

// ComputeUserStats derives the aggregate card figures. A user counts as
// active iff their last-activity timestamp parses and lies within the 24
// hours preceding now; new-this-month compares the creation date against
// now's calendar month and year in now's location.
func ComputeUserStats(users []model.User, now time.Time) model.UserStats {
	stats := model.UserStats{Total: len(users)}

	for _, u := range users {
		if lastActive, ok := model.ParseTimestamp(u.LastActiveAt); ok {
			if !lastActive.Before(now.Add(-activeWindow)) && !lastActive.After(now) {
				stats.Active++
			}
		}
		if created, ok := model.ParseTimestamp(u.CreatedAt); ok {
			local := created.In(now.Location())
			if local.Year() == now.Year() && local.Month() == now.Month() {
				stats.NewThisMonth++
			}
		}
	}
	return stats
}

// RecentRegistrations builds the recent-registrations table: users whose
// creation timestamp parses and falls within the last 48 hours, newest
// first, capped at 5. Users without a usable creation timestamp are
// excluded, not defaulted.
func RecentRegistrations(users []model.User, now time.Time) []model.Registration {
	type candidate struct {
		user    model.User
		created time.Time
	}

	cutoff := now.Add(-recentWindow)
	candidates := make([]candidate, 0, len(users))
	for _, u := range users {
		created, ok := model.ParseTimestamp(u.CreatedAt)
		if !ok || created.Before(cutoff) {
			continue
		}
		candidates = append(candidates, candidate{user: u, created: created})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].created.After(candidates[j].created)
	})
	if len(candidates) > recentUsersLimit {
		candidates = candidates[:recentUsersLimit]
	}

	rows := make([]model.Registration, 0, len(candidates))
	for _, c := range candidates {
		status := "inactive"
		if c.user.Active {
			status = "active"
		}
		rows = append(rows, model.Registration{
			ID:        c.user.ID,
			Name:      c.user.Name,
			Email:     c.user.Email,
			CreatedAt: model.FormatTimestamp(c.user.CreatedAt),
			Status:    status,
		})
	}
	return rows
}

// TicketRows converts tickets to their display shape, preserving upstream
// order.
func TicketRows(tickets []model.Ticket) []model.TicketRow {
	rows := make([]model.TicketRow, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, t.Row())
	}
	return rows
}
