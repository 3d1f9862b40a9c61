// Package dashboard aggregates upstream helpdesk data into the admin
// dashboard view: user statistics, recent registrations, a ticket summary,
// and chart series.
package dashboard

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsdesk/opsdesk/internal/metrics"
	"github.com/opsdesk/opsdesk/internal/model"
)

const recentTicketsLimit = 5

// Fetcher is the slice of the upstream client the dashboard needs.
type Fetcher interface {
	Users(ctx context.Context) ([]model.User, error)
	Tickets(ctx context.Context) ([]model.Ticket, error)
}

// Snapshot is one fully derived dashboard view.
type Snapshot struct {
	Stats         model.UserStats         `json:"stats"`
	RecentUsers   []model.Registration    `json:"recent_users"`
	RecentTickets []model.TicketRow       `json:"recent_tickets"`
	TotalTickets  int                     `json:"total_tickets"`
	System        []metrics.SystemPoint   `json:"system"`
	Activity      []metrics.ActivityPoint `json:"activity"`
	GeneratedAt   time.Time               `json:"generated_at"`
}

// Service builds dashboard snapshots.
type Service struct {
	fetcher Fetcher
	metrics metrics.Source
	logger  *slog.Logger
	clock   func() time.Time
}

// New creates a dashboard service.
func New(fetcher Fetcher, source metrics.Source, logger *slog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		metrics: source,
		logger:  logger,
		clock:   time.Now,
	}
}

// Snapshot fetches users and tickets concurrently and derives the dashboard
// view. The two fetches are independent, but either one failing fails the
// snapshot as a whole; the caller surfaces a single retryable error state.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	var (
		users    []model.User
		tickets  []model.Ticket
		system   []metrics.SystemPoint
		activity []metrics.ActivityPoint
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.fetcher.Users(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tickets, err = s.fetcher.Tickets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		if system, err = s.metrics.SystemSeries(gctx); err != nil {
			return err
		}
		activity, err = s.metrics.ActivitySeries(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("dashboard snapshot failed", "error", err)
		return nil, err
	}

	now := s.clock()
	rows := TicketRows(tickets)
	recent := rows
	if len(recent) > recentTicketsLimit {
		recent = recent[:recentTicketsLimit]
	}

	return &Snapshot{
		Stats:         ComputeUserStats(users, now),
		RecentUsers:   RecentRegistrations(users, now),
		RecentTickets: recent,
		TotalTickets:  len(tickets),
		System:        system,
		Activity:      activity,
		GeneratedAt:   now,
	}, nil
}
