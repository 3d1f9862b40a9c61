// Package ticket drives the support-ticket triage workflow: loading tickets
// from the upstream helpdesk, validating status transitions against the
// lifecycle table, and keeping an optimistic local copy of ticket state.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opsdesk/opsdesk/internal/model"
	"github.com/opsdesk/opsdesk/internal/upstream"
)

var (
	// ErrNotFound is returned when a ticket ID is unknown.
	ErrNotFound = errors.New("ticket not found")

	// ErrUpdateInFlight is returned when a transition is requested for a
	// ticket that already has one in flight. The guard prevents duplicate
	// submissions; it does not queue or retry.
	ErrUpdateInFlight = errors.New("update already in flight for this ticket")

	// ErrIllegalTransition is returned when the requested target status is
	// not reachable from the ticket's current status.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// API is the slice of the upstream client the workflow needs.
type API interface {
	Tickets(ctx context.Context) ([]model.Ticket, error)
	UpdateTicket(ctx context.Context, id int64, upd upstream.TicketUpdate) (model.Ticket, error)
}

// Controller owns the triage workflow. Ticket state is cached locally and
// patched optimistically after each successful upstream update; a failed
// update leaves local state untouched so the admin can re-trigger the
// action. Concurrent admins are reconciled last-write-wins by the upstream.
type Controller struct {
	api    API
	logger *slog.Logger
	clock  func() time.Time

	mu       sync.Mutex
	order    []int64
	byID     map[int64]model.Ticket
	loaded   bool
	inFlight map[int64]bool
}

// NewController creates a workflow controller.
func NewController(api API, logger *slog.Logger) *Controller {
	return &Controller{
		api:      api,
		logger:   logger,
		clock:    time.Now,
		byID:     make(map[int64]model.Ticket),
		inFlight: make(map[int64]bool),
	}
}

// Refresh reloads the ticket cache from upstream. Tickets with an update in
// flight keep their local copy; the optimistic patch lands when the update
// completes.
func (c *Controller) Refresh(ctx context.Context) error {
	tickets, err := c.api.Tickets(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	order := make([]int64, 0, len(tickets))
	byID := make(map[int64]model.Ticket, len(tickets))
	for _, t := range tickets {
		order = append(order, t.ID)
		if c.inFlight[t.ID] {
			if cached, ok := c.byID[t.ID]; ok {
				t = cached
			}
		}
		byID[t.ID] = t
	}
	c.order = order
	c.byID = byID
	c.loaded = true
	return nil
}

func (c *Controller) ensureLoaded(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if loaded {
		return nil
	}
	return c.Refresh(ctx)
}

// List returns all tickets in upstream order. The cache is refreshed on
// every call so tickets created after startup appear, matching the
// per-request fetches the dashboard does.
func (c *Controller) List(ctx context.Context) ([]model.Ticket, error) {
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Ticket, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out, nil
}

// Get returns a single ticket, refreshing the cache first.
func (c *Controller) Get(ctx context.Context, id int64) (model.Ticket, error) {
	if err := c.Refresh(ctx); err != nil {
		return model.Ticket{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.byID[id]
	if !ok {
		return model.Ticket{}, ErrNotFound
	}
	return t, nil
}

// View returns a ticket for the detail dialog. Opening a new ticket
// immediately moves it to open, with no confirmation step.
func (c *Controller) View(ctx context.Context, id int64) (model.Ticket, error) {
	t, err := c.Get(ctx, id)
	if err != nil {
		return model.Ticket{}, err
	}
	if t.Status != model.StatusNew {
		return t, nil
	}
	return c.Transition(ctx, id, model.StatusOpen, nil)
}

// Transition moves a ticket to the target status, optionally attaching an
// admin response. The transition is validated against the lifecycle table,
// persisted upstream, and only then applied to local state. A nil response
// leaves any stored response untouched.
func (c *Controller) Transition(ctx context.Context, id int64, target model.Status, adminResponse *string) (model.Ticket, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return model.Ticket{}, err
	}

	c.mu.Lock()
	t, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return model.Ticket{}, ErrNotFound
	}
	if !t.Status.CanTransition(target) {
		c.mu.Unlock()
		return model.Ticket{}, fmt.Errorf("%w: %s → %s", ErrIllegalTransition, t.Status.Display(), target.Display())
	}
	if c.inFlight[id] {
		c.mu.Unlock()
		return model.Ticket{}, ErrUpdateInFlight
	}
	c.inFlight[id] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, id)
		c.mu.Unlock()
	}()

	upd := upstream.TicketUpdate{
		Status:        target,
		AdminResponse: adminResponse,
	}
	var resolvedAt time.Time
	if target == model.StatusResolved {
		resolvedAt = c.clock().UTC()
		upd.ResolvedAt = &resolvedAt
	}

	echo, err := c.api.UpdateTicket(ctx, id, upd)
	if err != nil {
		c.logger.Error("ticket update failed", "ticket_id", id, "target", string(target), "error", err)
		return model.Ticket{}, err
	}

	// Optimistic local patch: status plus whatever the request carried. A
	// refresh may have raced the update and dropped the ticket; rebuild from
	// the upstream echo rather than patching a zero value.
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok = c.byID[id]
	if !ok {
		t = echo
		c.order = append(c.order, id)
	}
	t.Status = target
	if adminResponse != nil {
		t.AdminResponse = *adminResponse
	}
	if upd.ResolvedAt != nil {
		t.ResolvedAt = resolvedAt.Format(time.RFC3339)
	}
	c.byID[id] = t
	return t, nil
}
