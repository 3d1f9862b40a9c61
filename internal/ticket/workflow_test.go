package ticket

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/opsdesk/opsdesk/internal/model"
	"github.com/opsdesk/opsdesk/internal/upstream"
)

// fakeAPI implements API in memory, records update calls, and persists
// successful updates the way the real helpdesk does.
type fakeAPI struct {
	mu      sync.Mutex
	tickets []model.Ticket
	updates []recordedUpdate
	fetches int
	fail    error
	block   chan struct{} // when set, UpdateTicket waits until closed
}

type recordedUpdate struct {
	ID  int64
	Upd upstream.TicketUpdate
}

func (f *fakeAPI) Tickets(ctx context.Context) ([]model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	out := make([]model.Ticket, len(f.tickets))
	copy(out, f.tickets)
	return out, nil
}

func (f *fakeAPI) UpdateTicket(ctx context.Context, id int64, upd upstream.TicketUpdate) (model.Ticket, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return model.Ticket{}, f.fail
	}
	f.updates = append(f.updates, recordedUpdate{ID: id, Upd: upd})
	for i, t := range f.tickets {
		if t.ID == id {
			f.tickets[i].Status = upd.Status
			if upd.AdminResponse != nil {
				f.tickets[i].AdminResponse = *upd.AdminResponse
			}
			if upd.ResolvedAt != nil {
				f.tickets[i].ResolvedAt = upd.ResolvedAt.Format(time.RFC3339)
			}
			return f.tickets[i], nil
		}
	}
	return model.Ticket{ID: id, Status: upd.Status}, nil
}

func newTestController(t *testing.T, api *fakeAPI) *Controller {
	t.Helper()
	c := NewController(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.clock = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return c
}

func seedTickets() []model.Ticket {
	return []model.Ticket{
		{ID: 1, UserID: 10, Subject: "first", Status: model.StatusNew},
		{ID: 2, UserID: 11, Subject: "second", Status: model.StatusOpen, AdminResponse: "on it"},
		{ID: 3, UserID: 12, Subject: "third", Status: model.StatusInProgress},
		{ID: 4, UserID: 13, Subject: "fourth", Status: model.StatusResolved},
	}
}

func TestViewAutoOpensNewTicket(t *testing.T) {
	api := &fakeAPI{tickets: seedTickets()}
	c := newTestController(t, api)

	got, err := c.View(context.Background(), 1)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if got.Status != model.StatusOpen {
		t.Errorf("status = %q, want %q immediately after view", got.Status, model.StatusOpen)
	}

	if len(api.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(api.updates))
	}
	if api.updates[0].Upd.Status != model.StatusOpen {
		t.Errorf("upstream update status = %q, want %q", api.updates[0].Upd.Status, model.StatusOpen)
	}
	if api.updates[0].Upd.ResolvedAt != nil {
		t.Error("open transition must not carry resolved_at")
	}

	// A second view leaves the ticket alone.
	if _, err := c.View(context.Background(), 1); err != nil {
		t.Fatalf("second View: %v", err)
	}
	if len(api.updates) != 1 {
		t.Errorf("second view issued %d extra updates", len(api.updates)-1)
	}
}

func TestViewNonNewTicketNoTransition(t *testing.T) {
	api := &fakeAPI{tickets: seedTickets()}
	c := newTestController(t, api)

	got, err := c.View(context.Background(), 3)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if got.Status != model.StatusInProgress {
		t.Errorf("status = %q, want unchanged", got.Status)
	}
	if len(api.updates) != 0 {
		t.Errorf("updates = %d, want 0", len(api.updates))
	}
}

func TestResolveStampsTimestamp(t *testing.T) {
	api := &fakeAPI{tickets: seedTickets()}
	c := newTestController(t, api)

	resp := "fixed in 2.4.1"
	got, err := c.Transition(context.Background(), 3, model.StatusResolved, &resp)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != model.StatusResolved {
		t.Errorf("status = %q, want resolved", got.Status)
	}
	if got.AdminResponse != "fixed in 2.4.1" {
		t.Errorf("admin response = %q", got.AdminResponse)
	}
	if got.ResolvedAt != "2024-03-01T12:00:00Z" {
		t.Errorf("resolved_at = %q, want clock value", got.ResolvedAt)
	}

	upd := api.updates[0].Upd
	if upd.ResolvedAt == nil {
		t.Fatal("resolve must carry a resolution timestamp upstream")
	}
	if !upd.ResolvedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("upstream resolved_at = %v", upd.ResolvedAt)
	}
}

func TestIllegalTransitions(t *testing.T) {
	tests := []struct {
		id     int64
		target model.Status
	}{
		{1, model.StatusResolved}, // new → resolved skips in_progress
		{2, model.StatusClosed},   // open → closed skips two stages
		{4, model.StatusInProgress}, // resolved cannot move backwards
		{3, model.StatusOpen},     // in_progress cannot move backwards
	}

	for _, tt := range tests {
		api := &fakeAPI{tickets: seedTickets()}
		c := newTestController(t, api)

		_, err := c.Transition(context.Background(), tt.id, tt.target, nil)
		if !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("ticket %d → %s: err = %v, want ErrIllegalTransition", tt.id, tt.target, err)
		}
		if len(api.updates) != 0 {
			t.Errorf("ticket %d → %s: illegal transition must not reach upstream", tt.id, tt.target)
		}
	}
}

func TestFailedUpdateLeavesLocalStateUntouched(t *testing.T) {
	api := &fakeAPI{tickets: seedTickets(), fail: errors.New("upstream down")}
	c := newTestController(t, api)

	if _, err := c.Transition(context.Background(), 2, model.StatusInProgress, nil); err == nil {
		t.Fatal("expected error")
	}

	got, err := c.Get(context.Background(), 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.StatusOpen {
		t.Errorf("status = %q, want unchanged %q", got.Status, model.StatusOpen)
	}
	if got.AdminResponse != "on it" {
		t.Errorf("admin response = %q, want unchanged", got.AdminResponse)
	}
}

func TestNilResponsePreservesStored(t *testing.T) {
	api := &fakeAPI{tickets: seedTickets()}
	c := newTestController(t, api)

	got, err := c.Transition(context.Background(), 2, model.StatusInProgress, nil)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.AdminResponse != "on it" {
		t.Errorf("admin response = %q, want preserved %q", got.AdminResponse, "on it")
	}
	if api.updates[0].Upd.AdminResponse != nil {
		t.Error("nil response must not be sent upstream")
	}
}

func TestInFlightGuard(t *testing.T) {
	api := &fakeAPI{tickets: seedTickets(), block: make(chan struct{})}
	c := newTestController(t, api)

	// Prime the cache before racing.
	if _, err := c.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Transition(context.Background(), 2, model.StatusInProgress, nil)
		done <- err
	}()

	// Wait for the first transition to take the guard.
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		taken := c.inFlight[2]
		c.mu.Unlock()
		if taken {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first transition never took the in-flight guard")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// Second submission for the same ticket is rejected.
	if _, err := c.Transition(context.Background(), 2, model.StatusInProgress, nil); !errors.Is(err, ErrUpdateInFlight) {
		t.Errorf("err = %v, want ErrUpdateInFlight", err)
	}

	close(api.block)
	if err := <-done; err != nil {
		t.Fatalf("first transition: %v", err)
	}

	// Guard released: the ticket can move again along the chain.
	if _, err := c.Transition(context.Background(), 2, model.StatusResolved, nil); err != nil {
		t.Errorf("post-release transition: %v", err)
	}
}

func TestListSeesTicketsCreatedUpstream(t *testing.T) {
	api := &fakeAPI{tickets: seedTickets()}
	c := newTestController(t, api)

	got, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}

	// A ticket filed after the first load must show up on the next list.
	api.mu.Lock()
	api.tickets = append(api.tickets, model.Ticket{ID: 5, UserID: 14, Subject: "fifth", Status: model.StatusNew})
	api.mu.Unlock()

	got, err = c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("len = %d, want 5 after upstream gained a ticket", len(got))
	}

	if _, err := c.Get(context.Background(), 5); err != nil {
		t.Errorf("Get(5): %v, want the new ticket", err)
	}

	api.mu.Lock()
	fetches := api.fetches
	api.mu.Unlock()
	if fetches != 3 {
		t.Errorf("upstream fetches = %d, want one per List/Get", fetches)
	}
}

func TestRefreshKeepsInFlightLocalCopy(t *testing.T) {
	api := &fakeAPI{tickets: seedTickets(), block: make(chan struct{})}
	c := newTestController(t, api)

	if _, err := c.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Transition(context.Background(), 2, model.StatusInProgress, nil)
		done <- err
	}()
	waitForInFlight(t, c, 2)

	// A refresh while the update is in flight must not clobber ticket 2's
	// local copy with the stale upstream record.
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	close(api.block)
	if err := <-done; err != nil {
		t.Fatalf("transition: %v", err)
	}

	c.mu.Lock()
	got := c.byID[2]
	c.mu.Unlock()
	if got.Status != model.StatusInProgress {
		t.Errorf("status = %q, want in_progress after the update landed", got.Status)
	}
}

func TestTransitionSurvivesRefreshDroppingTicket(t *testing.T) {
	api := &fakeAPI{tickets: seedTickets(), block: make(chan struct{})}
	c := newTestController(t, api)

	if _, err := c.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}

	done := make(chan model.Ticket, 1)
	go func() {
		got, err := c.Transition(context.Background(), 2, model.StatusInProgress, nil)
		if err != nil {
			t.Errorf("Transition: %v", err)
		}
		done <- got
	}()
	waitForInFlight(t, c, 2)

	// Upstream deletes the ticket mid-flight and a refresh drops it from the
	// cache before the update returns.
	api.mu.Lock()
	api.tickets = api.tickets[:1]
	api.mu.Unlock()
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	close(api.block)
	got := <-done
	if got.ID != 2 {
		t.Errorf("ID = %d, want 2 (never a zero-value ticket)", got.ID)
	}
	if got.Status != model.StatusInProgress {
		t.Errorf("status = %q, want in_progress", got.Status)
	}
}

func waitForInFlight(t *testing.T, c *Controller, id int64) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		taken := c.inFlight[id]
		c.mu.Unlock()
		if taken {
			return
		}
		select {
		case <-deadline:
			t.Fatal("transition never took the in-flight guard")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestGetUnknownTicket(t *testing.T) {
	api := &fakeAPI{tickets: seedTickets()}
	c := newTestController(t, api)

	if _, err := c.Get(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
