package handler

import (
	"errors"
	"net/http"

	"github.com/opsdesk/opsdesk/internal/dashboard"
	"github.com/opsdesk/opsdesk/internal/model"
	"github.com/opsdesk/opsdesk/internal/ticket"
)

// TicketHandler exposes the support-ticket triage workflow.
type TicketHandler struct {
	ctrl *ticket.Controller
}

// NewTicketHandler creates a new TicketHandler.
func NewTicketHandler(ctrl *ticket.Controller) *TicketHandler {
	return &TicketHandler{ctrl: ctrl}
}

// ListTickets returns all tickets in upstream order, both as raw tickets and
// as display rows.
// GET /api/v1/tickets
func (h *TicketHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.ctrl.List(r.Context())
	if err != nil {
		writeRetryableError(w, http.StatusBadGateway, "Failed to load tickets: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resource": dashboard.TicketRows(tickets),
		"meta":     map[string]int{"count": len(tickets)},
	})
}

// GetTicket returns a single ticket for the detail view. Viewing a ticket in
// the new status immediately moves it to open.
// GET /api/v1/tickets/{ticketID}
func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "ticketID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid ticket ID")
		return
	}

	t, err := h.ctrl.View(r.Context(), id)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticket": t,
		"row":    t.Row(),
	})
}

// updateTicketRequest is the expected payload for UpdateStatus.
type updateTicketRequest struct {
	Action        string  `json:"action"`
	AdminResponse *string `json:"admin_response,omitempty"`
}

// actionTarget resolves a triage action name to the target status. Both the
// verb forms the UI uses and plain status names are accepted.
func actionTarget(action string) (model.Status, bool) {
	switch action {
	case "resolve":
		return model.StatusResolved, true
	case "close":
		return model.StatusClosed, true
	case "start":
		return model.StatusInProgress, true
	}
	s, err := model.ParseStatus(action)
	if err != nil {
		return "", false
	}
	return s, true
}

// UpdateStatus applies a triage action to a ticket, optionally attaching an
// admin response.
// PUT /api/v1/tickets/{ticketID}/status
func (h *TicketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "ticketID")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid ticket ID")
		return
	}

	var req updateTicketRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "Action is required")
		return
	}

	target, ok := actionTarget(req.Action)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown action: "+req.Action)
		return
	}

	t, err := h.ctrl.Transition(r.Context(), id, target, req.AdminResponse)
	if err != nil {
		h.writeWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticket": t,
		"row":    t.Row(),
	})
}

// writeWorkflowError maps workflow errors to HTTP statuses. Upstream failures
// are retryable; validation failures are not.
func (h *TicketHandler) writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ticket.ErrNotFound):
		writeError(w, http.StatusNotFound, "Ticket not found")
	case errors.Is(err, ticket.ErrIllegalTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ticket.ErrUpdateInFlight):
		writeError(w, http.StatusConflict, "An update for this ticket is already in progress")
	default:
		writeRetryableError(w, http.StatusBadGateway, "Ticket update failed: "+err.Error())
	}
}
