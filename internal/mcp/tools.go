package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opsdesk/opsdesk/internal/model"
)

// registerTools registers all opsdesk MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	srv.AddTool(
		mcp.NewTool("opsdesk_dashboard",
			mcp.WithDescription(
				"Get the full admin dashboard snapshot: user statistics (total, "+
					"active in the last 24h, new this month), recent registrations, "+
					"the newest support tickets, and the hourly system/activity "+
					"chart series.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleDashboard,
	)

	srv.AddTool(
		mcp.NewTool("opsdesk_list_tickets",
			mcp.WithDescription(
				"List all support tickets in upstream order. Each row carries the "+
					"requester's display name, subject, message, hyphenated status "+
					"(new, open, in-progress, resolved, closed), category, any admin "+
					"response, and a formatted creation date. Optionally filter by "+
					"status.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("status",
				mcp.Description("Only return tickets with this status (either naming form accepted)"),
			),
		),
		s.handleListTickets,
	)

	srv.AddTool(
		mcp.NewTool("opsdesk_get_ticket",
			mcp.WithDescription(
				"Get one support ticket by ID, including the raw record and its "+
					"display row. Does not change the ticket's status.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Ticket ID"),
			),
		),
		s.handleGetTicket,
	)

	srv.AddTool(
		mcp.NewTool("opsdesk_update_ticket",
			mcp.WithDescription(
				"Apply a triage action to a support ticket. Actions: 'open' (from "+
					"new), 'start' (to in-progress, from new or open), 'resolve' "+
					"(from in-progress; stamps the resolution time), 'close' (from "+
					"resolved). An optional admin_response is stored with the ticket; "+
					"omitting it preserves any existing response. Illegal transitions "+
					"are rejected.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Ticket ID"),
			),
			mcp.WithString("action",
				mcp.Required(),
				mcp.Description("Triage action: open, start, resolve, or close (status names also accepted)"),
			),
			mcp.WithString("admin_response",
				mcp.Description("Free-text response to store with the ticket"),
			),
		),
		s.handleUpdateTicket,
	)
}

// --------------------------------------------------------------------------
// Tool handlers
// --------------------------------------------------------------------------

func (s *MCPServer) handleDashboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.dash.Snapshot(ctx)
	if err != nil {
		return toolError("failed to load dashboard: %v", err)
	}
	return successJSON(snap)
}

func (s *MCPServer) handleListTickets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tickets, err := s.ctrl.List(ctx)
	if err != nil {
		return toolError("failed to load tickets: %v", err)
	}

	if raw := optionalString(request, "status"); raw != "" {
		want, err := model.ParseStatus(raw)
		if err != nil {
			return toolError("unknown status %q", raw)
		}
		filtered := tickets[:0:0]
		for _, t := range tickets {
			if t.Status == want {
				filtered = append(filtered, t)
			}
		}
		tickets = filtered
	}

	rows := make([]model.TicketRow, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, t.Row())
	}

	return successJSON(map[string]interface{}{
		"tickets": rows,
		"count":   len(rows),
	})
}

func (s *MCPServer) handleGetTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireInt(request, "id")
	if err != nil {
		return toolError("%v", err)
	}

	t, err := s.ctrl.Get(ctx, id)
	if err != nil {
		return toolError("failed to get ticket %d: %v", id, err)
	}

	return successJSON(map[string]interface{}{
		"ticket": t,
		"row":    t.Row(),
	})
}

func (s *MCPServer) handleUpdateTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireInt(request, "id")
	if err != nil {
		return toolError("%v", err)
	}
	action, err := requireString(request, "action")
	if err != nil {
		return toolError("%v", err)
	}

	target, ok := resolveAction(action)
	if !ok {
		return toolError("unknown action %q (use open, start, resolve, or close)", action)
	}

	var adminResponse *string
	if resp := optionalString(request, "admin_response"); resp != "" {
		adminResponse = &resp
	}

	t, err := s.ctrl.Transition(ctx, id, target, adminResponse)
	if err != nil {
		return toolError("failed to update ticket %d: %v", id, err)
	}

	return successJSON(map[string]interface{}{
		"ticket": t,
		"row":    t.Row(),
	})
}

// resolveAction maps a triage action name to the target status. Plain status
// names are accepted alongside the verb forms.
func resolveAction(action string) (model.Status, bool) {
	switch action {
	case "start":
		return model.StatusInProgress, true
	case "resolve":
		return model.StatusResolved, true
	case "close":
		return model.StatusClosed, true
	}
	s, err := model.ParseStatus(action)
	if err != nil {
		return "", false
	}
	return s, true
}
