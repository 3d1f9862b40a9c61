package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/model"
)

// DefaultBaseURL is used when no upstream address is configured.
const DefaultBaseURL = "http://localhost:3000"

const defaultTimeout = 15 * time.Second

// TokenSource resolves the bearer token attached to every upstream request.
// The token is re-read per request so `opsdesk login` takes effect without a
// restart.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource with a fixed value.
type StaticToken string

func (s StaticToken) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// SettingsReader is the slice of the local store the token source needs.
type SettingsReader interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// StoreToken reads the token persisted by `opsdesk login`, falling back to a
// configured value when none has been stored.
type StoreToken struct {
	Settings SettingsReader
	Fallback string
}

func (s StoreToken) Token(ctx context.Context) (string, error) {
	v, err := s.Settings.GetSetting(ctx, config.SettingUpstreamToken)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return s.Fallback, nil
		}
		return "", err
	}
	if v == "" {
		return s.Fallback, nil
	}
	return v, nil
}

// Config holds the upstream helpdesk API connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the upstream helpdesk API. It owns the boundary
// normalization: every record is reshaped into the model package's canonical
// form before it leaves this package.
type Client struct {
	http   *resty.Client
	tokens TokenSource
	logger *slog.Logger
}

// New creates an upstream client. Empty config fields fall back to defaults.
func New(cfg Config, tokens TokenSource, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	hc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{http: hc, tokens: tokens, logger: logger}
}

// BaseURL returns the configured upstream address.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve upstream token: %w", err)
	}
	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	return req, nil
}

// Users fetches and normalizes all user records.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var wires []userWire
	resp, err := req.SetResult(&wires).Get("/api/users")
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch users: upstream returned %s", resp.Status())
	}

	users := make([]model.User, 0, len(wires))
	for _, w := range wires {
		users = append(users, w.normalize())
	}
	return users, nil
}

// Tickets fetches and normalizes all support tickets. Every record is kept;
// an unrecognized status is logged and carried through untransitionable.
func (c *Client) Tickets(ctx context.Context) ([]model.Ticket, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var wires []ticketWire
	resp, err := req.SetResult(&wires).Get("/api/support-tickets")
	if err != nil {
		return nil, fmt.Errorf("fetch tickets: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch tickets: upstream returned %s", resp.Status())
	}

	tickets := make([]model.Ticket, 0, len(wires))
	for _, w := range wires {
		t := w.normalize()
		if !t.Status.Known() {
			c.logger.Warn("keeping ticket with unrecognized status", "ticket_id", t.ID, "status", string(t.Status))
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// TicketUpdate is the payload for a status transition. AdminResponse and
// ResolvedAt are only sent when set.
type TicketUpdate struct {
	Status        model.Status
	AdminResponse *string
	ResolvedAt    *time.Time
}

type ticketUpdateBody struct {
	Status        string  `json:"status"`
	AdminResponse *string `json:"admin_response,omitempty"`
	ResolvedAt    *string `json:"resolved_at,omitempty"`
}

// UpdateTicket persists a status transition upstream and returns the updated
// ticket. The status travels in the underscore form, never the display form.
func (c *Client) UpdateTicket(ctx context.Context, id int64, upd TicketUpdate) (model.Ticket, error) {
	req, err := c.request(ctx)
	if err != nil {
		return model.Ticket{}, err
	}

	body := ticketUpdateBody{
		Status:        string(upd.Status),
		AdminResponse: upd.AdminResponse,
	}
	if upd.ResolvedAt != nil {
		ts := upd.ResolvedAt.UTC().Format(time.RFC3339)
		body.ResolvedAt = &ts
	}

	var wire ticketWire
	resp, err := req.SetBody(body).SetResult(&wire).
		Put(fmt.Sprintf("/api/support-tickets/%d", id))
	if err != nil {
		return model.Ticket{}, fmt.Errorf("update ticket %d: %w", id, err)
	}
	if resp.IsError() {
		return model.Ticket{}, fmt.Errorf("update ticket %d: upstream returned %s", id, resp.Status())
	}

	t := wire.normalize()
	if t.ID == 0 {
		// Upstream accepted the update but echoed an unusable record; fall
		// back to what we sent so the caller can still patch local state.
		c.logger.Warn("upstream returned malformed ticket after update", "ticket_id", id)
		t.ID = id
		t.Status = upd.Status
		if upd.AdminResponse != nil {
			t.AdminResponse = *upd.AdminResponse
		}
	}
	return t, nil
}

// Ping probes the upstream API for readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.Head("/api/users")
	if err != nil {
		return fmt.Errorf("ping upstream: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ping upstream: returned %s", resp.Status())
	}
	return nil
}
