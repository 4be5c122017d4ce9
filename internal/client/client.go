// Package client talks to the plan API over REST and the live websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/collab"
	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/dto"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/votes"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Code)
}

// Unwrap maps the status onto the shared error kinds.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return common.ErrValidation
	case http.StatusUnauthorized:
		return common.ErrUnauthorized
	case http.StatusForbidden:
		return common.ErrForbidden
	case http.StatusNotFound:
		return common.ErrNotFound
	case http.StatusConflict:
		return common.ErrConflict
	}
	return nil
}

// Client is safe for concurrent use once logged in.
type Client struct {
	baseURL  string
	http     *http.Client
	token    string
	identity models.Identity
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken authenticates with an existing bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Identity is the account the client logged in as.
func (c *Client) Identity() models.Identity { return c.identity }

// Token is the bearer token in use.
func (c *Client) Token() string { return c.token }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var envelope dto.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope)
		return &APIError{Status: resp.StatusCode, Code: envelope.Error, Message: envelope.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Login exchanges credentials for a token and remembers both.
func (c *Client) Login(ctx context.Context, email, password string) (models.Identity, error) {
	var resp dto.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", dto.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return models.Identity{}, err
	}
	id, err := uuid.Parse(resp.User.ID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("login: bad user id %q", resp.User.ID)
	}
	c.token = resp.Token
	c.identity = models.Identity{UserID: id, Email: resp.User.Email, Name: resp.User.DisplayName}
	return c.identity, nil
}

// Me resolves the identity behind the configured token.
func (c *Client) Me(ctx context.Context) (models.Identity, error) {
	var resp dto.UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &resp); err != nil {
		return models.Identity{}, err
	}
	id, err := uuid.Parse(resp.ID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("me: bad user id %q", resp.ID)
	}
	c.identity = models.Identity{UserID: id, Email: resp.Email, Name: resp.DisplayName}
	return c.identity, nil
}

func planPath(planID uuid.UUID, parts ...string) string {
	p := "/api/plans/" + planID.String()
	for _, s := range parts {
		p += "/" + url.PathEscape(s)
	}
	return p
}

// Plan fetches the plan with its members.
func (c *Client) Plan(ctx context.Context, planID uuid.UUID) (dto.PlanDetailResponse, error) {
	var resp dto.PlanDetailResponse
	err := c.do(ctx, http.MethodGet, planPath(planID), nil, &resp)
	return resp, err
}

// Board fetches every proposal with its tally.
func (c *Client) Board(ctx context.Context, planID uuid.UUID) (collab.Board, error) {
	var b collab.Board
	err := c.do(ctx, http.MethodGet, planPath(planID, "proposals"), nil, &b)
	return b, err
}

// AddProposal submits a proposal; details must match the category's shape.
func (c *Client) AddProposal(ctx context.Context, planID uuid.UUID, category models.Category, title string, details models.ProposalDetails) (*models.Proposal, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	var resp dto.ProposalResponse
	req := dto.CreateProposalRequest{Category: string(category), Title: title, Details: raw}
	if err := c.do(ctx, http.MethodPost, planPath(planID, "proposals"), req, &resp); err != nil {
		return nil, err
	}
	return &resp.Proposal, nil
}

// ProposalVotes refetches one proposal's votes.
func (c *Client) ProposalVotes(ctx context.Context, planID, proposalID uuid.UUID) ([]models.Vote, error) {
	var resp dto.VotesResponse
	if err := c.do(ctx, http.MethodGet, planPath(planID, "proposals", proposalID.String(), "votes"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Votes, nil
}

// Vote applies the toggle rule for the logged in user.
func (c *Client) Vote(ctx context.Context, planID, proposalID uuid.UUID, typ models.VoteType) (*votes.Cast, error) {
	var cast votes.Cast
	if err := c.do(ctx, http.MethodPost, planPath(planID, "proposals", proposalID.String(), "votes"), dto.VoteRequest{Type: string(typ)}, &cast); err != nil {
		return nil, err
	}
	return &cast, nil
}

// Proposal refetches one proposal from the board.
func (c *Client) Proposal(ctx context.Context, planID, proposalID uuid.UUID) (*models.Proposal, error) {
	board, err := c.Board(ctx, planID)
	if err != nil {
		return nil, err
	}
	for _, group := range [][]collab.Entry{board.Date, board.Accommodation, board.Itinerary} {
		for _, e := range group {
			if e.Proposal.ID == proposalID {
				p := e.Proposal
				return &p, nil
			}
		}
	}
	return nil, fmt.Errorf("proposal %s: %w", proposalID, common.ErrNotFound)
}

// Message refetches one message from the discussion.
func (c *Client) Message(ctx context.Context, planID, messageID uuid.UUID) (*models.Message, error) {
	msgs, err := c.Messages(ctx, planID)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.ID == messageID {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("message %s: %w", messageID, common.ErrNotFound)
}

// Messages lists the plan discussion.
func (c *Client) Messages(ctx context.Context, planID uuid.UUID) ([]models.Message, error) {
	var resp dto.ChatMessageListResponse
	if err := c.do(ctx, http.MethodGet, planPath(planID, "messages"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// PostMessage posts body under id; uuid.Nil lets the server choose.
func (c *Client) PostMessage(ctx context.Context, planID, id uuid.UUID, body string) (*models.Message, error) {
	req := dto.PostMessageRequest{Body: body}
	if id != uuid.Nil {
		req.ID = id.String()
	}
	var resp dto.ChatMessageResponse
	if err := c.do(ctx, http.MethodPost, planPath(planID, "messages"), req, &resp); err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

// Readiness fetches the quorum report.
func (c *Client) Readiness(ctx context.Context, planID uuid.UUID) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, planPath(planID, "readiness"), nil, &raw)
	return raw, err
}

// Snapshot is the state a mirror starts from.
type Snapshot struct {
	Proposals []models.Proposal
	Votes     []models.Vote
	Messages  []models.Message
}

// Snapshot loads proposals, their votes and messages.
func (c *Client) Snapshot(ctx context.Context, planID uuid.UUID) (Snapshot, error) {
	board, err := c.Board(ctx, planID)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	for _, group := range [][]collab.Entry{board.Date, board.Accommodation, board.Itinerary} {
		for _, e := range group {
			snap.Proposals = append(snap.Proposals, e.Proposal)
			if e.Tally.Upvotes+e.Tally.Downvotes == 0 {
				continue
			}
			vs, err := c.ProposalVotes(ctx, planID, e.Proposal.ID)
			if err != nil {
				return Snapshot{}, err
			}
			snap.Votes = append(snap.Votes, vs...)
		}
	}
	if snap.Messages, err = c.Messages(ctx, planID); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
