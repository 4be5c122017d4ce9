package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/realtime"
)

var _ realtime.RowSource = (*Client)(nil)

const maxEventBytes = 1 << 20

// Watch streams planID's change events into events until ctx is done or the
// server closes the stream. events is closed on return.
func (c *Client) Watch(ctx context.Context, planID uuid.UUID, events chan<- models.ChangeEvent, tables ...string) error {
	defer close(events)

	u := c.baseURL + planPath(planID, "live")
	if len(tables) > 0 {
		u += "?tables=" + strings.Join(tables, ",")
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		}
		return err
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxEventBytes)

	for {
		var ev models.ChangeEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// PostOptimistic shows the message in rec at once, then confirms it with the
// stored row or rolls it back when the call fails.
func (c *Client) PostOptimistic(ctx context.Context, rec *realtime.Reconciler, planID uuid.UUID, body string) (*models.Message, error) {
	local := models.Message{
		ID:       uuid.New(),
		PlanID:   planID,
		UserID:   c.identity.UserID,
		UserName: c.identity.Name,
		Body:     body,
	}
	corr := rec.AddLocalMessage(local)
	m, err := c.PostMessage(ctx, planID, local.ID, body)
	if err != nil {
		rec.Fail(corr, err)
		return nil, err
	}
	rec.ConfirmMessage(corr, *m)
	return m, nil
}

// ProposeOptimistic is PostOptimistic for proposals.
// The local copy is normalized the way the server stores it so the echo
// collapses onto it.
func (c *Client) ProposeOptimistic(ctx context.Context, rec *realtime.Reconciler, planID uuid.UUID, title string, details models.ProposalDetails) (*models.Proposal, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	localTitle, localDetails, err := models.NormalizeProposal(details.Category(), title, raw)
	if err != nil {
		return nil, err
	}
	local := models.Proposal{
		ID:         uuid.New(),
		PlanID:     planID,
		AuthorID:   c.identity.UserID,
		AuthorName: c.identity.Name,
		Category:   details.Category(),
		Title:      localTitle,
		Details:    localDetails,
	}
	corr := rec.AddLocalProposal(local)
	p, err := c.AddProposal(ctx, planID, details.Category(), title, details)
	if err != nil {
		rec.Fail(corr, err)
		return nil, err
	}
	rec.ConfirmProposal(corr, *p)
	return p, nil
}
