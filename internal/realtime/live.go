package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

// LiveOptions tunes one websocket stream.
type LiveOptions struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	OriginPatterns []string
	Tables         []string
}

// ServeLive upgrades the request and streams planID's change events as JSON
// until the client leaves or the hub closes the subscription. The caller has
// already authorized the request.
func (h *Hub) ServeLive(w http.ResponseWriter, r *http.Request, planID uuid.UUID, opts LiveOptions) error {
	// streams outlive the server's per-request read and write deadlines
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	sub := h.Subscribe(planID, opts.Tables...)
	defer sub.Close()

	log := h.log.With().Str("plan_id", planID.String()).Logger()
	log.Debug().Msg("live stream opened")
	defer log.Debug().Msg("live stream closed")

	// clients only listen; CloseRead handles their close frames
	ctx := conn.CloseRead(r.Context())

	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	pingInterval := opts.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return nil
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				return closeErr(err)
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return closeErr(err)
			}
		}
	}
}

// closeErr hides the errors of a normal client disconnect.
func closeErr(err error) error {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
