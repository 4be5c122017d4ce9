package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"TRIPCOLLAB_BACK-END/internal/collab"
	"TRIPCOLLAB_BACK-END/internal/realtime"
	"TRIPCOLLAB_BACK-END/internal/utils"
)

// LiveHandler streams plan changes over a websocket
type LiveHandler struct {
	collab *collab.Service
	hub    *realtime.Hub
	opts   realtime.LiveOptions
}

// NewLiveHandler creates a new LiveHandler
func NewLiveHandler(c *collab.Service, hub *realtime.Hub, opts realtime.LiveOptions) *LiveHandler {
	return &LiveHandler{collab: c, hub: hub, opts: opts}
}

// Live handles GET /api/plans/{id}/live
// @Summary Subscribe to plan changes
// @Description Upgrades to a websocket streaming row changes ({id, table, eventType, plan_id, new, old, at}). Browsers pass the token as ?token=. Narrow the stream with ?tables=proposals,votes.
// @Tags realtime
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param tables query string false "Comma separated table names"
// @Success 101 "Switching protocols"
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/plans/{id}/live [get]
func (h *LiveHandler) Live(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}
	if _, _, err := h.collab.RequireMember(r.Context(), planID, id.UserID); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	opts := h.opts
	if raw := strings.TrimSpace(r.URL.Query().Get("tables")); raw != "" {
		opts.Tables = nil
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				opts.Tables = append(opts.Tables, t)
			}
		}
	}

	if err := h.hub.ServeLive(w, r, planID, opts); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).
			Str("plan_id", planID.String()).
			Str("user_id", id.UserID.String()).
			Msg("live stream ended")
	}
}
