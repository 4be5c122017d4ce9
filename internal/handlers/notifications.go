package handlers

import (
	"net/http"
	"strings"

	"TRIPCOLLAB_BACK-END/internal/dto"
	"TRIPCOLLAB_BACK-END/internal/middleware"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/notify"
	"TRIPCOLLAB_BACK-END/internal/store"
	"TRIPCOLLAB_BACK-END/internal/utils"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationsHandler: HTTP endpoints (list/mark read/mark all read)
type NotificationsHandler struct {
	svc *notify.Service
}

func NewNotificationsHandler(svc *notify.Service) *NotificationsHandler {
	return &NotificationsHandler{svc: svc}
}

// ListNotifications
// @Summary List notifications
// @Description List user notifications with filters and pagination.
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param unread_only query bool false "true|false (default false)"
// @Param type query string false "filter by type"
// @Param limit query int false "default 20 (max 100)"
// @Param offset query int false "default 0"
// @Success 200 {object} dto.NotificationsListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/notifications [get]
func (h *NotificationsHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.WriteErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "Invalid user context")
		return
	}

	unreadOnly, err := utils.QueryBool(r, "unread_only")
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	// Validate and parse limit (default 20, max 100)
	limit, err := utils.QueryInt(r, "limit", defaultNotificationLimit)
	if err != nil || limit <= 0 {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid limit", "limit must be a positive integer")
		return
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	offset, err := utils.QueryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid offset", "offset must be a non-negative integer")
		return
	}

	page, err := h.svc.List(r.Context(), id.UserID, store.NotificationFilter{
		UnreadOnly: unreadOnly,
		Type:       models.NotificationType(strings.TrimSpace(r.URL.Query().Get("type"))),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	items := make([]dto.NotificationItem, 0, len(page.Items))
	for _, n := range page.Items {
		items = append(items, dto.NewNotificationItem(n))
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.NotificationsListResponse{
		Notifications: items,
		Pagination: dto.NotificationsPagination{
			Total:       page.Total,
			UnreadCount: page.UnreadCount,
			Limit:       limit,
			Offset:      offset,
		},
	})
}

// MarkRead
// @Summary Mark a notification as read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/notifications/{id}/read [post]
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.WriteErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "Invalid user context")
		return
	}

	nID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	if err := h.svc.MarkRead(r.Context(), id.UserID, nID); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.MessageResponse{Message: "Notification marked as read"})
}

// MarkAllRead
// @Summary Mark all notifications as read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.MarkAllReadResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/notifications/read-all [post]
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.WriteErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "Invalid user context")
		return
	}

	updated, err := h.svc.MarkAllRead(r.Context(), id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.MarkAllReadResponse{
		Message:      "All notifications marked as read",
		UpdatedCount: updated,
	})
}
