package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/collab"
	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/dto"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/utils"
)

// ActivityHandler manages messages, expenses and feedback
type ActivityHandler struct {
	collab *collab.Service
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(c *collab.Service) *ActivityHandler {
	return &ActivityHandler{collab: c}
}

// ListMessages handles GET /api/plans/{id}/messages
// @Summary List plan messages
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} dto.ChatMessageListResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /api/plans/{id}/messages [get]
func (h *ActivityHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	msgs, err := h.collab.ListMessages(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.ChatMessageListResponse{Messages: msgs})
}

// PostMessage handles POST /api/plans/{id}/messages
// @Summary Post a message
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param payload body dto.PostMessageRequest true "Message"
// @Success 201 {object} dto.ChatMessageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Message id already used"
// @Router /api/plans/{id}/messages [post]
func (h *ActivityHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	var req dto.PostMessageRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	msgID := uuid.Nil
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			utils.WriteServiceError(w, r, common.NewValidationError("id", "must be a valid UUID"))
			return
		}
		msgID = parsed
	}

	m, err := h.collab.PostMessage(r.Context(), planID, id, msgID, req.Body)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusCreated, dto.ChatMessageResponse{Message: *m})
}

// EditMessage handles PATCH /api/plans/{id}/messages/{mid}
// @Summary Edit a message
// @Description Only the author may edit
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param mid path string true "Message ID"
// @Param payload body dto.EditMessageRequest true "New body"
// @Success 200 {object} dto.ChatMessageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/plans/{id}/messages/{mid} [patch]
func (h *ActivityHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}
	msgID, err := utils.PathUUID(r, "mid")
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	var req dto.EditMessageRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	m, err := h.collab.EditMessage(r.Context(), planID, msgID, id.UserID, req.Body)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.ChatMessageResponse{Message: *m})
}

// DeleteMessage handles DELETE /api/plans/{id}/messages/{mid}
// @Summary Delete a message
// @Description The author or the plan owner may delete
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param mid path string true "Message ID"
// @Success 200 {object} dto.MessageResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/plans/{id}/messages/{mid} [delete]
func (h *ActivityHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}
	msgID, err := utils.PathUUID(r, "mid")
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	if err := h.collab.DeleteMessage(r.Context(), planID, msgID, id.UserID); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.MessageResponse{Message: "Message deleted"})
}

// ListExpenses handles GET /api/plans/{id}/expenses
// @Summary List expenses
// @Tags expenses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} dto.ExpenseListResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /api/plans/{id}/expenses [get]
func (h *ActivityHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	expenses, err := h.collab.ListExpenses(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.ExpenseListResponse{Expenses: expenses})
}

// LogExpense handles POST /api/plans/{id}/expenses
// @Summary Log an expense
// @Description Only while the trip is ongoing
// @Tags expenses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param payload body dto.LogExpenseRequest true "Expense"
// @Success 201 {object} dto.ExpenseResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/plans/{id}/expenses [post]
func (h *ActivityHandler) LogExpense(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	var req dto.LogExpenseRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	e, err := h.collab.LogExpense(r.Context(), planID, id, req.Description, req.Amount)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusCreated, dto.ExpenseResponse{Expense: *e})
}

// ExpenseSummary handles GET /api/plans/{id}/expenses/summary
// @Summary Summarize expenses
// @Description Total spend, fair share and each member's balance
// @Tags expenses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} collab.ExpenseReport
// @Failure 403 {object} dto.ErrorResponse
// @Router /api/plans/{id}/expenses/summary [get]
func (h *ActivityHandler) ExpenseSummary(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	report, err := h.collab.ExpenseSummary(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, report)
}

// ListFeedback handles GET /api/plans/{id}/feedback
// @Summary List trip feedback
// @Tags feedback
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} dto.FeedbackListResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /api/plans/{id}/feedback [get]
func (h *ActivityHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	fb, err := h.collab.ListFeedback(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	if fb == nil {
		fb = []models.Feedback{}
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.FeedbackListResponse{Feedback: fb})
}

// SubmitFeedback handles POST /api/plans/{id}/feedback
// @Summary Rate the trip
// @Description One rating per member while the feedback window is open
// @Tags feedback
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param payload body dto.FeedbackRequest true "Feedback"
// @Success 201 {object} dto.FeedbackResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/plans/{id}/feedback [post]
func (h *ActivityHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	var req dto.FeedbackRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	f, err := h.collab.SubmitFeedback(r.Context(), planID, id, req.Rating, req.Comment)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusCreated, dto.FeedbackResponse{Feedback: *f})
}
