package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/collab"
	"TRIPCOLLAB_BACK-END/internal/dto"
	"TRIPCOLLAB_BACK-END/internal/middleware"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/proposals"
	"TRIPCOLLAB_BACK-END/internal/store"
	"TRIPCOLLAB_BACK-END/internal/utils"
	"TRIPCOLLAB_BACK-END/internal/votes"
)

// PlansHandler manages plan, proposal and vote endpoints
type PlansHandler struct {
	collab    *collab.Service
	proposals *proposals.Service
	votes     *votes.Service
}

// NewPlansHandler creates a new PlansHandler
func NewPlansHandler(c *collab.Service, p *proposals.Service, v *votes.Service) *PlansHandler {
	return &PlansHandler{collab: c, proposals: p, votes: v}
}

// identity extracts the authenticated caller, answering 401 when missing.
func identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.WriteErrorResponse(w, http.StatusUnauthorized, "Unauthorized", "Invalid user context")
	}
	return id, ok
}

// planScope resolves the caller and the {id} path parameter.
func planScope(w http.ResponseWriter, r *http.Request) (models.Identity, uuid.UUID, bool) {
	id, ok := identity(w, r)
	if !ok {
		return models.Identity{}, uuid.Nil, false
	}
	planID, err := utils.PathUUID(r, "id")
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return models.Identity{}, uuid.Nil, false
	}
	return id, planID, true
}

// CreatePlan handles POST /api/plans
// @Summary Create a new plan
// @Tags plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreatePlanRequest true "Plan payload"
// @Success 201 {object} dto.PlanResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/plans [post]
func (h *PlansHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req dto.CreatePlanRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	plan, err := h.collab.CreatePlan(r.Context(), id, collab.PlanInput{
		Destination: req.Destination,
		Dates:       req.Dates,
		Description: req.Description,
		Document:    req.Document,
	})
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusCreated, dto.PlanResponse{Plan: *plan})
}

// ListPlans handles GET /api/plans
// @Summary List my plans
// @Description Plans the caller owns or has joined, newest first
// @Tags plans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.PlanListResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/plans [get]
func (h *PlansHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	plans, err := h.collab.ListPlans(r.Context(), id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	if plans == nil {
		plans = []models.Plan{}
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.PlanListResponse{Plans: plans})
}

// PlanDetail handles GET /api/plans/{id}
// @Summary Get plan detail
// @Tags plans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} dto.PlanDetailResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/plans/{id} [get]
func (h *PlansHandler) PlanDetail(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	plan, err := h.collab.GetPlan(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	members, err := h.collab.ListMembers(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.PlanDetailResponse{Plan: *plan, Members: members})
}

// UpdatePlan handles PATCH /api/plans/{id}
// @Summary Update a draft plan
// @Description Only the owner may edit, and only while the plan is in planning
// @Tags plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param payload body dto.UpdatePlanRequest true "Fields to update"
// @Success 200 {object} dto.PlanResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/plans/{id} [patch]
func (h *PlansHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	var req dto.UpdatePlanRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	plan, err := h.collab.UpdateDraft(r.Context(), planID, id.UserID, store.PlanDraft{
		Destination: req.Destination,
		Dates:       req.Dates,
		Description: req.Description,
		Document:    req.Document,
	})
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.PlanResponse{Plan: *plan})
}

func seedResponse(res proposals.SeedResult) dto.SeedResponse {
	return dto.SeedResponse{Inserted: res.Inserted, Skipped: res.Skipped, DateFallback: res.DateFallback}
}

// StartCollaboration handles POST /api/plans/{id}/collaboration
// @Summary Open the plan for collaboration
// @Description Moves planning to collaboration and seeds proposals from the draft
// @Tags plans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} dto.StartCollaborationResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/plans/{id}/collaboration [post]
func (h *PlansHandler) StartCollaboration(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	plan, seed, err := h.collab.StartCollaboration(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.StartCollaborationResponse{Plan: *plan, Seed: seedResponse(seed)})
}

// Readiness handles GET /api/plans/{id}/readiness
// @Summary Check whether every category has reached quorum
// @Tags plans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} tally.Readiness
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/plans/{id}/readiness [get]
func (h *PlansHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	ready, err := h.collab.Readiness(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, ready)
}

// Preview handles GET /api/plans/{id}/preview
// @Summary Preview the consolidated plan
// @Description Applies the current votes to the draft without saving anything
// @Tags plans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} dto.PreviewResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/plans/{id}/preview [get]
func (h *PlansHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	doc, err := h.collab.Preview(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.PreviewResponse{Document: doc})
}

// Confirm handles POST /api/plans/{id}/confirm
// @Summary Confirm the plan and start the trip
// @Description Persists the reviewed document (or the server consolidation when omitted) and moves to ongoing
// @Tags plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param payload body dto.ConfirmPlanRequest false "Reviewed document"
// @Success 200 {object} dto.PlanResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/plans/{id}/confirm [post]
func (h *PlansHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	var req dto.ConfirmPlanRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &req); err != nil {
			utils.WriteServiceError(w, r, err)
			return
		}
	}

	plan, err := h.collab.ConfirmAndProceed(r.Context(), planID, id.UserID, req.Document)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.PlanResponse{Plan: *plan})
}

// Conclude handles POST /api/plans/{id}/conclude
// @Summary Conclude the trip
// @Description Opens the feedback window and posts the trip summary in the background
// @Tags plans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} dto.PlanResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/plans/{id}/conclude [post]
func (h *PlansHandler) Conclude(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	plan, err := h.collab.Conclude(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.PlanResponse{Plan: *plan})
}
