package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/collab"
	"TRIPCOLLAB_BACK-END/internal/dto"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/utils"
)

// InvitationsHandler manages membership and invitation endpoints
type InvitationsHandler struct {
	collab *collab.Service
}

// NewInvitationsHandler creates a new InvitationsHandler
func NewInvitationsHandler(c *collab.Service) *InvitationsHandler {
	return &InvitationsHandler{collab: c}
}

// ListMembers handles GET /api/plans/{id}/members
// @Summary List plan members
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} dto.MemberListResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/plans/{id}/members [get]
func (h *InvitationsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	members, err := h.collab.ListMembers(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	if members == nil {
		members = []models.Member{}
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.MemberListResponse{Members: members})
}

// Invite handles POST /api/plans/{id}/invitations
// @Summary Invite someone to the plan
// @Description Owner only. The invitee is notified in-app when they have an account, and by email when SMTP is configured.
// @Tags invitations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param payload body dto.InviteRequest true "Invitee"
// @Success 201 {object} dto.InvitationResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Already invited"
// @Router /api/plans/{id}/invitations [post]
func (h *InvitationsHandler) Invite(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	var req dto.InviteRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	inv, err := h.collab.Invite(r.Context(), planID, id, req.Email)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusCreated, dto.InvitationResponse{Invitation: *inv})
}

// ListPlanInvitations handles GET /api/plans/{id}/invitations
// @Summary List a plan's invitations
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} dto.InvitationListResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/plans/{id}/invitations [get]
func (h *InvitationsHandler) ListPlanInvitations(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	invs, err := h.collab.ListInvitations(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	if invs == nil {
		invs = []models.Invitation{}
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.InvitationListResponse{Invitations: invs})
}

// ListMyInvitations handles GET /api/invitations
// @Summary List invitations addressed to me
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.InvitationListResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/invitations [get]
func (h *InvitationsHandler) ListMyInvitations(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	invs, err := h.collab.ListMyInvitations(r.Context(), id)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	if invs == nil {
		invs = []models.Invitation{}
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.InvitationListResponse{Invitations: invs})
}

// Accept handles POST /api/invitations/{iid}/accept
// @Summary Accept an invitation
// @Description Joins the plan as a participant. Accepting twice has no further effect.
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Param iid path string true "Invitation ID"
// @Success 200 {object} dto.InvitationResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/invitations/{iid}/accept [post]
func (h *InvitationsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.collab.Accept)
}

// Decline handles POST /api/invitations/{iid}/decline
// @Summary Decline an invitation
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Param iid path string true "Invitation ID"
// @Success 200 {object} dto.InvitationResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/invitations/{iid}/decline [post]
func (h *InvitationsHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.collab.Decline)
}

func (h *InvitationsHandler) resolve(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID, models.Identity) (*models.Invitation, error)) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	invID, err := utils.PathUUID(r, "iid")
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	inv, err := fn(r.Context(), invID, id)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.InvitationResponse{Invitation: *inv})
}
