package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/dto"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/utils"
	"TRIPCOLLAB_BACK-END/internal/votes"
)

// proposalScope resolves the caller, plan and {pid} for a proposal route and
// checks the proposal belongs to the plan.
func (h *PlansHandler) proposalScope(w http.ResponseWriter, r *http.Request) (models.Identity, uuid.UUID, uuid.UUID, bool) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return models.Identity{}, uuid.Nil, uuid.Nil, false
	}
	proposalID, err := utils.PathUUID(r, "pid")
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return models.Identity{}, uuid.Nil, uuid.Nil, false
	}
	if _, _, err := h.collab.RequireMember(r.Context(), planID, id.UserID); err != nil {
		utils.WriteServiceError(w, r, err)
		return models.Identity{}, uuid.Nil, uuid.Nil, false
	}
	if _, err := h.proposals.GetProposal(r.Context(), planID, proposalID); err != nil {
		utils.WriteServiceError(w, r, err)
		return models.Identity{}, uuid.Nil, uuid.Nil, false
	}
	return id, planID, proposalID, true
}

// ProposalBoard handles GET /api/plans/{id}/proposals
// @Summary List proposals with tallies
// @Description Proposals grouped by category in creation order, each with its tally and the caller's vote
// @Tags proposals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} collab.Board
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/plans/{id}/proposals [get]
func (h *PlansHandler) ProposalBoard(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	board, err := h.collab.ProposalBoard(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, board)
}

// AddProposal handles POST /api/plans/{id}/proposals
// @Summary Add a proposal
// @Description Any member may propose while the plan is collaborating. Details depend on the category.
// @Tags proposals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param payload body dto.CreateProposalRequest true "Proposal payload"
// @Success 201 {object} dto.ProposalResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/plans/{id}/proposals [post]
func (h *PlansHandler) AddProposal(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	var req dto.CreateProposalRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	p, err := h.proposals.AddProposal(r.Context(), planID, id, category, req.Title, req.Details)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusCreated, dto.ProposalResponse{Proposal: *p})
}

// SeedProposals handles POST /api/plans/{id}/proposals/seed
// @Summary Seed proposals from the plan draft
// @Description Inserts the draft's dates, lodging and itinerary as proposals when the plan has none yet
// @Tags proposals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Success 200 {object} dto.SeedResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/plans/{id}/proposals/seed [post]
func (h *PlansHandler) SeedProposals(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}

	res, err := h.collab.EnsureSeeded(r.Context(), planID, id.UserID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, seedResponse(res))
}

// DeleteProposal handles DELETE /api/plans/{id}/proposals/{pid}
// @Summary Delete a proposal
// @Description Owner only, while collaborating. Votes on the proposal are removed too.
// @Tags proposals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param pid path string true "Proposal ID"
// @Success 200 {object} dto.MessageResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/plans/{id}/proposals/{pid} [delete]
func (h *PlansHandler) DeleteProposal(w http.ResponseWriter, r *http.Request) {
	id, planID, ok := planScope(w, r)
	if !ok {
		return
	}
	proposalID, err := utils.PathUUID(r, "pid")
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	if err := h.proposals.DeleteProposal(r.Context(), planID, proposalID, id.UserID); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.MessageResponse{Message: "Proposal deleted"})
}

// Vote handles POST /api/plans/{id}/proposals/{pid}/votes
// @Summary Vote on a proposal
// @Description Same type again withdraws the vote, the other type switches it
// @Tags proposals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param pid path string true "Proposal ID"
// @Param payload body dto.VoteRequest true "Vote"
// @Success 200 {object} votes.Cast
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/plans/{id}/proposals/{pid}/votes [post]
func (h *PlansHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, _, proposalID, ok := h.proposalScope(w, r)
	if !ok {
		return
	}

	var req dto.VoteRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	typ, err := models.ParseVoteType(req.Type)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	cast, err := h.votes.Vote(r.Context(), proposalID, id, typ)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, cast)
}

// ListVotes handles GET /api/plans/{id}/proposals/{pid}/votes
// @Summary List a proposal's votes
// @Tags proposals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan ID"
// @Param pid path string true "Proposal ID"
// @Success 200 {object} dto.VotesResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/plans/{id}/proposals/{pid}/votes [get]
func (h *PlansHandler) ListVotes(w http.ResponseWriter, r *http.Request) {
	id, _, proposalID, ok := h.proposalScope(w, r)
	if !ok {
		return
	}

	vs, err := h.votes.GetVotes(r.Context(), proposalID)
	if err != nil {
		utils.WriteServiceError(w, r, err)
		return
	}
	if vs == nil {
		vs = []models.Vote{}
	}

	t := votes.Tally(vs)
	resp := dto.VotesResponse{
		Votes: vs,
		Tally: dto.VoteTally{Upvotes: t.Upvotes, Downvotes: t.Downvotes, Score: t.Score},
	}
	if st, ok := votes.UserStance(vs, id.UserID); ok {
		resp.MyVote = &st
	}

	utils.WriteJSONResponse(w, http.StatusOK, resp)
}
