package dto

import (
	"encoding/json"

	"TRIPCOLLAB_BACK-END/internal/models"
)

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// CreatePlanRequest represents the payload to create a plan
type CreatePlanRequest struct {
	Destination string               `json:"destination"`
	Dates       string               `json:"dates"` // free text, e.g. "Dec 10 - Dec 15"
	Description string               `json:"description"`
	Document    *models.PlanDocument `json:"document,omitempty"`
}

// UpdatePlanRequest represents fields allowed to update a draft plan
// All fields are optional; only provided ones will be updated
type UpdatePlanRequest struct {
	Destination *string              `json:"destination"`
	Dates       *string              `json:"dates"`
	Description *string              `json:"description"`
	Document    *models.PlanDocument `json:"document"`
}

// PlanResponse envelope
type PlanResponse struct {
	Plan models.Plan `json:"plan"`
}

// PlanDetailResponse is a plan with its members
type PlanDetailResponse struct {
	Plan    models.Plan     `json:"plan"`
	Members []models.Member `json:"members"`
}

// PlanListResponse envelope
type PlanListResponse struct {
	Plans []models.Plan `json:"plans"`
}

// SeedResponse reports what proposal seeding did
type SeedResponse struct {
	Inserted     int  `json:"inserted"`
	Skipped      bool `json:"skipped"`
	DateFallback bool `json:"date_fallback"`
}

// StartCollaborationResponse envelope
type StartCollaborationResponse struct {
	Plan models.Plan  `json:"plan"`
	Seed SeedResponse `json:"seed"`
}

// ConfirmPlanRequest carries the reviewed document. Omit it to persist the
// server-side consolidation.
type ConfirmPlanRequest struct {
	Document *models.PlanDocument `json:"document,omitempty"`
}

// PreviewResponse is the live consolidation of the current votes
type PreviewResponse struct {
	Document models.PlanDocument `json:"document"`
}

// CreateProposalRequest represents the payload to add a proposal
type CreateProposalRequest struct {
	Category string          `json:"category"` // date | accommodation | itinerary
	Title    string          `json:"title"`
	Details  json.RawMessage `json:"details"`
}

// ProposalResponse envelope
type ProposalResponse struct {
	Proposal models.Proposal `json:"proposal"`
}

// VoteRequest casts, switches or withdraws a vote
type VoteRequest struct {
	Type string `json:"type"` // up | down
}

// VoteTally is the derived count of a proposal's votes
type VoteTally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
	Score     int `json:"score"`
}

// VotesResponse lists a proposal's votes with the tally
type VotesResponse struct {
	Votes  []models.Vote    `json:"votes"`
	Tally  VoteTally        `json:"tally"`
	MyVote *models.VoteType `json:"my_vote"`
}

// InviteRequest represents the payload to invite someone by email
type InviteRequest struct {
	Email string `json:"email"`
}

// InvitationResponse envelope
type InvitationResponse struct {
	Invitation models.Invitation `json:"invitation"`
}

// InvitationListResponse envelope
type InvitationListResponse struct {
	Invitations []models.Invitation `json:"invitations"`
}

// MemberListResponse envelope
type MemberListResponse struct {
	Members []models.Member `json:"members"`
}

// PostMessageRequest represents a new discussion message. Clients may supply
// the id to match the server echo against their optimistic copy.
type PostMessageRequest struct {
	ID   string `json:"id,omitempty"`
	Body string `json:"body"`
}

// EditMessageRequest represents an edit of a message body
type EditMessageRequest struct {
	Body string `json:"body"`
}

// ChatMessageResponse envelope
type ChatMessageResponse struct {
	Message models.Message `json:"message"`
}

// ChatMessageListResponse envelope
type ChatMessageListResponse struct {
	Messages []models.Message `json:"messages"`
}

// LogExpenseRequest represents one spend entry
type LogExpenseRequest struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// ExpenseResponse envelope
type ExpenseResponse struct {
	Expense models.Expense `json:"expense"`
}

// ExpenseListResponse envelope
type ExpenseListResponse struct {
	Expenses []models.Expense `json:"expenses"`
}

// FeedbackRequest represents a post-trip rating
type FeedbackRequest struct {
	Rating  int    `json:"rating"` // 1..5
	Comment string `json:"comment"`
}

// FeedbackResponse envelope
type FeedbackResponse struct {
	Feedback models.Feedback `json:"feedback"`
}

// FeedbackListResponse envelope
type FeedbackListResponse struct {
	Feedback []models.Feedback `json:"feedback"`
}
