package collab

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/config"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/proposals"
	"TRIPCOLLAB_BACK-END/internal/store"
	"TRIPCOLLAB_BACK-END/internal/store/memstore"
	"TRIPCOLLAB_BACK-END/internal/votes"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(e string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func (n *recordingNotifier) InvitationCreated(_ context.Context, _ models.Plan, inv models.Invitation, _ models.Identity) {
	n.add("invited:" + inv.InvitedEmail)
}

func (n *recordingNotifier) InvitationResolved(_ context.Context, _ models.Plan, inv models.Invitation, _ models.Identity) {
	n.add(string(inv.Status) + ":" + inv.InvitedEmail)
}

func (n *recordingNotifier) PlanAdvanced(_ context.Context, plan models.Plan, _ []models.Member, _ uuid.UUID) {
	n.add("advanced:" + string(plan.Status))
}

func (n *recordingNotifier) SummaryReady(_ context.Context, _ models.Plan, members []models.Member) {
	n.add("summary")
}

type env struct {
	st        *memstore.Store
	svc       *Service
	proposals *proposals.Service
	votes     *votes.Service
	notifier  *recordingNotifier
	now       time.Time

	alice, bob, carol, dan models.Identity
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	e := &env{
		st:       memstore.New(),
		notifier: &recordingNotifier{},
		now:      time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	ctx := context.Background()
	for _, who := range []*models.Identity{&e.alice, &e.bob, &e.carol, &e.dan} {
		*who = models.Identity{UserID: uuid.New()}
	}
	e.alice.Name, e.alice.Email = "Alice", "alice@example.com"
	e.bob.Name, e.bob.Email = "Bob", "bob@example.com"
	e.carol.Name, e.carol.Email = "Carol", "carol@example.com"
	e.dan.Name, e.dan.Email = "Dan", "dan@example.com"
	for _, who := range []models.Identity{e.alice, e.bob, e.carol, e.dan} {
		require.NoError(t, e.st.CreateUser(ctx, &models.User{ID: who.UserID, Email: who.Email, DisplayName: who.Name}))
	}

	clock := func() time.Time { return e.now }
	e.proposals = proposals.NewService(e.st, zerolog.Nop(), proposals.WithClock(clock))
	e.votes = votes.NewService(e.st, zerolog.Nop())
	cfg := config.CollabConfig{FeedbackWindow: 7 * 24 * time.Hour, SummaryTimeout: time.Second}
	all := append([]Option{WithNotifier(e.notifier), WithClock(clock)}, opts...)
	e.svc = NewService(e.st, e.proposals, cfg, zerolog.Nop(), all...)
	return e
}

// join invites each identity and accepts on their behalf.
func (e *env) join(t *testing.T, planID uuid.UUID, who ...models.Identity) {
	t.Helper()
	ctx := context.Background()
	for _, id := range who {
		inv, err := e.svc.Invite(ctx, planID, e.alice, id.Email)
		require.NoError(t, err)
		_, err = e.svc.Accept(ctx, inv.ID, id)
		require.NoError(t, err)
	}
}

func (e *env) propose(t *testing.T, planID uuid.UUID, author models.Identity, c models.Category, title, details string) models.Proposal {
	t.Helper()
	p, err := e.proposals.AddProposal(context.Background(), planID, author, c, title, json.RawMessage(details))
	require.NoError(t, err)
	return *p
}

func (e *env) upvote(t *testing.T, p models.Proposal, who ...models.Identity) {
	t.Helper()
	for _, id := range who {
		_, err := e.votes.Vote(context.Background(), p.ID, id, models.VoteUp)
		require.NoError(t, err)
	}
}

func TestCollaborationSession_EndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	plan, err := e.svc.CreatePlan(ctx, e.alice, PlanInput{
		Destination: "  Lisbon ",
		Dates:       "Flexible 5-Day Plan",
		Document:    &models.PlanDocument{Destination: "Lisbon"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", plan.Destination)
	assert.Equal(t, models.PlanStatusPlanning, plan.Status)

	e.join(t, plan.ID, e.bob, e.carol, e.dan)
	members, err := e.svc.ListMembers(ctx, plan.ID, e.dan.UserID)
	require.NoError(t, err)
	assert.Len(t, members, 4)

	plan, seed, err := e.svc.StartCollaboration(ctx, plan.ID, e.alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusCollaboration, plan.Status)
	assert.Equal(t, 1, seed.Inserted)
	assert.True(t, seed.DateFallback)

	again, err := e.svc.EnsureSeeded(ctx, plan.ID, e.bob.UserID)
	require.NoError(t, err)
	assert.True(t, again.Skipped)

	i1 := e.propose(t, plan.ID, e.bob, models.CategoryItinerary, "i1", `{"day":1,"time":"09:00","description":"Tram 28"}`)
	i2 := e.propose(t, plan.ID, e.carol, models.CategoryItinerary, "i2", `{"day":1,"time":"13:00","description":"Belem"}`)
	i3 := e.propose(t, plan.ID, e.dan, models.CategoryItinerary, "i3", `{"day":1,"time":"20:00","description":"Fado"}`)
	a1 := e.propose(t, plan.ID, e.bob, models.CategoryAccommodation, "a1", `{"location":"Alfama","pricePerNight":60,"nights":4}`)
	d1 := e.propose(t, plan.ID, e.carol, models.CategoryDate, "d1", `{"startDate":"2025-06-10","endDate":"2025-06-14"}`)
	e.propose(t, plan.ID, e.dan, models.CategoryDate, "d2", `{"startDate":"2025-07-01","endDate":"2025-07-05"}`)

	e.upvote(t, i1, e.bob, e.carol)
	e.upvote(t, i2, e.bob)
	e.upvote(t, a1, e.bob, e.carol)
	e.upvote(t, d1, e.bob, e.carol)

	r, err := e.svc.Readiness(ctx, plan.ID, e.alice.UserID)
	require.NoError(t, err)
	assert.False(t, r.Ready)
	assert.Equal(t, 4, r.AcceptedMembers)
	assert.Equal(t, 2, r.RequiredVotes)
	var blocked []string
	for _, b := range r.Blocking {
		blocked = append(blocked, b.Title)
	}
	assert.ElementsMatch(t, []string{"i2", "i3"}, blocked)

	board, err := e.svc.ProposalBoard(ctx, plan.ID, e.bob.UserID)
	require.NoError(t, err)
	assert.Len(t, board.Date, 3)
	assert.Len(t, board.Itinerary, 3)
	require.NotNil(t, board.Itinerary[0].MyVote)
	assert.Equal(t, models.VoteUp, *board.Itinerary[0].MyVote)
	assert.Nil(t, board.Itinerary[2].MyVote)

	require.NoError(t, e.proposals.DeleteProposal(ctx, plan.ID, i3.ID, e.alice.UserID))
	e.upvote(t, i2, e.carol)

	r, err = e.svc.Readiness(ctx, plan.ID, e.alice.UserID)
	require.NoError(t, err)
	assert.True(t, r.Ready)

	preview, err := e.svc.Preview(ctx, plan.ID, e.dan.UserID)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10 - 2025-06-14", preview.Dates)
	require.Len(t, preview.DailyItinerary, 1)
	assert.Len(t, preview.DailyItinerary[0].Items, 2)

	_, err = e.svc.ConfirmAndProceed(ctx, plan.ID, e.bob.UserID, nil)
	assert.ErrorIs(t, err, common.ErrForbidden)

	plan, err = e.svc.ConfirmAndProceed(ctx, plan.ID, e.alice.UserID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusOngoing, plan.Status)
	assert.Equal(t, "2025-06-10 - 2025-06-14", plan.Dates)
	require.NotNil(t, plan.Document)
	assert.Equal(t, preview, *plan.Document)

	_, err = e.votes.Vote(ctx, i1.ID, e.dan, models.VoteUp)
	assert.ErrorIs(t, err, common.ErrPhaseClosed, "voting is closed once ongoing")
	_, err = e.proposals.AddProposal(ctx, plan.ID, e.dan, models.CategoryItinerary, "late", json.RawMessage(`{"day":2,"description":"x"}`))
	assert.ErrorIs(t, err, common.ErrPhaseClosed)

	_, err = e.svc.LogExpense(ctx, plan.ID, e.bob, "Dinner", 80)
	require.NoError(t, err)
	_, err = e.svc.LogExpense(ctx, plan.ID, e.carol, "Tickets", 40)
	require.NoError(t, err)

	_, err = e.svc.SubmitFeedback(ctx, plan.ID, e.bob, 5, "")
	assert.ErrorIs(t, err, common.ErrPhaseClosed, "feedback waits for the end")

	plan, err = e.svc.Conclude(ctx, plan.ID, e.alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusConcluded, plan.Status)
	require.NotNil(t, plan.FeedbackClosesAt)
	e.svc.Wait()

	msgs, err := e.svc.ListMessages(ctx, plan.ID, e.bob.UserID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, SummaryAuthorName, msgs[0].UserName)
	assert.Equal(t, e.alice.UserID, msgs[0].UserID)
	assert.Contains(t, msgs[0].Body, "Trip summary: Lisbon")
	assert.Contains(t, msgs[0].Body, "total 120.00, share 30.00 each")

	_, err = e.svc.LogExpense(ctx, plan.ID, e.bob, "Souvenir", 5)
	assert.ErrorIs(t, err, common.ErrPhaseClosed)

	fb, err := e.svc.SubmitFeedback(ctx, plan.ID, e.bob, 4, "  great  ")
	require.NoError(t, err)
	assert.Equal(t, "great", fb.Comment)
	_, err = e.svc.SubmitFeedback(ctx, plan.ID, e.bob, 5, "")
	assert.ErrorIs(t, err, common.ErrConflict)

	e.now = e.now.Add(8 * 24 * time.Hour)
	_, err = e.svc.SubmitFeedback(ctx, plan.ID, e.carol, 3, "")
	assert.ErrorIs(t, err, common.ErrPhaseClosed, "window closed")

	assert.Equal(t, []string{
		"invited:bob@example.com", "accepted:bob@example.com",
		"invited:carol@example.com", "accepted:carol@example.com",
		"invited:dan@example.com", "accepted:dan@example.com",
		"advanced:collaboration", "advanced:ongoing", "advanced:concluded",
		"summary",
	}, e.notifier.list())
}

func TestInvite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	plan, err := e.svc.CreatePlan(ctx, e.alice, PlanInput{Destination: "Rome"})
	require.NoError(t, err)

	_, err = e.svc.Invite(ctx, plan.ID, e.alice, "a@x.com")
	require.NoError(t, err)
	_, err = e.svc.Invite(ctx, plan.ID, e.alice, " A@X.COM ")
	assert.ErrorIs(t, err, common.ErrAlreadyInvited)
	assert.ErrorIs(t, err, common.ErrConflict)

	invs, err := e.svc.ListInvitations(ctx, plan.ID, e.alice.UserID)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, models.InvitationPending, invs[0].Status)

	_, err = e.svc.Invite(ctx, plan.ID, e.alice, "not-an-email")
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = e.svc.Invite(ctx, plan.ID, e.alice, "alice@example.com")
	assert.ErrorIs(t, err, common.ErrConflict, "self invite")
	_, err = e.svc.Invite(ctx, plan.ID, e.bob, "carol@example.com")
	assert.ErrorIs(t, err, common.ErrForbidden, "only the owner invites")

	e.join(t, plan.ID, e.bob)
	_, err = e.svc.Invite(ctx, plan.ID, e.alice, "bob@example.com")
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestAcceptDecline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	plan, err := e.svc.CreatePlan(ctx, e.alice, PlanInput{Destination: "Rome"})
	require.NoError(t, err)

	inv, err := e.svc.Invite(ctx, plan.ID, e.alice, e.bob.Email)
	require.NoError(t, err)

	_, err = e.svc.Accept(ctx, inv.ID, e.carol)
	assert.ErrorIs(t, err, common.ErrForbidden, "addressed to someone else")

	mine, err := e.svc.ListMyInvitations(ctx, e.bob)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	for i := 0; i < 2; i++ {
		got, err := e.svc.Accept(ctx, inv.ID, e.bob)
		require.NoError(t, err)
		assert.Equal(t, models.InvitationAccepted, got.Status)
	}
	members, err := e.st.ListMembers(ctx, plan.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = e.svc.Decline(ctx, inv.ID, e.bob)
	assert.ErrorIs(t, err, common.ErrAlreadyResolved)

	inv2, err := e.svc.Invite(ctx, plan.ID, e.alice, e.dan.Email)
	require.NoError(t, err)
	got, err := e.svc.Decline(ctx, inv2.ID, e.dan)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationDeclined, got.Status)
	_, err = e.svc.Accept(ctx, inv2.ID, e.dan)
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = e.svc.GetPlan(ctx, plan.ID, e.dan.UserID)
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestPhaseGuards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	plan, err := e.svc.CreatePlan(ctx, e.alice, PlanInput{Destination: "Oslo"})
	require.NoError(t, err)
	e.join(t, plan.ID, e.bob)

	_, _, err = e.svc.StartCollaboration(ctx, plan.ID, e.bob.UserID)
	assert.ErrorIs(t, err, common.ErrForbidden)
	_, err = e.svc.ConfirmAndProceed(ctx, plan.ID, e.alice.UserID, nil)
	assert.ErrorIs(t, err, common.ErrInvalidTransition, "planning cannot skip to ongoing")
	_, err = e.svc.Conclude(ctx, plan.ID, e.alice.UserID)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	_, err = e.svc.EnsureSeeded(ctx, plan.ID, e.bob.UserID)
	assert.ErrorIs(t, err, common.ErrPhaseClosed)

	desc := "Fjords"
	updated, err := e.svc.UpdateDraft(ctx, plan.ID, e.alice.UserID, store.PlanDraft{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Fjords", updated.Description)
	empty := " "
	_, err = e.svc.UpdateDraft(ctx, plan.ID, e.alice.UserID, store.PlanDraft{Destination: &empty})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, _, err = e.svc.StartCollaboration(ctx, plan.ID, e.alice.UserID)
	require.NoError(t, err)
	_, _, err = e.svc.StartCollaboration(ctx, plan.ID, e.alice.UserID)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	_, err = e.svc.UpdateDraft(ctx, plan.ID, e.alice.UserID, store.PlanDraft{Description: &desc})
	assert.ErrorIs(t, err, common.ErrPhaseClosed)
	_, err = e.svc.LogExpense(ctx, plan.ID, e.bob, "Taxi", 10)
	assert.ErrorIs(t, err, common.ErrPhaseClosed)

	doc := &models.PlanDocument{Destination: "Oslo", Dates: "2025-08-01 - 2025-08-03"}
	confirmed, err := e.svc.ConfirmAndProceed(ctx, plan.ID, e.alice.UserID, doc)
	require.NoError(t, err, "confirm does not re-check readiness")
	assert.Equal(t, "2025-08-01 - 2025-08-03", confirmed.Dates)
	assert.NotNil(t, confirmed.Document.Bookings)

	_, err = e.svc.LogExpense(ctx, plan.ID, e.bob, "Taxi", -1)
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = e.svc.SubmitFeedback(ctx, plan.ID, e.bob, 6, "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

type fixedSeeds struct {
	doc models.PlanDocument
	err error
}

func (f fixedSeeds) Draft(context.Context, models.Plan) (models.PlanDocument, error) {
	return f.doc, f.err
}

func TestStartCollaboration_UsesSeedSource(t *testing.T) {
	e := newEnv(t, WithSeedSource(fixedSeeds{doc: models.PlanDocument{
		Bookings: []models.Booking{{Type: "hotel", Title: "Harbour Hotel", Price: "$120 per night", Details: "2 nights"}},
		DailyItinerary: []models.ItineraryDay{
			{Day: 1, Items: []models.ItineraryItem{{Description: "Walk"}, {Description: "Museum"}}},
		},
	}}))
	ctx := context.Background()
	plan, err := e.svc.CreatePlan(ctx, e.alice, PlanInput{Destination: "Bergen", Dates: "2025-09-01 - 2025-09-04"})
	require.NoError(t, err)

	_, seed, err := e.svc.StartCollaboration(ctx, plan.ID, e.alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, 4, seed.Inserted)
	assert.False(t, seed.DateFallback)

	dates, err := e.proposals.ListProposals(ctx, plan.ID, models.CategoryDate)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, "2025-09-01 - 2025-09-04", dates[0].Title)
}

func TestStartCollaboration_SeedSourceFailureFallsBack(t *testing.T) {
	e := newEnv(t, WithSeedSource(fixedSeeds{err: errors.New("offline")}))
	ctx := context.Background()
	plan, err := e.svc.CreatePlan(ctx, e.alice, PlanInput{Destination: "Bergen"})
	require.NoError(t, err)

	_, seed, err := e.svc.StartCollaboration(ctx, plan.ID, e.alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, seed.Inserted)
	assert.True(t, seed.DateFallback)
}

func TestMessages(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	plan, err := e.svc.CreatePlan(ctx, e.alice, PlanInput{Destination: "Paris"})
	require.NoError(t, err)
	e.join(t, plan.ID, e.bob, e.carol)

	id := uuid.New()
	m, err := e.svc.PostMessage(ctx, plan.ID, e.bob, id, "  Louvre or Orsay? ")
	require.NoError(t, err)
	assert.Equal(t, id, m.ID, "client supplied id is kept")
	assert.Equal(t, "Louvre or Orsay?", m.Body)

	_, err = e.svc.PostMessage(ctx, plan.ID, e.bob, uuid.Nil, "   ")
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = e.svc.PostMessage(ctx, plan.ID, e.dan, uuid.Nil, "hi")
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = e.svc.EditMessage(ctx, plan.ID, m.ID, e.carol.UserID, "Orsay")
	assert.ErrorIs(t, err, common.ErrForbidden)
	edited, err := e.svc.EditMessage(ctx, plan.ID, m.ID, e.bob.UserID, "Orsay!")
	require.NoError(t, err)
	assert.Equal(t, "Orsay!", edited.Body)

	assert.ErrorIs(t, e.svc.DeleteMessage(ctx, plan.ID, m.ID, e.carol.UserID), common.ErrForbidden)
	require.NoError(t, e.svc.DeleteMessage(ctx, plan.ID, m.ID, e.alice.UserID), "owner moderates")
	msgs, err := e.svc.ListMessages(ctx, plan.ID, e.bob.UserID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
