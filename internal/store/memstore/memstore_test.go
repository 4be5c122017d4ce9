package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/store"
)

func newPlan(t *testing.T, s *Store, status models.PlanStatus) (models.Plan, uuid.UUID) {
	t.Helper()
	owner := uuid.New()
	p := models.Plan{ID: uuid.New(), OwnerID: owner, Destination: "Kyoto", Status: status}
	require.NoError(t, s.CreatePlan(context.Background(), &p, models.Member{UserID: owner, UserName: "Owner", Role: models.RoleOwner}))
	return p, owner
}

func newProposal(t *testing.T, s *Store, planID uuid.UUID, c models.Category) models.Proposal {
	t.Helper()
	p := models.Proposal{ID: uuid.New(), PlanID: planID, Category: c, Title: string(c)}
	switch c {
	case models.CategoryDate:
		p.Details = models.DateDetails{StartDate: "2025-06-01", EndDate: "2025-06-02"}
	case models.CategoryAccommodation:
		p.Details = models.AccommodationDetails{PricePerNight: 10, Nights: 1}
	default:
		p.Details = models.ItineraryDetails{Day: 1, Description: "walk"}
	}
	require.NoError(t, s.CreateProposal(context.Background(), &p))
	return p
}

func TestCreatePlan_AddsOwner(t *testing.T) {
	s := New()
	ctx := context.Background()
	p, owner := newPlan(t, s, models.PlanStatusPlanning)

	m, err := s.GetMember(ctx, p.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)

	plans, err := s.ListPlansForUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.False(t, plans[0].CreatedAt.IsZero())

	_, err = s.GetPlan(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTransitionPlan(t *testing.T) {
	s := New()
	ctx := context.Background()
	p, _ := newPlan(t, s, models.PlanStatusPlanning)

	_, err := s.TransitionPlan(ctx, p.ID, models.PlanStatusPlanning, models.PlanStatusOngoing, store.PlanChange{})
	assert.ErrorIs(t, err, common.ErrInvalidTransition, "no skipping phases")

	dates := "2025-06-01 - 2025-06-05"
	got, err := s.TransitionPlan(ctx, p.ID, models.PlanStatusPlanning, models.PlanStatusCollaboration, store.PlanChange{Dates: &dates})
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusCollaboration, got.Status)
	assert.Equal(t, dates, got.Dates)

	_, err = s.TransitionPlan(ctx, p.ID, models.PlanStatusPlanning, models.PlanStatusCollaboration, store.PlanChange{})
	assert.ErrorIs(t, err, common.ErrInvalidTransition, "stale from status")

	title := "Kyoto and Nara"
	_, err = s.UpdatePlanDraft(ctx, p.ID, store.PlanDraft{Destination: &title})
	assert.ErrorIs(t, err, common.ErrPhaseClosed)
}

func TestReadsReturnCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	p, _ := newPlan(t, s, models.PlanStatusPlanning)
	doc := &models.PlanDocument{Destination: "Kyoto", Bookings: []models.Booking{{Type: "hotel", Title: "Ryokan"}}}
	_, err := s.UpdatePlanDraft(ctx, p.ID, store.PlanDraft{Document: doc})
	require.NoError(t, err)

	got, err := s.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	got.Document.Bookings[0].Title = "changed"

	again, err := s.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ryokan", again.Document.Bookings[0].Title)
}

func TestToggleVote(t *testing.T) {
	s := New()
	ctx := context.Background()
	plan, owner := newPlan(t, s, models.PlanStatusCollaboration)
	p := newProposal(t, s, plan.ID, models.CategoryDate)

	steps := []struct {
		typ  models.VoteType
		want models.VoteOutcome
	}{
		{models.VoteUp, models.VoteAdded},
		{models.VoteUp, models.VoteRemoved},
		{models.VoteUp, models.VoteAdded},
		{models.VoteDown, models.VoteSwitched},
	}
	for _, st := range steps {
		got, err := s.ToggleVote(ctx, models.Vote{ProposalID: p.ID, UserID: owner, Type: st.typ})
		require.NoError(t, err)
		assert.Equal(t, st.want, got)
	}

	vs, err := s.ListVotes(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, models.VoteDown, vs[0].Type)
	assert.Equal(t, plan.ID, vs[0].PlanID)

	_, err = s.ToggleVote(ctx, models.Vote{ProposalID: uuid.New(), UserID: owner, Type: models.VoteUp})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestToggleVote_Concurrent(t *testing.T) {
	s := New()
	ctx := context.Background()
	plan, _ := newPlan(t, s, models.PlanStatusCollaboration)
	p := newProposal(t, s, plan.ID, models.CategoryItinerary)
	user := uuid.New()

	// an even number of identical toggles always nets out to no vote
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ToggleVote(ctx, models.Vote{ProposalID: p.ID, UserID: user, Type: models.VoteUp})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	vs, err := s.ListVotes(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestSeedProposals_Once(t *testing.T) {
	s := New()
	ctx := context.Background()
	plan, _ := newPlan(t, s, models.PlanStatusCollaboration)

	seed := func() []models.Proposal {
		return []models.Proposal{
			{ID: uuid.New(), Category: models.CategoryDate, Details: models.DateDetails{StartDate: "2025-06-01", EndDate: "2025-06-02"}},
			{ID: uuid.New(), Category: models.CategoryItinerary, Details: models.ItineraryDetails{Day: 1, Description: "a"}},
		}
	}

	var wg sync.WaitGroup
	counts := make([]int, 8)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := s.SeedProposals(ctx, plan.ID, seed())
			assert.NoError(t, err)
			counts[i] = n
		}(i)
	}
	wg.Wait()

	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, 2, total)
	all, err := s.ListProposals(ctx, plan.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSeedProposals_SkipsPopulatedCategories(t *testing.T) {
	s := New()
	ctx := context.Background()
	plan, _ := newPlan(t, s, models.PlanStatusCollaboration)
	newProposal(t, s, plan.ID, models.CategoryDate)

	n, err := s.SeedProposals(ctx, plan.ID, []models.Proposal{
		{ID: uuid.New(), Category: models.CategoryDate, Details: models.DateDetails{StartDate: "2025-07-01", EndDate: "2025-07-02"}},
		{ID: uuid.New(), Category: models.CategoryAccommodation, Details: models.AccommodationDetails{Nights: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dates, err := s.ListProposals(ctx, plan.ID, models.CategoryDate)
	require.NoError(t, err)
	assert.Len(t, dates, 1)
}

func TestInvitations(t *testing.T) {
	s := New()
	ctx := context.Background()
	plan, owner := newPlan(t, s, models.PlanStatusCollaboration)

	inv := &models.Invitation{ID: uuid.New(), PlanID: plan.ID, InvitedBy: owner, InvitedEmail: " A@X.com "}
	require.NoError(t, s.CreateInvitation(ctx, inv))
	assert.Equal(t, "a@x.com", inv.InvitedEmail)
	assert.Equal(t, models.InvitationPending, inv.Status)

	dup := &models.Invitation{ID: uuid.New(), PlanID: plan.ID, InvitedBy: owner, InvitedEmail: "a@x.com"}
	assert.ErrorIs(t, s.CreateInvitation(ctx, dup), common.ErrAlreadyInvited)

	invs, err := s.ListInvitationsByEmail(ctx, "a@X.COM")
	require.NoError(t, err)
	require.Len(t, invs, 1)

	user := uuid.New()
	member := models.Member{UserID: user, UserName: "A", Role: models.RoleParticipant}
	accepted, err := s.AcceptInvitation(ctx, inv.ID, member)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, accepted.Status)

	_, err = s.AcceptInvitation(ctx, inv.ID, member)
	require.NoError(t, err, "accepting twice is a no-op")
	members, err := s.ListMembers(ctx, plan.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = s.DeclineInvitation(ctx, inv.ID, user)
	assert.ErrorIs(t, err, common.ErrAlreadyResolved)
}

func TestNotifications(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := uuid.New()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateNotification(ctx, &models.Notification{UserID: user, Type: models.NotifyPlanUpdate, Title: "t"}))
	}
	require.NoError(t, s.CreateNotification(ctx, &models.Notification{UserID: user, Type: models.NotifyPlanInvitation, Title: "i"}))
	require.NoError(t, s.CreateNotification(ctx, &models.Notification{UserID: uuid.New(), Type: models.NotifyPlanUpdate, Title: "other"}))

	page, err := s.ListNotifications(ctx, user, store.NotificationFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 4, page.UnreadCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, models.NotifyPlanInvitation, page.Items[0].Type, "newest first")

	require.NoError(t, s.MarkNotificationRead(ctx, user, page.Items[0].ID))
	assert.ErrorIs(t, s.MarkNotificationRead(ctx, user, page.Items[0].ID), common.ErrNotFound)

	page, err = s.ListNotifications(ctx, user, store.NotificationFilter{UnreadOnly: true, Type: models.NotifyPlanUpdate})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 3, page.UnreadCount)

	n, err := s.MarkAllNotificationsRead(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestUsers(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := &models.User{Email: "Carol@Example.com", DisplayName: "Carol", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Email: "carol@example.com"}), common.ErrConflict)

	got, err := s.GetUserByEmail(ctx, "CAROL@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	same, err := s.UpsertOAuthUser(ctx, "carol@example.com", "Other")
	require.NoError(t, err)
	assert.Equal(t, u.ID, same.ID)
	assert.Equal(t, "Carol", same.DisplayName)

	fresh, err := s.UpsertOAuthUser(ctx, "dan@example.com", "Dan")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, fresh.ID)
}

func TestListen(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan models.ChangeEvent, 16)
	done := make(chan error, 1)
	go func() { done <- s.Listen(ctx, func(ev models.ChangeEvent) { events <- ev }) }()

	// Listen registers asynchronously
	require.Eventually(t, func() bool {
		s.pubMu.RLock()
		defer s.pubMu.RUnlock()
		return len(s.listeners) == 1
	}, time.Second, 5*time.Millisecond)
	plan, _ := newPlan(t, s, models.PlanStatusCollaboration)

	got := []models.ChangeEvent{<-events, <-events}
	assert.Equal(t, models.TablePlans, got[0].Table)
	assert.Equal(t, models.TableMembers, got[1].Table)
	for _, ev := range got {
		assert.Equal(t, plan.ID, ev.PlanID)
		assert.Equal(t, models.ChangeInsert, ev.Type)
		assert.NotEmpty(t, ev.ID)
	}

	p := newProposal(t, s, plan.ID, models.CategoryItinerary)
	require.NoError(t, s.DeleteProposal(context.Background(), p.ID))
	assert.Equal(t, models.ChangeInsert, (<-events).Type)
	del := <-events
	assert.Equal(t, models.ChangeDelete, del.Type)
	assert.NotEmpty(t, del.Old)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
