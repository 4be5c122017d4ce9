package votes

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/store/memstore"
)

func TestTally(t *testing.T) {
	p := uuid.New()
	vs := []models.Vote{
		{ProposalID: p, UserID: uuid.New(), Type: models.VoteUp},
		{ProposalID: p, UserID: uuid.New(), Type: models.VoteUp},
		{ProposalID: p, UserID: uuid.New(), Type: models.VoteDown},
	}
	assert.Equal(t, Result{Upvotes: 2, Downvotes: 1, Score: 1}, Tally(vs))
	assert.Equal(t, Result{}, Tally(nil))

	reversed := []models.Vote{vs[2], vs[1], vs[0]}
	assert.Equal(t, Tally(vs), Tally(reversed))
}

func TestUserStanceAndByProposal(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	p1, p2 := uuid.New(), uuid.New()
	vs := []models.Vote{
		{ProposalID: p1, UserID: a, Type: models.VoteUp},
		{ProposalID: p2, UserID: a, Type: models.VoteDown},
		{ProposalID: p2, UserID: b, Type: models.VoteUp},
	}

	st, ok := UserStance(vs[:1], a)
	assert.True(t, ok)
	assert.Equal(t, models.VoteUp, st)
	_, ok = UserStance(vs[:1], b)
	assert.False(t, ok)

	grouped := ByProposal(vs)
	assert.Len(t, grouped[p1], 1)
	assert.Len(t, grouped[p2], 2)
}

type fixture struct {
	st       *memstore.Store
	svc      *Service
	plan     models.Plan
	proposal models.Proposal
	alice    models.Identity
	bob      models.Identity
}

func newFixture(t *testing.T, status models.PlanStatus) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	f := &fixture{
		st:    st,
		svc:   NewService(st, zerolog.Nop()),
		alice: models.Identity{UserID: uuid.New(), Email: "alice@example.com", Name: "Alice"},
		bob:   models.Identity{UserID: uuid.New(), Email: "bob@example.com", Name: "Bob"},
	}
	f.plan = models.Plan{ID: uuid.New(), OwnerID: f.alice.UserID, Destination: "Lisbon", Status: status}
	require.NoError(t, st.CreatePlan(ctx, &f.plan, models.Member{UserID: f.alice.UserID, UserName: "Alice", Role: models.RoleOwner}))
	_, err := st.AddMember(ctx, models.Member{PlanID: f.plan.ID, UserID: f.bob.UserID, UserName: "Bob", Role: models.RoleParticipant})
	require.NoError(t, err)

	f.proposal = models.Proposal{
		ID:       uuid.New(),
		PlanID:   f.plan.ID,
		AuthorID: f.alice.UserID,
		Category: models.CategoryAccommodation,
		Title:    "Hostel",
		Details:  models.AccommodationDetails{Location: "Alfama", PricePerNight: 40, Nights: 3},
	}
	require.NoError(t, st.CreateProposal(ctx, &f.proposal))
	return f
}

func TestVote_ToggleRule(t *testing.T) {
	f := newFixture(t, models.PlanStatusCollaboration)
	ctx := context.Background()

	cast, err := f.svc.Vote(ctx, f.proposal.ID, f.alice, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, models.VoteAdded, cast.Outcome)
	require.NotNil(t, cast.Stance)
	assert.Equal(t, models.VoteUp, *cast.Stance)
	assert.Equal(t, Result{Upvotes: 1, Score: 1}, cast.Tally)

	cast, err = f.svc.Vote(ctx, f.proposal.ID, f.alice, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, models.VoteSwitched, cast.Outcome)
	assert.Equal(t, Result{Downvotes: 1, Score: -1}, cast.Tally)

	cast, err = f.svc.Vote(ctx, f.proposal.ID, f.alice, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, models.VoteRemoved, cast.Outcome)
	assert.Nil(t, cast.Stance)
	assert.Equal(t, Result{}, cast.Tally)

	vs, err := f.svc.GetVotes(ctx, f.proposal.ID)
	require.NoError(t, err)
	assert.Empty(t, vs)
}

func TestVote_OneVotePerUser(t *testing.T) {
	f := newFixture(t, models.PlanStatusCollaboration)
	ctx := context.Background()

	_, err := f.svc.Vote(ctx, f.proposal.ID, f.alice, models.VoteUp)
	require.NoError(t, err)
	cast, err := f.svc.Vote(ctx, f.proposal.ID, f.bob, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, Result{Upvotes: 2, Score: 2}, cast.Tally)

	vs, err := f.svc.GetVotes(ctx, f.proposal.ID)
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, f.plan.ID, vs[0].PlanID)
}

func TestVote_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("bad type", func(t *testing.T) {
		f := newFixture(t, models.PlanStatusCollaboration)
		_, err := f.svc.Vote(ctx, f.proposal.ID, f.alice, models.VoteType("meh"))
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("unknown proposal", func(t *testing.T) {
		f := newFixture(t, models.PlanStatusCollaboration)
		_, err := f.svc.Vote(ctx, uuid.New(), f.alice, models.VoteUp)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("plan not collaborating", func(t *testing.T) {
		for _, st := range []models.PlanStatus{models.PlanStatusPlanning, models.PlanStatusOngoing, models.PlanStatusConcluded} {
			f := newFixture(t, st)
			_, err := f.svc.Vote(ctx, f.proposal.ID, f.alice, models.VoteUp)
			assert.ErrorIs(t, err, common.ErrPhaseClosed, st)
			assert.ErrorIs(t, err, common.ErrConflict, st)
		}
	})

	t.Run("non member", func(t *testing.T) {
		f := newFixture(t, models.PlanStatusCollaboration)
		stranger := models.Identity{UserID: uuid.New(), Name: "Eve"}
		_, err := f.svc.Vote(ctx, f.proposal.ID, stranger, models.VoteUp)
		assert.ErrorIs(t, err, common.ErrForbidden)
	})
}
