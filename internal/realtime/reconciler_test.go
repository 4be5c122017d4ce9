package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
)

type fakeVotes struct {
	mu    sync.Mutex
	votes map[uuid.UUID][]models.Vote
	calls map[uuid.UUID]int
	err   error
}

func newFakeVotes() *fakeVotes {
	return &fakeVotes{votes: make(map[uuid.UUID][]models.Vote), calls: make(map[uuid.UUID]int)}
}

func (f *fakeVotes) ProposalVotes(_ context.Context, _, proposalID uuid.UUID) ([]models.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[proposalID]++
	if f.err != nil {
		return nil, f.err
	}
	return f.votes[proposalID], nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestReconciler(plan uuid.UUID, src VoteSource) (*Reconciler, *clock) {
	c := &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewReconciler(plan, src, WithReconcilerClock(c.now)), c
}

func rowEvent(t *testing.T, typ models.ChangeType, table string, plan uuid.UUID, row any) models.ChangeEvent {
	t.Helper()
	raw, err := json.Marshal(row)
	require.NoError(t, err)
	ev := models.ChangeEvent{ID: uuid.NewString(), Table: table, Type: typ, PlanID: plan}
	if typ == models.ChangeDelete {
		ev.Old = raw
	} else {
		ev.New = raw
	}
	return ev
}

func TestReconciler_EchoCollapsesLocalProposal(t *testing.T) {
	plan, author := uuid.New(), uuid.New()
	r, c := newTestReconciler(plan, newFakeVotes())
	ctx := context.Background()

	local := models.Proposal{
		PlanID:   plan,
		AuthorID: author,
		Category: models.CategoryItinerary,
		Title:    "Hike",
		Details:  models.ItineraryDetails{Day: 1, Description: "Hike"},
	}
	corr := r.AddLocalProposal(local)
	require.Len(t, r.Proposals(models.CategoryItinerary), 1)

	c.advance(time.Second)
	stored := local
	stored.ID = uuid.New()
	stored.AuthorName = "Alice"
	stored.CreatedAt = c.now()
	stored.Details = models.ItineraryDetails{Day: 1, Description: "Hike", DayTitle: "Day 1"}
	require.NoError(t, r.Apply(ctx, rowEvent(t, models.ChangeInsert, models.TableProposals, plan, stored)))

	list := r.Proposals(models.CategoryItinerary)
	require.Len(t, list, 1)
	assert.Equal(t, stored.ID, list[0].ID)
	op, ok := r.Op(corr)
	require.True(t, ok)
	assert.Equal(t, OpConfirmed, op.State)
	assert.Empty(t, r.Pending())

	// the API response arriving after the echo changes nothing
	r.ConfirmProposal(corr, stored)
	assert.Len(t, r.Proposals(models.CategoryItinerary), 1)
}

func TestReconciler_EchoWindowAndExpiry(t *testing.T) {
	plan, author := uuid.New(), uuid.New()
	r, c := newTestReconciler(plan, newFakeVotes())
	ctx := context.Background()

	local := models.Proposal{
		AuthorID: author,
		Category: models.CategoryDate,
		Title:    "June",
		Details:  models.DateDetails{StartDate: "2025-06-10", EndDate: "2025-06-14"},
	}
	corr := r.AddLocalProposal(local)

	c.advance(10 * time.Second)
	late := local
	late.ID = uuid.New()
	late.CreatedAt = c.now()
	require.NoError(t, r.Apply(ctx, rowEvent(t, models.ChangeInsert, models.TableProposals, plan, late)))
	assert.Len(t, r.Proposals(models.CategoryDate), 2, "inserts outside the echo window are separate rows")

	assert.Zero(t, r.Expire())
	c.advance(10 * time.Second)
	assert.Equal(t, 1, r.Expire())

	list := r.Proposals(models.CategoryDate)
	require.Len(t, list, 1)
	assert.Equal(t, late.ID, list[0].ID)
	op, _ := r.Op(corr)
	assert.Equal(t, OpFailed, op.State)
	assert.Equal(t, ErrPendingTimeout.Error(), op.Err)
}

func TestReconciler_MessageEchoByID(t *testing.T) {
	plan, author := uuid.New(), uuid.New()
	r, c := newTestReconciler(plan, newFakeVotes())

	local := models.Message{ID: uuid.New(), PlanID: plan, UserID: author, Body: "hi all"}
	corr := r.AddLocalMessage(local)

	c.advance(10 * time.Second)
	stored := local
	stored.CreatedAt = c.now()
	require.NoError(t, r.Apply(context.Background(), rowEvent(t, models.ChangeInsert, models.TableMessages, plan, stored)))

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, c.now(), msgs[0].CreatedAt)
	op, _ := r.Op(corr)
	assert.Equal(t, OpConfirmed, op.State)

	stored.Body = "hi everyone"
	require.NoError(t, r.Apply(context.Background(), rowEvent(t, models.ChangeUpdate, models.TableMessages, plan, stored)))
	assert.Equal(t, "hi everyone", r.Messages()[0].Body)

	require.NoError(t, r.Apply(context.Background(), rowEvent(t, models.ChangeDelete, models.TableMessages, plan, stored)))
	assert.Empty(t, r.Messages())
}

func TestReconciler_FailRollsBack(t *testing.T) {
	plan := uuid.New()
	r, _ := newTestReconciler(plan, newFakeVotes())

	corr := r.AddLocalMessage(models.Message{UserID: uuid.New(), Body: "draft"})
	r.Fail(corr, errors.New("forbidden"))
	assert.Empty(t, r.Messages())
	op, _ := r.Op(corr)
	assert.Equal(t, OpFailed, op.State)
	assert.Equal(t, "forbidden", op.Err)

	confirmed := r.AddLocalMessage(models.Message{UserID: uuid.New(), Body: "kept"})
	stored := models.Message{ID: uuid.New(), Body: "kept"}
	r.ConfirmMessage(confirmed, stored)
	r.Fail(confirmed, errors.New("too late"))
	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, stored.ID, msgs[0].ID)

	_, ok := r.Op("missing")
	assert.False(t, ok)
	r.Fail("missing", errors.New("ignored"))
}

func TestReconciler_DeleteClearsProposalAndVotes(t *testing.T) {
	plan := uuid.New()
	r, _ := newTestReconciler(plan, newFakeVotes())

	acc := models.Proposal{ID: uuid.New(), PlanID: plan, Category: models.CategoryAccommodation, Title: "Inn",
		Details: models.AccommodationDetails{Location: "Inn", PricePerNight: 40, Nights: 2}}
	day := models.Proposal{ID: uuid.New(), PlanID: plan, Category: models.CategoryDate, Title: "June",
		Details: models.DateDetails{StartDate: "2025-06-10", EndDate: "2025-06-12"}}
	r.Load([]models.Proposal{acc, day}, []models.Vote{
		{ProposalID: acc.ID, UserID: uuid.New(), Type: models.VoteUp},
		{ProposalID: day.ID, UserID: uuid.New(), Type: models.VoteDown},
	}, nil)
	assert.Equal(t, 1, r.Tally(acc.ID).Upvotes)

	require.NoError(t, r.Apply(context.Background(), rowEvent(t, models.ChangeDelete, models.TableProposals, plan, acc)))
	assert.Empty(t, r.Proposals(models.CategoryAccommodation))
	assert.Empty(t, r.Votes(acc.ID))
	assert.Len(t, r.Proposals(models.CategoryDate), 1)
	assert.Len(t, r.AllVotes(), 1)
}

func TestReconciler_VoteEventsRefetchOneProposal(t *testing.T) {
	plan := uuid.New()
	src := newFakeVotes()
	r, _ := newTestReconciler(plan, src)
	ctx := context.Background()

	p1, p2 := uuid.New(), uuid.New()
	stale := models.Vote{ProposalID: p2, UserID: uuid.New(), Type: models.VoteUp}
	r.Load(nil, []models.Vote{stale}, nil)

	src.votes[p1] = []models.Vote{
		{ProposalID: p1, UserID: uuid.New(), Type: models.VoteUp},
		{ProposalID: p1, UserID: uuid.New(), Type: models.VoteUp},
	}
	ev := rowEvent(t, models.ChangeInsert, models.TableVotes, plan, models.Vote{ProposalID: p1, PlanID: plan})
	require.NoError(t, r.Apply(ctx, ev))

	assert.Equal(t, 2, r.Tally(p1).Upvotes)
	assert.Equal(t, []models.Vote{stale}, r.Votes(p2), "other proposals untouched")
	assert.Equal(t, 1, src.calls[p1])
	assert.Zero(t, src.calls[p2])

	src.votes[p1] = nil
	require.NoError(t, r.Apply(ctx, rowEvent(t, models.ChangeDelete, models.TableVotes, plan, models.Vote{ProposalID: p1})))
	assert.Empty(t, r.Votes(p1))

	err := r.Apply(ctx, rowEvent(t, models.ChangeInsert, models.TableVotes, plan, models.Vote{}))
	assert.Error(t, err)

	src.err = errors.New("offline")
	err = r.Apply(ctx, rowEvent(t, models.ChangeInsert, models.TableVotes, plan, models.Vote{ProposalID: p2}))
	assert.ErrorIs(t, err, src.err)
	assert.Equal(t, []models.Vote{stale}, r.Votes(p2))

	require.NoError(t, r.Apply(ctx, rowEvent(t, models.ChangeInsert, models.TableVotes, uuid.New(), models.Vote{ProposalID: p2})))
	assert.Equal(t, 1, src.calls[p2], "events for other plans are ignored")
}

func TestReconciler_RunAppliesAndNotifies(t *testing.T) {
	plan := uuid.New()
	r, _ := newTestReconciler(plan, newFakeVotes())
	events := make(chan models.ChangeEvent, 4)

	msg := models.Message{ID: uuid.New(), PlanID: plan, Body: "hello"}
	events <- rowEvent(t, models.ChangeInsert, models.TableMessages, plan, msg)
	events <- models.ChangeEvent{ID: "bad", Table: models.TableMessages, Type: models.ChangeInsert, PlanID: plan, New: json.RawMessage(`{"id":1}`)}
	events <- models.ChangeEvent{ID: "plan", Table: models.TablePlans, Type: models.ChangeUpdate, PlanID: plan}
	close(events)

	require.NoError(t, r.Run(context.Background(), events))
	require.Len(t, r.Messages(), 1)

	var kinds []ChangeKind
	for {
		select {
		case ch := <-r.Changes():
			kinds = append(kinds, ch.Kind)
			continue
		default:
		}
		break
	}
	assert.Equal(t, []ChangeKind{ChangedMessages, ChangedPlan}, kinds)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx, make(chan models.ChangeEvent)), context.Canceled)
}

// fakeRows serves full rows for events that only carry keys.
type fakeRows struct {
	*fakeVotes
	proposals map[uuid.UUID]models.Proposal
	messages  map[uuid.UUID]models.Message
}

func (f *fakeRows) Proposal(_ context.Context, _, id uuid.UUID) (*models.Proposal, error) {
	p, ok := f.proposals[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (f *fakeRows) Message(_ context.Context, _, id uuid.UUID) (*models.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &m, nil
}

// keyEvent mimics an oversized notification shrunk to the row keys.
func keyEvent(typ models.ChangeType, table string, plan, id, user uuid.UUID) models.ChangeEvent {
	raw := json.RawMessage(`{"id":"` + id.String() + `","plan_id":"` + plan.String() + `","user_id":"` + user.String() + `"}`)
	ev := models.ChangeEvent{ID: uuid.NewString(), Table: table, Type: typ, PlanID: plan}
	if typ == models.ChangeDelete {
		ev.Old = raw
	} else {
		ev.New = raw
	}
	return ev
}

func TestReconciler_KeyOnlyRowsWithoutRowSource(t *testing.T) {
	plan, author := uuid.New(), uuid.New()
	r, c := newTestReconciler(plan, newFakeVotes())
	ctx := context.Background()

	hike := models.Proposal{ID: uuid.New(), PlanID: plan, AuthorID: author, Category: models.CategoryItinerary, Title: "Hike",
		Details: models.ItineraryDetails{Day: 1, Description: "Hike", DayTitle: "Day 1"}}
	msg := models.Message{ID: uuid.New(), PlanID: plan, UserID: author, Body: "hi", CreatedAt: c.now()}
	r.Load([]models.Proposal{hike}, []models.Vote{{ProposalID: hike.ID, UserID: author, Type: models.VoteUp}}, []models.Message{msg})

	err := r.Apply(ctx, keyEvent(models.ChangeUpdate, models.TableMessages, plan, msg.ID, author))
	assert.ErrorIs(t, err, ErrKeyOnlyRow)
	msgs := r.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Body, "the local row is left untouched")
	assert.Equal(t, msg.CreatedAt, msgs[0].CreatedAt)

	err = r.Apply(ctx, keyEvent(models.ChangeInsert, models.TableProposals, plan, uuid.New(), author))
	assert.ErrorIs(t, err, ErrKeyOnlyRow)
	assert.Len(t, r.Proposals(models.CategoryItinerary), 1)

	require.NoError(t, r.Apply(ctx, keyEvent(models.ChangeDelete, models.TableProposals, plan, hike.ID, author)))
	assert.Empty(t, r.Proposals(models.CategoryItinerary))
	assert.Empty(t, r.Votes(hike.ID))

	require.NoError(t, r.Apply(ctx, keyEvent(models.ChangeDelete, models.TableMessages, plan, msg.ID, author)))
	assert.Empty(t, r.Messages())
}

func TestReconciler_KeyOnlyRowsAreRefetched(t *testing.T) {
	plan, author := uuid.New(), uuid.New()
	rows := &fakeRows{
		fakeVotes: newFakeVotes(),
		proposals: make(map[uuid.UUID]models.Proposal),
		messages:  make(map[uuid.UUID]models.Message),
	}
	r, c := newTestReconciler(plan, rows)
	ctx := context.Background()

	created := c.now()
	msg := models.Message{ID: uuid.New(), PlanID: plan, UserID: author, Body: "short", CreatedAt: created}
	gone := models.Message{ID: uuid.New(), PlanID: plan, UserID: author, Body: "deleted since", CreatedAt: created}
	r.Load(nil, nil, []models.Message{msg, gone})

	edited := msg
	edited.Body = strings.Repeat("long ", 800)
	edited.UpdatedAt = created.Add(time.Minute)
	rows.messages[msg.ID] = edited
	require.NoError(t, r.Apply(ctx, keyEvent(models.ChangeUpdate, models.TableMessages, plan, msg.ID, author)))
	msgs := r.Messages()
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		if m.ID == msg.ID {
			assert.Equal(t, edited.Body, m.Body)
			assert.Equal(t, created, m.CreatedAt)
		}
	}

	require.NoError(t, r.Apply(ctx, keyEvent(models.ChangeUpdate, models.TableMessages, plan, gone.ID, author)))
	msgs = r.Messages()
	require.Len(t, msgs, 1, "a row the source no longer has is dropped")
	assert.Equal(t, msg.ID, msgs[0].ID)

	stored := models.Proposal{ID: uuid.New(), PlanID: plan, AuthorID: author, Category: models.CategoryAccommodation,
		Title: "Riad", Details: models.AccommodationDetails{Location: "Medina", PricePerNight: 70, Nights: 3}, CreatedAt: created}
	rows.proposals[stored.ID] = stored
	require.NoError(t, r.Apply(ctx, keyEvent(models.ChangeInsert, models.TableProposals, plan, stored.ID, author)))
	list := r.Proposals(models.CategoryAccommodation)
	require.Len(t, list, 1)
	acc, ok := list[0].Details.(models.AccommodationDetails)
	require.True(t, ok)
	assert.Equal(t, 3, acc.Nights)

	broken := errors.New("offline")
	failing := &failingRows{fakeRows: rows, err: broken}
	r2, _ := newTestReconciler(plan, failing)
	err := r2.Apply(ctx, keyEvent(models.ChangeInsert, models.TableProposals, plan, stored.ID, author))
	assert.ErrorIs(t, err, broken)
	assert.Empty(t, r2.Proposals(models.CategoryAccommodation))
}

type failingRows struct {
	*fakeRows
	err error
}

func (f *failingRows) Proposal(context.Context, uuid.UUID, uuid.UUID) (*models.Proposal, error) {
	return nil, f.err
}

func TestReconciler_EchoMatchesNormalizedProposal(t *testing.T) {
	plan, author := uuid.New(), uuid.New()
	r, c := newTestReconciler(plan, newFakeVotes())

	raw := json.RawMessage(`{"day":2,"description":"  Night market ","time":" 19:00"}`)
	title, details, err := models.NormalizeProposal(models.CategoryItinerary, "   ", raw)
	require.NoError(t, err)
	corr := r.AddLocalProposal(models.Proposal{AuthorID: author, Category: models.CategoryItinerary, Title: title, Details: details})

	// the row as the server stores it after applying the same rules
	c.advance(time.Second)
	stored := models.Proposal{
		ID:         uuid.New(),
		PlanID:     plan,
		AuthorID:   author,
		AuthorName: "Mia",
		Category:   models.CategoryItinerary,
		Title:      "Night market",
		Details:    models.ItineraryDetails{Day: 2, Description: "Night market", Time: "19:00", DayTitle: "Day 2"},
		CreatedAt:  c.now(),
	}
	require.NoError(t, r.Apply(context.Background(), rowEvent(t, models.ChangeInsert, models.TableProposals, plan, stored)))

	list := r.Proposals(models.CategoryItinerary)
	require.Len(t, list, 1)
	assert.Equal(t, stored.ID, list[0].ID)
	op, ok := r.Op(corr)
	require.True(t, ok)
	assert.Equal(t, OpConfirmed, op.State)
}
