package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"TRIPCOLLAB_BACK-END/internal/collab"
	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/config"
	"TRIPCOLLAB_BACK-END/internal/handlers"
	"TRIPCOLLAB_BACK-END/internal/middleware"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/notify"
	"TRIPCOLLAB_BACK-END/internal/proposals"
	"TRIPCOLLAB_BACK-END/internal/realtime"
	"TRIPCOLLAB_BACK-END/internal/routes"
	"TRIPCOLLAB_BACK-END/internal/store/memstore"
	"TRIPCOLLAB_BACK-END/internal/votes"
)

const password = "password123"

type backend struct {
	srv    *httptest.Server
	store  *memstore.Store
	collab *collab.Service
	hub    *realtime.Hub
	jwt    *config.JWTConfig
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	st := memstore.New()
	log := zerolog.Nop()
	jwtCfg := &config.JWTConfig{Secret: "client-test", AccessTokenTTL: time.Hour}

	notifier := notify.NewService(st, nil, "", log)
	proposalSvc := proposals.NewService(st, log)
	collabSvc := collab.NewService(st, proposalSvc, config.CollabConfig{FeedbackWindow: time.Hour, SummaryTimeout: time.Second}, log,
		collab.WithNotifier(notifier))
	hub := realtime.NewHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx, st)

	mux := routes.SetupRoutes(routes.Handlers{
		Auth:          handlers.NewAuthHandler(st, jwtCfg),
		Health:        handlers.NewHealthHandler(st, config.DriverMemory),
		Plans:         handlers.NewPlansHandler(collabSvc, proposalSvc, votes.NewService(st, log)),
		Invitations:   handlers.NewInvitationsHandler(collabSvc),
		Activity:      handlers.NewActivityHandler(collabSvc),
		Notifications: handlers.NewNotificationsHandler(notifier),
		Live:          handlers.NewLiveHandler(collabSvc, hub, realtime.LiveOptions{PingInterval: time.Second}),
	}, jwtCfg)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		cancel()
		hub.Close()
		srv.Close()
		collabSvc.Wait()
	})
	return &backend{srv: srv, store: st, collab: collabSvc, hub: hub, jwt: jwtCfg}
}

func (b *backend) user(t *testing.T, email, name string) models.Identity {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := models.User{ID: uuid.New(), Email: email, DisplayName: name, PasswordHash: string(hash)}
	require.NoError(t, b.store.CreateUser(context.Background(), &u))
	return u.Identity()
}

// collaboratingPlan returns a plan owned by owner with guest joined and
// collaboration started.
func (b *backend) collaboratingPlan(t *testing.T, owner, guest models.Identity) models.Plan {
	t.Helper()
	ctx := context.Background()
	plan, err := b.collab.CreatePlan(ctx, owner, collab.PlanInput{Destination: "Kyoto", Dates: "2030-04-01 - 2030-04-05"})
	require.NoError(t, err)
	_, err = b.store.AddMember(ctx, models.Member{PlanID: plan.ID, UserID: guest.UserID, UserName: guest.Name, Role: models.RoleParticipant})
	require.NoError(t, err)
	started, _, err := b.collab.StartCollaboration(ctx, plan.ID, owner.UserID)
	require.NoError(t, err)
	return *started
}

func TestLoginAndMe(t *testing.T) {
	b := newBackend(t)
	want := b.user(t, "ada@example.com", "Ada")
	ctx := context.Background()

	c := New(b.srv.URL + "/")
	got, err := c.Login(ctx, "ADA@example.com", password)
	require.NoError(t, err)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, "Ada", c.Identity().Name)
	assert.NotEmpty(t, c.Token())

	_, err = New(b.srv.URL).Login(ctx, "ada@example.com", "nope-nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	token, err := middleware.GenerateToken(want, b.jwt)
	require.NoError(t, err)
	byToken := New(b.srv.URL, WithToken(token))
	me, err := byToken.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.UserID, me.UserID)
}

func TestPlanBoardAndVotes(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	owner := b.user(t, "ann@example.com", "Ann")
	guest := b.user(t, "ben@example.com", "Ben")
	plan := b.collaboratingPlan(t, owner, guest)

	c := New(b.srv.URL)
	_, err := c.Login(ctx, "ben@example.com", password)
	require.NoError(t, err)

	detail, err := c.Plan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kyoto", detail.Plan.Destination)
	assert.Len(t, detail.Members, 2)

	_, err = c.Plan(ctx, uuid.New())
	assert.True(t, IsNotFound(err))

	p, err := c.AddProposal(ctx, plan.ID, models.CategoryItinerary, "Fushimi Inari",
		models.ItineraryDetails{Day: 1, Description: "Fushimi Inari", Time: "07:00"})
	require.NoError(t, err)
	assert.Equal(t, "Ben", p.AuthorName)
	it, ok := p.ItineraryDetails()
	require.True(t, ok)
	assert.Equal(t, "Day 1", it.DayTitle)

	_, err = c.AddProposal(ctx, plan.ID, models.CategoryDate, "Backwards",
		models.DateDetails{StartDate: "2030-04-05", EndDate: "2030-04-01"})
	assert.ErrorIs(t, err, common.ErrValidation)

	cast, err := c.Vote(ctx, plan.ID, p.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, models.VoteAdded, cast.Outcome)
	require.NotNil(t, cast.Stance)
	assert.Equal(t, models.VoteUp, *cast.Stance)

	vs, err := c.ProposalVotes(ctx, plan.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, guest.UserID, vs[0].UserID)

	board, err := c.Board(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, board.Date, 1, "seeded from the plan dates")
	require.Len(t, board.Itinerary, 1)
	require.NotNil(t, board.Itinerary[0].MyVote)

	_, err = c.PostMessage(ctx, plan.ID, uuid.Nil, "see you there")
	require.NoError(t, err)

	snap, err := c.Snapshot(ctx, plan.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Proposals, 2)
	assert.Len(t, snap.Votes, 1)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "see you there", snap.Messages[0].Body)

	raw, err := c.Readiness(ctx, plan.ID)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ready":false`, "the seeded date has no votes yet")

	_, err = c.Vote(ctx, plan.ID, board.Date[0].Proposal.ID, models.VoteUp)
	require.NoError(t, err)
	raw, err = c.Readiness(ctx, plan.ID)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ready":true`)
}

func TestWatchFeedsReconciler(t *testing.T) {
	b := newBackend(t)
	owner := b.user(t, "cy@example.com", "Cy")
	guest := b.user(t, "di@example.com", "Di")
	plan := b.collaboratingPlan(t, owner, guest)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := New(b.srv.URL)
	_, err := watcher.Login(ctx, "cy@example.com", password)
	require.NoError(t, err)
	other := New(b.srv.URL)
	_, err = other.Login(ctx, "di@example.com", password)
	require.NoError(t, err)

	rec := realtime.NewReconciler(plan.ID, watcher)
	snap, err := watcher.Snapshot(ctx, plan.ID)
	require.NoError(t, err)
	rec.Load(snap.Proposals, snap.Votes, snap.Messages)

	events := make(chan models.ChangeEvent, 16)
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- watcher.Watch(ctx, plan.ID, events, models.TableProposals, models.TableVotes, models.TableMessages)
	}()
	go rec.Run(ctx, events)
	require.Eventually(t, func() bool { return b.hub.Subscribers(plan.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	// someone else's message arrives through the stream
	_, err = other.PostMessage(ctx, plan.ID, uuid.Nil, "hello from Di")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.Messages()) == 1 }, 2*time.Second, 10*time.Millisecond)

	// an optimistic post never shows twice
	m, err := watcher.PostOptimistic(ctx, rec, plan.ID, "hello from Cy")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(rec.Messages()) == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	msgs := rec.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, m.ID, msgs[1].ID)
	assert.Empty(t, rec.Pending())

	// a rejected proposal is rolled back
	_, err = watcher.ProposeOptimistic(ctx, rec, plan.ID, "Too late", models.DateDetails{StartDate: "2030-05-02", EndDate: "2030-05-01"})
	require.Error(t, err)
	for _, p := range rec.Proposals(models.CategoryDate) {
		assert.NotEqual(t, "Too late", p.Title)
	}

	// vote events refetch the proposal's votes
	p, err := other.AddProposal(ctx, plan.ID, models.CategoryAccommodation, "Ryokan",
		models.AccommodationDetails{Location: "Gion", PricePerNight: 120, Nights: 4})
	require.NoError(t, err)
	_, err = other.Vote(ctx, plan.ID, p.ID, models.VoteUp)
	require.NoError(t, err)
	_, err = watcher.Vote(ctx, plan.ID, p.ID, models.VoteDown)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		res := rec.Tally(p.ID)
		return res.Upvotes == 1 && res.Downvotes == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, rec.Proposals(models.CategoryAccommodation), 1)

	cancel()
	select {
	case err := <-watchDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchRejectsOutsiders(t *testing.T) {
	b := newBackend(t)
	owner := b.user(t, "ed@example.com", "Ed")
	guest := b.user(t, "fay@example.com", "Fay")
	b.user(t, "gus@example.com", "Gus")
	plan := b.collaboratingPlan(t, owner, guest)
	ctx := context.Background()

	outsider := New(b.srv.URL)
	_, err := outsider.Login(ctx, "gus@example.com", password)
	require.NoError(t, err)

	events := make(chan models.ChangeEvent)
	err = outsider.Watch(ctx, plan.ID, events)
	assert.ErrorIs(t, err, common.ErrForbidden)
	_, open := <-events
	assert.False(t, open)

	err = New(b.srv.URL, WithToken("bogus")).Watch(ctx, plan.ID, make(chan models.ChangeEvent))
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}
