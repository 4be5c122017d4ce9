// Package memstore is an in-process store.Store used by tests and the
// single-process dev mode. Reads return copies; writes publish change events.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/store"
)

type voteKey struct {
	proposalID uuid.UUID
	userID     uuid.UUID
}

type memberKey struct {
	planID uuid.UUID
	userID uuid.UUID
}

type listener struct {
	ch   chan models.ChangeEvent
	done chan struct{}
}

// Store keeps every table in maps guarded by one RWMutex.
type Store struct {
	mu    sync.RWMutex
	clock func() time.Time
	last  time.Time

	plans         map[uuid.UUID]models.Plan
	members       map[memberKey]models.Member
	invitations   map[uuid.UUID]models.Invitation
	proposals     map[uuid.UUID]models.Proposal
	seeded        map[uuid.UUID]bool
	votes         map[voteKey]models.Vote
	messages      map[uuid.UUID]models.Message
	expenses      map[uuid.UUID]models.Expense
	feedback      map[memberKey]models.Feedback
	notifications map[uuid.UUID]models.Notification
	users         map[uuid.UUID]models.User

	pubMu     sync.RWMutex
	listeners map[*listener]struct{}
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		clock:         time.Now,
		plans:         make(map[uuid.UUID]models.Plan),
		members:       make(map[memberKey]models.Member),
		invitations:   make(map[uuid.UUID]models.Invitation),
		proposals:     make(map[uuid.UUID]models.Proposal),
		seeded:        make(map[uuid.UUID]bool),
		votes:         make(map[voteKey]models.Vote),
		messages:      make(map[uuid.UUID]models.Message),
		expenses:      make(map[uuid.UUID]models.Expense),
		feedback:      make(map[memberKey]models.Feedback),
		notifications: make(map[uuid.UUID]models.Notification),
		users:         make(map[uuid.UUID]models.User),
		listeners:     make(map[*listener]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// now returns a strictly increasing timestamp; callers hold mu.
func (s *Store) now() time.Time {
	t := s.clock().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Store) event(table string, typ models.ChangeType, planID uuid.UUID, newRow, oldRow any) models.ChangeEvent {
	ev := models.ChangeEvent{
		ID:     uuid.NewString(),
		Table:  table,
		Type:   typ,
		PlanID: planID,
		At:     s.last,
	}
	if newRow != nil {
		ev.New, _ = json.Marshal(newRow)
	}
	if oldRow != nil {
		ev.Old, _ = json.Marshal(oldRow)
	}
	return ev
}

// write runs fn under the write lock and publishes its events once the lock is released.
func (s *Store) write(fn func() ([]models.ChangeEvent, error)) error {
	s.mu.Lock()
	events, err := fn()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(events)
	return nil
}

func (s *Store) publish(events []models.ChangeEvent) {
	if len(events) == 0 {
		return
	}
	s.pubMu.RLock()
	defer s.pubMu.RUnlock()
	for l := range s.listeners {
		for _, ev := range events {
			select {
			case l.ch <- ev:
			case <-l.done:
			}
		}
	}
}

// Listen implements store.Feed.
func (s *Store) Listen(ctx context.Context, fn func(models.ChangeEvent)) error {
	l := &listener{ch: make(chan models.ChangeEvent, 256), done: make(chan struct{})}
	s.pubMu.Lock()
	s.listeners[l] = struct{}{}
	s.pubMu.Unlock()

	defer func() {
		close(l.done)
		s.pubMu.Lock()
		delete(s.listeners, l)
		s.pubMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-l.ch:
			fn(ev)
		}
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() {}

func clonePlan(p models.Plan) models.Plan {
	p.Document = p.Document.Clone()
	if p.FeedbackClosesAt != nil {
		t := *p.FeedbackClosesAt
		p.FeedbackClosesAt = &t
	}
	return p
}

// ---- plans ----

func (s *Store) CreatePlan(ctx context.Context, plan *models.Plan, owner models.Member) error {
	return s.write(func() ([]models.ChangeEvent, error) {
		if _, ok := s.plans[plan.ID]; ok {
			return nil, common.ErrConflict
		}
		now := s.now()
		plan.CreatedAt, plan.UpdatedAt = now, now
		owner.PlanID = plan.ID
		owner.JoinedAt = now
		s.plans[plan.ID] = clonePlan(*plan)
		s.members[memberKey{plan.ID, owner.UserID}] = owner
		return []models.ChangeEvent{
			s.event(models.TablePlans, models.ChangeInsert, plan.ID, plan, nil),
			s.event(models.TableMembers, models.ChangeInsert, plan.ID, owner, nil),
		}, nil
	})
}

func (s *Store) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	p = clonePlan(p)
	return &p, nil
}

func (s *Store) ListPlansForUser(ctx context.Context, userID uuid.UUID) ([]models.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Plan, 0)
	for key := range s.members {
		if key.userID != userID {
			continue
		}
		if p, ok := s.plans[key.planID]; ok {
			out = append(out, clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdatePlanDraft(ctx context.Context, id uuid.UUID, draft store.PlanDraft) (*models.Plan, error) {
	var out models.Plan
	err := s.write(func() ([]models.ChangeEvent, error) {
		p, ok := s.plans[id]
		if !ok {
			return nil, common.ErrNotFound
		}
		if p.Status != models.PlanStatusPlanning {
			return nil, common.ErrPhaseClosed
		}
		old := clonePlan(p)
		if draft.Destination != nil {
			p.Destination = *draft.Destination
		}
		if draft.Dates != nil {
			p.Dates = *draft.Dates
		}
		if draft.Description != nil {
			p.Description = *draft.Description
		}
		if draft.Document != nil {
			p.Document = draft.Document.Clone()
		}
		p.UpdatedAt = s.now()
		s.plans[id] = p
		out = clonePlan(p)
		return []models.ChangeEvent{s.event(models.TablePlans, models.ChangeUpdate, id, p, old)}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) TransitionPlan(ctx context.Context, id uuid.UUID, from, to models.PlanStatus, change store.PlanChange) (*models.Plan, error) {
	var out models.Plan
	err := s.write(func() ([]models.ChangeEvent, error) {
		p, ok := s.plans[id]
		if !ok {
			return nil, common.ErrNotFound
		}
		if p.Status != from || !from.CanTransitionTo(to) {
			return nil, common.ErrInvalidTransition
		}
		old := clonePlan(p)
		p.Status = to
		if change.Document != nil {
			p.Document = change.Document.Clone()
		}
		if change.Dates != nil {
			p.Dates = *change.Dates
		}
		if change.FeedbackClosesAt != nil {
			t := *change.FeedbackClosesAt
			p.FeedbackClosesAt = &t
		}
		p.UpdatedAt = s.now()
		s.plans[id] = p
		out = clonePlan(p)
		return []models.ChangeEvent{s.event(models.TablePlans, models.ChangeUpdate, id, p, old)}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- members ----

func (s *Store) addMemberLocked(m models.Member) (models.ChangeEvent, bool) {
	key := memberKey{m.PlanID, m.UserID}
	if _, ok := s.members[key]; ok {
		return models.ChangeEvent{}, false
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = s.now()
	}
	s.members[key] = m
	return s.event(models.TableMembers, models.ChangeInsert, m.PlanID, m, nil), true
}

func (s *Store) AddMember(ctx context.Context, m models.Member) (bool, error) {
	var inserted bool
	err := s.write(func() ([]models.ChangeEvent, error) {
		if _, ok := s.plans[m.PlanID]; !ok {
			return nil, common.ErrNotFound
		}
		ev, ok := s.addMemberLocked(m)
		inserted = ok
		if !ok {
			return nil, nil
		}
		return []models.ChangeEvent{ev}, nil
	})
	return inserted, err
}

func (s *Store) GetMember(ctx context.Context, planID, userID uuid.UUID) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{planID, userID}]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &m, nil
}

func (s *Store) ListMembers(ctx context.Context, planID uuid.UUID) ([]models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Member, 0)
	for key, m := range s.members {
		if key.planID == planID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

// ---- invitations ----

func (s *Store) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	return s.write(func() ([]models.ChangeEvent, error) {
		if _, ok := s.plans[inv.PlanID]; !ok {
			return nil, common.ErrNotFound
		}
		inv.InvitedEmail = models.NormalizeEmail(inv.InvitedEmail)
		for _, other := range s.invitations {
			if other.PlanID == inv.PlanID && other.InvitedEmail == inv.InvitedEmail {
				return nil, common.ErrAlreadyInvited
			}
		}
		if inv.Status == "" {
			inv.Status = models.InvitationPending
		}
		inv.CreatedAt = s.now()
		s.invitations[inv.ID] = *inv
		return []models.ChangeEvent{s.event(models.TableInvitations, models.ChangeInsert, inv.PlanID, inv, nil)}, nil
	})
}

func (s *Store) GetInvitation(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invitations[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &inv, nil
}

func (s *Store) listInvitations(match func(models.Invitation) bool) []models.Invitation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Invitation, 0)
	for _, inv := range s.invitations {
		if match(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) ListInvitations(ctx context.Context, planID uuid.UUID) ([]models.Invitation, error) {
	return s.listInvitations(func(inv models.Invitation) bool { return inv.PlanID == planID }), nil
}

func (s *Store) ListInvitationsByEmail(ctx context.Context, email string) ([]models.Invitation, error) {
	email = models.NormalizeEmail(email)
	return s.listInvitations(func(inv models.Invitation) bool { return inv.InvitedEmail == email }), nil
}

func (s *Store) AcceptInvitation(ctx context.Context, id uuid.UUID, member models.Member) (*models.Invitation, error) {
	var out models.Invitation
	err := s.write(func() ([]models.ChangeEvent, error) {
		inv, ok := s.invitations[id]
		if !ok {
			return nil, common.ErrNotFound
		}
		member.PlanID = inv.PlanID
		var events []models.ChangeEvent
		switch inv.Status {
		case models.InvitationDeclined:
			return nil, common.ErrAlreadyResolved
		case models.InvitationAccepted:
			if inv.InvitedUserID == nil || *inv.InvitedUserID != member.UserID {
				return nil, common.ErrAlreadyResolved
			}
		default:
			old := inv
			now := s.now()
			uid := member.UserID
			inv.Status = models.InvitationAccepted
			inv.InvitedUserID = &uid
			inv.ResolvedAt = &now
			s.invitations[id] = inv
			events = append(events, s.event(models.TableInvitations, models.ChangeUpdate, inv.PlanID, inv, old))
		}
		if ev, ok := s.addMemberLocked(member); ok {
			events = append(events, ev)
		}
		out = inv
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) DeclineInvitation(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Invitation, error) {
	var out models.Invitation
	err := s.write(func() ([]models.ChangeEvent, error) {
		inv, ok := s.invitations[id]
		if !ok {
			return nil, common.ErrNotFound
		}
		switch inv.Status {
		case models.InvitationAccepted:
			return nil, common.ErrAlreadyResolved
		case models.InvitationDeclined:
			out = inv
			return nil, nil
		}
		old := inv
		now := s.now()
		inv.Status = models.InvitationDeclined
		inv.InvitedUserID = &userID
		inv.ResolvedAt = &now
		s.invitations[id] = inv
		out = inv
		return []models.ChangeEvent{s.event(models.TableInvitations, models.ChangeUpdate, inv.PlanID, inv, old)}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- proposals ----

func (s *Store) CreateProposal(ctx context.Context, p *models.Proposal) error {
	return s.write(func() ([]models.ChangeEvent, error) {
		if _, ok := s.plans[p.PlanID]; !ok {
			return nil, common.ErrNotFound
		}
		p.CreatedAt = s.now()
		s.proposals[p.ID] = *p
		return []models.ChangeEvent{s.event(models.TableProposals, models.ChangeInsert, p.PlanID, p, nil)}, nil
	})
}

func (s *Store) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (s *Store) listProposalsLocked(planID uuid.UUID, category models.Category) []models.Proposal {
	out := make([]models.Proposal, 0)
	for _, p := range s.proposals {
		if p.PlanID != planID {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedBefore(out[j]) })
	return out
}

func (s *Store) ListProposals(ctx context.Context, planID uuid.UUID, category models.Category) ([]models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProposalsLocked(planID, category), nil
}

func (s *Store) DeleteProposal(ctx context.Context, id uuid.UUID) error {
	return s.write(func() ([]models.ChangeEvent, error) {
		p, ok := s.proposals[id]
		if !ok {
			return nil, common.ErrNotFound
		}
		delete(s.proposals, id)
		var events []models.ChangeEvent
		for key, v := range s.votes {
			if key.proposalID == id {
				delete(s.votes, key)
				events = append(events, s.event(models.TableVotes, models.ChangeDelete, p.PlanID, nil, v))
			}
		}
		s.now()
		events = append(events, s.event(models.TableProposals, models.ChangeDelete, p.PlanID, nil, p))
		return events, nil
	})
}

func (s *Store) SeedProposals(ctx context.Context, planID uuid.UUID, proposals []models.Proposal) (int, error) {
	inserted := 0
	err := s.write(func() ([]models.ChangeEvent, error) {
		if _, ok := s.plans[planID]; !ok {
			return nil, common.ErrNotFound
		}
		if s.seeded[planID] {
			return nil, nil
		}
		s.seeded[planID] = true

		populated := make(map[models.Category]bool)
		for _, c := range models.Categories {
			populated[c] = len(s.listProposalsLocked(planID, c)) > 0
		}
		var events []models.ChangeEvent
		for _, p := range proposals {
			if populated[p.Category] {
				continue
			}
			p.PlanID = planID
			p.CreatedAt = s.now()
			s.proposals[p.ID] = p
			events = append(events, s.event(models.TableProposals, models.ChangeInsert, planID, p, nil))
			inserted++
		}
		return events, nil
	})
	return inserted, err
}

// ---- votes ----

func (s *Store) ToggleVote(ctx context.Context, v models.Vote) (models.VoteOutcome, error) {
	var outcome models.VoteOutcome
	err := s.write(func() ([]models.ChangeEvent, error) {
		p, ok := s.proposals[v.ProposalID]
		if !ok {
			return nil, common.ErrNotFound
		}
		v.PlanID = p.PlanID
		key := voteKey{v.ProposalID, v.UserID}
		existing, ok := s.votes[key]
		switch {
		case !ok:
			now := s.now()
			v.CreatedAt, v.UpdatedAt = now, now
			s.votes[key] = v
			outcome = models.VoteAdded
			return []models.ChangeEvent{s.event(models.TableVotes, models.ChangeInsert, v.PlanID, v, nil)}, nil
		case existing.Type == v.Type:
			delete(s.votes, key)
			s.now()
			outcome = models.VoteRemoved
			return []models.ChangeEvent{s.event(models.TableVotes, models.ChangeDelete, v.PlanID, nil, existing)}, nil
		default:
			updated := existing
			updated.Type = v.Type
			updated.UpdatedAt = s.now()
			s.votes[key] = updated
			outcome = models.VoteSwitched
			return []models.ChangeEvent{s.event(models.TableVotes, models.ChangeUpdate, v.PlanID, updated, existing)}, nil
		}
	})
	return outcome, err
}

func (s *Store) listVotes(match func(models.Vote) bool) []models.Vote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Vote, 0)
	for _, v := range s.votes {
		if match(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) ListVotes(ctx context.Context, proposalID uuid.UUID) ([]models.Vote, error) {
	return s.listVotes(func(v models.Vote) bool { return v.ProposalID == proposalID }), nil
}

func (s *Store) ListPlanVotes(ctx context.Context, planID uuid.UUID) ([]models.Vote, error) {
	return s.listVotes(func(v models.Vote) bool { return v.PlanID == planID }), nil
}

// ---- messages ----

func (s *Store) CreateMessage(ctx context.Context, m *models.Message) error {
	return s.write(func() ([]models.ChangeEvent, error) {
		if _, ok := s.plans[m.PlanID]; !ok {
			return nil, common.ErrNotFound
		}
		now := s.now()
		m.CreatedAt, m.UpdatedAt = now, now
		s.messages[m.ID] = *m
		return []models.ChangeEvent{s.event(models.TableMessages, models.ChangeInsert, m.PlanID, m, nil)}, nil
	})
}

func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &m, nil
}

func (s *Store) UpdateMessage(ctx context.Context, id uuid.UUID, body string) (*models.Message, error) {
	var out models.Message
	err := s.write(func() ([]models.ChangeEvent, error) {
		m, ok := s.messages[id]
		if !ok {
			return nil, common.ErrNotFound
		}
		old := m
		m.Body = body
		m.UpdatedAt = s.now()
		s.messages[id] = m
		out = m
		return []models.ChangeEvent{s.event(models.TableMessages, models.ChangeUpdate, m.PlanID, m, old)}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	return s.write(func() ([]models.ChangeEvent, error) {
		m, ok := s.messages[id]
		if !ok {
			return nil, common.ErrNotFound
		}
		delete(s.messages, id)
		s.now()
		return []models.ChangeEvent{s.event(models.TableMessages, models.ChangeDelete, m.PlanID, nil, m)}, nil
	})
}

func (s *Store) ListMessages(ctx context.Context, planID uuid.UUID) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, 0)
	for _, m := range s.messages {
		if m.PlanID == planID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- expenses ----

func (s *Store) CreateExpense(ctx context.Context, e *models.Expense) error {
	return s.write(func() ([]models.ChangeEvent, error) {
		if _, ok := s.plans[e.PlanID]; !ok {
			return nil, common.ErrNotFound
		}
		e.CreatedAt = s.now()
		s.expenses[e.ID] = *e
		return []models.ChangeEvent{s.event(models.TableExpenses, models.ChangeInsert, e.PlanID, e, nil)}, nil
	})
}

func (s *Store) ListExpenses(ctx context.Context, planID uuid.UUID) ([]models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Expense, 0)
	for _, e := range s.expenses {
		if e.PlanID == planID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- feedback ----

func (s *Store) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	return s.write(func() ([]models.ChangeEvent, error) {
		key := memberKey{f.PlanID, f.UserID}
		if _, ok := s.feedback[key]; ok {
			return nil, common.ErrConflict
		}
		f.CreatedAt = s.now()
		s.feedback[key] = *f
		return nil, nil
	})
}

func (s *Store) ListFeedback(ctx context.Context, planID uuid.UUID) ([]models.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Feedback, 0)
	for key, f := range s.feedback {
		if key.planID == planID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- notifications ----

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.write(func() ([]models.ChangeEvent, error) {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		n.CreatedAt = s.now()
		s.notifications[n.ID] = *n
		return nil, nil
	})
}

func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, f store.NotificationFilter) (store.NotificationPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page := store.NotificationPage{Items: make([]models.Notification, 0)}
	var matched []models.Notification
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if !n.Read {
			page.UnreadCount++
		}
		if f.UnreadOnly && n.Read {
			continue
		}
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		matched = append(matched, n)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	page.Total = len(matched)
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if f.Offset < len(matched) {
		end := f.Offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = append(page.Items, matched[f.Offset:end]...)
	}
	return page, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.write(func() ([]models.ChangeEvent, error) {
		n, ok := s.notifications[id]
		if !ok || n.UserID != userID || n.Read {
			return nil, common.ErrNotFound
		}
		n.Read = true
		s.notifications[id] = n
		return nil, nil
	})
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.write(func() ([]models.ChangeEvent, error) {
		for id, n := range s.notifications {
			if n.UserID == userID && !n.Read {
				n.Read = true
				s.notifications[id] = n
				count++
			}
		}
		return nil, nil
	})
	return count, err
}

// ---- users ----

func (s *Store) userByEmailLocked(email string) (models.User, bool) {
	for _, u := range s.users {
		if u.Email == email {
			return u, true
		}
	}
	return models.User{}, false
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.write(func() ([]models.ChangeEvent, error) {
		u.Email = models.NormalizeEmail(u.Email)
		if _, ok := s.userByEmailLocked(u.Email); ok {
			return nil, common.ErrConflict
		}
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		now := s.now()
		u.CreatedAt, u.UpdatedAt = now, now
		s.users[u.ID] = *u
		return nil, nil
	})
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.userByEmailLocked(models.NormalizeEmail(email))
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (s *Store) UpsertOAuthUser(ctx context.Context, email, displayName string) (*models.User, error) {
	var out models.User
	err := s.write(func() ([]models.ChangeEvent, error) {
		email = models.NormalizeEmail(email)
		if u, ok := s.userByEmailLocked(email); ok {
			if strings.TrimSpace(u.DisplayName) == "" && displayName != "" {
				u.DisplayName = displayName
				u.UpdatedAt = s.now()
				s.users[u.ID] = u
			}
			out = u
			return nil, nil
		}
		now := s.now()
		out = models.User{ID: uuid.New(), Email: email, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}
		s.users[out.ID] = out
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
