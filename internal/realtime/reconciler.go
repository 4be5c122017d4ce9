package realtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TRIPCOLLAB_BACK-END/internal/common"
	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/votes"
)

const (
	defaultEchoWindow     = 5 * time.Second
	defaultPendingTimeout = 15 * time.Second
	changeBuffer          = 128
)

// VoteSource refetches the vote set of one proposal.
type VoteSource interface {
	ProposalVotes(ctx context.Context, planID, proposalID uuid.UUID) ([]models.Vote, error)
}

// RowSource refetches a full row when a change event only carries its keys.
// A source that also implements RowSource is used for those events; rows that
// no longer exist are reported with common.ErrNotFound.
type RowSource interface {
	Proposal(ctx context.Context, planID, proposalID uuid.UUID) (*models.Proposal, error)
	Message(ctx context.Context, planID, messageID uuid.UUID) (*models.Message, error)
}

// ErrKeyOnlyRow is returned for a key-only insert or update when the source
// cannot refetch the row. The local view is left unchanged.
var ErrKeyOnlyRow = errors.New("change event carries row keys only")

type rowKey struct {
	ID uuid.UUID `json:"id"`
}

// keyOnly reports whether row lacks field, which happens when the store
// shrinks an oversized notification down to the row keys.
func keyOnly(row json.RawMessage, field string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(row, &m); err != nil {
		return false
	}
	_, ok := m[field]
	return !ok
}

// OpKind is the entity an optimistic op created.
type OpKind string

const (
	OpProposal OpKind = "proposal"
	OpMessage  OpKind = "message"
)

// OpState is the lifecycle of an optimistic op.
type OpState string

const (
	OpPending   OpState = "pending"
	OpConfirmed OpState = "confirmed"
	OpFailed    OpState = "failed"
)

// PendingOp is one optimistic local mutation awaiting confirmation.
type PendingOp struct {
	Correlation string          `json:"correlation"`
	Kind        OpKind          `json:"kind"`
	AuthorID    uuid.UUID       `json:"author_id"`
	LocalID     uuid.UUID       `json:"local_id"`
	ContentHash string          `json:"content_hash"`
	Category    models.Category `json:"category,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	State       OpState         `json:"state"`
	Err         string          `json:"error,omitempty"`
}

// ChangeKind says what part of the local view changed.
type ChangeKind string

const (
	ChangedProposals ChangeKind = "proposals"
	ChangedVotes     ChangeKind = "votes"
	ChangedMessages  ChangeKind = "messages"
	ChangedPlan      ChangeKind = "plan"
)

// Change notifies views that they should re-read a snapshot.
type Change struct {
	Kind        ChangeKind
	ID          uuid.UUID
	Correlation string
	State       OpState
}

// ReconcilerOption customizes a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithEchoWindow sets how long after a local op a matching insert counts as its echo.
func WithEchoWindow(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.echoWindow = d
		}
	}
}

// WithPendingTimeout sets how long an op may stay unconfirmed before rollback.
func WithPendingTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.pendingTimeout = d
		}
	}
}

// WithReconcilerClock overrides the time source.
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// WithReconcilerLogger sets the logger.
func WithReconcilerLogger(log zerolog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.log = log.With().Str("component", "reconciler").Logger() }
}

// Reconciler owns a client's local copy of one plan: proposals per category,
// votes per proposal, messages and the optimistic ops table. Readers take
// snapshots; writers are change events and op results.
type Reconciler struct {
	mu        sync.Mutex
	planID    uuid.UUID
	proposals map[models.Category][]models.Proposal
	votes     map[uuid.UUID][]models.Vote
	voteSeq   map[uuid.UUID]uint64
	messages  []models.Message
	pending   map[string]*PendingOp

	source         VoteSource
	echoWindow     time.Duration
	pendingTimeout time.Duration
	now            func() time.Time
	log            zerolog.Logger
	changes        chan Change
}

// NewReconciler builds an empty view of planID.
func NewReconciler(planID uuid.UUID, source VoteSource, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		planID:         planID,
		proposals:      make(map[models.Category][]models.Proposal, len(models.Categories)),
		votes:          make(map[uuid.UUID][]models.Vote),
		voteSeq:        make(map[uuid.UUID]uint64),
		pending:        make(map[string]*PendingOp),
		source:         source,
		echoWindow:     defaultEchoWindow,
		pendingTimeout: defaultPendingTimeout,
		now:            time.Now,
		log:            zerolog.Nop(),
		changes:        make(chan Change, changeBuffer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Changes emits a notification after every local view update. Slow readers
// miss notifications, never state.
func (r *Reconciler) Changes() <-chan Change {
	return r.changes
}

func (r *Reconciler) emit(c Change) {
	select {
	case r.changes <- c:
	default:
	}
}

// Load replaces the view with an authoritative snapshot.
func (r *Reconciler) Load(proposals []models.Proposal, vs []models.Vote, messages []models.Message) {
	r.mu.Lock()
	r.proposals = make(map[models.Category][]models.Proposal, len(models.Categories))
	for _, p := range proposals {
		r.proposals[p.Category] = append(r.proposals[p.Category], p)
	}
	for c := range r.proposals {
		sortProposals(r.proposals[c])
	}
	r.votes = votes.ByProposal(vs)
	r.messages = append([]models.Message(nil), messages...)
	sortMessages(r.messages)
	r.mu.Unlock()
	r.emit(Change{Kind: ChangedProposals})
	r.emit(Change{Kind: ChangedMessages})
}

// ---- snapshots ----

// Proposals returns a copy of one category in creation order.
func (r *Reconciler) Proposals(c models.Category) []models.Proposal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Proposal{}, r.proposals[c]...)
}

// Votes returns a copy of one proposal's votes.
func (r *Reconciler) Votes(proposalID uuid.UUID) []models.Vote {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Vote{}, r.votes[proposalID]...)
}

// AllVotes returns a copy of every known vote.
func (r *Reconciler) AllVotes() []models.Vote {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Vote, 0)
	for _, vs := range r.votes {
		out = append(out, vs...)
	}
	return out
}

// Tally counts one proposal's votes.
func (r *Reconciler) Tally(proposalID uuid.UUID) votes.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return votes.Tally(r.votes[proposalID])
}

// Messages returns a copy of the discussion in creation order.
func (r *Reconciler) Messages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Message{}, r.messages...)
}

// Op returns the state of one optimistic op.
func (r *Reconciler) Op(correlation string) (PendingOp, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.pending[correlation]
	if !ok {
		return PendingOp{}, false
	}
	return *op, true
}

// Pending lists ops still awaiting confirmation.
func (r *Reconciler) Pending() []PendingOp {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PendingOp, 0)
	for _, op := range r.pending {
		if op.State == OpPending {
			out = append(out, *op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// ---- optimistic ops ----

func contentHash(author uuid.UUID, content string) string {
	sum := sha256.Sum256([]byte(author.String() + "\x00" + content))
	return hex.EncodeToString(sum[:])
}

// proposalContent is the canonical content of p, identical for a local copy
// and the row the store hands back.
func proposalContent(p models.Proposal) string {
	raw, err := json.Marshal(p.Details)
	if err != nil {
		return p.ContentKey()
	}
	details, err := models.DecodeDetails(p.Category, raw)
	if err != nil {
		return p.ContentKey()
	}
	p.Details = details
	return p.ContentKey()
}

func messageContent(m models.Message) string {
	return strings.TrimSpace(m.Body)
}

// AddLocalProposal shows p before the store confirms it and returns the
// correlation id of the op.
func (r *Reconciler) AddLocalProposal(p models.Proposal) string {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	op := &PendingOp{
		Correlation: uuid.NewString(),
		Kind:        OpProposal,
		AuthorID:    p.AuthorID,
		LocalID:     p.ID,
		ContentHash: contentHash(p.AuthorID, proposalContent(p)),
		Category:    p.Category,
		StartedAt:   r.now(),
		State:       OpPending,
	}
	r.mu.Lock()
	r.proposals[p.Category] = append(r.proposals[p.Category], p)
	sortProposals(r.proposals[p.Category])
	r.pending[op.Correlation] = op
	r.mu.Unlock()
	r.emit(Change{Kind: ChangedProposals, ID: p.ID, Correlation: op.Correlation, State: OpPending})
	return op.Correlation
}

// AddLocalMessage shows m before the store confirms it.
func (r *Reconciler) AddLocalMessage(m models.Message) string {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	op := &PendingOp{
		Correlation: uuid.NewString(),
		Kind:        OpMessage,
		AuthorID:    m.UserID,
		LocalID:     m.ID,
		ContentHash: contentHash(m.UserID, messageContent(m)),
		StartedAt:   r.now(),
		State:       OpPending,
	}
	r.mu.Lock()
	r.messages = append(r.messages, m)
	sortMessages(r.messages)
	r.pending[op.Correlation] = op
	r.mu.Unlock()
	r.emit(Change{Kind: ChangedMessages, ID: m.ID, Correlation: op.Correlation, State: OpPending})
	return op.Correlation
}

// ConfirmProposal resolves an op with the row the store returned. It is a
// no-op when the echo already arrived.
func (r *Reconciler) ConfirmProposal(correlation string, p models.Proposal) {
	r.mu.Lock()
	op, ok := r.pending[correlation]
	if ok && op.State == OpPending {
		r.removeProposalLocked(op.LocalID)
		op.State = OpConfirmed
	}
	r.upsertProposalLocked(p)
	r.mu.Unlock()
	r.emit(Change{Kind: ChangedProposals, ID: p.ID, Correlation: correlation, State: OpConfirmed})
}

// ConfirmMessage resolves a message op with the stored row.
func (r *Reconciler) ConfirmMessage(correlation string, m models.Message) {
	r.mu.Lock()
	op, ok := r.pending[correlation]
	if ok && op.State == OpPending {
		r.removeMessageLocked(op.LocalID)
		op.State = OpConfirmed
	}
	r.upsertMessageLocked(m)
	r.mu.Unlock()
	r.emit(Change{Kind: ChangedMessages, ID: m.ID, Correlation: correlation, State: OpConfirmed})
}

// Fail rolls back an op: its local entry is removed and the op marked failed.
// Ops already confirmed are left alone.
func (r *Reconciler) Fail(correlation string, cause error) {
	r.mu.Lock()
	op, ok := r.pending[correlation]
	if !ok || op.State != OpPending {
		r.mu.Unlock()
		return
	}
	r.rollbackLocked(op, cause)
	kind := op.kind()
	r.mu.Unlock()
	r.log.Warn().Err(cause).Str("correlation", correlation).Msg("optimistic op rolled back")
	r.emit(Change{Kind: kind, ID: op.LocalID, Correlation: correlation, State: OpFailed})
}

func (op *PendingOp) kind() ChangeKind {
	if op.Kind == OpMessage {
		return ChangedMessages
	}
	return ChangedProposals
}

func (r *Reconciler) rollbackLocked(op *PendingOp, cause error) {
	switch op.Kind {
	case OpProposal:
		r.removeProposalLocked(op.LocalID)
	case OpMessage:
		r.removeMessageLocked(op.LocalID)
	}
	op.State = OpFailed
	if cause != nil {
		op.Err = cause.Error()
	}
}

// ErrPendingTimeout is recorded on ops rolled back by Expire.
var ErrPendingTimeout = fmt.Errorf("optimistic op not confirmed in time")

// Expire rolls back ops pending longer than the timeout and returns how many.
func (r *Reconciler) Expire() int {
	now := r.now()
	var expired []*PendingOp
	r.mu.Lock()
	for _, op := range r.pending {
		if op.State == OpPending && now.Sub(op.StartedAt) > r.pendingTimeout {
			r.rollbackLocked(op, ErrPendingTimeout)
			expired = append(expired, op)
		}
	}
	r.mu.Unlock()
	for _, op := range expired {
		r.emit(Change{Kind: op.kind(), ID: op.LocalID, Correlation: op.Correlation, State: OpFailed})
	}
	return len(expired)
}

// matchEchoLocked finds the pending op an authoritative insert answers.
func (r *Reconciler) matchEchoLocked(kind OpKind, id, author uuid.UUID, hash string) *PendingOp {
	now := r.now()
	var best *PendingOp
	for _, op := range r.pending {
		if op.State != OpPending || op.Kind != kind {
			continue
		}
		if op.LocalID == id {
			return op
		}
		if op.AuthorID != author || op.ContentHash != hash {
			continue
		}
		if now.Sub(op.StartedAt) > r.echoWindow {
			continue
		}
		if best == nil || op.StartedAt.Before(best.StartedAt) {
			best = op
		}
	}
	return best
}

// ---- change events ----

// Apply folds one change event into the view. Vote events refetch only the
// affected proposal's votes.
func (r *Reconciler) Apply(ctx context.Context, ev models.ChangeEvent) error {
	if ev.PlanID != uuid.Nil && ev.PlanID != r.planID {
		return nil
	}
	switch ev.Table {
	case models.TableProposals:
		return r.applyProposal(ctx, ev)
	case models.TableVotes:
		return r.applyVote(ctx, ev)
	case models.TableMessages:
		return r.applyMessage(ctx, ev)
	default:
		r.emit(Change{Kind: ChangedPlan})
		return nil
	}
}

func (r *Reconciler) dropProposal(id uuid.UUID) {
	r.mu.Lock()
	r.removeProposalLocked(id)
	delete(r.votes, id)
	r.mu.Unlock()
	r.emit(Change{Kind: ChangedProposals, ID: id})
}

func (r *Reconciler) dropMessage(id uuid.UUID) {
	r.mu.Lock()
	r.removeMessageLocked(id)
	r.mu.Unlock()
	r.emit(Change{Kind: ChangedMessages, ID: id})
}

func (r *Reconciler) rowSource(table string, id uuid.UUID) (RowSource, error) {
	rs, ok := r.source.(RowSource)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrKeyOnlyRow, table, id)
	}
	return rs, nil
}

func (r *Reconciler) applyProposal(ctx context.Context, ev models.ChangeEvent) error {
	row := ev.Row()
	if ev.Type == models.ChangeDelete {
		var key rowKey
		if err := json.Unmarshal(row, &key); err != nil {
			return fmt.Errorf("decode proposal event: %w", err)
		}
		r.dropProposal(key.ID)
		return nil
	}

	var p models.Proposal
	if keyOnly(row, "category") {
		var key rowKey
		if err := json.Unmarshal(row, &key); err != nil {
			return fmt.Errorf("decode proposal event: %w", err)
		}
		rs, err := r.rowSource(models.TableProposals, key.ID)
		if err != nil {
			return err
		}
		fetched, err := rs.Proposal(ctx, r.planID, key.ID)
		if errors.Is(err, common.ErrNotFound) {
			r.dropProposal(key.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("refetch proposal %s: %w", key.ID, err)
		}
		p = *fetched
	} else if err := json.Unmarshal(row, &p); err != nil {
		return fmt.Errorf("decode proposal event: %w", err)
	}

	r.mu.Lock()
	var correlation string
	if ev.Type == models.ChangeInsert {
		if op := r.matchEchoLocked(OpProposal, p.ID, p.AuthorID, contentHash(p.AuthorID, proposalContent(p))); op != nil {
			r.removeProposalLocked(op.LocalID)
			op.State = OpConfirmed
			correlation = op.Correlation
		}
	}
	r.upsertProposalLocked(p)
	r.mu.Unlock()
	c := Change{Kind: ChangedProposals, ID: p.ID, Correlation: correlation}
	if correlation != "" {
		c.State = OpConfirmed
	}
	r.emit(c)
	return nil
}

func (r *Reconciler) applyMessage(ctx context.Context, ev models.ChangeEvent) error {
	row := ev.Row()
	var m models.Message
	if err := json.Unmarshal(row, &m); err != nil {
		return fmt.Errorf("decode message event: %w", err)
	}
	if ev.Type == models.ChangeDelete {
		r.dropMessage(m.ID)
		return nil
	}
	if keyOnly(row, "body") {
		rs, err := r.rowSource(models.TableMessages, m.ID)
		if err != nil {
			return err
		}
		fetched, err := rs.Message(ctx, r.planID, m.ID)
		if errors.Is(err, common.ErrNotFound) {
			r.dropMessage(m.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("refetch message %s: %w", m.ID, err)
		}
		m = *fetched
	}

	r.mu.Lock()
	var correlation string
	if ev.Type == models.ChangeInsert {
		if op := r.matchEchoLocked(OpMessage, m.ID, m.UserID, contentHash(m.UserID, messageContent(m))); op != nil {
			r.removeMessageLocked(op.LocalID)
			op.State = OpConfirmed
			correlation = op.Correlation
		}
	}
	r.upsertMessageLocked(m)
	r.mu.Unlock()
	c := Change{Kind: ChangedMessages, ID: m.ID, Correlation: correlation}
	if correlation != "" {
		c.State = OpConfirmed
	}
	r.emit(c)
	return nil
}

func (r *Reconciler) applyVote(ctx context.Context, ev models.ChangeEvent) error {
	var v models.Vote
	if err := json.Unmarshal(ev.Row(), &v); err != nil {
		return fmt.Errorf("decode vote event: %w", err)
	}
	if v.ProposalID == uuid.Nil {
		return fmt.Errorf("vote event without proposal_id")
	}

	r.mu.Lock()
	r.voteSeq[v.ProposalID]++
	seq := r.voteSeq[v.ProposalID]
	r.mu.Unlock()

	fresh, err := r.source.ProposalVotes(ctx, r.planID, v.ProposalID)
	if err != nil {
		return fmt.Errorf("refetch votes for %s: %w", v.ProposalID, err)
	}

	r.mu.Lock()
	// a newer refetch for the same proposal supersedes this one
	if r.voteSeq[v.ProposalID] != seq {
		r.mu.Unlock()
		return nil
	}
	if len(fresh) == 0 {
		delete(r.votes, v.ProposalID)
	} else {
		r.votes[v.ProposalID] = append([]models.Vote(nil), fresh...)
	}
	r.mu.Unlock()
	r.emit(Change{Kind: ChangedVotes, ID: v.ProposalID})
	return nil
}

// Run applies events until the channel closes or ctx is done, expiring stale
// ops on every tick. Apply errors are logged and do not stop the loop.
func (r *Reconciler) Run(ctx context.Context, events <-chan models.ChangeEvent) error {
	ticker := time.NewTicker(r.pendingTimeout / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Expire()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.Apply(ctx, ev); err != nil {
				r.log.Warn().Err(err).Str("table", ev.Table).Str("event_id", ev.ID).Msg("change not applied")
			}
		}
	}
}

// ---- helpers; callers hold mu ----

func (r *Reconciler) removeProposalLocked(id uuid.UUID) {
	for c, list := range r.proposals {
		for i := range list {
			if list[i].ID == id {
				r.proposals[c] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

func (r *Reconciler) upsertProposalLocked(p models.Proposal) {
	r.removeProposalLocked(p.ID)
	r.proposals[p.Category] = append(r.proposals[p.Category], p)
	sortProposals(r.proposals[p.Category])
}

func (r *Reconciler) removeMessageLocked(id uuid.UUID) {
	for i := range r.messages {
		if r.messages[i].ID == id {
			r.messages = append(r.messages[:i:i], r.messages[i+1:]...)
			return
		}
	}
}

func (r *Reconciler) upsertMessageLocked(m models.Message) {
	for i := range r.messages {
		if r.messages[i].ID == m.ID {
			r.messages[i] = m
			return
		}
	}
	r.messages = append(r.messages, m)
	sortMessages(r.messages)
}

func sortProposals(list []models.Proposal) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedBefore(list[j]) })
}

func sortMessages(list []models.Message) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
}
