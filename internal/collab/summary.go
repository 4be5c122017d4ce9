package collab

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/models"
)

// SummaryAuthorName marks messages written by the summary generator.
const SummaryAuthorName = "trip-summary"

// MemberBalance is one member's position in the expense split.
type MemberBalance struct {
	UserID   uuid.UUID `json:"user_id"`
	UserName string    `json:"user_name"`
	Paid     float64   `json:"paid"`
	Share    float64   `json:"share"`
	Balance  float64   `json:"balance"`
}

// ExpenseReport splits the total evenly across members. A positive balance
// means the member is owed money.
type ExpenseReport struct {
	Total    float64         `json:"total"`
	Count    int             `json:"count"`
	Share    float64         `json:"share"`
	Balances []MemberBalance `json:"balances"`
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// SummarizeExpenses builds the report. Payers who are no longer members are
// still listed but take no share.
func SummarizeExpenses(members []models.Member, expenses []models.Expense) ExpenseReport {
	r := ExpenseReport{Count: len(expenses), Balances: make([]MemberBalance, 0, len(members))}
	index := make(map[uuid.UUID]int, len(members))
	for _, m := range members {
		index[m.UserID] = len(r.Balances)
		r.Balances = append(r.Balances, MemberBalance{UserID: m.UserID, UserName: m.UserName})
	}
	for _, e := range expenses {
		r.Total += e.Amount
		i, ok := index[e.UserID]
		if !ok {
			i = len(r.Balances)
			index[e.UserID] = i
			r.Balances = append(r.Balances, MemberBalance{UserID: e.UserID, UserName: e.UserName})
		}
		r.Balances[i].Paid += e.Amount
	}
	if len(members) > 0 {
		r.Share = roundCents(r.Total / float64(len(members)))
	}
	r.Total = roundCents(r.Total)
	for i := range r.Balances {
		b := &r.Balances[i]
		b.Paid = roundCents(b.Paid)
		if i < len(members) {
			b.Share = r.Share
		}
		b.Balance = roundCents(b.Paid - b.Share)
	}
	sort.SliceStable(r.Balances, func(i, j int) bool { return r.Balances[i].Balance > r.Balances[j].Balance })
	return r
}

// SummaryGenerator writes the post-trip summary text for a concluded plan.
type SummaryGenerator interface {
	Generate(ctx context.Context, plan models.Plan) (string, error)
}

// ExpenseReader is what ExpenseSummaryGenerator reads.
type ExpenseReader interface {
	ListMembers(ctx context.Context, planID uuid.UUID) ([]models.Member, error)
	ListExpenses(ctx context.Context, planID uuid.UUID) ([]models.Expense, error)
}

// ExpenseSummaryGenerator summarizes the itinerary and the expense split.
type ExpenseSummaryGenerator struct {
	reader ExpenseReader
}

func NewExpenseSummaryGenerator(reader ExpenseReader) *ExpenseSummaryGenerator {
	return &ExpenseSummaryGenerator{reader: reader}
}

func (g *ExpenseSummaryGenerator) Generate(ctx context.Context, plan models.Plan) (string, error) {
	members, err := g.reader.ListMembers(ctx, plan.ID)
	if err != nil {
		return "", fmt.Errorf("list members: %w", err)
	}
	expenses, err := g.reader.ListExpenses(ctx, plan.ID)
	if err != nil {
		return "", fmt.Errorf("list expenses: %w", err)
	}
	report := SummarizeExpenses(members, expenses)

	var b strings.Builder
	fmt.Fprintf(&b, "Trip summary: %s", plan.Destination)
	if plan.Dates != "" {
		fmt.Fprintf(&b, " (%s)", plan.Dates)
	}
	b.WriteString("\n")
	if plan.Document != nil {
		fmt.Fprintf(&b, "%d itinerary days, %d bookings.\n", len(plan.Document.DailyItinerary), len(plan.Document.Bookings))
	}
	fmt.Fprintf(&b, "%d members, %d expenses, total %.2f, share %.2f each.\n",
		len(members), report.Count, report.Total, report.Share)
	for _, bal := range report.Balances {
		switch {
		case bal.Balance > 0:
			fmt.Fprintf(&b, "- %s paid %.2f and is owed %.2f\n", bal.UserName, bal.Paid, bal.Balance)
		case bal.Balance < 0:
			fmt.Fprintf(&b, "- %s paid %.2f and owes %.2f\n", bal.UserName, bal.Paid, -bal.Balance)
		default:
			fmt.Fprintf(&b, "- %s paid %.2f and is settled\n", bal.UserName, bal.Paid)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// postSummary generates the summary, posts it as an owner-attributed message
// and notifies members. Failures are logged only.
func (s *Service) postSummary(ctx context.Context, plan models.Plan) {
	log := s.log.With().Str("plan_id", plan.ID.String()).Logger()
	text, err := s.summaries.Generate(ctx, plan)
	if err != nil {
		log.Error().Err(err).Msg("summary generation failed")
		return
	}
	if len(text) > maxMessageLength {
		text = text[:maxMessageLength]
	}
	msg := &models.Message{
		ID:       uuid.New(),
		PlanID:   plan.ID,
		UserID:   plan.OwnerID,
		UserName: SummaryAuthorName,
		Body:     text,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		log.Error().Err(err).Msg("failed to post summary")
		return
	}
	members, err := s.store.ListMembers(ctx, plan.ID)
	if err != nil {
		log.Warn().Err(err).Msg("skip summary notifications")
		return
	}
	log.Info().Msg("summary posted")
	s.notifier.SummaryReady(ctx, plan, members)
}
