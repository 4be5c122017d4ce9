package consolidation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TRIPCOLLAB_BACK-END/internal/models"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func mk(c models.Category, title string, n int, details models.ProposalDetails) models.Proposal {
	return models.Proposal{
		ID:        uuid.New(),
		Category:  c,
		Title:     title,
		Details:   details,
		CreatedAt: base.Add(time.Duration(n) * time.Minute),
	}
}

func vote(p models.Proposal, typ models.VoteType) models.Vote {
	return models.Vote{ProposalID: p.ID, UserID: uuid.New(), Type: typ}
}

type scenario struct {
	plan      models.Plan
	proposals []models.Proposal
	votes     []models.Vote

	dateWin, dateLose models.Proposal
	stay, badStay     models.Proposal
	museum, beach     models.Proposal
	hike, skipped     models.Proposal
}

func newScenario() scenario {
	s := scenario{
		plan: models.Plan{
			Destination: "Lisbon",
			Dates:       "Flexible",
			Document: &models.PlanDocument{
				Destination: "Lisbon, Portugal",
				Bookings: []models.Booking{
					{Type: "flight", Title: "TAP 123"},
					{Type: "hotel", Title: "Old hotel"},
				},
				DailyItinerary: []models.ItineraryDay{{Day: 1, Title: "Arrival"}},
			},
		},
	}
	s.dateLose = mk(models.CategoryDate, "May", 0, models.DateDetails{StartDate: "2025-05-01", EndDate: "2025-05-04"})
	s.dateWin = mk(models.CategoryDate, "June", 1, models.DateDetails{StartDate: "2025-06-10", EndDate: "2025-06-14"})
	s.stay = mk(models.CategoryAccommodation, "Hostel", 2, models.AccommodationDetails{Location: "Alfama", PricePerNight: 40, Nights: 4})
	s.badStay = mk(models.CategoryAccommodation, "Resort", 3, models.AccommodationDetails{PricePerNight: 400, Nights: 4})
	s.beach = mk(models.CategoryItinerary, "Beach", 4, models.ItineraryDetails{Day: 2, Description: "Beach", DayTitle: "Coast"})
	s.museum = mk(models.CategoryItinerary, "Museum", 5, models.ItineraryDetails{Day: 1, Time: "10:00", Description: "Museum", DayTitle: "City"})
	s.hike = mk(models.CategoryItinerary, "Hike", 6, models.ItineraryDetails{Day: 1, Time: "15:00", Description: "Hike", DayTitle: "Ignored"})
	s.skipped = mk(models.CategoryItinerary, "Casino", 7, models.ItineraryDetails{Day: 3, Description: "Casino"})

	s.proposals = []models.Proposal{s.skipped, s.hike, s.museum, s.beach, s.badStay, s.stay, s.dateWin, s.dateLose}
	s.votes = []models.Vote{
		vote(s.dateWin, models.VoteUp), vote(s.dateWin, models.VoteUp),
		vote(s.dateLose, models.VoteUp),
		vote(s.stay, models.VoteUp),
		vote(s.badStay, models.VoteUp), vote(s.badStay, models.VoteDown),
		vote(s.beach, models.VoteUp),
		vote(s.museum, models.VoteUp),
		vote(s.hike, models.VoteUp),
		vote(s.skipped, models.VoteDown),
	}
	return s
}

func TestConsolidate(t *testing.T) {
	s := newScenario()
	doc := Consolidate(s.plan, s.proposals, s.votes)

	assert.Equal(t, "Lisbon, Portugal", doc.Destination)
	assert.Equal(t, "2025-06-10 - 2025-06-14", doc.Dates)
	assert.Equal(t, "2025-06-10", doc.StartDate)
	assert.Equal(t, "2025-06-14", doc.EndDate)

	require.Len(t, doc.Bookings, 2)
	lodging := doc.Bookings[0]
	assert.Equal(t, "accommodation", lodging.Type)
	assert.Equal(t, "Hostel", lodging.Title)
	assert.Equal(t, "160.00", lodging.Price)
	require.NotNil(t, lodging.ProposalID)
	assert.Equal(t, s.stay.ID, *lodging.ProposalID)
	assert.Equal(t, "flight", doc.Bookings[1].Type, "non-lodging bookings survive, old lodging is replaced")

	require.Len(t, doc.DailyItinerary, 2)
	day1 := doc.DailyItinerary[0]
	assert.Equal(t, 1, day1.Day)
	assert.Equal(t, "City", day1.Title)
	require.Len(t, day1.Items, 2)
	assert.Equal(t, "Museum", day1.Items[0].Description)
	assert.Equal(t, "Hike", day1.Items[1].Description)
	assert.Equal(t, 2, doc.DailyItinerary[1].Day)
	assert.Equal(t, "Coast", doc.DailyItinerary[1].Title)
}

func TestConsolidate_Idempotent(t *testing.T) {
	s := newScenario()
	first := Consolidate(s.plan, s.proposals, s.votes)
	second := Consolidate(s.plan, s.proposals, s.votes)
	assert.Equal(t, first, second)

	reversed := make([]models.Proposal, len(s.proposals))
	for i, p := range s.proposals {
		reversed[len(reversed)-1-i] = p
	}
	assert.Equal(t, first, Consolidate(s.plan, reversed, s.votes))
}

func TestConsolidate_DoesNotMutateInputs(t *testing.T) {
	s := newScenario()
	before := s.plan.Document.Clone()
	Consolidate(s.plan, s.proposals, s.votes)
	assert.Equal(t, before, s.plan.Document.Clone())
	assert.Equal(t, "Old hotel", s.plan.Document.Bookings[1].Title)
}

func TestConsolidate_NoPositiveItineraryKeepsOriginal(t *testing.T) {
	s := newScenario()
	doc := Consolidate(s.plan, []models.Proposal{s.dateWin, s.skipped}, s.votes)
	require.Len(t, doc.DailyItinerary, 1)
	assert.Equal(t, "Arrival", doc.DailyItinerary[0].Title)
	require.Len(t, doc.Bookings, 1)
	assert.Equal(t, "flight", doc.Bookings[0].Type)
}

func TestConsolidate_EmptyPlan(t *testing.T) {
	doc := Consolidate(models.Plan{Destination: "Porto", Dates: "2025-07-01 - 2025-07-03"}, nil, nil)
	assert.Equal(t, "Porto", doc.Destination)
	assert.Equal(t, "2025-07-01 - 2025-07-03", doc.Dates)
	assert.NotNil(t, doc.Bookings)
	assert.Empty(t, doc.DailyItinerary)
}
