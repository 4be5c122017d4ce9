package proposals

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TRIPCOLLAB_BACK-END/internal/models"
)

func TestExtractLodgingTerms(t *testing.T) {
	tests := []struct {
		text   string
		price  float64
		nights int
	}{
		{"$45 per night, 3 nights", 45, 3},
		{"€80/night for 2 nights", 80, 2},
		{"Total $300 for 3 nights", 100, 3},
		{"1,200 baht a night", 1200, 1},
		{"Cozy place downtown", 0, 1},
		{"", 0, 1},
	}
	for _, tt := range tests {
		price, nights := ExtractLodgingTerms(tt.text)
		assert.InDelta(t, tt.price, price, 0.001, tt.text)
		assert.Equal(t, tt.nights, nights, tt.text)
	}
}

func provisionalDoc() models.PlanDocument {
	nights := 2
	return models.PlanDocument{
		Destination: "Bangkok",
		Dates:       "Flexible 5-Day Plan",
		Bookings: []models.Booking{
			{Type: "flight", Title: "BKK arrival"},
			{Type: "Hotel", Title: "Riverside Inn", Price: "$100 per night", Nights: &nights},
			{Type: "hostel", Location: "Khao San", Details: "3 nights, total $90"},
		},
		DailyItinerary: []models.ItineraryDay{
			{Day: 1, Title: "Temples", Items: []models.ItineraryItem{
				{Time: "09:00", Description: "Wat Pho", Cost: 10},
				{Description: "   "},
				{Description: "Grand Palace", Cost: -5},
			}},
			{Day: 2, Items: []models.ItineraryItem{{Description: "Floating market", DayTitle: "Markets"}}},
		},
	}
}

func TestBuildSeed(t *testing.T) {
	planID, owner := uuid.New(), uuid.New()
	doc := provisionalDoc()
	seed := BuildSeed(planID, owner, doc, now)

	require.Len(t, seed, 6)
	for _, p := range seed {
		assert.Equal(t, planID, p.PlanID)
		assert.Equal(t, owner, p.AuthorID)
		assert.Equal(t, models.SeedAuthorName, p.AuthorName)
		assert.NoError(t, p.Details.Validate(), p.Title)
		assert.Equal(t, p.Category, p.Details.Category())
	}

	date, ok := seed[0].DateDetails()
	require.True(t, ok)
	assert.Equal(t, models.DateDetails{StartDate: "2025-03-31", EndDate: "2025-04-04"}, date)

	inn, ok := seed[1].AccommodationDetails()
	require.True(t, ok)
	assert.Equal(t, "Riverside Inn", seed[1].Title)
	assert.Equal(t, models.AccommodationDetails{Location: "Riverside Inn", PricePerNight: 100, Nights: 2}, inn)

	hostel, ok := seed[2].AccommodationDetails()
	require.True(t, ok)
	assert.Equal(t, "Khao San", seed[2].Title)
	assert.Equal(t, 3, hostel.Nights)
	assert.InDelta(t, 30, hostel.PricePerNight, 0.001)

	pho, ok := seed[3].ItineraryDetails()
	require.True(t, ok)
	assert.Equal(t, models.ItineraryDetails{Day: 1, Time: "09:00", Description: "Wat Pho", Cost: 10, DayTitle: "Temples"}, pho)

	palace, _ := seed[4].ItineraryDetails()
	assert.Zero(t, palace.Cost)

	market, _ := seed[5].ItineraryDetails()
	assert.Equal(t, 2, market.Day)
	assert.Equal(t, "Markets", market.DayTitle)

	assert.Equal(t, "Flexible 5-Day Plan", doc.Dates, "input document untouched")
	assert.Len(t, doc.DailyItinerary[0].Items, 3)
}

func TestBuildSeed_PrefersExplicitDocumentDates(t *testing.T) {
	doc := models.PlanDocument{Dates: "whenever", StartDate: "2025-05-01", EndDate: "2025-05-03"}
	seed := BuildSeed(uuid.New(), uuid.New(), doc, now)
	require.Len(t, seed, 1)
	d, _ := seed[0].DateDetails()
	assert.Equal(t, "2025-05-01", d.StartDate)

	tests := []struct {
		name       string
		start, end string
		wantStart  string
		wantEnd    string
	}{
		{"earlier year moves to this year", "2024-05-01", "2024-05-03", "2025-05-01", "2025-05-03"},
		{"past window this year moves to next year", "2025-02-10", "2025-02-12", "2026-02-10", "2026-02-12"},
		{"window across new year keeps its length", "2024-12-30", "2025-01-02", "2025-12-30", "2026-01-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := models.PlanDocument{StartDate: tt.start, EndDate: tt.end}
			seed := BuildSeed(uuid.New(), uuid.New(), doc, now)
			d, _ := seed[0].DateDetails()
			assert.Equal(t, tt.wantStart, d.StartDate)
			assert.Equal(t, tt.wantEnd, d.EndDate)
		})
	}
}
