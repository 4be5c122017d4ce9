// Package consolidation derives the authoritative plan document from the
// winning proposals. Consolidate is pure: it never mutates its inputs and
// returns deep-equal output for equal inputs, so it backs both the live
// preview and the confirmed plan.
package consolidation

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/models"
	"TRIPCOLLAB_BACK-END/internal/tally"
	"TRIPCOLLAB_BACK-END/internal/votes"
)

// Consolidate builds the plan document from plan, proposals and votes.
func Consolidate(plan models.Plan, proposals []models.Proposal, allVotes []models.Vote) models.PlanDocument {
	original := plan.Document.Clone()
	if original == nil {
		original = &models.PlanDocument{}
	}
	original.Normalize()

	byProposal := votes.ByProposal(allVotes)
	sorted := tally.SortByCreation(proposals)

	doc := models.PlanDocument{
		Destination: firstNonEmpty(original.Destination, plan.Destination),
		Dates:       firstNonEmpty(original.Dates, plan.Dates),
		StartDate:   original.StartDate,
		EndDate:     original.EndDate,
		Description: firstNonEmpty(original.Description, plan.Description),
	}

	// 1. dates
	if winner, ok := tally.SelectWinner(tally.OfCategory(sorted, models.CategoryDate), byProposal); ok {
		if d, ok := winner.DateDetails(); ok && d.StartDate != "" && d.EndDate != "" {
			doc.Dates = d.Label()
			doc.StartDate = d.StartDate
			doc.EndDate = d.EndDate
		}
	}

	// 2. accommodations
	bookings := make([]models.Booking, 0)
	for _, p := range tally.OfCategory(sorted, models.CategoryAccommodation) {
		if votes.Tally(byProposal[p.ID]).Score <= 0 {
			continue
		}
		a, ok := p.AccommodationDetails()
		if !ok {
			continue
		}
		bookings = append(bookings, lodgingBooking(p, a))
	}

	// 3. itinerary
	days := groupItinerary(tally.OfCategory(sorted, models.CategoryItinerary), byProposal)

	// 4. assemble
	for _, b := range original.Bookings {
		if !b.IsLodging() {
			bookings = append(bookings, b)
		}
	}
	doc.Bookings = bookings
	if len(days) > 0 {
		doc.DailyItinerary = days
	} else {
		doc.DailyItinerary = original.DailyItinerary
	}
	return doc
}

func lodgingBooking(p models.Proposal, a models.AccommodationDetails) models.Booking {
	price := a.PricePerNight
	nights := a.Nights
	id := p.ID
	return models.Booking{
		Type:          "accommodation",
		Title:         p.Title,
		Location:      a.Location,
		PricePerNight: &price,
		Nights:        &nights,
		Price:         fmt.Sprintf("%.2f", a.Total()),
		Details:       fmt.Sprintf("%d night(s) at %.2f per night", nights, price),
		ProposalID:    &id,
	}
}

// groupItinerary keeps positively scored items, grouped by day ascending with
// creation order inside a day. The day title comes from the first item.
func groupItinerary(proposals []models.Proposal, byProposal map[uuid.UUID][]models.Vote) []models.ItineraryDay {
	grouped := make(map[int][]models.ItineraryDetails)
	ids := make(map[int][]uuid.UUID)
	for _, p := range proposals {
		if votes.Tally(byProposal[p.ID]).Score <= 0 {
			continue
		}
		it, ok := p.ItineraryDetails()
		if !ok {
			continue
		}
		grouped[it.Day] = append(grouped[it.Day], it)
		ids[it.Day] = append(ids[it.Day], p.ID)
	}

	dayNumbers := make([]int, 0, len(grouped))
	for d := range grouped {
		dayNumbers = append(dayNumbers, d)
	}
	sort.Ints(dayNumbers)

	out := make([]models.ItineraryDay, 0, len(dayNumbers))
	for _, d := range dayNumbers {
		items := grouped[d]
		day := models.ItineraryDay{
			Day:   d,
			Title: items[0].ResolvedDayTitle(),
			Items: make([]models.ItineraryItem, len(items)),
		}
		for i, it := range items {
			id := ids[d][i]
			day.Items[i] = models.ItineraryItem{
				Time:        it.Time,
				Description: it.Description,
				Location:    it.Location,
				Cost:        it.Cost,
				ProposalID:  &id,
			}
		}
		out = append(out, day)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
