package proposals

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/models"
)

var (
	perNightPrice = regexp.MustCompile(`(?i)[$€£฿]?\s*(\d[\d,]*(?:\.\d+)?)\s*(?:usd|eur|gbp|thb|baht|dollars?|euros?)?\s*(?:/|per|a|each)\s*night`)
	nightCount    = regexp.MustCompile(`(?i)(\d+)\s*-?\s*nights?\b`)
	currencyPrice = regexp.MustCompile(`(?i)[$€£฿]\s*(\d[\d,]*(?:\.\d+)?)|(\d[\d,]*(?:\.\d+)?)\s*(?:usd|eur|gbp|thb|baht|dollars?|euros?)\b`)
)

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// ExtractLodgingTerms reads a nightly price and night count from free text.
// Nothing parsed yields price 0 and one night.
func ExtractLodgingTerms(text string) (pricePerNight float64, nights int) {
	nights = 1
	if m := nightCount.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 {
			nights = n
		}
	}
	if m := perNightPrice.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			return v, nights
		}
	}
	// a bare amount is a total when a night count was given
	if m := currencyPrice.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if v, ok := parseAmount(raw); ok {
			return v / float64(nights), nights
		}
	}
	return 0, nights
}

func lodgingDetails(b models.Booking) models.AccommodationDetails {
	text := strings.Join([]string{b.Price, b.Details, b.Title}, " ")
	price, nights := ExtractLodgingTerms(text)
	if b.PricePerNight != nil && *b.PricePerNight >= 0 {
		price = *b.PricePerNight
	}
	if b.Nights != nil && *b.Nights >= 1 {
		nights = *b.Nights
	}
	return models.AccommodationDetails{
		Location:      firstNonEmpty(b.Location, b.Title),
		PricePerNight: price,
		Nights:        nights,
	}
}

func seedDates(doc models.PlanDocument, now time.Time) models.DateDetails {
	if doc.StartDate != "" && doc.EndDate != "" {
		d := models.DateDetails{StartDate: doc.StartDate, EndDate: doc.EndDate}
		if d.Validate() == nil {
			start, end, _ := d.Range()
			start, end = rollForward(dateOnly(start), dateOnly(end), dateOnly(now))
			return models.DateDetails{
				StartDate: start.Format(models.ISODate),
				EndDate:   end.Format(models.ISODate),
			}
		}
	}
	d, _ := SeedDateDetails(doc.Dates, now)
	return d
}

// BuildSeed turns a provisional plan document into seed proposals: one date
// window, one accommodation per lodging booking and one itinerary proposal per
// daily item. Order follows the document.
func BuildSeed(planID, ownerID uuid.UUID, doc models.PlanDocument, now time.Time) []models.Proposal {
	doc = *doc.Clone()
	doc.Normalize()

	newProposal := func(c models.Category, title string, details models.ProposalDetails) models.Proposal {
		return models.Proposal{
			ID:         uuid.New(),
			PlanID:     planID,
			AuthorID:   ownerID,
			AuthorName: models.SeedAuthorName,
			Category:   c,
			Title:      title,
			Details:    details,
		}
	}

	out := make([]models.Proposal, 0, 1+len(doc.Bookings))

	dates := seedDates(doc, now)
	out = append(out, newProposal(models.CategoryDate, dates.Label(), dates))

	for _, b := range doc.Bookings {
		if !b.IsLodging() {
			continue
		}
		details := lodgingDetails(b)
		title := firstNonEmpty(b.Title, b.Location, "Accommodation")
		out = append(out, newProposal(models.CategoryAccommodation, title, details))
	}

	for _, day := range doc.DailyItinerary {
		title := day.ResolvedTitle()
		for _, item := range day.Items {
			desc := strings.TrimSpace(item.Description)
			if desc == "" {
				continue
			}
			cost := item.Cost
			if cost < 0 {
				cost = 0
			}
			details := models.ItineraryDetails{
				Day:         day.Day,
				Time:        item.Time,
				Description: desc,
				Location:    item.Location,
				Cost:        cost,
				DayTitle:    title,
			}
			out = append(out, newProposal(models.CategoryItinerary, desc, details))
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
