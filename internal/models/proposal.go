package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"TRIPCOLLAB_BACK-END/internal/common"
)

// Category partitions proposals into independent decisions.
type Category string

const (
	CategoryDate          Category = "date"
	CategoryAccommodation Category = "accommodation"
	CategoryItinerary     Category = "itinerary"
)

// Categories lists every category in a stable order.
var Categories = []Category{CategoryDate, CategoryAccommodation, CategoryItinerary}

// ParseCategory normalizes s into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryDate, CategoryAccommodation, CategoryItinerary:
		return c, nil
	case "dates":
		return CategoryDate, nil
	}
	return "", common.NewValidationError("category", fmt.Sprintf("must be one of date, accommodation, itinerary (got %q)", s))
}

// SeedAuthorName tags proposals generated from a provisional plan document.
const SeedAuthorName = "ai-seed"

// ISODate is the calendar date layout used in proposal details.
const ISODate = "2006-01-02"

// ProposalDetails is the category-shaped payload of a proposal.
// Implementations: DateDetails, AccommodationDetails, ItineraryDetails.
type ProposalDetails interface {
	Category() Category
	Validate() error
}

// DateDetails proposes a travel window.
type DateDetails struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (DateDetails) Category() Category { return CategoryDate }

// Range parses the window bounds.
func (d DateDetails) Range() (time.Time, time.Time, error) {
	start, err := time.Parse(ISODate, d.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, common.NewValidationError("startDate", "must be an ISO date (YYYY-MM-DD)")
	}
	end, err := time.Parse(ISODate, d.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, common.NewValidationError("endDate", "must be an ISO date (YYYY-MM-DD)")
	}
	return start, end, nil
}

func (d DateDetails) Validate() error {
	start, end, err := d.Range()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return common.NewValidationError("endDate", "cannot be before startDate")
	}
	return nil
}

// Label renders the window the way plan documents store dates.
func (d DateDetails) Label() string {
	return d.StartDate + " - " + d.EndDate
}

// AccommodationDetails proposes a stay.
type AccommodationDetails struct {
	Location      string  `json:"location"`
	PricePerNight float64 `json:"pricePerNight"`
	Nights        int     `json:"nights"`
}

func (AccommodationDetails) Category() Category { return CategoryAccommodation }

func (a AccommodationDetails) Validate() error {
	if a.PricePerNight < 0 {
		return common.NewValidationError("pricePerNight", "cannot be negative")
	}
	if a.Nights < 1 {
		return common.NewValidationError("nights", "must be at least 1")
	}
	return nil
}

// Total is the full cost of the stay.
func (a AccommodationDetails) Total() float64 {
	return a.PricePerNight * float64(a.Nights)
}

// ItineraryDetails proposes one activity on one day.
type ItineraryDetails struct {
	Day         int     `json:"day"`
	Time        string  `json:"time"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Cost        float64 `json:"cost"`
	DayTitle    string  `json:"day_title"`
}

func (ItineraryDetails) Category() Category { return CategoryItinerary }

func (i ItineraryDetails) Validate() error {
	if i.Day < 1 {
		return common.NewValidationError("day", "must be at least 1")
	}
	if strings.TrimSpace(i.Description) == "" {
		return common.NewValidationError("description", "is required")
	}
	if i.Cost < 0 {
		return common.NewValidationError("cost", "cannot be negative")
	}
	return nil
}

// ResolvedDayTitle never returns an empty title.
func (i ItineraryDetails) ResolvedDayTitle() string {
	if t := strings.TrimSpace(i.DayTitle); t != "" {
		return t
	}
	return DefaultDayTitle(i.Day)
}

// DefaultDayTitle is the title used when a day carries none.
func DefaultDayTitle(day int) string {
	return fmt.Sprintf("Day %d", day)
}

// Proposal is one competing option within a category.
type Proposal struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	PlanID     uuid.UUID       `json:"plan_id" db:"plan_id"`
	AuthorID   uuid.UUID       `json:"author_id" db:"author_id"`
	AuthorName string          `json:"author_name" db:"author_name"`
	Category   Category        `json:"category" db:"category"`
	Title      string          `json:"title" db:"title"`
	Details    ProposalDetails `json:"details" db:"details"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// UnmarshalJSON decodes details according to the category discriminator.
// Stored rows are decoded leniently so older records never break reads.
func (p *Proposal) UnmarshalJSON(data []byte) error {
	type alias Proposal
	var raw struct {
		alias
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Proposal(raw.alias)
	details, err := DecodeDetails(p.Category, raw.Details)
	if err != nil {
		return err
	}
	p.Details = details
	return nil
}

// CreatedBefore orders proposals by creation time, then id.
func (p Proposal) CreatedBefore(q Proposal) bool {
	if !p.CreatedAt.Equal(q.CreatedAt) {
		return p.CreatedAt.Before(q.CreatedAt)
	}
	return bytes.Compare(p.ID[:], q.ID[:]) < 0
}

// DateDetails returns the details when the proposal is a date proposal.
func (p Proposal) DateDetails() (DateDetails, bool) {
	d, ok := p.Details.(DateDetails)
	return d, ok
}

// AccommodationDetails returns the details when the proposal is an accommodation.
func (p Proposal) AccommodationDetails() (AccommodationDetails, bool) {
	d, ok := p.Details.(AccommodationDetails)
	return d, ok
}

// ItineraryDetails returns the details when the proposal is an itinerary item.
func (p Proposal) ItineraryDetails() (ItineraryDetails, bool) {
	d, ok := p.Details.(ItineraryDetails)
	return d, ok
}

// ContentKey identifies proposal content independent of its id; used to match
// optimistic copies against their authoritative rows.
func (p Proposal) ContentKey() string {
	details, _ := json.Marshal(p.Details)
	return string(p.Category) + "\x00" + strings.TrimSpace(p.Title) + "\x00" + string(details)
}

// DefaultTitle is the title a proposal gets when it is submitted without one.
func DefaultTitle(d ProposalDetails) string {
	switch v := d.(type) {
	case DateDetails:
		return v.Label()
	case AccommodationDetails:
		return firstNonEmpty(v.Location, "Accommodation")
	case ItineraryDetails:
		return v.Description
	}
	return ""
}

// NormalizeProposal applies the submission rules to a new proposal: details
// are parsed strictly and a blank title falls back to DefaultTitle.
func NormalizeProposal(category Category, title string, raw json.RawMessage) (string, ProposalDetails, error) {
	details, err := ParseDetails(category, raw)
	if err != nil {
		return "", nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle(details)
	}
	return title, details, nil
}

// ParseDetails strictly decodes client supplied details for category,
// rejecting missing required fields.
func ParseDetails(category Category, raw json.RawMessage) (ProposalDetails, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, common.NewValidationError("details", "is required")
	}
	var details ProposalDetails
	switch category {
	case CategoryDate:
		var in struct {
			StartDate *string `json:"startDate"`
			EndDate   *string `json:"endDate"`
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, common.NewValidationError("details", err.Error())
		}
		if in.StartDate == nil || strings.TrimSpace(*in.StartDate) == "" {
			return nil, common.NewValidationError("startDate", "is required")
		}
		if in.EndDate == nil || strings.TrimSpace(*in.EndDate) == "" {
			return nil, common.NewValidationError("endDate", "is required")
		}
		details = DateDetails{StartDate: strings.TrimSpace(*in.StartDate), EndDate: strings.TrimSpace(*in.EndDate)}
	case CategoryAccommodation:
		var in struct {
			Location      *string  `json:"location"`
			PricePerNight *float64 `json:"pricePerNight"`
			Nights        *int     `json:"nights"`
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, common.NewValidationError("details", err.Error())
		}
		if in.PricePerNight == nil {
			return nil, common.NewValidationError("pricePerNight", "is required")
		}
		if in.Nights == nil {
			return nil, common.NewValidationError("nights", "is required")
		}
		a := AccommodationDetails{PricePerNight: *in.PricePerNight, Nights: *in.Nights}
		if in.Location != nil {
			a.Location = strings.TrimSpace(*in.Location)
		}
		details = a
	case CategoryItinerary:
		var in struct {
			Day         *int     `json:"day"`
			Time        string   `json:"time"`
			Description *string  `json:"description"`
			Location    string   `json:"location"`
			Cost        *float64 `json:"cost"`
			DayTitle    string   `json:"day_title"`
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, common.NewValidationError("details", err.Error())
		}
		if in.Day == nil {
			return nil, common.NewValidationError("day", "is required")
		}
		if in.Description == nil {
			return nil, common.NewValidationError("description", "is required")
		}
		it := ItineraryDetails{
			Day:         *in.Day,
			Time:        strings.TrimSpace(in.Time),
			Description: strings.TrimSpace(*in.Description),
			Location:    strings.TrimSpace(in.Location),
			DayTitle:    strings.TrimSpace(in.DayTitle),
		}
		if in.Cost != nil {
			it.Cost = *in.Cost
		}
		if it.DayTitle == "" {
			it.DayTitle = DefaultDayTitle(it.Day)
		}
		details = it
	default:
		return nil, common.NewValidationError("category", fmt.Sprintf("unknown category %q", category))
	}
	if err := details.Validate(); err != nil {
		return nil, err
	}
	return details, nil
}

// DecodeDetails leniently decodes stored details, coalescing legacy shapes
// (camelCase keys, day_title nested under "meta" or "item") and defaulting
// missing values instead of failing.
func DecodeDetails(category Category, raw json.RawMessage) (ProposalDetails, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	switch category {
	case CategoryDate:
		var in struct {
			StartDate  string `json:"startDate"`
			EndDate    string `json:"endDate"`
			StartSnake string `json:"start_date"`
			EndSnake   string `json:"end_date"`
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("decode date details: %w", err)
		}
		return DateDetails{
			StartDate: firstNonEmpty(in.StartDate, in.StartSnake),
			EndDate:   firstNonEmpty(in.EndDate, in.EndSnake),
		}, nil
	case CategoryAccommodation:
		var in struct {
			Location      string   `json:"location"`
			PricePerNight *float64 `json:"pricePerNight"`
			PriceSnake    *float64 `json:"price_per_night"`
			Nights        int      `json:"nights"`
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("decode accommodation details: %w", err)
		}
		a := AccommodationDetails{Location: in.Location, Nights: in.Nights}
		switch {
		case in.PricePerNight != nil:
			a.PricePerNight = *in.PricePerNight
		case in.PriceSnake != nil:
			a.PricePerNight = *in.PriceSnake
		}
		if a.PricePerNight < 0 {
			a.PricePerNight = 0
		}
		if a.Nights < 1 {
			a.Nights = 1
		}
		return a, nil
	case CategoryItinerary:
		type nested struct {
			DayTitle      string `json:"day_title"`
			DayTitleCamel string `json:"dayTitle"`
		}
		var in struct {
			Day           int     `json:"day"`
			Time          string  `json:"time"`
			Description   string  `json:"description"`
			Location      string  `json:"location"`
			Cost          float64 `json:"cost"`
			DayTitle      string  `json:"day_title"`
			DayTitleCamel string  `json:"dayTitle"`
			Meta          *nested `json:"meta"`
			Item          *nested `json:"item"`
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("decode itinerary details: %w", err)
		}
		it := ItineraryDetails{
			Day:         in.Day,
			Time:        in.Time,
			Description: in.Description,
			Location:    in.Location,
			Cost:        in.Cost,
		}
		if it.Day < 1 {
			it.Day = 1
		}
		if it.Cost < 0 {
			it.Cost = 0
		}
		candidates := []string{in.DayTitle, in.DayTitleCamel}
		for _, n := range []*nested{in.Meta, in.Item} {
			if n != nil {
				candidates = append(candidates, n.DayTitle, n.DayTitleCamel)
			}
		}
		it.DayTitle = firstNonEmpty(candidates...)
		if it.DayTitle == "" {
			it.DayTitle = DefaultDayTitle(it.Day)
		}
		return it, nil
	}
	return nil, fmt.Errorf("decode details: unknown category %q", category)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
