package models

import (
	"strings"

	"github.com/google/uuid"
)

// PlanDocument is the consolidated, human readable trip plan.
type PlanDocument struct {
	Destination    string         `json:"destination" yaml:"destination"`
	Dates          string         `json:"dates" yaml:"dates"`
	StartDate      string         `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate        string         `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Bookings       []Booking      `json:"bookings" yaml:"bookings"`
	DailyItinerary []ItineraryDay `json:"dailyItinerary" yaml:"dailyItinerary"`
}

// Booking is a reserved or proposed travel component.
type Booking struct {
	Type          string     `json:"type" yaml:"type"`
	Title         string     `json:"title,omitempty" yaml:"title,omitempty"`
	Location      string     `json:"location,omitempty" yaml:"location,omitempty"`
	PricePerNight *float64   `json:"pricePerNight,omitempty" yaml:"pricePerNight,omitempty"`
	Nights        *int       `json:"nights,omitempty" yaml:"nights,omitempty"`
	Price         string     `json:"price,omitempty" yaml:"price,omitempty"`
	Details       string     `json:"details,omitempty" yaml:"details,omitempty"`
	ProposalID    *uuid.UUID `json:"proposalId,omitempty" yaml:"proposalId,omitempty"`
}

var lodgingTypes = map[string]bool{
	"accommodation": true,
	"lodging":       true,
	"hotel":         true,
	"hostel":        true,
	"resort":        true,
	"stay":          true,
}

// IsLodging reports whether the booking is an overnight stay.
func (b Booking) IsLodging() bool {
	return lodgingTypes[strings.ToLower(strings.TrimSpace(b.Type))]
}

// ItineraryDay groups the activities of one trip day.
type ItineraryDay struct {
	Day      int             `json:"day" yaml:"day"`
	Title    string          `json:"title,omitempty" yaml:"title,omitempty"`
	DayTitle string          `json:"day_title,omitempty" yaml:"day_title,omitempty"`
	Items    []ItineraryItem `json:"items" yaml:"items"`
}

// ResolvedTitle coalesces the day title from the legacy locations it has
// been stored under.
func (d ItineraryDay) ResolvedTitle() string {
	if t := strings.TrimSpace(d.Title); t != "" {
		return t
	}
	if t := strings.TrimSpace(d.DayTitle); t != "" {
		return t
	}
	for _, it := range d.Items {
		if t := strings.TrimSpace(it.DayTitle); t != "" {
			return t
		}
	}
	return DefaultDayTitle(d.Day)
}

// ItineraryItem is one scheduled activity.
type ItineraryItem struct {
	Time        string     `json:"time,omitempty" yaml:"time,omitempty"`
	Description string     `json:"description" yaml:"description"`
	Location    string     `json:"location,omitempty" yaml:"location,omitempty"`
	Cost        float64    `json:"cost,omitempty" yaml:"cost,omitempty"`
	DayTitle    string     `json:"day_title,omitempty" yaml:"day_title,omitempty"`
	ProposalID  *uuid.UUID `json:"proposalId,omitempty" yaml:"proposalId,omitempty"`
}

// Normalize fills day numbers and titles so readers never see gaps.
func (d *PlanDocument) Normalize() {
	if d == nil {
		return
	}
	if d.Bookings == nil {
		d.Bookings = []Booking{}
	}
	if d.DailyItinerary == nil {
		d.DailyItinerary = []ItineraryDay{}
	}
	for i := range d.DailyItinerary {
		day := &d.DailyItinerary[i]
		if day.Day < 1 {
			day.Day = i + 1
		}
		day.Title = day.ResolvedTitle()
		day.DayTitle = ""
		if day.Items == nil {
			day.Items = []ItineraryItem{}
		}
	}
}

// Clone returns a deep copy of the document.
func (d *PlanDocument) Clone() *PlanDocument {
	if d == nil {
		return nil
	}
	out := *d
	out.Bookings = make([]Booking, len(d.Bookings))
	for i, b := range d.Bookings {
		if b.PricePerNight != nil {
			v := *b.PricePerNight
			b.PricePerNight = &v
		}
		if b.Nights != nil {
			v := *b.Nights
			b.Nights = &v
		}
		if b.ProposalID != nil {
			v := *b.ProposalID
			b.ProposalID = &v
		}
		out.Bookings[i] = b
	}
	out.DailyItinerary = make([]ItineraryDay, len(d.DailyItinerary))
	for i, day := range d.DailyItinerary {
		items := make([]ItineraryItem, len(day.Items))
		for j, it := range day.Items {
			if it.ProposalID != nil {
				v := *it.ProposalID
				it.ProposalID = &v
			}
			items[j] = it
		}
		day.Items = items
		out.DailyItinerary[i] = day
	}
	return &out
}
