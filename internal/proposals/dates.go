package proposals

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"TRIPCOLLAB_BACK-END/internal/models"
)

const (
	// fallbackLead is how far ahead the default window starts.
	fallbackLead = 30 * 24 * time.Hour
	// fallbackDays is the inclusive length of the default window.
	fallbackDays = 5
)

var (
	rangeSeparators = []string{" - ", " – ", " — ", " to ", " until ", " till ", "–", "—"}
	ordinalSuffix   = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	bareDay         = regexp.MustCompile(`^(\d{1,2})(?:,?\s+(\d{4}))?$`)
)

type dateLayout struct {
	layout  string
	hasYear bool
}

var dateLayouts = []dateLayout{
	{"2006-01-02", true},
	{"2006/01/02", true},
	{"January 2, 2006", true},
	{"January 2 2006", true},
	{"Jan 2, 2006", true},
	{"Jan 2 2006", true},
	{"2 January 2006", true},
	{"2 Jan 2006", true},
	{"Monday, January 2, 2006", true},
	{"Mon, Jan 2, 2006", true},
	{"1/2/2006", true},
	{"01/02/2006", true},
	{"January 2", false},
	{"Jan 2", false},
	{"2 January", false},
	{"2 Jan", false},
	{"1/2", false},
}

type parsedDate struct {
	t       time.Time
	hasYear bool
}

func parseOneDate(s string) (parsedDate, bool) {
	s = strings.TrimSpace(strings.Trim(s, ".,;"))
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	s = strings.Join(strings.Fields(s), " ")
	for _, l := range dateLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return parsedDate{t: t, hasYear: l.hasYear}, true
		}
	}
	return parsedDate{}, false
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func withYear(t time.Time, year int) time.Time {
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// splitRange cuts text at the first known range separator.
func splitRange(text string) (string, string, bool) {
	for _, sep := range rangeSeparators {
		if i := strings.Index(text, sep); i > 0 {
			return text[:i], text[i+len(sep):], true
		}
	}
	return "", "", false
}

// ParseDateRange reads free-text ranges such as "2025-06-10 - 2025-06-14",
// "June 10 - June 14, 2025" or "Jun 10–14". Missing years are taken from the
// other bound or from now, and a range that would lie in the past, or carries
// a year earlier than now's, is moved forward.
func ParseDateRange(text string, now time.Time) (time.Time, time.Time, bool) {
	left, right, ok := splitRange(strings.TrimSpace(text))
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	start, ok := parseOneDate(left)
	if !ok {
		return time.Time{}, time.Time{}, false
	}

	var end parsedDate
	if m := bareDay.FindStringSubmatch(strings.TrimSpace(right)); m != nil {
		// "June 10 - 14" or "June 10 - 14, 2025"
		day, _ := strconv.Atoi(m[1])
		end = parsedDate{t: time.Date(start.t.Year(), start.t.Month(), day, 0, 0, 0, 0, time.UTC), hasYear: start.hasYear}
		if m[2] != "" {
			year, _ := strconv.Atoi(m[2])
			end.t = withYear(end.t, year)
			end.hasYear = true
		}
		if end.t.Day() != day {
			return time.Time{}, time.Time{}, false
		}
	} else if end, ok = parseOneDate(right); !ok {
		return time.Time{}, time.Time{}, false
	}

	today := dateOnly(now)
	switch {
	case !start.hasYear && end.hasYear:
		start.t = withYear(start.t, end.t.Year())
	case start.hasYear && !end.hasYear:
		end.t = withYear(end.t, start.t.Year())
	case !start.hasYear && !end.hasYear:
		start.t = withYear(start.t, today.Year())
		end.t = withYear(end.t, today.Year())
	}

	s, e := dateOnly(start.t), dateOnly(end.t)
	if e.Before(s) {
		e = withYear(e, e.Year()+1)
	}
	s, e = rollForward(s, e, today)
	return s, e, true
}

// rollForward moves a window that starts in an earlier year, or before today,
// forward by whole years while keeping its length.
func rollForward(s, e, today time.Time) (time.Time, time.Time) {
	// years that predate the current one are treated as missing context
	if s.Year() < today.Year() {
		span := e.Sub(s)
		s = withYear(s, today.Year())
		e = s.Add(span)
	}
	if s.Before(today) {
		span := e.Sub(s)
		s = withYear(s, s.Year()+1)
		e = s.Add(span)
	}
	return s, e
}

// DefaultDateWindow is the window used when the plan's dates cannot be read.
func DefaultDateWindow(now time.Time) (time.Time, time.Time) {
	start := dateOnly(now.Add(fallbackLead))
	return start, start.AddDate(0, 0, fallbackDays-1)
}

// SeedDateDetails parses text, falling back to the default window.
func SeedDateDetails(text string, now time.Time) (models.DateDetails, bool) {
	start, end, ok := ParseDateRange(text, now)
	if !ok {
		start, end = DefaultDateWindow(now)
	}
	return models.DateDetails{
		StartDate: start.Format(models.ISODate),
		EndDate:   end.Format(models.ISODate),
	}, ok
}
