// Package period turns a logical reporting period (day, week, month, quarter,
// year or an explicit custom span) into a concrete inclusive time range.
package period

import (
	"fmt"
	"strings"
	"time"

	"fuelstation/backend/internal/apperror"
)

type Type string

const (
	Day     Type = "day"
	Week    Type = "week"
	Month   Type = "month"
	Quarter Type = "quarter"
	Year    Type = "year"
	Custom  Type = "custom"
)

const isoDate = "2006-01-02"

// ParseType accepts a period name case-insensitively. An empty string means month.
func ParseType(raw string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return Month, nil
	case Day, Week, Month, Quarter, Year, Custom:
		return t, nil
	default:
		return "", apperror.NewValidationf("unknown period type %q", raw).
			WithDetail("allowed", []Type{Day, Week, Month, Quarter, Year, Custom})
	}
}

// Range is an inclusive [start, end] span with its display label. It can only
// be built by a Resolver.
type Range struct {
	periodType Type
	start      time.Time
	end        time.Time
	label      string
}

func (r Range) Type() Type { return r.periodType }
func (r Range) Start() time.Time { return r.start }
func (r Range) End() time.Time { return r.end }
func (r Range) Label() string { return r.label }
func (r Range) IsZero() bool { return r.start.IsZero() && r.end.IsZero() }
func (r Range) StartDate() string { return r.start.Format(isoDate) }
func (r Range) EndDate() string { return r.end.Format(isoDate) }

// Contains reports whether t falls inside the range, both bounds inclusive.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.start) && !t.After(r.end)
}

// Covers reports whether [from, to] lies entirely inside the range.
func (r Range) Covers(from, to time.Time) bool {
	return r.Contains(from) && r.Contains(to)
}

// EndedBefore reports whether the whole range is in the past relative to now.
func (r Range) EndedBefore(now time.Time) bool {
	return r.end.Before(now)
}

// Resolver computes ranges relative to its clock in its location.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc, now: time.Now}
}

// WithClock returns a copy of the resolver reading the current time from now.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	clone := *r
	clone.now = now
	return &clone
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve builds the range for periodType. start and end are only read for
// Custom, where both are required.
func (r *Resolver) Resolve(periodType Type, start, end *time.Time) (Range, error) {
	now := r.now().In(r.loc)

	switch periodType {
	case Day:
		from := startOfDay(now)
		return Range{periodType: Day, start: from, end: endOfDay(from), label: from.Format(isoDate)}, nil

	case Week:
		from := startOfDay(now).AddDate(0, 0, -int(now.Weekday()))
		return Range{
			periodType: Week,
			start:      from,
			end:        endOfDay(from.AddDate(0, 0, 6)),
			label:      "Week of " + from.Format(isoDate),
		}, nil

	case Month:
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, r.loc)
		return Range{
			periodType: Month,
			start:      from,
			end:        endOfDay(from.AddDate(0, 1, -1)),
			label:      from.Format("January 2006"),
		}, nil

	case Quarter:
		monthIndex := int(now.Month()) - 1
		firstMonth := (monthIndex / 3) * 3
		from := time.Date(now.Year(), time.Month(firstMonth+1), 1, 0, 0, 0, 0, r.loc)
		return Range{
			periodType: Quarter,
			start:      from,
			end:        endOfDay(from.AddDate(0, 3, -1)),
			label:      fmt.Sprintf("Q%d %d", firstMonth/3+1, now.Year()),
		}, nil

	case Year:
		from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, r.loc)
		return Range{
			periodType: Year,
			start:      from,
			end:        endOfDay(time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, r.loc)),
			label:      fmt.Sprintf("%d", now.Year()),
		}, nil

	case Custom:
		if start == nil || end == nil {
			return Range{}, apperror.NewValidation("custom period requires both start_date and end_date")
		}
		from := startOfDay(start.In(r.loc))
		to := endOfDay(end.In(r.loc))
		if to.Before(from) {
			return Range{}, apperror.NewValidation("start_date must not be after end_date").
				WithDetail("start_date", from.Format(isoDate)).
				WithDetail("end_date", to.Format(isoDate))
		}
		return Range{
			periodType: Custom,
			start:      from,
			end:        to,
			label:      from.Format(isoDate) + " to " + to.Format(isoDate),
		}, nil
	}

	return Range{}, apperror.NewValidationf("unknown period type %q", periodType)
}

// ResolveStrings parses a raw period descriptor and resolves it. Bounds are
// only parsed for custom periods so a stray value never fails a named period.
func (r *Resolver) ResolveStrings(periodType, start, end string) (Range, error) {
	t, err := ParseType(periodType)
	if err != nil {
		return Range{}, err
	}
	if t != Custom {
		return r.Resolve(t, nil, nil)
	}

	var from, to *time.Time
	if strings.TrimSpace(start) != "" {
		parsed, err := ParseDate(start, r.loc)
		if err != nil {
			return Range{}, err
		}
		from = &parsed
	}
	if strings.TrimSpace(end) != "" {
		parsed, err := ParseDate(end, r.loc)
		if err != nil {
			return Range{}, err
		}
		to = &parsed
	}
	return r.Resolve(Custom, from, to)
}

// ParseDate accepts YYYY-MM-DD (interpreted in loc) or RFC3339.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(isoDate, raw, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, apperror.NewValidationf("invalid date %q, expected YYYY-MM-DD", raw)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}
