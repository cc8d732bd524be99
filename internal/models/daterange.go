package models

import (
	"fmt"
	"time"
)

const dateOnly = "2006-01-02"

// DateRange is the schedule of an event as stored in the record store.
// It is either timed (instant or instant pair) or all-day (date or date
// pair). For all-day ranges End names the last day inclusively, matching
// how the record store presents date pairs; the calendar model uses an
// exclusive end instead, which CalendarSpan accounts for.
type DateRange struct {
	Start  time.Time
	End    time.Time
	AllDay bool
}

// ParseDateRange parses record-store date strings: "2006-01-02" for
// all-day values, RFC 3339 for timed ones. end may be empty.
func ParseDateRange(start, end string) (*DateRange, error) {
	if start == "" {
		return nil, fmt.Errorf("date range start is empty")
	}

	if t, err := time.Parse(dateOnly, start); err == nil {
		r := &DateRange{Start: t, AllDay: true}
		if end != "" {
			e, err := time.Parse(dateOnly, end)
			if err != nil {
				return nil, fmt.Errorf("parse all-day end %q: %w", end, err)
			}
			r.End = e
		}
		return r, nil
	}

	t, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return nil, fmt.Errorf("parse start %q: %w", start, err)
	}
	r := &DateRange{Start: t}
	if end != "" {
		e, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return nil, fmt.Errorf("parse end %q: %w", end, err)
		}
		r.End = e
	}
	return r, nil
}

// HasEnd reports whether an explicit end was stored.
func (r *DateRange) HasEnd() bool {
	return !r.End.IsZero()
}

// CalendarSpan returns the start and end instants to mirror into the
// calendar. Timed ranges default to a one-hour duration; all-day ranges
// produce an exclusive end one day past the last stored day.
func (r *DateRange) CalendarSpan() (time.Time, time.Time) {
	if r.AllDay {
		if r.HasEnd() {
			return r.Start, r.End.AddDate(0, 0, 1)
		}
		return r.Start, r.Start.AddDate(0, 0, 1)
	}
	if r.HasEnd() {
		return r.Start, r.End
	}
	return r.Start, r.Start.Add(time.Hour)
}

// StartString renders the start in the record store's wire format.
func (r *DateRange) StartString() string {
	if r.AllDay {
		return r.Start.Format(dateOnly)
	}
	return r.Start.Format(time.RFC3339)
}

// EndString renders the end in the record store's wire format, or "" when
// no end was stored.
func (r *DateRange) EndString() string {
	if !r.HasEnd() {
		return ""
	}
	if r.AllDay {
		return r.End.Format(dateOnly)
	}
	return r.End.Format(time.RFC3339)
}
