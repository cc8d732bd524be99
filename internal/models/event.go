package models

// MembershipStatus names one of the three disjoint membership sets kept
// per event.
type MembershipStatus string

const (
	StatusJoined   MembershipStatus = "joined"
	StatusMaybe    MembershipStatus = "maybe"
	StatusDeclined MembershipStatus = "declined"
)

// Valid reports whether s is one of the three known statuses.
func (s MembershipStatus) Valid() bool {
	switch s {
	case StatusJoined, StatusMaybe, StatusDeclined:
		return true
	}
	return false
}

// UntitledEvent is the display placeholder for events stored without a title.
const UntitledEvent = "Untitled event"

// Event is an event record from the record store, independent of the
// store's property encoding.
type Event struct {
	ID       string
	URL      string
	Title    string
	Date     *DateRange
	Category string
	Tags     []string

	// Membership sets hold member record ids. A member id appears in at
	// most one of the three.
	Joined   []string
	Maybe    []string
	Declined []string

	// CalendarID is the calendar-side counterpart id, set once one
	// exists. It is the idempotency key for calendar upserts.
	CalendarID string
}

// MatchTags is the tag set used for interest matching: the event's tags
// plus its category when set.
func (e Event) MatchTags() []string {
	tags := make([]string, 0, len(e.Tags)+1)
	tags = append(tags, e.Tags...)
	if e.Category != "" {
		tags = append(tags, e.Category)
	}
	return tags
}
