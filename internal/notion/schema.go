package notion

// The store addresses fields by display-name strings. These schemas pin
// a closed set of logical field names to the physical property names so
// nothing outside this package handles raw property strings. Deployments
// that renamed properties override the defaults from configuration.

// EventSchema maps the logical event fields to property names in the
// events database.
type EventSchema struct {
	Title      string
	Date       string
	Category   string
	Tags       string
	Joined     string
	Maybe      string
	Declined   string
	CalendarID string
	Detail     string
}

// DefaultEventSchema returns the property names a fresh events database
// is created with.
func DefaultEventSchema() EventSchema {
	return EventSchema{
		Title:      "Name",
		Date:       "Date",
		Category:   "Category",
		Tags:       "Tags",
		Joined:     "Joined",
		Maybe:      "Maybe",
		Declined:   "Declined",
		CalendarID: "Calendar ID",
		Detail:     "Details",
	}
}

// MemberSchema maps the logical member fields to property names in the
// members database.
type MemberSchema struct {
	Name       string
	ChatID     string
	Interests  string
	Intro      string
	School     string
	Department string
	Grade      string
	Role       string
}

// DefaultMemberSchema returns the property names a fresh members
// database is created with.
func DefaultMemberSchema() MemberSchema {
	return MemberSchema{
		Name:       "Name",
		ChatID:     "Chat User ID",
		Interests:  "Interests",
		Intro:      "Intro",
		School:     "School",
		Department: "Department",
		Grade:      "Grade",
		Role:       "Role",
	}
}
