package models

// Member is a member record from the record store. Only identity
// stability matters to the sync core; the profile fields feed chat
// replies and notifications.
type Member struct {
	ID     string
	Name   string
	ChatID string // messaging-platform identity, empty until linked

	Interests []string
	Intro     string

	School     string
	Department string
	Grade      string
	Role       string
}

// Linked reports whether the member has a messaging identity bound.
func (m Member) Linked() bool {
	return m.ChatID != ""
}

// InterestedIn reports whether any of the member's interest tags appears
// in tags.
func (m Member) InterestedIn(tags []string) bool {
	for _, mine := range m.Interests {
		for _, t := range tags {
			if mine == t {
				return true
			}
		}
	}
	return false
}
