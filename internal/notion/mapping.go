package notion

import (
	"fmt"
	"log/slog"

	"clubsync/internal/models"
)

// Event decodes a page into the domain event model. A malformed stored
// date is reported rather than silently dropped; a missing date is
// legitimate (the event is simply not schedulable yet).
func (s EventSchema) Event(p Page) (models.Event, error) {
	e := models.Event{
		ID:         p.ID,
		URL:        p.URL,
		Title:      p.Properties[s.Title].PlainText(),
		Category:   selectName(p.Properties[s.Category]),
		Tags:       p.Properties[s.Tags].SelectNames(),
		Joined:     p.Properties[s.Joined].RelationIDs(),
		Maybe:      p.Properties[s.Maybe].RelationIDs(),
		Declined:   p.Properties[s.Declined].RelationIDs(),
		CalendarID: p.Properties[s.CalendarID].PlainText(),
	}
	if e.Title == "" {
		e.Title = models.UntitledEvent
	}
	if d := p.Properties[s.Date].Date; d != nil {
		r, err := models.ParseDateRange(d.Start, d.End)
		if err != nil {
			return models.Event{}, fmt.Errorf("event %s: %w", p.ID, err)
		}
		e.Date = r
	}
	return e, nil
}

// Member decodes a page into the domain member model.
func (s MemberSchema) Member(p Page) models.Member {
	return models.Member{
		ID:         p.ID,
		Name:       p.Properties[s.Name].PlainText(),
		ChatID:     p.Properties[s.ChatID].PlainText(),
		Interests:  p.Properties[s.Interests].SelectNames(),
		Intro:      p.Properties[s.Intro].PlainText(),
		School:     p.Properties[s.School].PlainText(),
		Department: p.Properties[s.Department].PlainText(),
		Grade:      selectName(p.Properties[s.Grade]),
		Role:       selectName(p.Properties[s.Role]),
	}
}

// UpsertProperties builds the property set pull-sync writes when
// mirroring a calendar event into the events database.
func (s EventSchema) UpsertProperties(title string, date *models.DateRange, calendarID string) map[string]Property {
	props := map[string]Property{
		s.Title:      Title(title),
		s.CalendarID: Text(calendarID),
	}
	if date != nil {
		props[s.Date] = Date(date.StartString(), date.EndString())
	}
	return props
}

// MembershipProperties builds the single-update property set carrying
// all three membership relations.
func (s EventSchema) MembershipProperties(joined, maybe, declined []string) map[string]Property {
	return map[string]Property{
		s.Joined:   Relations(joined),
		s.Maybe:    Relations(maybe),
		s.Declined: Relations(declined),
	}
}

// CalendarIDProperty builds the cross-reference write-back after a
// calendar insert.
func (s EventSchema) CalendarIDProperty(calendarID string) map[string]Property {
	return map[string]Property{s.CalendarID: Text(calendarID)}
}

// ChatIDProperty builds the write binding a chat identity to a member
// record.
func (s MemberSchema) ChatIDProperty(chatID string) map[string]Property {
	return map[string]Property{s.ChatID: Text(chatID)}
}

// IntroProperty builds the write updating a member's one-liner.
func (s MemberSchema) IntroProperty(text string) map[string]Property {
	return map[string]Property{s.Intro: Text(text)}
}

// InterestsProperty builds the write replacing a member's interest tags.
func (s MemberSchema) InterestsProperty(names []string) map[string]Property {
	return map[string]Property{s.Interests: MultiSelect(names)}
}

// RegistrationProperties builds the property set for a member record
// created from a chat profile: display name, bound chat identity, and
// an empty tag set to pick from later.
func (s MemberSchema) RegistrationProperties(name, chatID string) map[string]Property {
	return map[string]Property{
		s.Name:      Title(name),
		s.ChatID:    Text(chatID),
		s.Interests: MultiSelect(nil),
	}
}

// ProfileProperties builds the upsert write for a submitted profile
// form. The grade select is only written when a value was given, so an
// omitted field never clears a configured option.
func (s MemberSchema) ProfileProperties(name, school, department, grade, intro, chatID string) map[string]Property {
	props := map[string]Property{
		s.Name:       Title(name),
		s.School:     Text(school),
		s.Department: Text(department),
		s.Intro:      Text(intro),
		s.ChatID:     Text(chatID),
	}
	if grade != "" {
		props[s.Grade] = Select(grade)
	}
	return props
}

func selectName(p Property) string {
	if p.Select != nil {
		return p.Select.Name
	}
	if len(p.MultiSelect) > 0 {
		return p.MultiSelect[0].Name
	}
	return ""
}

// LogMultiMatch records a query that was expected to match at most one
// page. Duplicate matches are a data-integrity precondition violation;
// first match wins and the rest are only surfaced for operators.
func LogMultiMatch(logger *slog.Logger, what string, pages []Page) {
	if logger == nil || len(pages) <= 1 {
		return
	}
	logger.Debug("expected at most one match", "lookup", what, "matches", len(pages))
}
