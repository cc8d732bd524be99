// Package resolver performs the identity lookups the rest of the
// service shares: chat identity to member record, calendar id to event
// record. Lookups hit the store every time; staleness is bounded to zero
// at the cost of a round trip per resolution.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clubsync/internal/models"
	"clubsync/internal/notion"
)

// ErrNotLinked means no member record carries the given chat identity.
// Callers turn this into the "please link first" reply.
var ErrNotLinked = errors.New("chat identity is not linked to a member")

// ErrNoEvent means no event record carries the given calendar id.
var ErrNoEvent = errors.New("no event record for calendar id")

// Querier is the slice of the record store the resolver needs.
type Querier interface {
	QueryDatabase(ctx context.Context, databaseID string, q notion.Query) ([]notion.Page, error)
}

// Resolver resolves external identities against the record store.
type Resolver struct {
	store        Querier
	logger       *slog.Logger
	eventsDB     string
	membersDB    string
	eventSchema  notion.EventSchema
	memberSchema notion.MemberSchema
}

// New builds a resolver over the given databases.
func New(store Querier, logger *slog.Logger, eventsDB, membersDB string, eventSchema notion.EventSchema, memberSchema notion.MemberSchema) *Resolver {
	return &Resolver{
		store:        store,
		logger:       logger,
		eventsDB:     eventsDB,
		membersDB:    membersDB,
		eventSchema:  eventSchema,
		memberSchema: memberSchema,
	}
}

// MemberByChatID resolves a messaging-platform identity to a member
// record. Returns ErrNotLinked when no record matches; first match wins
// when more than one does.
func (r *Resolver) MemberByChatID(ctx context.Context, chatID string) (models.Member, error) {
	pages, err := r.store.QueryDatabase(ctx, r.membersDB, notion.Query{
		Filter: notion.TextEquals(r.memberSchema.ChatID, chatID),
	})
	if err != nil {
		return models.Member{}, fmt.Errorf("query member by chat id: %w", err)
	}
	if len(pages) == 0 {
		return models.Member{}, ErrNotLinked
	}
	notion.LogMultiMatch(r.logger, "member by chat id", pages)
	return r.memberSchema.Member(pages[0]), nil
}

// MemberByName resolves a display name to a member record (used by the
// link command). Returns ErrNotLinked when no record matches.
func (r *Resolver) MemberByName(ctx context.Context, name string) (models.Member, error) {
	pages, err := r.store.QueryDatabase(ctx, r.membersDB, notion.Query{
		Filter: notion.TitleEquals(r.memberSchema.Name, name),
	})
	if err != nil {
		return models.Member{}, fmt.Errorf("query member by name: %w", err)
	}
	if len(pages) == 0 {
		return models.Member{}, ErrNotLinked
	}
	notion.LogMultiMatch(r.logger, "member by name", pages)
	return r.memberSchema.Member(pages[0]), nil
}

// EventByCalendarID resolves a calendar event id to the event record
// whose cross-reference matches. Returns ErrNoEvent when none does.
func (r *Resolver) EventByCalendarID(ctx context.Context, calendarID string) (models.Event, error) {
	pages, err := r.store.QueryDatabase(ctx, r.eventsDB, notion.Query{
		Filter: notion.TextEquals(r.eventSchema.CalendarID, calendarID),
	})
	if err != nil {
		return models.Event{}, fmt.Errorf("query event by calendar id: %w", err)
	}
	if len(pages) == 0 {
		return models.Event{}, ErrNoEvent
	}
	notion.LogMultiMatch(r.logger, "event by calendar id", pages)
	return r.eventSchema.Event(pages[0])
}
