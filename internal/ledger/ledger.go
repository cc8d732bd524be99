// Package ledger maintains the three membership sets kept per event.
// The invariant: a member id appears in at most one of joined, maybe,
// declined.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"clubsync/internal/models"
	"clubsync/internal/notion"
)

// Store is the slice of the record store the ledger needs.
type Store interface {
	RetrievePage(ctx context.Context, pageID string) (*notion.Page, error)
	UpdatePage(ctx context.Context, pageID string, patch notion.PagePatch) (*notion.Page, error)
}

// Ledger applies membership-status changes to event records.
type Ledger struct {
	store  Store
	logger *slog.Logger
	schema notion.EventSchema
}

// New creates a Ledger.
func New(store Store, logger *slog.Logger, schema notion.EventSchema) *Ledger {
	return &Ledger{store: store, logger: logger, schema: schema}
}

// SetStatus moves memberID into the set named by status on the given
// event. The member is first removed from all three sets, so the call
// converges from any prior state, including "not present anywhere".
// All three sets are written back in a single update; a failed lookup
// abandons the operation with no partial write. Returns the event for
// reply rendering.
func (l *Ledger) SetStatus(ctx context.Context, eventID, memberID string, status models.MembershipStatus) (models.Event, error) {
	if !status.Valid() {
		return models.Event{}, fmt.Errorf("unknown membership status %q", status)
	}

	page, err := l.store.RetrievePage(ctx, eventID)
	if err != nil {
		return models.Event{}, fmt.Errorf("retrieve event %s: %w", eventID, err)
	}
	event, err := l.schema.Event(*page)
	if err != nil {
		return models.Event{}, err
	}

	joined := without(event.Joined, memberID)
	maybe := without(event.Maybe, memberID)
	declined := without(event.Declined, memberID)
	switch status {
	case models.StatusJoined:
		joined = append(joined, memberID)
	case models.StatusMaybe:
		maybe = append(maybe, memberID)
	case models.StatusDeclined:
		declined = append(declined, memberID)
	}

	if _, err := l.store.UpdatePage(ctx, eventID, notion.PagePatch{
		Properties: l.schema.MembershipProperties(joined, maybe, declined),
	}); err != nil {
		return models.Event{}, fmt.Errorf("update membership on %s: %w", eventID, err)
	}

	l.logger.Info("Membership updated", "eventID", eventID, "memberID", memberID, "status", status)
	event.Joined, event.Maybe, event.Declined = joined, maybe, declined
	return event, nil
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
