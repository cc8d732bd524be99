// Package syncer reconciles event records with their calendar
// counterparts in both directions. The calendar id stored on each event
// record is the idempotency key: push and pull both upsert against it,
// so reruns and duplicate notifications converge instead of duplicating.
package syncer

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/api/calendar/v3"

	"clubsync/internal/models"
	"clubsync/internal/notion"
)

// RecordStore is the slice of the record store the syncer needs.
type RecordStore interface {
	QueryDatabase(ctx context.Context, databaseID string, q notion.Query) ([]notion.Page, error)
	UpdatePage(ctx context.Context, pageID string, patch notion.PagePatch) (*notion.Page, error)
	CreatePage(ctx context.Context, databaseID string, properties map[string]notion.Property) (*notion.Page, error)
	ArchivePage(ctx context.Context, pageID string) error
}

// Calendar is the slice of the calendar API the syncer needs.
type Calendar interface {
	ListUpdatedSince(ctx context.Context, since time.Time) ([]*calendar.Event, error)
	Insert(ctx context.Context, body *calendar.Event) (*calendar.Event, error)
	Update(ctx context.Context, eventID string, body *calendar.Event) (*calendar.Event, error)
}

// EventLookup resolves a calendar id to its event record.
type EventLookup interface {
	EventByCalendarID(ctx context.Context, calendarID string) (models.Event, error)
}

// Options configures a Syncer.
type Options struct {
	EventsDB      string
	Schema        notion.EventSchema
	Timezone      *time.Location
	Window        time.Duration // pull-sync recency window
	SummaryPrefix string        // tag prepended to calendar summaries
	Now           func() time.Time
}

// Syncer orchestrates push and pull synchronization for one calendar
// and one events database.
type Syncer struct {
	logger        *slog.Logger
	store         RecordStore
	cal           Calendar
	lookup        EventLookup
	eventsDB      string
	schema        notion.EventSchema
	tz            *time.Location
	window        time.Duration
	summaryPrefix string
	now           func() time.Time
}

// New creates a Syncer.
func New(logger *slog.Logger, store RecordStore, cal Calendar, lookup EventLookup, opts Options) *Syncer {
	tz := opts.Timezone
	if tz == nil {
		tz = time.UTC
	}
	window := opts.Window
	if window <= 0 {
		window = 5 * time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Syncer{
		logger:        logger,
		store:         store,
		cal:           cal,
		lookup:        lookup,
		eventsDB:      opts.EventsDB,
		schema:        opts.Schema,
		tz:            tz,
		window:        window,
		summaryPrefix: opts.SummaryPrefix,
		now:           now,
	}
}
