package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"clubsync/internal/models"
	"clubsync/internal/notion"
	"clubsync/internal/resolver"
)

const statusCancelled = "cancelled"

// Pull reconciles calendar changes back into the record store. The
// change notification carries no payload, so this lists calendar events
// modified within the recency window ending at receivedAt and upserts
// each one. Reprocessing the same window is safe: upserts are keyed on
// the stored calendar id and cancelled events only archive once.
func (s *Syncer) Pull(ctx context.Context, receivedAt time.Time) error {
	since := receivedAt.Add(-s.window)
	items, err := s.cal.ListUpdatedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("list changed calendar events: %w", err)
	}
	s.logger.Info("Pull sync started", "since", since, "changed", len(items))

	for _, item := range items {
		if item.Id == "" {
			continue
		}
		if err := s.pullOne(ctx, item); err != nil {
			s.logger.Error("Failed to reconcile calendar event", "calendarID", item.Id, "error", err)
		}
	}
	return nil
}

func (s *Syncer) pullOne(ctx context.Context, item *calendar.Event) error {
	existing, err := s.lookup.EventByCalendarID(ctx, item.Id)
	known := true
	if err != nil {
		if !errors.Is(err, resolver.ErrNoEvent) {
			return err
		}
		known = false
	}

	if item.Status == statusCancelled {
		// Tombstone: archive the counterpart if there is one. Archived
		// records drop out of queries, so a replayed tombstone finds no
		// match and is a no-op.
		if !known {
			return nil
		}
		if err := s.store.ArchivePage(ctx, existing.ID); err != nil {
			return fmt.Errorf("archive event record %s: %w", existing.ID, err)
		}
		s.logger.Info("Archived event record for cancelled calendar event", "pageID", existing.ID, "calendarID", item.Id)
		return nil
	}

	title := item.Summary
	if title == "" {
		title = models.UntitledEvent
	}
	props := s.schema.UpsertProperties(title, rangeFromCalendar(item), item.Id)

	if known {
		if _, err := s.store.UpdatePage(ctx, existing.ID, notion.PagePatch{Properties: props}); err != nil {
			return fmt.Errorf("update event record %s: %w", existing.ID, err)
		}
		s.logger.Info("Updated event record from calendar", "pageID", existing.ID, "title", title)
		return nil
	}

	created, err := s.store.CreatePage(ctx, s.eventsDB, props)
	if err != nil {
		return fmt.Errorf("create event record: %w", err)
	}
	s.logger.Info("Created event record from calendar", "pageID", created.ID, "title", title)
	return nil
}

// rangeFromCalendar converts a calendar event's start/end into the
// stored date-range shape. All-day events carry only their start date;
// timed events keep an explicit end when the calendar has one.
func rangeFromCalendar(item *calendar.Event) *models.DateRange {
	if item.Start == nil {
		return nil
	}
	if item.Start.DateTime != "" {
		end := ""
		if item.End != nil {
			end = item.End.DateTime
		}
		r, err := models.ParseDateRange(item.Start.DateTime, end)
		if err != nil {
			return nil
		}
		return r
	}
	if item.Start.Date != "" {
		r, err := models.ParseDateRange(item.Start.Date, "")
		if err != nil {
			return nil
		}
		return r
	}
	return nil
}
