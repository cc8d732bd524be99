package syncer

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"clubsync/internal/models"
	"clubsync/internal/notion"
)

// Push mirrors every event record dated today or later into the
// calendar. Records that already carry a calendar id are overwritten in
// place; the rest are inserted and the assigned id is written back.
// Single-record failures are logged and the batch continues; the
// returned count covers successfully processed records only.
func (s *Syncer) Push(ctx context.Context) (int, error) {
	today := s.now().In(s.tz).Format("2006-01-02")
	pages, err := s.store.QueryDatabase(ctx, s.eventsDB, notion.Query{
		Filter: notion.DateOnOrAfter(s.schema.Date, today),
	})
	if err != nil {
		return 0, fmt.Errorf("query upcoming events: %w", err)
	}

	count := 0
	for _, page := range pages {
		event, err := s.schema.Event(page)
		if err != nil {
			s.logger.Error("Skipping malformed event record", "pageID", page.ID, "error", err)
			continue
		}
		if event.Date == nil {
			// Not schedulable yet; not an error.
			continue
		}
		if err := s.pushOne(ctx, event); err != nil {
			s.logger.Error("Failed to sync event to calendar", "title", event.Title, "error", err)
			continue
		}
		count++
	}
	s.logger.Info("Push sync finished", "eligible", len(pages), "synced", count)
	return count, nil
}

func (s *Syncer) pushOne(ctx context.Context, event models.Event) error {
	body := s.calendarBody(event)

	if event.CalendarID != "" {
		// Overwrite, not merge: the record store is the source of truth
		// in this direction.
		if _, err := s.cal.Update(ctx, event.CalendarID, body); err != nil {
			return err
		}
		return nil
	}

	created, err := s.cal.Insert(ctx, body)
	if err != nil {
		return err
	}
	if _, err := s.store.UpdatePage(ctx, event.ID, notion.PagePatch{
		Properties: s.schema.CalendarIDProperty(created.Id),
	}); err != nil {
		return fmt.Errorf("store calendar id %s: %w", created.Id, err)
	}
	return nil
}

// calendarBody shapes an event record into the calendar's event body.
func (s *Syncer) calendarBody(event models.Event) *calendar.Event {
	summary := event.Title
	if s.summaryPrefix != "" {
		summary = s.summaryPrefix + " " + event.Title
	}
	body := &calendar.Event{
		Summary:     summary,
		Description: "Event record:\n" + event.URL,
	}
	body.Start, body.End = s.eventTimes(event.Date)
	return body
}

// eventTimes translates a stored date range into calendar start/end
// blocks. Timed events default to one hour; all-day events use the
// calendar's exclusive-end convention, one day past the stored end (or
// the start when no end is stored).
func (s *Syncer) eventTimes(r *models.DateRange) (*calendar.EventDateTime, *calendar.EventDateTime) {
	start, end := r.CalendarSpan()
	if r.AllDay {
		return &calendar.EventDateTime{Date: start.Format("2006-01-02")},
			&calendar.EventDateTime{Date: end.Format("2006-01-02")}
	}
	return &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: s.tz.String()},
		&calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: s.tz.String()}
}
