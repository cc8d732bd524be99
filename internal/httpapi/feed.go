package httpapi

import (
	"net/http"
	"time"

	"github.com/emersion/go-ical"

	"clubsync/internal/models"
	"clubsync/internal/notion"
)

// handleFeed renders upcoming events as an iCalendar feed, so members
// can subscribe from their own calendar apps without touching the
// record store.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	today := s.opts.Now().In(s.opts.Timezone).Format("2006-01-02")
	pages, err := s.store.QueryDatabase(r.Context(), s.opts.EventsDB, notion.Query{
		Filter: notion.DateOnOrAfter(s.opts.EventSchema.Date, today),
		Sorts:  []notion.Sort{notion.Ascending(s.opts.EventSchema.Date)},
	})
	if err != nil {
		s.logger.Error("Failed to query events for feed", "error", err)
		writeError(w, http.StatusInternalServerError, "feed unavailable")
		return
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//clubsync//EN")

	for _, page := range pages {
		event, err := s.opts.EventSchema.Event(page)
		if err != nil {
			s.logger.Error("Failed to decode event for feed, skipping", "pageID", page.ID, "error", err)
			continue
		}
		if event.Date == nil {
			continue
		}
		cal.Children = append(cal.Children, toVEvent(event, s.opts.Now().UTC()))
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		s.logger.Error("Failed to encode feed", "error", err)
	}
}

func toVEvent(event models.Event, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, feedUID(event))
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	if event.URL != "" {
		ve.Props.SetText(ical.PropDescription, event.URL)
	}

	start, end := event.Date.CalendarSpan()
	if event.Date.AllDay {
		ve.Props.Add(dateProp(ical.PropDateTimeStart, start))
		ve.Props.Add(dateProp(ical.PropDateTimeEnd, end))
	} else {
		ve.Props.SetDateTime(ical.PropDateTimeStart, start)
		ve.Props.SetDateTime(ical.PropDateTimeEnd, end)
	}
	return ve
}

// feedUID prefers the calendar-side id so subscribers who also see the
// mirrored calendar dedupe the two sources.
func feedUID(event models.Event) string {
	if event.CalendarID != "" {
		return event.CalendarID
	}
	return event.ID
}

func dateProp(name string, t time.Time) *ical.Prop {
	p := ical.NewProp(name)
	p.SetValueType(ical.ValueDate)
	p.Value = t.Format("20060102")
	return p
}
