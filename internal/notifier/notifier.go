// Package notifier pushes event announcements to members: new events
// matched against interest tags, and day-before reminders to everyone
// who joined.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clubsync/internal/chat"
	"clubsync/internal/models"
	"clubsync/internal/notion"
)

// Store is the slice of the record store the notifier reads from.
type Store interface {
	QueryDatabase(ctx context.Context, databaseID string, q notion.Query) ([]notion.Page, error)
	RetrievePage(ctx context.Context, pageID string) (*notion.Page, error)
}

// Pusher sends messages to a chat user outside a reply context.
type Pusher interface {
	Push(ctx context.Context, userID string, messages ...chat.Message) error
}

// Options configures a Notifier.
type Options struct {
	EventsDB     string
	MembersDB    string
	EventSchema  notion.EventSchema
	MemberSchema notion.MemberSchema
	Timezone     *time.Location
	Now          func() time.Time
}

// Notifier fans event announcements out to chat users. Push failures
// are logged per member and never abort the batch.
type Notifier struct {
	store  Store
	pusher Pusher
	logger *slog.Logger
	opts   Options
}

// New creates a Notifier.
func New(store Store, pusher Pusher, logger *slog.Logger, opts Options) *Notifier {
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Notifier{store: store, pusher: pusher, logger: logger, opts: opts}
}

// NotifyNewEvents announces events created today to every linked member
// whose interests overlap the event's tags. Returns the number of
// messages pushed.
func (n *Notifier) NotifyNewEvents(ctx context.Context) (int, error) {
	dayStart := n.dayStart(0)
	pages, err := n.store.QueryDatabase(ctx, n.opts.EventsDB, notion.Query{
		Filter: notion.CreatedOnOrAfter(dayStart.Format(time.RFC3339)),
	})
	if err != nil {
		return 0, fmt.Errorf("query new events: %w", err)
	}
	if len(pages) == 0 {
		return 0, nil
	}

	members, err := n.linkedMembers(ctx)
	if err != nil {
		return 0, err
	}

	pushed := 0
	for _, page := range pages {
		event, err := n.opts.EventSchema.Event(page)
		if err != nil {
			n.logger.Error("Failed to decode event, skipping", "pageID", page.ID, "error", err)
			continue
		}
		tags := event.MatchTags()
		for _, member := range members {
			if !member.InterestedIn(tags) {
				continue
			}
			msg := chat.TextMessage(newEventText(event))
			if err := n.pusher.Push(ctx, member.ChatID, msg); err != nil {
				n.logger.Error("Failed to push new-event notice", "memberID", member.ID, "error", err)
				continue
			}
			pushed++
		}
	}
	n.logger.Info("New-event notifications sent", "events", len(pages), "pushed", pushed)
	return pushed, nil
}

// RemindTomorrow reminds everyone who joined an event happening
// tomorrow. Returns the number of messages pushed.
func (n *Notifier) RemindTomorrow(ctx context.Context) (int, error) {
	tomorrow := n.dayStart(1).Format("2006-01-02")
	pages, err := n.store.QueryDatabase(ctx, n.opts.EventsDB, notion.Query{
		Filter: notion.DateEquals(n.opts.EventSchema.Date, tomorrow),
	})
	if err != nil {
		return 0, fmt.Errorf("query tomorrow's events: %w", err)
	}

	pushed := 0
	for _, page := range pages {
		event, err := n.opts.EventSchema.Event(page)
		if err != nil {
			n.logger.Error("Failed to decode event, skipping", "pageID", page.ID, "error", err)
			continue
		}
		for _, memberID := range event.Joined {
			member, err := n.memberByID(ctx, memberID)
			if err != nil {
				n.logger.Error("Failed to load member, skipping", "memberID", memberID, "error", err)
				continue
			}
			if !member.Linked() {
				continue
			}
			msg := chat.TextMessage(reminderText(event))
			if err := n.pusher.Push(ctx, member.ChatID, msg); err != nil {
				n.logger.Error("Failed to push reminder", "memberID", memberID, "error", err)
				continue
			}
			pushed++
		}
	}
	n.logger.Info("Reminders sent", "events", len(pages), "pushed", pushed)
	return pushed, nil
}

// linkedMembers loads every member with a chat identity bound.
func (n *Notifier) linkedMembers(ctx context.Context) ([]models.Member, error) {
	pages, err := n.store.QueryDatabase(ctx, n.opts.MembersDB, notion.Query{})
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	members := make([]models.Member, 0, len(pages))
	for _, page := range pages {
		member := n.opts.MemberSchema.Member(page)
		if member.Linked() {
			members = append(members, member)
		}
	}
	return members, nil
}

func (n *Notifier) memberByID(ctx context.Context, memberID string) (models.Member, error) {
	page, err := n.store.RetrievePage(ctx, memberID)
	if err != nil {
		return models.Member{}, err
	}
	return n.opts.MemberSchema.Member(*page), nil
}

// dayStart returns midnight in the configured timezone, offset by days.
func (n *Notifier) dayStart(days int) time.Time {
	now := n.opts.Now().In(n.opts.Timezone)
	return time.Date(now.Year(), now.Month(), now.Day()+days, 0, 0, 0, 0, n.opts.Timezone)
}

func newEventText(event models.Event) string {
	text := "New event: " + event.Title
	if event.Date != nil {
		text += "\nDate: " + event.Date.StartString()
	}
	if event.URL != "" {
		text += "\n" + event.URL
	}
	return text
}

func reminderText(event models.Event) string {
	text := "Reminder: " + event.Title + " is tomorrow."
	if event.Date != nil {
		text += "\nDate: " + event.Date.StartString()
	}
	if event.URL != "" {
		text += "\n" + event.URL
	}
	return text
}
