// Package bot dispatches inbound chat events to commands, postback
// actions, and the assistant fallback. It owns the reply wording; the
// packages it calls into stay chat-agnostic.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/calendar/v3"

	"clubsync/internal/assistant"
	"clubsync/internal/chat"
	"clubsync/internal/history"
	"clubsync/internal/models"
	"clubsync/internal/notion"
	"clubsync/internal/resolver"
)

const (
	defaultHistoryLimit = 10
	detailRuneLimit     = 500
	introRuneLimit      = 50
	replyLinkFirst      = "Please link your member record first: send \"link <your name>\"."
	replyFailed         = "Something went wrong. Please try again later."
	replyLinkUsage      = "Please give a name, e.g. \"link Takeda\"."
	replyIntroUsage     = "Please give the new text, e.g. \"intro Hi, I mostly show up for futsal\"."
	replyTagUsage       = "Please give a tag name, e.g. \"tag futsal\"."
	replyCategoryUsage  = "Please give a category name, e.g. \"category workshop\"."
)

// Messenger delivers outbound messages and profile lookups.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, messages ...chat.Message) error
	Push(ctx context.Context, userID string, messages ...chat.Message) error
	GetProfile(ctx context.Context, userID string) (chat.Profile, error)
}

// Store is the slice of the record store the bot reads and writes.
type Store interface {
	QueryDatabase(ctx context.Context, databaseID string, q notion.Query) ([]notion.Page, error)
	RetrievePage(ctx context.Context, pageID string) (*notion.Page, error)
	UpdatePage(ctx context.Context, pageID string, patch notion.PagePatch) (*notion.Page, error)
	CreatePage(ctx context.Context, databaseID string, properties map[string]notion.Property) (*notion.Page, error)
	ListBlockChildren(ctx context.Context, blockID string) ([]notion.Block, error)
	RetrieveDatabase(ctx context.Context, databaseID string) (*notion.Database, error)
	UpdateDatabase(ctx context.Context, databaseID string, properties map[string]notion.DatabaseProperty) error
}

// Identity resolves chat users and display names to member records.
type Identity interface {
	MemberByChatID(ctx context.Context, chatID string) (models.Member, error)
	MemberByName(ctx context.Context, name string) (models.Member, error)
}

// Ledger applies membership-status changes.
type Ledger interface {
	SetStatus(ctx context.Context, eventID, memberID string, status models.MembershipStatus) (models.Event, error)
}

// PushSync runs one records-to-calendar pass.
type PushSync interface {
	Push(ctx context.Context) (int, error)
}

// Watcher registers the calendar push channel.
type Watcher interface {
	Watch(ctx context.Context, address string) (*calendar.Channel, error)
}

// HistoryStore persists conversation exchanges and profile facts.
type HistoryStore interface {
	AppendExchange(ctx context.Context, userID, userText, assistantText string) error
	RecentExchanges(ctx context.Context, userID string, limit int) ([]history.Exchange, error)
	SaveFact(ctx context.Context, userID, name, value string) error
	Facts(ctx context.Context, userID string) ([]string, error)
}

// Options configures a Bot.
type Options struct {
	EventsDB     string
	MembersDB    string
	EventSchema  notion.EventSchema
	MemberSchema notion.MemberSchema
	Timezone     *time.Location

	// AdminSeparator marks where the member-facing portion of an event's
	// detail body ends. Empty disables truncation at a marker.
	AdminSeparator string

	// WatchAddress is the webhook URL handed to the calendar when
	// registering a push channel.
	WatchAddress string

	HistoryLimit int
	Now          func() time.Time
}

// Bot routes inbound chat events.
type Bot struct {
	msgr     Messenger
	store    Store
	ids      Identity
	ledger   Ledger
	pushSync PushSync
	watcher  Watcher
	assist   assistant.Assistant
	hist     HistoryStore
	logger   *slog.Logger
	opts     Options
}

// New creates a Bot.
func New(msgr Messenger, store Store, ids Identity, ledger Ledger, pushSync PushSync, watcher Watcher, assist assistant.Assistant, hist HistoryStore, logger *slog.Logger, opts Options) *Bot {
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bot{
		msgr:     msgr,
		store:    store,
		ids:      ids,
		ledger:   ledger,
		pushSync: pushSync,
		watcher:  watcher,
		assist:   assist,
		hist:     hist,
		logger:   logger,
		opts:     opts,
	}
}

// HandleEvents processes a webhook batch. Events are independent, so
// they run concurrently; the call returns after every event finished.
// Per-event failures are logged, never returned.
func (b *Bot) HandleEvents(ctx context.Context, events []chat.WebhookEvent) {
	var wg sync.WaitGroup
	for _, ev := range events {
		wg.Add(1)
		go func(ev chat.WebhookEvent) {
			defer wg.Done()
			b.handleEvent(ctx, ev)
		}(ev)
	}
	wg.Wait()
}

func (b *Bot) handleEvent(ctx context.Context, ev chat.WebhookEvent) {
	switch {
	case ev.Type == "message" && ev.Message != nil && ev.Message.Type == "text":
		b.handleText(ctx, ev)
	case ev.Type == "postback" && ev.Postback != nil:
		b.handlePostback(ctx, ev)
	default:
		b.logger.Debug("Ignoring chat event", "type", ev.Type)
	}
}

func (b *Bot) handleText(ctx context.Context, ev chat.WebhookEvent) {
	text := strings.TrimSpace(ev.Message.Text)
	if text == "" {
		return
	}
	userID := ev.Source.UserID

	var reply string
	var err error
	command, arg := splitCommand(text)
	switch command {
	case "events":
		reply, err = b.listUpcoming(ctx)
	case "schedule":
		reply, err = b.listJoined(ctx, userID, true)
	case "history":
		reply, err = b.listJoined(ctx, userID, false)
	case "link":
		if arg == "" {
			reply = replyLinkUsage
			break
		}
		reply, err = b.linkMember(ctx, userID, arg)
	case "intro":
		if arg == "" {
			reply = replyIntroUsage
			break
		}
		reply, err = b.updateIntro(ctx, userID, arg)
	case "profile":
		reply, err = b.myPage(ctx, userID)
	case "register":
		reply, err = b.registerMember(ctx, userID)
	case "tag":
		if arg == "" {
			reply = replyTagUsage
			break
		}
		reply, err = b.toggleTag(ctx, userID, arg)
	case "category":
		if arg == "" {
			reply = replyCategoryUsage
			break
		}
		reply, err = b.searchCategory(ctx, arg)
	case "update":
		reply, err = b.updateProfile(ctx, userID, arg)
	case "sync-calendar":
		reply, err = b.runPushSync(ctx)
	case "sync-tags":
		reply, err = b.syncTagOptions(ctx)
	case "start-watch":
		reply, err = b.startWatch(ctx)
	default:
		reply, err = b.converse(ctx, userID, text)
	}

	switch {
	case errors.Is(err, resolver.ErrNotLinked):
		reply = replyLinkFirst
	case err != nil:
		b.logger.Error("Chat command failed", "command", command, "userID", userID, "error", err)
		reply = replyFailed
	}
	if err := b.msgr.Reply(ctx, ev.ReplyToken, chat.TextMessage(reply)); err != nil {
		b.logger.Error("Failed to send reply", "userID", userID, "error", err)
	}
}

func (b *Bot) handlePostback(ctx context.Context, ev chat.WebhookEvent) {
	values, err := url.ParseQuery(ev.Postback.Data)
	if err != nil {
		b.logger.Error("Malformed postback data", "data", ev.Postback.Data, "error", err)
		return
	}
	action := values.Get("action")
	eventID := values.Get("eventId")
	userID := ev.Source.UserID

	var reply string
	switch action {
	case "join", "maybe", "decline":
		reply, err = b.setStatus(ctx, userID, eventID, action)
	case "detail":
		reply, err = b.eventDetail(ctx, eventID)
	case "toggle_tag":
		if tag := values.Get("tag"); tag == "" {
			reply = replyTagUsage
		} else {
			reply, err = b.toggleTag(ctx, userID, tag)
		}
	case "search_cat":
		if category := values.Get("category"); category == "" {
			reply = replyCategoryUsage
		} else {
			reply, err = b.searchCategory(ctx, category)
		}
	default:
		b.logger.Debug("Ignoring postback action", "action", action)
		return
	}

	switch {
	case errors.Is(err, resolver.ErrNotLinked):
		reply = replyLinkFirst
	case err != nil:
		b.logger.Error("Postback action failed", "action", action, "eventID", eventID, "error", err)
		reply = replyFailed
	}
	if err := b.msgr.Reply(ctx, ev.ReplyToken, chat.TextMessage(reply)); err != nil {
		b.logger.Error("Failed to send reply", "userID", userID, "error", err)
	}
}

// splitCommand separates the command word from its argument. Commands
// are matched case-insensitively; anything else falls through to the
// assistant. The argument keeps its inner newlines so the profile form
// arrives intact.
func splitCommand(text string) (string, string) {
	command, arg := text, ""
	if idx := strings.IndexAny(text, " \n"); idx >= 0 {
		command = text[:idx]
		arg = strings.TrimSpace(text[idx+1:])
	}
	command = strings.ToLower(command)
	switch command {
	case "events", "schedule", "history", "sync-calendar", "sync-tags", "start-watch", "profile", "register":
		if arg != "" {
			return "", text
		}
		return command, ""
	case "link", "intro", "tag", "category", "update":
		return command, arg
	}
	return "", text
}

// today returns the current date string in the configured timezone.
func (b *Bot) today() string {
	return b.opts.Now().In(b.opts.Timezone).Format("2006-01-02")
}
