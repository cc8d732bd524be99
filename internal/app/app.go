// Package app wires configuration into the service's components. The
// wiring happens at most once per process; every entry point shares the
// same clients.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clubsync/internal/assistant"
	"clubsync/internal/bot"
	"clubsync/internal/chat"
	"clubsync/internal/config"
	"clubsync/internal/google"
	"clubsync/internal/history"
	"clubsync/internal/httpapi"
	"clubsync/internal/ledger"
	"clubsync/internal/notifier"
	"clubsync/internal/notion"
	"clubsync/internal/resolver"
	"clubsync/internal/syncer"
)

// App holds the wired components.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Timezone *time.Location

	Store    *notion.Client
	Calendar *google.CalendarClient
	Chat     *chat.Client
	History  *history.Store

	Resolver *resolver.Resolver
	Syncer   *syncer.Syncer
	Ledger   *ledger.Ledger
	Notifier *notifier.Notifier
	Bot      *bot.Bot
	Server   *httpapi.Server
}

var (
	loadOnce sync.Once
	loaded   *App
	loadErr  error
)

// Load builds the component graph, or returns the one already built.
func Load(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	loadOnce.Do(func() {
		loaded, loadErr = build(ctx, cfg, logger)
	})
	return loaded, loadErr
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	tz, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	eventSchema := notion.DefaultEventSchema()
	if cfg.EventTitleProp != "" {
		eventSchema.Title = cfg.EventTitleProp
	}
	if cfg.EventDateProp != "" {
		eventSchema.Date = cfg.EventDateProp
	}
	if cfg.EventCalendarIDProp != "" {
		eventSchema.CalendarID = cfg.EventCalendarIDProp
	}
	memberSchema := notion.DefaultMemberSchema()
	if cfg.MemberChatIDProp != "" {
		memberSchema.ChatID = cfg.MemberChatIDProp
	}

	store := notion.NewClient(notion.ClientOptions{Token: cfg.NotionToken})

	cal, err := google.NewClient(ctx, logger, cfg.GoogleCalendarID, cfg.GoogleCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("create calendar client: %w", err)
	}

	chatClient := chat.NewClient(logger, cfg.ChatChannelToken, "")

	hist, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		return nil, err
	}

	ids := resolver.New(store, logger, cfg.NotionEventsDB, cfg.NotionMembersDB, eventSchema, memberSchema)

	engine := syncer.New(logger, store, cal, ids, syncer.Options{
		EventsDB:      cfg.NotionEventsDB,
		Schema:        eventSchema,
		Timezone:      tz,
		Window:        cfg.SyncWindow,
		SummaryPrefix: cfg.SummaryPrefix,
	})

	led := ledger.New(store, logger, eventSchema)

	assist := assistant.NewGenerativeClient(assistant.GenerativeConfig{
		APIKey: cfg.AssistantAPIKey,
		Model:  cfg.AssistantModel,
	})

	notif := notifier.New(store, chatClient, logger, notifier.Options{
		EventsDB:     cfg.NotionEventsDB,
		MembersDB:    cfg.NotionMembersDB,
		EventSchema:  eventSchema,
		MemberSchema: memberSchema,
		Timezone:     tz,
	})

	b := bot.New(chatClient, store, ids, led, engine, cal, assist, hist, logger, bot.Options{
		EventsDB:       cfg.NotionEventsDB,
		MembersDB:      cfg.NotionMembersDB,
		EventSchema:    eventSchema,
		MemberSchema:   memberSchema,
		Timezone:       tz,
		AdminSeparator: cfg.AdminSeparator,
		WatchAddress:   cfg.WatchAddress(),
	})

	server := httpapi.NewServer(logger, engine, b, store, httpapi.Options{
		ChannelSecret: cfg.ChatChannelSecret,
		EventsDB:      cfg.NotionEventsDB,
		EventSchema:   eventSchema,
		Timezone:      tz,
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Timezone: tz,
		Store:    store,
		Calendar: cal,
		Chat:     chatClient,
		History:  hist,
		Resolver: ids,
		Syncer:   engine,
		Ledger:   led,
		Notifier: notif,
		Bot:      b,
		Server:   server,
	}, nil
}

// Close releases resources held by the component graph.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	return a.History.Close()
}
