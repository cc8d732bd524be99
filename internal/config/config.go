// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries every tunable the service reads. Values come from the
// environment; main loads a .env file first so local runs need no
// exported variables.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	Timezone   string `env:"TIMEZONE" envDefault:"Asia/Tokyo"`

	NotionToken     string `env:"NOTION_TOKEN,required"`
	NotionEventsDB  string `env:"NOTION_EVENTS_DB,required"`
	NotionMembersDB string `env:"NOTION_MEMBERS_DB,required"`

	GoogleCalendarID      string `env:"GOOGLE_CALENDAR_ID,required"`
	GoogleCredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE" envDefault:"calendar-key.json"`

	ChatChannelToken  string `env:"CHAT_CHANNEL_TOKEN"`
	ChatChannelSecret string `env:"CHAT_CHANNEL_SECRET"`

	AssistantAPIKey string `env:"ASSISTANT_API_KEY"`
	AssistantModel  string `env:"ASSISTANT_MODEL" envDefault:"gemini-2.0-flash"`

	HistoryDBPath string `env:"HISTORY_DB_PATH" envDefault:"clubsync.db"`

	// WebhookBaseURL is the public base URL notifications are delivered
	// to; the calendar watch address is derived from it.
	WebhookBaseURL string `env:"WEBHOOK_BASE_URL"`

	SyncWindow    time.Duration `env:"SYNC_WINDOW" envDefault:"5m"`
	SummaryPrefix string        `env:"SUMMARY_PREFIX" envDefault:"[club]"`

	// AdminSeparator marks where the member-facing part of an event's
	// detail body ends.
	AdminSeparator string `env:"ADMIN_SEPARATOR" envDefault:"---admin---"`

	// Property-name overrides for deployments that renamed fields.
	EventTitleProp      string `env:"EVENT_TITLE_PROP"`
	EventDateProp       string `env:"EVENT_DATE_PROP"`
	EventCalendarIDProp string `env:"EVENT_CALENDAR_ID_PROP"`
	MemberChatIDProp    string `env:"MEMBER_CHAT_ID_PROP"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// WatchAddress is the URL handed to the calendar when registering a
// push channel, empty when no public base URL is configured.
func (c Config) WatchAddress() string {
	if c.WebhookBaseURL == "" {
		return ""
	}
	return c.WebhookBaseURL + "/webhook/calendar"
}
