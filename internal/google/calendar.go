// Package google wraps the Google Calendar API surface the sync engine
// consumes: bounded-recency listing, insert, overwrite update, and push
// channel registration.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	googleauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// CalendarClient provides a client for one calendar, authenticated as a
// service account.
type CalendarClient struct {
	service    *calendar.Service
	calendarID string
	logger     *slog.Logger
}

// NewClient creates a calendar client from a service-account key file.
func NewClient(ctx context.Context, logger *slog.Logger, calendarID, credentialsFile string) (*CalendarClient, error) {
	key, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read calendar credentials %s: %w", credentialsFile, err)
	}
	config, err := googleauth.JWTConfigFromJSON(key, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parse calendar credentials: %w", err)
	}
	service, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &CalendarClient{service: service, calendarID: calendarID, logger: logger}, nil
}

// ListUpdatedSince fetches events modified at or after since, including
// cancelled ones so deletions can be consumed as tombstones.
func (c *CalendarClient) ListUpdatedSince(ctx context.Context, since time.Time) ([]*calendar.Event, error) {
	c.logger.Debug("Listing updated calendar events", "since", since)
	events, err := c.service.Events.List(c.calendarID).
		UpdatedMin(since.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		ShowDeleted(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	return events.Items, nil
}

// Insert creates a calendar event and returns it with its assigned id.
func (c *CalendarClient) Insert(ctx context.Context, body *calendar.Event) (*calendar.Event, error) {
	created, err := c.service.Events.Insert(c.calendarID, body).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}
	return created, nil
}

// Update overwrites an existing calendar event.
func (c *CalendarClient) Update(ctx context.Context, eventID string, body *calendar.Event) (*calendar.Event, error) {
	updated, err := c.service.Events.Update(c.calendarID, eventID, body).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("update calendar event %s: %w", eventID, err)
	}
	return updated, nil
}

// Watch registers a push-notification channel delivering change
// notifications to address. Channel renewal is handled externally.
func (c *CalendarClient) Watch(ctx context.Context, address string) (*calendar.Channel, error) {
	channel, err := c.service.Events.Watch(c.calendarID, &calendar.Channel{
		Id:      "clubsync-" + uuid.New().String(),
		Type:    "web_hook",
		Address: address,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("register calendar watch: %w", err)
	}
	c.logger.Info("Registered calendar watch channel", "channelID", channel.Id, "expiration", channel.Expiration)
	return channel, nil
}
