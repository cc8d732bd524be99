// Package httpapi exposes the service's HTTP surface: the calendar
// push webhook, the messaging webhook, an ICS feed, and a health
// endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"clubsync/internal/chat"
	"clubsync/internal/notion"
)

const (
	maxWebhookBody = 1 << 20
	pullTimeout    = 2 * time.Minute
)

// PullSyncer runs one calendar-to-records reconciliation pass.
type PullSyncer interface {
	Pull(ctx context.Context, receivedAt time.Time) error
}

// Dispatcher processes a batch of inbound chat events.
type Dispatcher interface {
	HandleEvents(ctx context.Context, events []chat.WebhookEvent)
}

// EventSource is the slice of the record store the feed reads.
type EventSource interface {
	QueryDatabase(ctx context.Context, databaseID string, q notion.Query) ([]notion.Page, error)
}

// Options configures a Server.
type Options struct {
	ChannelSecret string
	EventsDB      string
	EventSchema   notion.EventSchema
	Timezone      *time.Location
	Now           func() time.Time
}

// Server is the HTTP handler for all inbound traffic.
type Server struct {
	logger *slog.Logger
	puller PullSyncer
	bot    Dispatcher
	store  EventSource
	opts   Options
	mux    *http.ServeMux
}

// NewServer wires the routes.
func NewServer(logger *slog.Logger, puller PullSyncer, bot Dispatcher, store EventSource, opts Options) *Server {
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		logger: logger,
		puller: puller,
		bot:    bot,
		store:  store,
		opts:   opts,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /webhook/calendar", s.handleCalendarWebhook)
	s.mux.HandleFunc("POST /webhook/messages", s.handleMessagesWebhook)
	s.mux.HandleFunc("GET /feed.ics", s.handleFeed)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCalendarWebhook acknowledges calendar change notifications.
// The notification body is empty; the resource state header says
// whether this is the registration handshake or an actual change.
// Reconciliation runs in the background after the 200 is sent, and its
// failures are only logged.
func (s *Server) handleCalendarWebhook(w http.ResponseWriter, r *http.Request) {
	state := r.Header.Get("X-Goog-Resource-State")
	channelID := r.Header.Get("X-Goog-Channel-Id")
	receivedAt := s.opts.Now()
	w.WriteHeader(http.StatusOK)

	switch state {
	case "sync":
		s.logger.Info("Calendar watch channel confirmed", "channelID", channelID)
	case "exists":
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), pullTimeout)
			defer cancel()
			if err := s.puller.Pull(ctx, receivedAt); err != nil {
				s.logger.Error("Pull sync failed", "channelID", channelID, "error", err)
			}
		}()
	default:
		s.logger.Debug("Ignoring calendar notification", "state", state, "channelID", channelID)
	}
}

// handleMessagesWebhook verifies the platform signature, then hands the
// event batch to the dispatcher. The dispatcher finishes before the
// response; its per-event failures never surface here, so the platform
// sees 200 and does not redeliver.
func (s *Server) handleMessagesWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if !chat.ValidateSignature(s.opts.ChannelSecret, body, r.Header.Get("X-Line-Signature")) {
		s.logger.Error("Rejected messaging webhook with bad signature")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	var payload chat.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	s.bot.HandleEvents(r.Context(), payload.Events)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
