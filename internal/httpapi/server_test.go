package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clubsync/internal/chat"
	"clubsync/internal/notion"
)

type fakePuller struct {
	err    error
	called chan time.Time
}

func newFakePuller(err error) *fakePuller {
	return &fakePuller{err: err, called: make(chan time.Time, 1)}
}

func (f *fakePuller) Pull(_ context.Context, receivedAt time.Time) error {
	f.called <- receivedAt
	return f.err
}

type fakeDispatcher struct {
	events []chat.WebhookEvent
}

func (f *fakeDispatcher) HandleEvents(_ context.Context, events []chat.WebhookEvent) {
	f.events = append(f.events, events...)
}

type fakeEventSource struct {
	pages []notion.Page
	err   error
}

func (f *fakeEventSource) QueryDatabase(_ context.Context, _ string, _ notion.Query) ([]notion.Page, error) {
	return f.pages, f.err
}

func newTestServer(puller PullSyncer, bot Dispatcher, store EventSource) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(logger, puller, bot, store, Options{
		ChannelSecret: "secret",
		EventsDB:      "events-db",
		EventSchema:   notion.DefaultEventSchema(),
		Now:           func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
}

func TestHealth(t *testing.T) {
	srv := newTestServer(newFakePuller(nil), &fakeDispatcher{}, &fakeEventSource{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCalendarWebhookSyncStateOnlyAcks(t *testing.T) {
	puller := newFakePuller(nil)
	srv := newTestServer(puller, &fakeDispatcher{}, &fakeEventSource{})

	req := httptest.NewRequest(http.MethodPost, "/webhook/calendar", nil)
	req.Header.Set("X-Goog-Resource-State", "sync")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	select {
	case <-puller.called:
		t.Error("handshake must not trigger a pull")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCalendarWebhookExistsTriggersPull(t *testing.T) {
	puller := newFakePuller(nil)
	srv := newTestServer(puller, &fakeDispatcher{}, &fakeEventSource{})

	req := httptest.NewRequest(http.MethodPost, "/webhook/calendar", nil)
	req.Header.Set("X-Goog-Resource-State", "exists")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	select {
	case receivedAt := <-puller.called:
		want := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
		if !receivedAt.Equal(want) {
			t.Errorf("receivedAt = %v", receivedAt)
		}
	case <-time.After(time.Second):
		t.Fatal("pull was never triggered")
	}
}

func TestCalendarWebhookAcksEvenWhenPullFails(t *testing.T) {
	puller := newFakePuller(errors.New("boom"))
	srv := newTestServer(puller, &fakeDispatcher{}, &fakeEventSource{})

	req := httptest.NewRequest(http.MethodPost, "/webhook/calendar", nil)
	req.Header.Set("X-Goog-Resource-State", "exists")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, ack must not depend on reconciliation", rec.Code)
	}
	select {
	case <-puller.called:
	case <-time.After(time.Second):
		t.Fatal("pull was never triggered")
	}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestMessagesWebhookRejectsBadSignature(t *testing.T) {
	bot := &fakeDispatcher{}
	srv := newTestServer(newFakePuller(nil), bot, &fakeEventSource{})

	body := `{"events":[{"type":"message"}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/messages", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", "bogus")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
	if len(bot.events) != 0 {
		t.Error("unverified payload must not be dispatched")
	}
}

func TestMessagesWebhookDispatchesVerifiedBatch(t *testing.T) {
	bot := &fakeDispatcher{}
	srv := newTestServer(newFakePuller(nil), bot, &fakeEventSource{})

	body := []byte(`{"events":[{"type":"message","replyToken":"rt","source":{"userId":"U1"},"message":{"type":"text","text":"events"}}]}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/messages", strings.NewReader(string(body)))
	req.Header.Set("X-Line-Signature", signBody("secret", body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if len(bot.events) != 1 || bot.events[0].Message.Text != "events" {
		t.Errorf("dispatched = %+v", bot.events)
	}
}

func TestFeedRendersUpcomingEvents(t *testing.T) {
	schema := notion.DefaultEventSchema()
	store := &fakeEventSource{pages: []notion.Page{
		{
			ID: "page-1",
			Properties: map[string]notion.Property{
				schema.Title:      notion.Title("Picnic"),
				schema.Date:       notion.Date("2025-05-02", ""),
				schema.CalendarID: notion.Text("cal-1"),
			},
		},
		{
			// No date: excluded from the feed.
			ID: "page-2",
			Properties: map[string]notion.Property{
				schema.Title: notion.Title("Undated"),
			},
		},
	}}
	srv := newTestServer(newFakePuller(nil), &fakeDispatcher{}, store)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed.ics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	out := rec.Body.String()
	if !strings.Contains(out, "BEGIN:VEVENT") {
		t.Fatalf("no VEVENT in output:\n%s", out)
	}
	if !strings.Contains(out, "UID:cal-1") {
		t.Error("feed should prefer the calendar id as UID")
	}
	if !strings.Contains(out, "DTSTART;VALUE=DATE:20250502") {
		t.Errorf("all-day DTSTART missing:\n%s", out)
	}
	if !strings.Contains(out, "DTEND;VALUE=DATE:20250503") {
		t.Errorf("exclusive all-day DTEND missing:\n%s", out)
	}
	if strings.Contains(out, "Undated") {
		t.Error("undated event must be excluded")
	}
}
