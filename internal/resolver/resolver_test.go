package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"clubsync/internal/notion"
)

type fakeQuerier struct {
	pages []notion.Page
	err   error
	last  notion.Query
}

func (f *fakeQuerier) QueryDatabase(_ context.Context, _ string, q notion.Query) ([]notion.Page, error) {
	f.last = q
	return f.pages, f.err
}

func newTestResolver(q *fakeQuerier) *Resolver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(q, logger, "events-db", "members-db", notion.DefaultEventSchema(), notion.DefaultMemberSchema())
}

func memberPage(id, name, chatID string) notion.Page {
	schema := notion.DefaultMemberSchema()
	return notion.Page{ID: id, Properties: map[string]notion.Property{
		schema.Name:   notion.Title(name),
		schema.ChatID: notion.Text(chatID),
	}}
}

func TestMemberByChatIDNotLinked(t *testing.T) {
	r := newTestResolver(&fakeQuerier{})
	_, err := r.MemberByChatID(context.Background(), "U123")
	if !errors.Is(err, ErrNotLinked) {
		t.Fatalf("err = %v, want ErrNotLinked", err)
	}
}

func TestMemberByChatIDFirstMatchWins(t *testing.T) {
	q := &fakeQuerier{pages: []notion.Page{
		memberPage("m1", "Aki", "U123"),
		memberPage("m2", "Aki duplicate", "U123"),
	}}
	r := newTestResolver(q)

	member, err := r.MemberByChatID(context.Background(), "U123")
	if err != nil {
		t.Fatalf("MemberByChatID: %v", err)
	}
	if member.ID != "m1" {
		t.Errorf("member.ID = %s, want the first match", member.ID)
	}
}

func TestMemberByNameResolves(t *testing.T) {
	q := &fakeQuerier{pages: []notion.Page{memberPage("m1", "Aki", "")}}
	r := newTestResolver(q)

	member, err := r.MemberByName(context.Background(), "Aki")
	if err != nil {
		t.Fatalf("MemberByName: %v", err)
	}
	if member.Name != "Aki" || member.Linked() {
		t.Errorf("member = %+v", member)
	}
}

func TestEventByCalendarIDNoEvent(t *testing.T) {
	r := newTestResolver(&fakeQuerier{})
	_, err := r.EventByCalendarID(context.Background(), "cal-1")
	if !errors.Is(err, ErrNoEvent) {
		t.Fatalf("err = %v, want ErrNoEvent", err)
	}
}

func TestEventByCalendarIDResolves(t *testing.T) {
	schema := notion.DefaultEventSchema()
	q := &fakeQuerier{pages: []notion.Page{{
		ID: "page-1",
		Properties: map[string]notion.Property{
			schema.Title:      notion.Title("Picnic"),
			schema.CalendarID: notion.Text("cal-1"),
		},
	}}}
	r := newTestResolver(q)

	event, err := r.EventByCalendarID(context.Background(), "cal-1")
	if err != nil {
		t.Fatalf("EventByCalendarID: %v", err)
	}
	if event.ID != "page-1" || event.CalendarID != "cal-1" {
		t.Errorf("event = %+v", event)
	}
}

func TestQueryFailureIsSurfaced(t *testing.T) {
	q := &fakeQuerier{err: errors.New("boom")}
	r := newTestResolver(q)

	if _, err := r.MemberByChatID(context.Background(), "U123"); err == nil || errors.Is(err, ErrNotLinked) {
		t.Fatalf("err = %v, want wrapped store failure", err)
	}
}
