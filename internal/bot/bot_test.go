package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"clubsync/internal/assistant"
	"clubsync/internal/chat"
	"clubsync/internal/history"
	"clubsync/internal/models"
	"clubsync/internal/notion"
	"clubsync/internal/resolver"
)

type fakeMessenger struct {
	mu      sync.Mutex
	replies []chat.Message
	profile chat.Profile
}

func (f *fakeMessenger) Reply(_ context.Context, _ string, messages ...chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, messages...)
	return nil
}

func (f *fakeMessenger) Push(_ context.Context, _ string, _ ...chat.Message) error { return nil }

func (f *fakeMessenger) GetProfile(_ context.Context, _ string) (chat.Profile, error) {
	return f.profile, nil
}

func (f *fakeMessenger) lastReply(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		t.Fatal("no reply sent")
	}
	return f.replies[len(f.replies)-1].Text
}

type createdPage struct {
	databaseID string
	properties map[string]notion.Property
}

type fakeBotStore struct {
	queryPages []notion.Page
	pagesByID  map[string]*notion.Page
	blocks     []notion.Block
	database   *notion.Database

	lastQuery notion.Query
	updated   map[string]notion.PagePatch
	created   []createdPage
	dbUpdates map[string]map[string]notion.DatabaseProperty
}

func newFakeBotStore() *fakeBotStore {
	return &fakeBotStore{
		pagesByID: map[string]*notion.Page{},
		updated:   map[string]notion.PagePatch{},
		dbUpdates: map[string]map[string]notion.DatabaseProperty{},
	}
}

func (f *fakeBotStore) QueryDatabase(_ context.Context, _ string, q notion.Query) ([]notion.Page, error) {
	f.lastQuery = q
	return f.queryPages, nil
}

func (f *fakeBotStore) RetrievePage(_ context.Context, pageID string) (*notion.Page, error) {
	page, ok := f.pagesByID[pageID]
	if !ok {
		return nil, fmt.Errorf("no page %s", pageID)
	}
	return page, nil
}

func (f *fakeBotStore) UpdatePage(_ context.Context, pageID string, patch notion.PagePatch) (*notion.Page, error) {
	f.updated[pageID] = patch
	return &notion.Page{ID: pageID}, nil
}

func (f *fakeBotStore) CreatePage(_ context.Context, databaseID string, properties map[string]notion.Property) (*notion.Page, error) {
	f.created = append(f.created, createdPage{databaseID: databaseID, properties: properties})
	return &notion.Page{ID: "new-page"}, nil
}

func (f *fakeBotStore) ListBlockChildren(_ context.Context, _ string) ([]notion.Block, error) {
	return f.blocks, nil
}

func (f *fakeBotStore) RetrieveDatabase(_ context.Context, _ string) (*notion.Database, error) {
	return f.database, nil
}

func (f *fakeBotStore) UpdateDatabase(_ context.Context, databaseID string, properties map[string]notion.DatabaseProperty) error {
	f.dbUpdates[databaseID] = properties
	return nil
}

type fakeIdentity struct {
	byChatID map[string]models.Member
	byName   map[string]models.Member
}

func (f *fakeIdentity) MemberByChatID(_ context.Context, chatID string) (models.Member, error) {
	m, ok := f.byChatID[chatID]
	if !ok {
		return models.Member{}, resolver.ErrNotLinked
	}
	return m, nil
}

func (f *fakeIdentity) MemberByName(_ context.Context, name string) (models.Member, error) {
	m, ok := f.byName[name]
	if !ok {
		return models.Member{}, resolver.ErrNotLinked
	}
	return m, nil
}

type statusCall struct {
	eventID  string
	memberID string
	status   models.MembershipStatus
}

type fakeLedger struct {
	calls []statusCall
	event models.Event
}

func (f *fakeLedger) SetStatus(_ context.Context, eventID, memberID string, status models.MembershipStatus) (models.Event, error) {
	f.calls = append(f.calls, statusCall{eventID: eventID, memberID: memberID, status: status})
	return f.event, nil
}

type fakePushSync struct{ count int }

func (f *fakePushSync) Push(_ context.Context) (int, error) { return f.count, nil }

type fakeWatcher struct{}

func (f *fakeWatcher) Watch(_ context.Context, _ string) (*calendar.Channel, error) {
	return &calendar.Channel{Id: "chan-1"}, nil
}

type fakeAssistant struct {
	keywords []string
	answer   string
}

func (f *fakeAssistant) ExtractKeywords(_ context.Context, _ string) ([]string, error) {
	return f.keywords, nil
}

func (f *fakeAssistant) Converse(_ context.Context, _ assistant.ConversationInput) (string, error) {
	return f.answer, nil
}

type fakeHistory struct {
	exchanges []history.Exchange
	appended  []string
	facts     map[string]string
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{facts: map[string]string{}}
}

func (f *fakeHistory) AppendExchange(_ context.Context, _, userText, _ string) error {
	f.appended = append(f.appended, userText)
	return nil
}

func (f *fakeHistory) RecentExchanges(_ context.Context, _ string, _ int) ([]history.Exchange, error) {
	return f.exchanges, nil
}

func (f *fakeHistory) SaveFact(_ context.Context, _, name, value string) error {
	f.facts[name] = value
	return nil
}

func (f *fakeHistory) Facts(_ context.Context, _ string) ([]string, error) { return nil, nil }

type botFixture struct {
	bot    *Bot
	msgr   *fakeMessenger
	store  *fakeBotStore
	ids    *fakeIdentity
	ledger *fakeLedger
	hist   *fakeHistory
}

func newFixture() *botFixture {
	msgr := &fakeMessenger{profile: chat.Profile{UserID: "U1", DisplayName: "Aki"}}
	store := newFakeBotStore()
	ids := &fakeIdentity{byChatID: map[string]models.Member{}, byName: map[string]models.Member{}}
	led := &fakeLedger{event: models.Event{ID: "e1", Title: "Picnic"}}
	hist := newFakeHistory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := New(msgr, store, ids, led, &fakePushSync{count: 3}, &fakeWatcher{}, &fakeAssistant{answer: "hi there"}, hist, logger, Options{
		EventsDB:       "events-db",
		MembersDB:      "members-db",
		EventSchema:    notion.DefaultEventSchema(),
		MemberSchema:   notion.DefaultMemberSchema(),
		AdminSeparator: "---admin---",
		WatchAddress:   "https://example.com/webhook/calendar",
		Now:            func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
	return &botFixture{bot: b, msgr: msgr, store: store, ids: ids, ledger: led, hist: hist}
}

func textEvent(userID, text string) chat.WebhookEvent {
	return chat.WebhookEvent{
		Type:       "message",
		ReplyToken: "rt",
		Source:     chat.WebhookSource{UserID: userID},
		Message:    &chat.WebhookMessage{Type: "text", Text: text},
	}
}

func postbackEvent(userID, data string) chat.WebhookEvent {
	return chat.WebhookEvent{
		Type:       "postback",
		ReplyToken: "rt",
		Source:     chat.WebhookSource{UserID: userID},
		Postback:   &chat.Postback{Data: data},
	}
}

func TestJoinPostbackCallsLedger(t *testing.T) {
	fx := newFixture()
	fx.ids.byChatID["U1"] = models.Member{ID: "m1", Name: "Aki"}

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		postbackEvent("U1", "action=join&eventId=e1"),
	})

	if len(fx.ledger.calls) != 1 {
		t.Fatalf("ledger calls = %d", len(fx.ledger.calls))
	}
	call := fx.ledger.calls[0]
	if call.eventID != "e1" || call.memberID != "m1" || call.status != models.StatusJoined {
		t.Errorf("call = %+v", call)
	}
	if got := fx.msgr.lastReply(t); got != "You're in: Picnic" {
		t.Errorf("reply = %q", got)
	}
}

func TestDeclinePostbackMapsStatus(t *testing.T) {
	fx := newFixture()
	fx.ids.byChatID["U1"] = models.Member{ID: "m1"}

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		postbackEvent("U1", "action=decline&eventId=e1"),
	})

	if fx.ledger.calls[0].status != models.StatusDeclined {
		t.Errorf("status = %s", fx.ledger.calls[0].status)
	}
}

func TestUnlinkedUserGetsLinkFirstReply(t *testing.T) {
	fx := newFixture()

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		postbackEvent("U9", "action=join&eventId=e1"),
	})

	if len(fx.ledger.calls) != 0 {
		t.Error("unlinked user must not reach the ledger")
	}
	if got := fx.msgr.lastReply(t); got != replyLinkFirst {
		t.Errorf("reply = %q", got)
	}
}

func TestLinkCommandBindsChatID(t *testing.T) {
	fx := newFixture()
	fx.ids.byName["Aki"] = models.Member{ID: "m1", Name: "Aki"}

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "link Aki"),
	})

	patch, ok := fx.store.updated["m1"]
	if !ok {
		t.Fatal("member record not updated")
	}
	schema := notion.DefaultMemberSchema()
	if got := patch.Properties[schema.ChatID].PlainText(); got != "U1" {
		t.Errorf("bound chat id = %q", got)
	}
	if fx.hist.facts["display name"] != "Aki" {
		t.Errorf("facts = %v", fx.hist.facts)
	}
	if got := fx.msgr.lastReply(t); got != "Linked to member record: Aki" {
		t.Errorf("reply = %q", got)
	}
}

func TestEventsCommandListsUpcoming(t *testing.T) {
	fx := newFixture()
	schema := notion.DefaultEventSchema()
	fx.store.queryPages = []notion.Page{{
		ID: "e1",
		Properties: map[string]notion.Property{
			schema.Title: notion.Title("Picnic"),
			schema.Date:  notion.Date("2025-05-02", ""),
		},
	}}

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "events"),
	})

	want := "Upcoming events:\n- Picnic (2025-05-02)"
	if got := fx.msgr.lastReply(t); got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestSyncCalendarCommand(t *testing.T) {
	fx := newFixture()

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "sync-calendar"),
	})

	if got := fx.msgr.lastReply(t); got != "Calendar sync finished: 3 events processed." {
		t.Errorf("reply = %q", got)
	}
}

func TestFallbackConversationPersistsExchange(t *testing.T) {
	fx := newFixture()

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "when is the next festival?"),
	})

	if got := fx.msgr.lastReply(t); got != "hi there" {
		t.Errorf("reply = %q", got)
	}
	if len(fx.hist.appended) != 1 || fx.hist.appended[0] != "when is the next festival?" {
		t.Errorf("appended = %v", fx.hist.appended)
	}
}

func TestDetailTruncatesAtAdminSeparator(t *testing.T) {
	fx := newFixture()
	schema := notion.DefaultEventSchema()
	page := notion.Page{
		ID: "e1",
		Properties: map[string]notion.Property{
			schema.Title: notion.Title("Picnic"),
		},
	}
	fx.store.pagesByID["e1"] = &page
	fx.store.blocks = []notion.Block{
		{Type: "paragraph", Paragraph: &notion.BlockText{RichText: []notion.RichText{{PlainText: "Bring snacks."}}}},
		{Type: "paragraph", Paragraph: &notion.BlockText{RichText: []notion.RichText{{PlainText: "---admin--- budget notes"}}}},
		{Type: "paragraph", Paragraph: &notion.BlockText{RichText: []notion.RichText{{PlainText: "secret"}}}},
	}

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		postbackEvent("U1", "action=detail&eventId=e1"),
	})

	got := fx.msgr.lastReply(t)
	if want := "Picnic\nJoined: nobody yet\n\nBring snacks."; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestLinkWithoutNameRepliesUsage(t *testing.T) {
	fx := newFixture()

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "link"),
	})

	if got := fx.msgr.lastReply(t); got != replyLinkUsage {
		t.Errorf("reply = %q", got)
	}
	if len(fx.hist.appended) != 0 {
		t.Error("bare command must not reach the assistant")
	}
}

func TestProfileCommandRendersMemberRecord(t *testing.T) {
	fx := newFixture()
	fx.ids.byChatID["U1"] = models.Member{
		ID:         "m1",
		Name:       "Aki",
		Role:       "staff",
		School:     "Meiwa University",
		Grade:      "B2",
		Department: "Economics",
		Interests:  []string{"futsal", "board games"},
		Intro:      "Mostly here for the snacks.",
	}

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "profile"),
	})

	want := "Aki (staff)\n" +
		"School: Meiwa University B2\n" +
		"Department: Economics\n" +
		"Interests: futsal, board games\n" +
		"Intro: Mostly here for the snacks."
	if got := fx.msgr.lastReply(t); got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestProfileCommandPromptsUnregisteredUser(t *testing.T) {
	fx := newFixture()

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U9", "profile"),
	})

	got := fx.msgr.lastReply(t)
	if !strings.Contains(got, "register") || !strings.Contains(got, "link") {
		t.Errorf("reply = %q, want both ways in mentioned", got)
	}
}

func TestRegisterCreatesMemberFromChatProfile(t *testing.T) {
	fx := newFixture()

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "register"),
	})

	if len(fx.store.created) != 1 {
		t.Fatalf("created pages = %d", len(fx.store.created))
	}
	rec := fx.store.created[0]
	if rec.databaseID != "members-db" {
		t.Errorf("databaseID = %q", rec.databaseID)
	}
	schema := notion.DefaultMemberSchema()
	if got := rec.properties[schema.Name].PlainText(); got != "Aki" {
		t.Errorf("name = %q", got)
	}
	if got := rec.properties[schema.ChatID].PlainText(); got != "U1" {
		t.Errorf("chat id = %q", got)
	}
	if got := fx.msgr.lastReply(t); !strings.HasPrefix(got, "Registered as Aki") {
		t.Errorf("reply = %q", got)
	}
}

func TestRegisterRefusesLinkedUser(t *testing.T) {
	fx := newFixture()
	fx.ids.byChatID["U1"] = models.Member{ID: "m1", Name: "Aki"}

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "register"),
	})

	if len(fx.store.created) != 0 {
		t.Error("linked user must not get a second record")
	}
	if got := fx.msgr.lastReply(t); got != "You're already registered as Aki." {
		t.Errorf("reply = %q", got)
	}
}

func TestToggleTagAddsAndRemoves(t *testing.T) {
	fx := newFixture()
	fx.ids.byChatID["U1"] = models.Member{ID: "m1", Interests: []string{"futsal"}}
	schema := notion.DefaultMemberSchema()

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "tag cooking"),
	})
	if got := fx.msgr.lastReply(t); got != "Added tag: cooking" {
		t.Errorf("reply = %q", got)
	}
	patch := fx.store.updated["m1"]
	if got := patch.Properties[schema.Interests].SelectNames(); len(got) != 2 || got[1] != "cooking" {
		t.Errorf("interests = %v", got)
	}

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		postbackEvent("U1", "action=toggle_tag&tag=futsal"),
	})
	if got := fx.msgr.lastReply(t); got != "Removed tag: futsal" {
		t.Errorf("reply = %q", got)
	}
	patch = fx.store.updated["m1"]
	if got := patch.Properties[schema.Interests].SelectNames(); len(got) != 0 {
		t.Errorf("interests after removal = %v", got)
	}
}

func TestCategorySearchMatchesCategoryOrTag(t *testing.T) {
	fx := newFixture()
	schema := notion.DefaultEventSchema()
	fx.store.queryPages = []notion.Page{{
		ID: "e1",
		Properties: map[string]notion.Property{
			schema.Title: notion.Title("Autumn workshop"),
			schema.Date:  notion.Date("2025-04-20", ""),
		},
	}}

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		postbackEvent("U1", "action=search_cat&category=workshop"),
	})

	wantFilter := notion.Or(
		notion.SelectEquals(schema.Category, "workshop"),
		notion.MultiSelectContains(schema.Tags, "workshop"),
	)
	if !reflect.DeepEqual(fx.store.lastQuery.Filter, wantFilter) {
		t.Errorf("filter = %#v, want %#v", fx.store.lastQuery.Filter, wantFilter)
	}
	if fx.store.lastQuery.PageSize != categoryListLimit {
		t.Errorf("page size = %d", fx.store.lastQuery.PageSize)
	}
	wantSorts := []notion.Sort{notion.Descending(schema.Date)}
	if !reflect.DeepEqual(fx.store.lastQuery.Sorts, wantSorts) {
		t.Errorf("sorts = %v", fx.store.lastQuery.Sorts)
	}
	want := "Recent workshop events:\n- Autumn workshop (2025-04-20)"
	if got := fx.msgr.lastReply(t); got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestProfileUpdateWritesLinkedRecord(t *testing.T) {
	fx := newFixture()
	fx.ids.byChatID["U1"] = models.Member{ID: "m1", Name: "Aki"}
	schema := notion.DefaultMemberSchema()

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "update\nname: Aki\nschool: Meiwa University\ngrade: B3\nintro: New year, same snacks.\nStill organizing the picnic."),
	})

	patch, ok := fx.store.updated["m1"]
	if !ok {
		t.Fatal("member record not updated")
	}
	if got := patch.Properties[schema.School].PlainText(); got != "Meiwa University" {
		t.Errorf("school = %q", got)
	}
	if p := patch.Properties[schema.Grade]; p.Select == nil || p.Select.Name != "B3" {
		t.Errorf("grade = %+v", p)
	}
	wantIntro := "New year, same snacks.\nStill organizing the picnic."
	if got := patch.Properties[schema.Intro].PlainText(); got != wantIntro {
		t.Errorf("intro = %q", got)
	}
	if got := fx.msgr.lastReply(t); got != "Profile saved: Aki" {
		t.Errorf("reply = %q", got)
	}
}

func TestProfileUpdateCreatesRecordWhenUnknown(t *testing.T) {
	fx := newFixture()

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "update\nname: Aki"),
	})

	if len(fx.store.created) != 1 {
		t.Fatalf("created pages = %d", len(fx.store.created))
	}
	schema := notion.DefaultMemberSchema()
	props := fx.store.created[0].properties
	if got := props[schema.Name].PlainText(); got != "Aki" {
		t.Errorf("name = %q", got)
	}
	if got := props[schema.ChatID].PlainText(); got != "U1" {
		t.Errorf("chat id = %q", got)
	}
	if _, ok := props[schema.Grade]; ok {
		t.Error("omitted grade must not be written")
	}
}

func TestProfileUpdateWithoutNameRepliesUsage(t *testing.T) {
	fx := newFixture()

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "update\nschool: Meiwa University"),
	})

	if len(fx.store.created) != 0 || len(fx.store.updated) != 0 {
		t.Error("form without a name must not write")
	}
	if got := fx.msgr.lastReply(t); !strings.Contains(got, "name:") {
		t.Errorf("reply = %q", got)
	}
}

func TestHandleEventsProcessesWholeBatch(t *testing.T) {
	fx := newFixture()
	fx.ids.byChatID["U1"] = models.Member{ID: "m1"}

	fx.bot.HandleEvents(context.Background(), []chat.WebhookEvent{
		textEvent("U1", "sync-calendar"),
		postbackEvent("U1", "action=join&eventId=e1"),
		{Type: "follow"}, // ignored
	})

	fx.msgr.mu.Lock()
	defer fx.msgr.mu.Unlock()
	if len(fx.msgr.replies) != 2 {
		t.Errorf("replies = %d, want both handled events answered", len(fx.msgr.replies))
	}
}
