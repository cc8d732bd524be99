package bot

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"clubsync/internal/models"
	"clubsync/internal/notion"
)

const listLimit = 10

// listUpcoming renders the next upcoming events across the club.
func (b *Bot) listUpcoming(ctx context.Context) (string, error) {
	pages, err := b.store.QueryDatabase(ctx, b.opts.EventsDB, notion.Query{
		Filter:   notion.DateOnOrAfter(b.opts.EventSchema.Date, b.today()),
		Sorts:    []notion.Sort{notion.Ascending(b.opts.EventSchema.Date)},
		PageSize: listLimit,
	})
	if err != nil {
		return "", fmt.Errorf("query upcoming events: %w", err)
	}
	if len(pages) == 0 {
		return "No upcoming events.", nil
	}
	return "Upcoming events:\n" + b.renderEventList(pages), nil
}

// listJoined renders the requesting member's joined events, upcoming or
// past depending on future.
func (b *Bot) listJoined(ctx context.Context, userID string, future bool) (string, error) {
	member, err := b.ids.MemberByChatID(ctx, userID)
	if err != nil {
		return "", err
	}

	joined := notion.RelationContains(b.opts.EventSchema.Joined, member.ID)
	var filter notion.Filter
	var sort notion.Sort
	if future {
		filter = notion.And(joined, notion.DateOnOrAfter(b.opts.EventSchema.Date, b.today()))
		sort = notion.Ascending(b.opts.EventSchema.Date)
	} else {
		filter = notion.And(joined, notion.DateBefore(b.opts.EventSchema.Date, b.today()))
		sort = notion.Descending(b.opts.EventSchema.Date)
	}
	pages, err := b.store.QueryDatabase(ctx, b.opts.EventsDB, notion.Query{
		Filter:   filter,
		Sorts:    []notion.Sort{sort},
		PageSize: listLimit,
	})
	if err != nil {
		return "", fmt.Errorf("query joined events: %w", err)
	}
	if len(pages) == 0 {
		if future {
			return "Nothing on your schedule yet.", nil
		}
		return "No past events on record.", nil
	}
	header := "Your schedule:\n"
	if !future {
		header = "Your past events:\n"
	}
	return header + b.renderEventList(pages), nil
}

func (b *Bot) renderEventList(pages []notion.Page) string {
	var lines []string
	for _, page := range pages {
		event, err := b.opts.EventSchema.Event(page)
		if err != nil {
			b.logger.Error("Failed to decode event, skipping", "pageID", page.ID, "error", err)
			continue
		}
		line := "- " + event.Title
		if event.Date != nil {
			line += " (" + event.Date.StartString() + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// linkMember binds the chat identity to the member record matching the
// given display name, and remembers the platform display name as a
// profile fact.
func (b *Bot) linkMember(ctx context.Context, userID, name string) (string, error) {
	member, err := b.ids.MemberByName(ctx, name)
	if err != nil {
		return "", err
	}
	if _, err := b.store.UpdatePage(ctx, member.ID, notion.PagePatch{
		Properties: b.opts.MemberSchema.ChatIDProperty(userID),
	}); err != nil {
		return "", fmt.Errorf("link member %s: %w", member.ID, err)
	}
	b.logger.Info("Linked chat identity", "memberID", member.ID)

	if profile, err := b.msgr.GetProfile(ctx, userID); err != nil {
		b.logger.Error("Failed to fetch chat profile", "userID", userID, "error", err)
	} else if err := b.hist.SaveFact(ctx, userID, "display name", profile.DisplayName); err != nil {
		b.logger.Error("Failed to save profile fact", "userID", userID, "error", err)
	}
	return "Linked to member record: " + member.Name, nil
}

// updateIntro replaces the requesting member's one-liner.
func (b *Bot) updateIntro(ctx context.Context, userID, text string) (string, error) {
	member, err := b.ids.MemberByChatID(ctx, userID)
	if err != nil {
		return "", err
	}
	if _, err := b.store.UpdatePage(ctx, member.ID, notion.PagePatch{
		Properties: b.opts.MemberSchema.IntroProperty(text),
	}); err != nil {
		return "", fmt.Errorf("update intro for %s: %w", member.ID, err)
	}
	return "Intro updated.", nil
}

func (b *Bot) runPushSync(ctx context.Context) (string, error) {
	count, err := b.pushSync.Push(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Calendar sync finished: %d events processed.", count), nil
}

// syncTagOptions copies the interest tag options configured on the
// members database onto the event tag field, so the two stay pickable
// from the same vocabulary.
func (b *Bot) syncTagOptions(ctx context.Context) (string, error) {
	membersDB, err := b.store.RetrieveDatabase(ctx, b.opts.MembersDB)
	if err != nil {
		return "", fmt.Errorf("retrieve members database: %w", err)
	}
	names := membersDB.Properties[b.opts.MemberSchema.Interests].OptionNames()
	if len(names) == 0 {
		return "No interest tags configured yet.", nil
	}
	options := make([]notion.SelectOption, 0, len(names))
	for _, n := range names {
		options = append(options, notion.SelectOption{Name: n})
	}
	err = b.store.UpdateDatabase(ctx, b.opts.EventsDB, map[string]notion.DatabaseProperty{
		b.opts.EventSchema.Tags: {MultiSelect: &notion.OptionList{Options: options}},
	})
	if err != nil {
		return "", fmt.Errorf("update event tag options: %w", err)
	}
	return fmt.Sprintf("Tag options synced: %d tags.", len(names)), nil
}

func (b *Bot) startWatch(ctx context.Context) (string, error) {
	if b.opts.WatchAddress == "" {
		return "Watch address is not configured.", nil
	}
	channel, err := b.watcher.Watch(ctx, b.opts.WatchAddress)
	if err != nil {
		return "", err
	}
	return "Calendar watch registered: " + channel.Id, nil
}

// setStatus applies a membership postback through the ledger.
func (b *Bot) setStatus(ctx context.Context, userID, eventID, action string) (string, error) {
	member, err := b.ids.MemberByChatID(ctx, userID)
	if err != nil {
		return "", err
	}
	status := postbackStatus(action)
	event, err := b.ledger.SetStatus(ctx, eventID, member.ID, status)
	if err != nil {
		return "", err
	}
	switch status {
	case models.StatusJoined:
		return "You're in: " + event.Title, nil
	case models.StatusMaybe:
		return "Marked as maybe: " + event.Title, nil
	default:
		return "Declined: " + event.Title, nil
	}
}

func postbackStatus(action string) models.MembershipStatus {
	switch action {
	case "join":
		return models.StatusJoined
	case "decline":
		return models.StatusDeclined
	default:
		return models.StatusMaybe
	}
}

// eventDetail renders an event's participants and its detail body. The
// body stops at the admin separator marker and is capped at a rune
// limit either way.
func (b *Bot) eventDetail(ctx context.Context, eventID string) (string, error) {
	page, err := b.store.RetrievePage(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("retrieve event %s: %w", eventID, err)
	}
	event, err := b.opts.EventSchema.Event(*page)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(event.Title)
	if event.Date != nil {
		sb.WriteString("\nDate: " + event.Date.StartString())
	}
	sb.WriteString("\nJoined: " + b.participantNames(ctx, event.Joined))

	body, err := b.detailBody(ctx, eventID)
	if err != nil {
		b.logger.Error("Failed to load event detail body", "eventID", eventID, "error", err)
	} else if body != "" {
		sb.WriteString("\n\n" + body)
	}
	return sb.String(), nil
}

// participantNames resolves up to listLimit joined members to display
// names; the remainder is summarized as a count.
func (b *Bot) participantNames(ctx context.Context, memberIDs []string) string {
	if len(memberIDs) == 0 {
		return "nobody yet"
	}
	shown := memberIDs
	if len(shown) > listLimit {
		shown = shown[:listLimit]
	}
	var names []string
	for _, id := range shown {
		page, err := b.store.RetrievePage(ctx, id)
		if err != nil {
			b.logger.Error("Failed to load member, skipping", "memberID", id, "error", err)
			continue
		}
		member := b.opts.MemberSchema.Member(*page)
		if member.Name != "" {
			names = append(names, member.Name)
		}
	}
	out := strings.Join(names, ", ")
	if rest := len(memberIDs) - len(shown); rest > 0 {
		out += fmt.Sprintf(" and %d more", rest)
	}
	return out
}

func (b *Bot) detailBody(ctx context.Context, eventID string) (string, error) {
	blocks, err := b.store.ListBlockChildren(ctx, eventID)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, block := range blocks {
		text := block.Text()
		if b.opts.AdminSeparator != "" && strings.Contains(text, b.opts.AdminSeparator) {
			break
		}
		if text != "" {
			lines = append(lines, text)
		}
	}
	return truncateRunes(strings.Join(lines, "\n"), detailRuneLimit), nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
