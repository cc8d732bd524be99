package bot

import (
	"context"
	"fmt"

	"clubsync/internal/assistant"
	"clubsync/internal/notion"
)

// converse handles free-form text: recall recent exchanges and stored
// facts, surface events matching extracted keywords, ask the assistant
// for a reply, and persist the finished turn. Keyword extraction and
// event search are best-effort; only the conversation call itself can
// fail the flow.
func (b *Bot) converse(ctx context.Context, userID, text string) (string, error) {
	recent, err := b.hist.RecentExchanges(ctx, userID, b.opts.HistoryLimit)
	if err != nil {
		b.logger.Error("Failed to recall history", "userID", userID, "error", err)
	}
	facts, err := b.hist.Facts(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to load profile facts", "userID", userID, "error", err)
	}

	titles := b.matchingEventTitles(ctx, text)

	input := assistant.ConversationInput{
		Question:     text,
		ProfileFacts: facts,
		EventTitles:  titles,
	}
	for _, e := range recent {
		input.History = append(input.History, assistant.Exchange{User: e.User, Assistant: e.Assistant})
	}

	answer, err := b.assist.Converse(ctx, input)
	if err != nil {
		return "", fmt.Errorf("assistant conversation: %w", err)
	}
	if err := b.hist.AppendExchange(ctx, userID, text, answer); err != nil {
		b.logger.Error("Failed to persist exchange", "userID", userID, "error", err)
	}
	return answer, nil
}

func (b *Bot) matchingEventTitles(ctx context.Context, text string) []string {
	keywords, err := b.assist.ExtractKeywords(ctx, text)
	if err != nil {
		b.logger.Error("Keyword extraction failed", "error", err)
		return nil
	}
	if len(keywords) == 0 {
		return nil
	}
	filters := make([]notion.Filter, 0, len(keywords))
	for _, kw := range keywords {
		filters = append(filters, notion.TitleContains(b.opts.EventSchema.Title, kw))
	}
	pages, err := b.store.QueryDatabase(ctx, b.opts.EventsDB, notion.Query{
		Filter:   notion.Or(filters...),
		PageSize: listLimit,
	})
	if err != nil {
		b.logger.Error("Keyword event search failed", "error", err)
		return nil
	}
	var titles []string
	for _, page := range pages {
		event, err := b.opts.EventSchema.Event(page)
		if err != nil {
			continue
		}
		titles = append(titles, event.Title)
	}
	return titles
}
