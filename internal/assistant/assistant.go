// Package assistant defines the generative-language capability the bot
// consumes, and an HTTP adapter for a generateContent-style endpoint.
// The rest of the service depends only on the interface; prompt wording
// stays inside this package.
package assistant

import (
	"context"
	"strings"
)

// Exchange is one past user/assistant turn.
type Exchange struct {
	User      string
	Assistant string
}

// ConversationInput carries everything the assistant may ground a reply
// on: the question, recent history, stored profile facts, and the event
// titles a keyword search surfaced.
type ConversationInput struct {
	Question     string
	History      []Exchange
	ProfileFacts []string
	EventTitles  []string
}

// Assistant is the capability contract: extract search keywords from a
// question, and produce a grounded conversational reply.
type Assistant interface {
	ExtractKeywords(ctx context.Context, text string) ([]string, error)
	Converse(ctx context.Context, input ConversationInput) (string, error)
}

func keywordPrompt(text string) string {
	return "User question: \"" + text + "\"\n" +
		"Output one or two search keywords for finding related records, separated by spaces. No explanation."
}

func conversationPrompt(in ConversationInput) string {
	var b strings.Builder
	b.WriteString("You are a helpful club mentor. Answer in plain text without markdown, in 20-300 characters.\n")
	if len(in.ProfileFacts) > 0 {
		b.WriteString("\nWhat you know about the user:\n")
		for _, f := range in.ProfileFacts {
			b.WriteString("- " + f + "\n")
		}
	}
	if len(in.EventTitles) > 0 {
		b.WriteString("\nRelated club events:\n")
		for _, t := range in.EventTitles {
			b.WriteString("- " + t + "\n")
		}
	}
	if len(in.History) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, e := range in.History {
			b.WriteString("User: " + e.User + "\nAssistant: " + e.Assistant + "\n")
		}
	}
	b.WriteString("\nLatest message:\n\"" + in.Question + "\"\n")
	return b.String()
}

func splitKeywords(text string) []string {
	fields := strings.Fields(strings.TrimSpace(text))
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			keywords = append(keywords, f)
		}
	}
	return keywords
}
