package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clubsync/internal/notion"
	"clubsync/internal/resolver"
)

const categoryListLimit = 5

// myPage renders the requesting member's own record. Unlinked users get
// pointed at the two ways in instead of the generic link nag.
func (b *Bot) myPage(ctx context.Context, userID string) (string, error) {
	member, err := b.ids.MemberByChatID(ctx, userID)
	if errors.Is(err, resolver.ErrNotLinked) {
		return "No member record yet. Send \"register\" to create one, or \"link <your name>\" to bind an existing record.", nil
	}
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(member.Name)
	if member.Role != "" {
		sb.WriteString(" (" + member.Role + ")")
	}
	if school := strings.TrimSpace(member.School + " " + member.Grade); school != "" {
		sb.WriteString("\nSchool: " + school)
	}
	if member.Department != "" {
		sb.WriteString("\nDepartment: " + member.Department)
	}
	if len(member.Interests) > 0 {
		sb.WriteString("\nInterests: " + strings.Join(member.Interests, ", "))
	}
	if member.Intro != "" {
		sb.WriteString("\nIntro: " + truncateRunes(member.Intro, introRuneLimit))
	}
	return sb.String(), nil
}

// registerMember creates a member record from the chat profile. A chat
// identity already bound to a record is refused rather than duplicated.
func (b *Bot) registerMember(ctx context.Context, userID string) (string, error) {
	member, err := b.ids.MemberByChatID(ctx, userID)
	if err == nil {
		return "You're already registered as " + member.Name + ".", nil
	}
	if !errors.Is(err, resolver.ErrNotLinked) {
		return "", err
	}
	profile, err := b.msgr.GetProfile(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("fetch chat profile: %w", err)
	}
	if _, err := b.store.CreatePage(ctx, b.opts.MembersDB,
		b.opts.MemberSchema.RegistrationProperties(profile.DisplayName, userID)); err != nil {
		return "", fmt.Errorf("create member record: %w", err)
	}
	b.logger.Info("Registered new member", "userID", userID)
	return "Registered as " + profile.DisplayName + ". Send \"tag <name>\" to pick interest tags and \"intro <text>\" to introduce yourself.", nil
}

// toggleTag flips one interest tag on the requesting member's record.
func (b *Bot) toggleTag(ctx context.Context, userID, tag string) (string, error) {
	member, err := b.ids.MemberByChatID(ctx, userID)
	if err != nil {
		return "", err
	}
	tags := make([]string, 0, len(member.Interests)+1)
	removed := false
	for _, t := range member.Interests {
		if t == tag {
			removed = true
			continue
		}
		tags = append(tags, t)
	}
	if !removed {
		tags = append(tags, tag)
	}
	if _, err := b.store.UpdatePage(ctx, member.ID, notion.PagePatch{
		Properties: b.opts.MemberSchema.InterestsProperty(tags),
	}); err != nil {
		return "", fmt.Errorf("update interests for %s: %w", member.ID, err)
	}
	if removed {
		return "Removed tag: " + tag, nil
	}
	return "Added tag: " + tag, nil
}

// searchCategory renders the most recent events matching a category
// name, whether it appears as the event category or as one of its tags.
func (b *Bot) searchCategory(ctx context.Context, name string) (string, error) {
	pages, err := b.store.QueryDatabase(ctx, b.opts.EventsDB, notion.Query{
		Filter: notion.Or(
			notion.SelectEquals(b.opts.EventSchema.Category, name),
			notion.MultiSelectContains(b.opts.EventSchema.Tags, name),
		),
		Sorts:    []notion.Sort{notion.Descending(b.opts.EventSchema.Date)},
		PageSize: categoryListLimit,
	})
	if err != nil {
		return "", fmt.Errorf("query category %q: %w", name, err)
	}
	if len(pages) == 0 {
		return "No events found for " + name + ".", nil
	}
	return "Recent " + name + " events:\n" + b.renderEventList(pages), nil
}

type profileForm struct {
	name       string
	school     string
	department string
	grade      string
	intro      string
}

// updateProfile upserts the member record from a labeled form. The
// record is found by chat identity first, then by the submitted name,
// and created when neither matches.
func (b *Bot) updateProfile(ctx context.Context, userID, text string) (string, error) {
	form := parseProfileForm(text)
	if form.name == "" {
		return "Send the form with at least a name line:\nupdate\nname: <your name>\nschool: ...\ndepartment: ...\ngrade: ...\nintro: ...", nil
	}
	props := b.opts.MemberSchema.ProfileProperties(
		form.name, form.school, form.department, form.grade, form.intro, userID)

	member, err := b.ids.MemberByChatID(ctx, userID)
	if errors.Is(err, resolver.ErrNotLinked) {
		member, err = b.ids.MemberByName(ctx, form.name)
	}
	switch {
	case err == nil:
		if _, err := b.store.UpdatePage(ctx, member.ID, notion.PagePatch{Properties: props}); err != nil {
			return "", fmt.Errorf("update profile for %s: %w", member.ID, err)
		}
	case errors.Is(err, resolver.ErrNotLinked):
		if _, err := b.store.CreatePage(ctx, b.opts.MembersDB, props); err != nil {
			return "", fmt.Errorf("create member record: %w", err)
		}
	default:
		return "", err
	}
	return "Profile saved: " + form.name, nil
}

// parseProfileForm reads labeled lines. Unlabeled lines after an intro
// label continue the intro, so multi-line intros survive.
func parseProfileForm(text string) profileForm {
	var f profileForm
	inIntro := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		label, value, ok := strings.Cut(trimmed, ":")
		if ok {
			value = strings.TrimSpace(value)
			switch strings.ToLower(strings.TrimSpace(label)) {
			case "name":
				f.name, inIntro = value, false
				continue
			case "school":
				f.school, inIntro = value, false
				continue
			case "department":
				f.department, inIntro = value, false
				continue
			case "grade":
				f.grade, inIntro = value, false
				continue
			case "intro":
				f.intro, inIntro = value, true
				continue
			}
		}
		if inIntro && trimmed != "" {
			f.intro = strings.TrimSpace(f.intro + "\n" + trimmed)
		}
	}
	return f
}
