// Package notion is a minimal client for the record store's HTTP API,
// covering the page, database, and block operations the rest of the
// service consumes.
package notion

import "strings"

// Page is a record in a database: an opaque id plus named typed
// properties.
type Page struct {
	ID         string              `json:"id"`
	URL        string              `json:"url,omitempty"`
	Archived   bool                `json:"archived,omitempty"`
	Properties map[string]Property `json:"properties"`
}

// Property is one typed field value. Exactly one of the value fields is
// set, matching the store's tagged-union encoding.
type Property struct {
	Title       []RichText     `json:"title,omitempty"`
	RichText    []RichText     `json:"rich_text,omitempty"`
	Select      *SelectOption  `json:"select,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
	Relation    []Relation     `json:"relation,omitempty"`
	Date        *DateValue     `json:"date,omitempty"`
}

type RichText struct {
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

type TextContent struct {
	Content string `json:"content"`
}

type SelectOption struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type Relation struct {
	ID string `json:"id"`
}

type DateValue struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// PlainText flattens a title or rich-text value to its text content.
func (p Property) PlainText() string {
	spans := p.Title
	if len(spans) == 0 {
		spans = p.RichText
	}
	var b strings.Builder
	for _, s := range spans {
		if s.PlainText != "" {
			b.WriteString(s.PlainText)
		} else if s.Text != nil {
			b.WriteString(s.Text.Content)
		}
	}
	return b.String()
}

// RelationIDs returns the related page ids of a relation value.
func (p Property) RelationIDs() []string {
	ids := make([]string, 0, len(p.Relation))
	for _, r := range p.Relation {
		ids = append(ids, r.ID)
	}
	return ids
}

// SelectNames returns the option names of a multi-select value.
func (p Property) SelectNames() []string {
	names := make([]string, 0, len(p.MultiSelect))
	for _, o := range p.MultiSelect {
		names = append(names, o.Name)
	}
	return names
}

func Title(s string) Property {
	return Property{Title: []RichText{{Text: &TextContent{Content: s}}}}
}

func Text(s string) Property {
	return Property{RichText: []RichText{{Text: &TextContent{Content: s}}}}
}

func Select(name string) Property {
	return Property{Select: &SelectOption{Name: name}}
}

func MultiSelect(names []string) Property {
	options := make([]SelectOption, 0, len(names))
	for _, n := range names {
		options = append(options, SelectOption{Name: n})
	}
	return Property{MultiSelect: options}
}

func Relations(ids []string) Property {
	// An empty (non-nil) list clears the relation on update.
	rels := make([]Relation, 0, len(ids))
	for _, id := range ids {
		rels = append(rels, Relation{ID: id})
	}
	return Property{Relation: rels}
}

func Date(start, end string) Property {
	return Property{Date: &DateValue{Start: start, End: end}}
}

// Database describes a database's property schema; only select options
// are consumed here (for tag option sync).
type Database struct {
	ID         string                      `json:"id"`
	Properties map[string]DatabaseProperty `json:"properties"`
}

type DatabaseProperty struct {
	Type        string      `json:"type,omitempty"`
	Select      *OptionList `json:"select,omitempty"`
	MultiSelect *OptionList `json:"multi_select,omitempty"`
}

type OptionList struct {
	Options []SelectOption `json:"options"`
}

// OptionNames returns the configured option names for a select or
// multi-select database property.
func (p DatabaseProperty) OptionNames() []string {
	var list *OptionList
	switch {
	case p.Select != nil:
		list = p.Select
	case p.MultiSelect != nil:
		list = p.MultiSelect
	default:
		return nil
	}
	names := make([]string, 0, len(list.Options))
	for _, o := range list.Options {
		names = append(names, o.Name)
	}
	return names
}

// Block is one unit of page body content. Only the text-bearing kinds
// the detail view renders are decoded.
type Block struct {
	Type             string     `json:"type"`
	Paragraph        *BlockText `json:"paragraph,omitempty"`
	Heading1         *BlockText `json:"heading_1,omitempty"`
	Heading2         *BlockText `json:"heading_2,omitempty"`
	Heading3         *BlockText `json:"heading_3,omitempty"`
	BulletedListItem *BlockText `json:"bulleted_list_item,omitempty"`
	NumberedListItem *BlockText `json:"numbered_list_item,omitempty"`
}

type BlockText struct {
	RichText []RichText `json:"rich_text"`
}

// Text flattens the block to plain text, with heading and list-item
// decoration matching the chat detail view.
func (b Block) Text() string {
	flatten := func(t *BlockText) string {
		if t == nil {
			return ""
		}
		return Property{RichText: t.RichText}.PlainText()
	}
	switch b.Type {
	case "paragraph":
		return flatten(b.Paragraph)
	case "heading_1":
		return "[" + flatten(b.Heading1) + "]"
	case "heading_2":
		return "[" + flatten(b.Heading2) + "]"
	case "heading_3":
		return "[" + flatten(b.Heading3) + "]"
	case "bulleted_list_item":
		return "- " + flatten(b.BulletedListItem)
	case "numbered_list_item":
		return "- " + flatten(b.NumberedListItem)
	}
	return ""
}
