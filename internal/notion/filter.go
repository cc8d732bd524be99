package notion

// Filter is a database query filter in the store's wire shape. The
// builders below cover the comparisons this service issues; composing
// anything else means extending this file, not hand-writing maps at call
// sites.
type Filter map[string]any

func TitleEquals(property, value string) Filter {
	return Filter{"property": property, "title": map[string]any{"equals": value}}
}

func TitleContains(property, value string) Filter {
	return Filter{"property": property, "title": map[string]any{"contains": value}}
}

func TextEquals(property, value string) Filter {
	return Filter{"property": property, "rich_text": map[string]any{"equals": value}}
}

func RelationContains(property, pageID string) Filter {
	return Filter{"property": property, "relation": map[string]any{"contains": pageID}}
}

func SelectEquals(property, value string) Filter {
	return Filter{"property": property, "select": map[string]any{"equals": value}}
}

func MultiSelectContains(property, value string) Filter {
	return Filter{"property": property, "multi_select": map[string]any{"contains": value}}
}

func DateOnOrAfter(property, date string) Filter {
	return Filter{"property": property, "date": map[string]any{"on_or_after": date}}
}

func DateBefore(property, date string) Filter {
	return Filter{"property": property, "date": map[string]any{"before": date}}
}

func DateEquals(property, date string) Filter {
	return Filter{"property": property, "date": map[string]any{"equals": date}}
}

// CreatedOnOrAfter filters on the record's creation timestamp rather
// than a named property.
func CreatedOnOrAfter(ts string) Filter {
	return Filter{"timestamp": "created_time", "created_time": map[string]any{"on_or_after": ts}}
}

func And(filters ...Filter) Filter {
	return Filter{"and": filters}
}

func Or(filters ...Filter) Filter {
	return Filter{"or": filters}
}

// Sort orders query results by one property.
type Sort struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

func Ascending(property string) Sort {
	return Sort{Property: property, Direction: "ascending"}
}

func Descending(property string) Sort {
	return Sort{Property: property, Direction: "descending"}
}

// Query is one database query: optional filter, sorts, and a page-size
// cap. A zero PageSize lets the store pick its default.
type Query struct {
	Filter   Filter `json:"filter,omitempty"`
	Sorts    []Sort `json:"sorts,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}
