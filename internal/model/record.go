package model

import "encoding/json"

// LogRecord is one JSONL conversation record as written to disk.
type LogRecord struct {
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp"`
	Message   Message `json:"message"`
}

// Message holds the record payload. Content is either a plain string or a
// list of tagged content items, so it needs a custom decoder.
type Message struct {
	Content ContentValue `json:"content"`
}

// ContentValue is the string-or-list shape of message.content.
type ContentValue struct {
	Text   string
	Items  []ContentItem
	IsList bool
}

// UnmarshalJSON accepts either a JSON string or an array of content items.
func (c *ContentValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.IsList = false
		return nil
	}

	var items []ContentItem
	if err := json.Unmarshal(data, &items); err == nil {
		c.Items = items
		c.IsList = true
		return nil
	}

	// Unrecognized shape (number, object, null) — treat as empty content
	// rather than failing the whole record.
	*c = ContentValue{}
	return nil
}

// ContentItem is one element of a list-valued message content. The Type tag
// selects which of the remaining fields are meaningful:
//
//	"text"        — Text
//	"thinking"    — (no payload used)
//	"tool_use"    — Name, Input
//	"tool_result" — Content (string or nested structure)
type ContentItem struct {
	Type    string          `json:"type"`
	Text    string          `json:"text,omitempty"`
	Name    string          `json:"name,omitempty"`
	Input   map[string]any  `json:"input,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// DisplayRecord is one formatted record ready for rendering. It is
// ephemeral: produced by the formatter, consumed by renderers, never stored.
type DisplayRecord struct {
	Time     string `json:"time"`     // local wall clock, HH:MM:SS, may be empty
	Project  string `json:"project"`  // source label
	Category string `json:"category"` // effective record type
	Content  string `json:"content"`  // flattened, truncated content
	IsError  bool   `json:"is_error"` // content mentions an error
}
