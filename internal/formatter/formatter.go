package formatter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/orlenko/claude-log-tail/internal/model"
)

// MaxContentLen is the display budget for one record's content.
const MaxContentLen = 300

// Suppressed record types — never displayed regardless of content.
var suppressedTypes = map[string]bool{
	"file-history-snapshot": true,
	"progress":              true,
}

// Format converts one raw JSONL line into a DisplayRecord. The second
// return value is false when the line should produce no output: malformed
// JSON, a suppressed record type, or content that flattens to nothing.
// Format is a pure function of its inputs.
func Format(raw string, project string) (model.DisplayRecord, bool) {
	var rec model.LogRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return model.DisplayRecord{}, false
	}

	category := effectiveType(rec)
	if suppressedTypes[category] {
		return model.DisplayRecord{}, false
	}

	content := extractContent(rec.Message.Content)
	if content == "" {
		return model.DisplayRecord{}, false
	}

	// Collapse all internal whitespace, then apply the display budget.
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) > MaxContentLen {
		content = clip(content, MaxContentLen) + "..."
	}

	return model.DisplayRecord{
		Time:     localClock(rec.Timestamp),
		Project:  project,
		Category: category,
		Content:  content,
		IsError:  strings.Contains(strings.ToLower(content), "error"),
	}, true
}

// effectiveType reclassifies user records whose content carries tool
// results as "tool" output; everything else keeps its declared type.
func effectiveType(rec model.LogRecord) string {
	if rec.Type == "user" && rec.Message.Content.IsList {
		for _, item := range rec.Message.Content.Items {
			if item.Type == "tool_result" {
				return "tool"
			}
		}
	}
	return rec.Type
}

// ---------------------------------------------------------------------------
// Content extraction
// ---------------------------------------------------------------------------

// extractContent flattens a message content value to a single display string.
// String content passes through; list content renders each item by its type
// tag and joins the non-empty parts with " | ".
func extractContent(c model.ContentValue) string {
	if !c.IsList {
		return c.Text
	}

	var parts []string
	for _, item := range c.Items {
		if s := renderItem(item); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " | ")
}

// renderItem maps one tagged content item to display text.
func renderItem(item model.ContentItem) string {
	switch item.Type {
	case "text":
		return item.Text
	case "thinking":
		return "[thinking]"
	case "tool_use":
		return renderToolUse(item.Name, item.Input)
	case "tool_result":
		return clip(flattenResult(item.Content), 100)
	default:
		return ""
	}
}

// renderToolUse synthesizes a short summary of a tool invocation. Each
// known tool shows its most useful input field; unknown tools show just
// the name.
func renderToolUse(name string, input map[string]any) string {
	switch name {
	case "Bash":
		if cmd := strInput(input, "command"); cmd != "" {
			return "$ " + strings.ReplaceAll(clip(cmd, 80), "\n", " ")
		}
	case "Read":
		if p := strInput(input, "file_path"); p != "" {
			return "read " + p
		}
	case "Edit":
		if p := strInput(input, "file_path"); p != "" {
			return "edit " + p
		}
	case "Write":
		if p := strInput(input, "file_path"); p != "" {
			return "write " + p
		}
	case "Glob":
		if p := strInput(input, "pattern"); p != "" {
			return "glob " + p
		}
	case "Grep":
		if p := strInput(input, "pattern"); p != "" {
			return "grep " + clip(p, 50)
		}
	case "Task":
		if p := strInput(input, "prompt"); p != "" {
			return "task: " + clip(p, 60)
		}
	}
	if name == "" {
		name = "?"
	}
	return "[" + name + "]"
}

// flattenResult renders a tool_result content field as a string. The field
// may be a plain string or arbitrary nested JSON; non-string shapes are
// shown as their compact JSON text.
func flattenResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ---------------------------------------------------------------------------
// Timestamp handling
// ---------------------------------------------------------------------------

// zonelessLayouts cover records written without a zone. RFC3339 handles
// "Z", explicit offsets, and variable-length fractional seconds.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// localClock parses an ISO-8601-ish timestamp and returns the local
// wall-clock time as HH:MM:SS. On parse failure it falls back to a
// best-effort substring of the raw value, then to the empty string.
// It never fails.
func localClock(ts string) string {
	if !strings.Contains(ts, "T") {
		return ""
	}

	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t.Local().Format("15:04:05")
	}

	// A timestamp with no zone is taken as already-local.
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, ts, time.Local); err == nil {
			return t.Format("15:04:05")
		}
	}

	// Fallback: the time portion between "T" and any fractional part.
	rest := ts[strings.Index(ts, "T")+1:]
	if i := strings.IndexAny(rest, ".Z+"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// clip truncates s to at most n characters, never splitting a rune.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// strInput returns a string-valued tool input field, or "" when absent or
// not a string.
func strInput(input map[string]any, key string) string {
	v, ok := input[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}
