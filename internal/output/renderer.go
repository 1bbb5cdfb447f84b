package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/orlenko/claude-log-tail/internal/model"
)

// Renderer writes formatted records to an output stream.
type Renderer interface {
	Render(rec model.DisplayRecord) error
	// Discovered announces a newly watched source file.
	Discovered(project string) error
}

// ---------------------------------------------------------------------------
// Text Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

var (
	styleTime      = lipgloss.NewStyle().Foreground(lipgloss.Color("243")) // gray
	styleProject   = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))  // blue
	styleUser      = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))  // green
	styleAssistant = lipgloss.NewStyle().Foreground(lipgloss.Color("208")) // orange
	styleTool      = lipgloss.NewStyle().Foreground(lipgloss.Color("141")) // purple
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	styleDefault   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")) // light gray
)

// TextRenderer prints records to the terminal with category-based colors.
type TextRenderer struct {
	w       io.Writer
	noColor bool
}

// NewTextRenderer returns a Renderer that writes colorized text to stdout.
func NewTextRenderer(noColor bool) *TextRenderer {
	return &TextRenderer{w: os.Stdout, noColor: noColor}
}

func (r *TextRenderer) Render(rec model.DisplayRecord) error {
	if r.noColor {
		_, err := fmt.Fprintf(r.w, "[%s] [%s] [%s] %s\n", rec.Time, rec.Project, rec.Category, rec.Content)
		return err
	}

	line := fmt.Sprintf("%s %s %s %s",
		styleTime.Render("["+rec.Time+"]"),
		styleProject.Render("["+rec.Project+"]"),
		categoryStyle(rec).Render("["+rec.Category+"]"),
		rec.Content,
	)
	_, err := fmt.Fprintln(r.w, line)
	return err
}

// Discovered prints a "[+]" notice for a newly discovered source file.
func (r *TextRenderer) Discovered(project string) error {
	now := time.Now().Format("15:04:05")
	if r.noColor {
		_, err := fmt.Fprintf(r.w, "[%s] [+] %s\n", now, project)
		return err
	}

	line := fmt.Sprintf("%s %s %s",
		styleTime.Render("["+now+"]"),
		styleProject.Render("[+]"),
		project,
	)
	_, err := fmt.Fprintln(r.w, line)
	return err
}

// categoryStyle selects the color for a record's category tag. Anything
// whose content mentions an error renders red regardless of category.
func categoryStyle(rec model.DisplayRecord) lipgloss.Style {
	if rec.IsError {
		return styleError
	}
	switch rec.Category {
	case "user":
		return styleUser
	case "assistant":
		return styleAssistant
	case "tool":
		return styleTool
	default:
		return styleDefault
	}
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each record as a single JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer returns a Renderer that writes JSON lines to stdout.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(os.Stdout)}
}

func (r *JSONRenderer) Render(rec model.DisplayRecord) error {
	return r.enc.Encode(rec)
}

func (r *JSONRenderer) Discovered(project string) error {
	return r.enc.Encode(struct {
		Event   string `json:"event"`
		Project string `json:"project"`
	}{Event: "discovered", Project: project})
}
