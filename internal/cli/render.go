package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"github.com/raphaelgruber/datachat/internal/session"
)

// maxChartLen caps the chart data echoed to the terminal.
const maxChartLen = 2000

// renderer turns transcript messages into terminal text.
// A plain renderer emits no ANSI sequences and skips Markdown rendering,
// for pipes and tests.
type renderer struct {
	theme Theme
	plain bool
	md    *glamour.TermRenderer
}

// newRenderer builds a renderer. width <= 0 leaves word wrap at glamour's default.
func newRenderer(plain bool, width int) renderer {
	r := renderer{theme: defaultTheme, plain: plain}
	if plain {
		return r
	}

	opts := []glamour.TermRendererOption{glamour.WithStandardStyle("dark")}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	md, err := glamour.NewTermRenderer(opts...)
	if err == nil {
		r.md = md
	}
	return r
}

func (r renderer) style(st lipgloss.Style, s string) string {
	if r.plain {
		return s
	}
	return st.Render(s)
}

// markdown renders answer text. Rendering failures fall back to the raw text.
func (r renderer) markdown(text string) string {
	if r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// message formats one transcript entry.
func (r renderer) message(m session.Message) string {
	if m.Role == session.RoleUser {
		return r.style(r.theme.userStyle(), "You: ") + m.Text
	}

	var b strings.Builder
	if m.IsError {
		b.WriteString(r.style(r.theme.errorStyle(), "Assistant (error):"))
	} else {
		b.WriteString(r.style(r.theme.assistantStyle(), "Assistant:"))
	}
	b.WriteString("\n")
	b.WriteString(r.markdown(m.Text))

	if m.SQL != "" {
		b.WriteString("\n\n")
		b.WriteString(r.style(r.theme.hintStyle(), "SQL:"))
		b.WriteString("\n")
		b.WriteString(r.style(r.theme.sqlStyle(), m.SQL))
	}

	if chart := formatChart(m.ChartData); chart != "" {
		b.WriteString("\n\n")
		b.WriteString(r.style(r.theme.hintStyle(), chartLabel(m.ChartData)))
		b.WriteString("\n")
		b.WriteString(chart)
	}

	return b.String()
}

// chartLabel names the chart payload, counting points when it is an array.
func chartLabel(raw json.RawMessage) string {
	var points []json.RawMessage
	if err := json.Unmarshal(raw, &points); err == nil {
		return fmt.Sprintf("Chart data (%d points):", len(points))
	}
	return "Chart data:"
}

// formatChart pretty-prints chart data, truncated to maxChartLen.
// Returns "" when there is nothing to show.
func formatChart(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	out := buf.String()
	if len(out) > maxChartLen {
		out = out[:maxChartLen] + "\n..."
	}
	return out
}
