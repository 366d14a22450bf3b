package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Field is a labelled value shown in headers and result boxes.
// Fields render in the order given.
type Field struct {
	Key   string
	Value string
}

// F is shorthand for building a Field.
func F(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Header represents a command header with title, command, and parameters.
type Header struct {
	Title   string  // e.g., "Blob Build"
	Command string  // e.g., "blobpack build"
	Params  []Field // e.g., {"Config", "Blobs.yaml"}, {"Profile", "dev"}
	Width   int
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params []Field) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	width := h.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	topSection := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	dividerWidth := width - 6 // Account for border and padding
	if dividerWidth < 10 {
		dividerWidth = 10
	}
	divider := RenderHorizontalDivider(dividerWidth, "─")

	// Pad keys so the values line up
	keyWidth := 0
	for _, p := range h.Params {
		if w := lipgloss.Width(p.Key); w > keyWidth {
			keyWidth = w
		}
	}
	var paramLines []string
	for _, p := range h.Params {
		key := p.Key + ":" + strings.Repeat(" ", keyWidth-lipgloss.Width(p.Key))
		paramLines = append(paramLines, HeaderParamKeyStyle.Render(key)+" "+HeaderParamValueStyle.Render(p.Value))
	}

	content := topSection
	if len(h.Params) > 0 {
		content = lipgloss.JoinVertical(lipgloss.Left, topSection, divider, strings.Join(paramLines, "\n"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2). // Account for border characters
		Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}
