package ui

import (
	"bytes"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Output is a box for raw tool output, shown in verbose mode and after
// a failed load.
type Output struct {
	Title    string
	Lines    []string
	Width    int
	MaxLines int // Keep only the last MaxLines lines (0 = unlimited)
}

// NewOutput creates an output box for content.
func NewOutput(title, content string) *Output {
	return &Output{
		Title: title,
		Lines: strings.Split(strings.TrimRight(content, "\n"), "\n"),
		Width: GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (o *Output) SetWidth(width int) *Output {
	o.Width = width
	return o
}

// SetMaxLines limits the box to the tail of the output
func (o *Output) SetMaxLines(n int) *Output {
	o.MaxLines = n
	return o
}

// FilterPrefix keeps only lines starting with one of prefixes
func (o *Output) FilterPrefix(prefixes ...string) *Output {
	var filtered []string
	for _, line := range o.Lines {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range prefixes {
			if strings.HasPrefix(trimmed, prefix) {
				filtered = append(filtered, line)
				break
			}
		}
	}
	o.Lines = filtered
	return o
}

// Render returns the styled output box as a string
func (o *Output) Render() string {
	width := o.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	lines := o.Lines
	if o.MaxLines > 0 && len(lines) > o.MaxLines {
		lines = append([]string{"... (output truncated)"}, lines[len(lines)-o.MaxLines:]...)
	}

	inner := lipgloss.JoinVertical(lipgloss.Left,
		OutputTitleStyle.Render(o.Title),
		"",
		OutputContentStyle.Render(strings.Join(lines, "\n")),
	)
	return OutputBoxStyle(width).Render(inner)
}

// String implements fmt.Stringer
func (o *Output) String() string {
	return o.Render()
}

// ParseStepLine recognises a "[i/n] Name..." progress marker.
func ParseStepLine(line string) (number, total int, name string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return 0, 0, "", false
	}
	closeBracket := strings.Index(line, "]")
	if closeBracket < 0 {
		return 0, 0, "", false
	}
	num, tot, found := strings.Cut(line[1:closeBracket], "/")
	if !found {
		return 0, 0, "", false
	}
	n, err1 := strconv.Atoi(num)
	t, err2 := strconv.Atoi(tot)
	if err1 != nil || err2 != nil || n < 1 || n > t {
		return 0, 0, "", false
	}
	name = strings.TrimSpace(line[closeBracket+1:])
	name = strings.TrimSuffix(name, "...")
	return n, t, name, true
}

// StepWriter turns streamed script output into step callbacks. A step
// starts at its "[i/n]" marker and completes at the next "[OK]" marker,
// the next step, or "[SUCCESS]".
type StepWriter struct {
	mu      sync.Mutex
	onStep  StepCallback
	buf     bytes.Buffer
	current int
	name    string
	open    bool
}

// NewStepWriter creates a StepWriter reporting to onStep.
func NewStepWriter(onStep StepCallback) *StepWriter {
	return &StepWriter{onStep: onStep}
}

// Write implements io.Writer. Partial lines are held until complete.
func (w *StepWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// put the partial line back
			rest := []byte(line)
			w.buf.Reset()
			w.buf.Write(rest)
			break
		}
		w.handleLine(line)
	}
	return len(p), nil
}

func (w *StepWriter) handleLine(line string) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "[OK]"), strings.HasPrefix(line, "[SUCCESS]"):
		w.finish(StepComplete, "")
	default:
		n, _, name, ok := ParseStepLine(line)
		if !ok {
			return
		}
		w.finish(StepComplete, "")
		w.current, w.name, w.open = n, name, true
		w.onStep(n, name, StepRunning, "")
	}
}

func (w *StepWriter) finish(status StepStatus, message string) {
	if !w.open {
		return
	}
	w.open = false
	w.onStep(w.current, w.name, status, message)
}

// Fail marks the step still running, if any, as failed.
func (w *StepWriter) Fail(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.handleLine(w.buf.String())
		w.buf.Reset()
	}
	w.finish(StepFailed, message)
}
