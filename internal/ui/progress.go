package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Skipped
)

// Step is one line of a runner's step list.
type Step struct {
	Number  int        // 1-based
	Name    string     // e.g. "Writing font"
	Status  StepStatus // Current status
	Message string     // Optional note, e.g. "verify failed"
}

// Progress tracks the steps of a run and renders them one line at a time.
type Progress struct {
	Steps   []Step
	Current int     // Last step that started running
	Percent float64 // Finished steps over total, 0.0 - 1.0
	bar     progress.Model
}

// nameColumn is where step markers line up.
const nameColumn = 45

// NewProgress creates a tracker with one pending step per name, sized for a
// terminal of the given width.
func NewProgress(names []string, width int) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Number: i + 1, Name: name}
	}

	barWidth := min(max(width-20, 20), 50)
	return &Progress{
		Steps: steps,
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
	}
}

// UpdateStep sets a step's status and message. Out of range steps are
// ignored.
func (p *Progress) UpdateStep(stepNumber int, status StepStatus, message string) {
	if stepNumber < 1 || stepNumber > len(p.Steps) {
		return
	}
	p.Steps[stepNumber-1].Status = status
	p.Steps[stepNumber-1].Message = message

	if status == StepRunning {
		p.Current = stepNumber
		return
	}
	done := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete || s.Status == StepSkipped {
			done++
		}
	}
	p.Percent = float64(done) / float64(len(p.Steps))
}

// Step returns step n (1-based) or false when out of range.
func (p *Progress) Step(n int) (Step, bool) {
	if n < 1 || n > len(p.Steps) {
		return Step{}, false
	}
	return p.Steps[n-1], true
}

// renderBar renders the bar with percentage and step counter.
func (p *Progress) renderBar() string {
	line := fmt.Sprintf("%s  %3.0f%%  [%d/%d]", p.bar.ViewAs(p.Percent), p.Percent*100, p.Current, len(p.Steps))
	return lipgloss.NewStyle().PaddingLeft(2).Render(line)
}

// renderStep renders "  [n/total] name      marker  (message)".
func (p *Progress) renderStep(step Step) string {
	marker, style := StepMarkerPending, StepPendingStyle
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker = StepMarkerSkipped
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", step.Number, len(p.Steps))
	b.WriteString(style.Render(step.Name))
	b.WriteString(strings.Repeat(" ", max(nameColumn-lipgloss.Width(step.Name), 1)))
	b.WriteString(style.Render(marker))
	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

// StepCallback receives step progress updates. A non-empty name replaces
// the step's current name.
type StepCallback func(stepNumber int, name string, status StepStatus, message string)
