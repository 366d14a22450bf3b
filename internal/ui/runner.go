package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig holds configuration for a command run.
type RunnerConfig struct {
	Title           string   // e.g., "Blob Load"
	Command         string   // e.g., "blobpack load"
	Params          []Field  // Shown in the header
	TotalSteps      int      // Zero disables the step list
	StepNames       []string // Initial names for each step
	Troubleshooting []string // Tips shown on failure
	Verbose         bool     // Show raw tool output after the result
	Output          io.Writer
}

// Runner orchestrates the header, progress and result output of a
// command and provides the step callback for reporting progress.
type Runner struct {
	config    RunnerConfig
	header    *Header
	progress  *Progress
	output    io.Writer
	rawOutput string
	width     int
}

// NewRunner creates a new runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	width := GetTerminalWidth()

	header := NewHeader(config.Title, config.Command, config.Params)
	header.SetWidth(width)

	var progress *Progress
	if config.TotalSteps > 0 {
		names := make([]string, config.TotalSteps)
		copy(names, config.StepNames)
		progress = NewProgress(names, width)
	}

	return &Runner{
		config:   config,
		header:   header,
		progress: progress,
		output:   config.Output,
		width:    width,
	}
}

// Operation is the work a Runner wraps. It reports progress through
// onStep and returns the details shown in the success box.
type Operation func(ctx context.Context, onStep StepCallback) ([]Field, error)

// Run prints the header, executes op and prints the result.
func (r *Runner) Run(ctx context.Context, op Operation) error {
	start := time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	details, err := op(ctx, r.OnStep)
	duration := time.Since(start).Round(time.Millisecond)

	_, _ = fmt.Fprintln(r.output)
	if r.progress != nil {
		_, _ = fmt.Fprintln(r.output, r.progress.renderBar())
		_, _ = fmt.Fprintln(r.output)
	}
	if err != nil {
		result := NewFailureResult(r.config.Title+" failed", err, r.config.Troubleshooting)
		result.SetWidth(r.width)
		_, _ = fmt.Fprintln(r.output, result.Render())
	} else {
		details = append(details, F("Duration", duration.String()))
		result := NewSuccessResult(r.config.Title+" complete", details)
		result.SetWidth(r.width)
		_, _ = fmt.Fprintln(r.output, result.Render())
	}

	// Raw output is always useful after a failure
	if r.rawOutput != "" && (r.config.Verbose || err != nil) {
		out := NewOutput("GDB Output", r.rawOutput).SetWidth(r.width)
		if !r.config.Verbose {
			out.SetMaxLines(20)
		}
		_, _ = fmt.Fprintln(r.output)
		_, _ = fmt.Fprintln(r.output, out.Render())
	}

	return err
}

// SetRawOutput stores tool output for display after the result.
func (r *Runner) SetRawOutput(output string) {
	r.rawOutput = output
}

// Progress returns the step tracker, nil when the runner has no steps.
func (r *Runner) Progress() *Progress {
	return r.progress
}

// OnStep updates and prints a step. It is the StepCallback passed to
// operations and may be handed to a StepWriter created before Run.
func (r *Runner) OnStep(stepNumber int, name string, status StepStatus, message string) {
	if r.progress == nil {
		return
	}
	if name != "" && stepNumber > 0 && stepNumber <= len(r.progress.Steps) {
		r.progress.Steps[stepNumber-1].Name = name
	}
	r.progress.UpdateStep(stepNumber, status, message)

	step, ok := r.progress.Step(stepNumber)
	if !ok {
		return
	}
	switch status {
	case StepComplete, StepFailed, StepSkipped:
		_, _ = fmt.Fprintln(r.output, r.progress.renderStep(step))
	case StepRunning:
		// overwritten when the step finishes
		_, _ = fmt.Fprint(r.output, r.progress.renderStep(step)+"\r")
	}
}
