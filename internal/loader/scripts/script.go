// Package scripts holds the GDB scripts the loader runs against an OpenOCD
// target, and the result types their output is parsed into.
package scripts

import (
	"time"
)

// Script is a GDB command file rendered from a template and run in batch
// mode.
type Script interface {
	// Name identifies the script in logs, errors and temp file names.
	Name() string

	// Template returns the text/template source of the command file.
	Template() string

	// Params returns the data the template is executed with.
	Params() map[string]interface{}

	// Parse turns GDB stdout into a Result.
	Parse(output string) (*Result, error)

	// Streaming reports whether stdout should be forwarded while GDB runs,
	// so callers can follow progress on long operations.
	Streaming() bool
}

// Step statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Step is one progress marker echoed by a script, such as
// "[2/4] Writing font (4096 bytes at 0x100fe000)".
type Step struct {
	Number  int
	Total   int
	Name    string
	Status  string
	Message string
}

// Result is the parsed outcome of a script run.
type Result struct {
	Success bool

	// Duration is set by the executor
	Duration time.Duration

	// BytesWritten counts bytes programmed and verified on the device
	BytesWritten int

	Steps []Step

	// Data holds script specific values, e.g. "loaded" for the load script
	Data map[string]interface{}

	// Error explains a failed run when Success is false
	Error error

	RawOutput string
	RawStderr string
}

// NewResult creates an empty, unsuccessful result.
func NewResult() *Result {
	return &Result{
		Steps: make([]Step, 0),
		Data:  make(map[string]interface{}),
	}
}

// AddStep appends a step.
func (r *Result) AddStep(step Step) {
	r.Steps = append(r.Steps, step)
}

func (r *Result) SetData(key string, value interface{}) {
	r.Data[key] = value
}

// GetDataInt returns an int value, or 0 if key is missing or not an int.
func (r *Result) GetDataInt(key string) int {
	if v, ok := r.Data[key].(int); ok {
		return v
	}
	return 0
}

// GetDataStrings returns a []string value, or nil.
func (r *Result) GetDataStrings(key string) []string {
	if v, ok := r.Data[key].([]string); ok {
		return v
	}
	return nil
}

func (r *Result) SuccessSteps() int {
	return r.countSteps(StatusSuccess)
}

func (r *Result) FailedSteps() int {
	return r.countSteps(StatusFailed)
}

func (r *Result) TotalSteps() int {
	return len(r.Steps)
}

func (r *Result) countSteps(status string) int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == status {
			n++
		}
	}
	return n
}
