package loader

import (
	"fmt"

	"github.com/muurk/blobpack/internal/blob"
)

// ExecutionError is a GDB run that failed to start, exited non-zero or
// timed out.
type ExecutionError struct {
	Script   string
	ExitCode int
	Stderr   string
	Stdout   string
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gdb execution failed for script %q (exit code %d): %v\nstderr: %s",
			e.Script, e.ExitCode, e.Err, e.Stderr)
	}
	return fmt.Sprintf("gdb execution failed for script %q (exit code %d)\nstderr: %s",
		e.Script, e.ExitCode, e.Stderr)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ConnectionError means OpenOCD could not be reached.
type ConnectionError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to OpenOCD at %s:%d: %v\n"+
		"Hint: start OpenOCD for your probe and target, e.g. openocd -f interface/cmsis-dap.cfg -f target/rp2040.cfg",
		e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// PrerequisiteError is a missing tool.
type PrerequisiteError struct {
	Prerequisite string
	Details      string
	Err          error
}

func (e *PrerequisiteError) Error() string {
	msg := fmt.Sprintf("missing prerequisite: %s", e.Prerequisite)
	if e.Details != "" {
		msg += "\n" + e.Details
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\nError: %v", e.Err)
	}
	return msg
}

func (e *PrerequisiteError) Unwrap() error {
	return e.Err
}

// TemplateError is a script template that failed to render.
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("failed to render template %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// TimeoutError is a GDB run cut off by the configured timeout.
type TimeoutError struct {
	Script  string
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gdb operation timed out for script %q after %s\n"+
		"Hint: increase --timeout or check the probe connection",
		e.Script, e.Timeout)
}

// ChecksumMismatchError is a blob file that no longer matches the build
// that produced the manifest. Loading it would make the firmware panic on
// first access.
type ChecksumMismatchError struct {
	Blob     string
	Path     string
	WantSize uint32
	GotSize  uint64
	Want     blob.Checksum
	Got      blob.Checksum
}

func (e *ChecksumMismatchError) Error() string {
	if uint64(e.WantSize) != e.GotSize {
		return fmt.Sprintf("blob %s (%s): size is %d bytes, manifest expects %d; rebuild before loading",
			e.Blob, e.Path, e.GotSize, e.WantSize)
	}
	return fmt.Sprintf("blob %s (%s): sha1 %s does not match manifest %s; rebuild before loading",
		e.Blob, e.Path, e.Got, e.Want)
}
