package pipeline

import (
	"errors"
	"fmt"
)

// ErrIO marks failures reading inputs or writing artifacts.
var ErrIO = errors.New("i/o error")

// Build stages, as reported in StageError.
const (
	StageConfig     = "config"
	StageLayout     = "layout"
	StageLinkScript = "link script"
	StageCodegen    = "codegen"
	StageEmbed      = "embed"
	StageManifest   = "manifest"
	StageCommit     = "commit"
)

// StageError reports which build stage failed and on which file.
type StageError struct {
	// Stage is one of the Stage constants
	Stage string
	// Path is the file being processed, if any
	Path string
	// Underlying error
	Err error
}

func (e *StageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func ioErr(err error) error {
	return fmt.Errorf("%w: %w", ErrIO, err)
}
