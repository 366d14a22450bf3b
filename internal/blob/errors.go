package blob

import (
	"errors"
	"fmt"
)

// Error kinds reported by this package.
var (
	ErrNoBlobsDefined  = errors.New("no blobs defined")
	ErrIO              = errors.New("i/o error")
	ErrEncoding        = errors.New("path is not valid UTF-8")
	ErrIntegerOverflow = errors.New("integer overflow")
	ErrInvalidConfig   = errors.New("invalid blob configuration")
)

// Error is a failure tied to a single blob or configuration file.
type Error struct {
	// Blob is the blob name, empty for file level errors
	Blob string
	// Path is the file involved, if any
	Path string
	// Err is one of the package error kinds, possibly joined with the cause
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Blob != "" && e.Path != "":
		return fmt.Sprintf("blob %s (%s): %v", e.Blob, e.Path, e.Err)
	case e.Blob != "":
		return fmt.Sprintf("blob %s: %v", e.Blob, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ioError(name, path string, err error) error {
	return &Error{Blob: name, Path: path, Err: fmt.Errorf("%w: %w", ErrIO, err)}
}
