package linkscript

import (
	"errors"
	"fmt"
)

// Error kinds reported by this package. Every error returned by Eval,
// FindRegion and Patch matches exactly one of these with errors.Is.
var (
	ErrParse                      = errors.New("parse error")
	ErrIntegerOverflow            = errors.New("integer overflow")
	ErrRegionNotFound             = errors.New("memory region not found")
	ErrMissingOrigin              = errors.New("memory region has no ORIGIN")
	ErrMissingLength              = errors.New("memory region has no LENGTH")
	ErrReservedSpaceExceedsRegion = errors.New("reserved space exceeds memory region")
	ErrInvalidReservation         = errors.New("reserved space is negative")
)

// ParseError describes where an expression stopped matching the grammar.
type ParseError struct {
	// Input is the full expression text being evaluated
	Input string
	// Offset is the byte offset within Input where parsing failed
	Offset int
	// Expected names what the parser was looking for
	Expected string
	// Err is ErrParse or ErrIntegerOverflow
	Err error
}

func (e *ParseError) Error() string {
	rest := e.Input[e.Offset:]
	if len(rest) > 20 {
		rest = rest[:20] + "..."
	}
	if e.Expected != "" {
		return fmt.Sprintf("%v at offset %d (%q): expected %s", e.Err, e.Offset, rest, e.Expected)
	}
	return fmt.Sprintf("%v at offset %d (%q)", e.Err, e.Offset, rest)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Error is a failure tied to a memory region of a linker script.
type Error struct {
	// Region is the region name that was searched for
	Region string
	// Line is the 1-based line of the declaration, 0 when unknown
	Line int
	// Detail adds context such as the lengths involved
	Detail string
	// Err is one of the package error kinds, possibly wrapped
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("region %s", e.Region)
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	msg += ": " + e.Err.Error()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}
