package parser

import "fmt"

// FormatError is returned for an unrecognized keyword or a malformed field.
// It aborts the whole parse.
type FormatError struct {
	Line    int    // 1-based line number
	Token   string // offending keyword or field, verbatim
	Content string // full source line
	Reason  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s: %s (line: %q)", e.Line, e.Reason, e.Token, e.Content)
}

// IndexError is returned when a NODES or EDGES block does not match the
// declared SIZE.
type IndexError struct {
	Line     int
	Section  string
	Unit     string // "rows" or "columns"
	Expected int
	Got      int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("line %d: %s: expected %d %s, got %d", e.Line, e.Section, e.Expected, e.Unit, e.Got)
}

// IllegalStateError is returned when a solution is parsed without a usable instance.
type IllegalStateError struct {
	Reason string
}

func (e *IllegalStateError) Error() string {
	return "illegal state: " + e.Reason
}

// EmptyResultError is returned when a solution file yields no usable route.
type EmptyResultError struct {
	// SectionFound is false when the file had no Solution section at all.
	SectionFound bool
	Skipped      int
}

func (e *EmptyResultError) Error() string {
	if !e.SectionFound {
		return "solution has no routes: Solution section not found"
	}
	return fmt.Sprintf("solution has no routes: %d route lines skipped", e.Skipped)
}
