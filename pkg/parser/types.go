// Package parser turns raw cutting-machine log lines into cut records.
package parser

import "fmt"

// ParseError describes a log line that could not be turned into a record.
type ParseError struct {
	// Source is the file name the line came from, if known.
	Source string

	// LineNum is the 1-based line number in the source file, if known.
	LineNum int

	// Line is the raw line content.
	Line string

	// Reason says what was wrong with the line.
	Reason string
}

func (e *ParseError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s:%d: %s", e.Source, e.LineNum, e.Reason)
	}
	if e.LineNum > 0 {
		return fmt.Sprintf("line %d: %s", e.LineNum, e.Reason)
	}
	return fmt.Sprintf("parse %q: %s", e.Line, e.Reason)
}

func newParseError(line, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}
