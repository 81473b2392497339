package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/pdptw-visualizer/backend/internal/models"
)

// Both file formats are line oriented. Header lines are "TOKEN: value";
// section headers and terminators carry no colon.

// splitLines splits text on newlines, dropping a trailing carriage return.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// tokenize splits a line at its first colon. A line without a colon is
// returned as a token with an empty value.
func tokenize(line string) (token, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return strings.Trim(line, " \t"), ""
	}
	return strings.Trim(line[:idx], " \t"), strings.TrimSpace(line[idx+1:])
}

// isBlank reports whether a line holds only whitespace.
func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// stripSpaces removes every whitespace character from s.
func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func parseIntField(lineNum int, line, field, raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &FormatError{
			Line:    lineNum,
			Token:   field,
			Content: line,
			Reason:  "invalid integer " + strconv.Quote(raw),
		}
	}
	return v, nil
}

func parseFloatField(lineNum int, line, field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &FormatError{
			Line:    lineNum,
			Token:   field,
			Content: line,
			Reason:  "invalid number " + strconv.Quote(raw),
		}
	}
	return v, nil
}

func newWarning(lineNum int, line, reason string) *models.ParseError {
	return &models.ParseError{
		Line:    lineNum,
		Content: line,
		Reason:  reason,
	}
}
