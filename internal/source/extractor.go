package source

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/nholik/case-sentinel/internal/record"
)

// Extractor turns raw fetched content into a Record.
// Implementations must fail rather than return a partial record.
type Extractor interface {
	Extract(raw []byte) (record.Record, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(raw []byte) (record.Record, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(raw []byte) (record.Record, error) {
	return f(raw)
}

// ExtractionError reports that an expected element was missing or non-numeric.
type ExtractionError struct {
	Source ID
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Source, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

var errNoDigits = errors.New("no leading integer")

// parseCount reads the leading integer of a text fragment, ignoring
// surrounding whitespace and thousands separators.
func parseCount(text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.ReplaceAll(trimmed, ",", "")

	end := 0
	if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "+") {
		end = 1
	}
	start := end
	for end < len(trimmed) && unicode.IsDigit(rune(trimmed[end])) {
		end++
	}
	if end == start {
		return 0, fmt.Errorf("%w in %q", errNoDigits, text)
	}

	value, err := strconv.ParseInt(trimmed[:end], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", text, err)
	}
	return value, nil
}
