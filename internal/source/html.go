package source

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nholik/case-sentinel/internal/record"
)

// WholeText selects the full text of an element instead of a single word.
const WholeText = -1

// HTMLField locates one integer on an HTML page by structural position.
type HTMLField struct {
	Field string
	// Scope narrows the search to the first matching container; empty means the document.
	Scope    string
	Selector string
	// Index picks the Nth match; negative values count from the end.
	Index int
	// Word picks a whitespace-separated token of the element text, or WholeText.
	Word int
}

// HTMLExtractor reads fixed positions out of an HTML page.
type HTMLExtractor struct {
	source ID
	fields []HTMLField
}

// NewHTMLExtractor returns an extractor for the given field positions.
func NewHTMLExtractor(id ID, fields ...HTMLField) *HTMLExtractor {
	return &HTMLExtractor{source: id, fields: append([]HTMLField(nil), fields...)}
}

// Extract implements Extractor.
func (e *HTMLExtractor) Extract(raw []byte) (record.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return record.Record{}, &ExtractionError{Source: e.source, Reason: "parse html", Err: err}
	}

	values := make(map[string]int64, len(e.fields))
	for _, field := range e.fields {
		value, err := e.extractField(doc, field)
		if err != nil {
			return record.Record{}, err
		}
		values[field.Field] = value
	}
	return record.New(values), nil
}

func (e *HTMLExtractor) extractField(doc *goquery.Document, field HTMLField) (int64, error) {
	scope := doc.Selection
	if field.Scope != "" {
		scope = doc.Find(field.Scope).First()
		if scope.Length() == 0 {
			return 0, &ExtractionError{Source: e.source, Reason: fmt.Sprintf("missing %s", field.Scope)}
		}
	}

	matches := scope.Find(field.Selector)
	index := field.Index
	if index < 0 {
		index += matches.Length()
	}
	if index < 0 || index >= matches.Length() {
		return 0, &ExtractionError{
			Source: e.source,
			Reason: fmt.Sprintf("%s: no %s at position %d (found %d)", field.Field, field.Selector, field.Index, matches.Length()),
		}
	}

	text := matches.Eq(index).Text()
	if field.Word != WholeText {
		words := strings.Fields(text)
		if field.Word >= len(words) {
			return 0, &ExtractionError{
				Source: e.source,
				Reason: fmt.Sprintf("%s: word %d missing in %q", field.Field, field.Word, strings.TrimSpace(text)),
			}
		}
		text = words[field.Word]
	}

	value, err := parseCount(text)
	if err != nil {
		return 0, &ExtractionError{Source: e.source, Reason: field.Field, Err: err}
	}
	return value, nil
}
