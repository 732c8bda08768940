package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/nholik/case-sentinel/internal/record"
	"github.com/theory/jsonpath"
)

// GvizCell locates one integer in a Google Visualization query response.
type GvizCell struct {
	Field string
	Row   int
	Col   int
}

// GvizExtractor reads cells out of a gviz JSONP payload
// (google.visualization.Query.setResponse({...});).
type GvizExtractor struct {
	source ID
	cells  []GvizCell
	paths  []*jsonpath.Path
}

// NewGvizExtractor compiles a JSONPath selector for every cell.
func NewGvizExtractor(id ID, cells ...GvizCell) *GvizExtractor {
	paths := make([]*jsonpath.Path, len(cells))
	for i, cell := range cells {
		paths[i] = jsonpath.MustParse(fmt.Sprintf("$.table.rows[%d].c[%d].v", cell.Row, cell.Col))
	}
	return &GvizExtractor{source: id, cells: append([]GvizCell(nil), cells...), paths: paths}
}

// Extract implements Extractor.
func (e *GvizExtractor) Extract(raw []byte) (record.Record, error) {
	body, err := unwrapJSONP(raw)
	if err != nil {
		return record.Record{}, &ExtractionError{Source: e.source, Reason: "unwrap response", Err: err}
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return record.Record{}, &ExtractionError{Source: e.source, Reason: "decode response", Err: err}
	}

	values := make(map[string]int64, len(e.cells))
	for i, cell := range e.cells {
		nodes := e.paths[i].Select(doc)
		if len(nodes) == 0 {
			return record.Record{}, &ExtractionError{
				Source: e.source,
				Reason: fmt.Sprintf("%s: no cell at row %d col %d", cell.Field, cell.Row, cell.Col),
			}
		}
		value, err := cellValue(nodes[0])
		if err != nil {
			return record.Record{}, &ExtractionError{Source: e.source, Reason: cell.Field, Err: err}
		}
		values[cell.Field] = value
	}
	return record.New(values), nil
}

func unwrapJSONP(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return trimmed, nil
	}
	start := bytes.IndexByte(trimmed, '(')
	end := bytes.LastIndexByte(trimmed, ')')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("payload is not a setResponse call")
	}
	return trimmed[start+1 : end], nil
}

func cellValue(node any) (int64, error) {
	switch v := node.(type) {
	case float64:
		// 2^63 is exactly representable; anything at or past it overflows int64.
		if math.IsNaN(v) || v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, fmt.Errorf("cell value %g out of range", v)
		}
		return int64(math.Trunc(v)), nil
	case string:
		return parseCount(v)
	case nil:
		return 0, fmt.Errorf("cell is empty")
	default:
		return 0, fmt.Errorf("unexpected cell type %T", node)
	}
}
