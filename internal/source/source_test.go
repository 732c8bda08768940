package source

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

const fedPage = `<html><body>
<div class="card 2019coronavirus-summary">
  <ul>
    <li>Total cases: 1,629</li>
    <li>Total deaths: 41</li>
  </ul>
</div>
</body></html>`

const mnPage = `<html><body><div id="body"><ul>
<li>1893 approximate number of patients tested</li>
<li>14 positive</li>
</ul></div></body></html>`

const nyPage = `<html><body><table>
<tr><td>New York State (Outside of NYC)</td><td>120</td></tr>
<tr><td>New York City</td><td>95</td></tr>
<tr><td>Total Positive Cases (Statewide)</td><td>215</td></tr>
</table></body></html>`

const orPage = `<html><body><div class="ExternalClass23E56795FBF0468C9F856CD297450134"><table>
<tr><td>Test results</td></tr>
<tr><td>Positive</td><td>3</td></tr>
<tr><td>Negative</td><td>48</td></tr>
<tr><td>Pending</td><td>38</td></tr>
</table></div></body></html>`

const riPayload = `/*O_o*/
google.visualization.Query.setResponse({"version":"0.6","reqId":"1","status":"ok","table":{"cols":[{"id":"A","label":"","type":"string"},{"id":"B","label":"","type":"number"}],"rows":[{"c":[{"v":"Positive"},{"v":12.0,"f":"12"}]},{"c":[{"v":"Negative"},{"v":5.0,"f":"5"}]},{"c":[{"v":"Pending"},{"v":"2"}]},{"c":[{"v":"Quarantine"},{"v":1.0,"f":"1"}]}]}});`

func TestBuiltinExtractors(t *testing.T) {
	registry, err := NewRegistry(map[ID]Override{Minnesota: {URL: "https://example.com/mn"}})
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}

	cases := []struct {
		id   ID
		raw  string
		want map[string]int64
	}{
		{Federal, fedPage, map[string]int64{"positive_cases": 1629, "deaths": 41}},
		{Minnesota, mnPage, map[string]int64{"positive_cases": 14, "total_cases": 1893}},
		{NewYork, nyPage, map[string]int64{"upstate_cases": 120, "nyc_cases": 95, "total_cases": 215}},
		{Oregon, orPage, map[string]int64{"positive_cases": 3, "negative_tests": 48, "pending_tests": 38}},
		{RhodeIsland, riPayload, map[string]int64{"positive_cases": 12, "negative_tests": 5, "pending_tests": 2, "quarantine": 1}},
	}

	for _, tc := range cases {
		t.Run(string(tc.id), func(t *testing.T) {
			src, ok := registry.Get(tc.id)
			if !ok {
				t.Fatalf("source %s not registered", tc.id)
			}
			rec, err := src.Extractor.Extract([]byte(tc.raw))
			if err != nil {
				t.Fatalf("Extract error: %v", err)
			}
			if rec.Len() != len(tc.want) {
				t.Fatalf("expected %d fields, got %v", len(tc.want), rec.Fields())
			}
			for field, want := range tc.want {
				got, ok := rec.Get(field)
				if !ok || got != want {
					t.Fatalf("%s = %d (present %v), want %d", field, got, ok, want)
				}
			}
			if rec.Updated() {
				t.Fatalf("extractors must not set the update flag")
			}
			for _, line := range append(src.Lines, src.PushLines()...) {
				if _, ok := rec.Get(line.Field); !ok {
					t.Fatalf("summary line %q references unknown field %q", line.Label, line.Field)
				}
			}
		})
	}
}

func TestFedExtractor_MissingSummary(t *testing.T) {
	registry, err := NewRegistry(map[ID]Override{Minnesota: {URL: "https://example.com/mn"}})
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	src, _ := registry.Get(Federal)

	_, err = src.Extractor.Extract([]byte(`<html><body><ul><li>Total cases: 10</li></ul></body></html>`))
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if extractErr.Source != Federal {
		t.Fatalf("unexpected source: %s", extractErr.Source)
	}
	if !strings.Contains(extractErr.Error(), "2019coronavirus-summary") {
		t.Fatalf("expected missing summary in reason, got %q", extractErr.Error())
	}
}

func TestHTMLExtractor_NoPartialRecord(t *testing.T) {
	extractor := NewHTMLExtractor(Minnesota,
		HTMLField{Field: "first", Selector: "li", Index: 0, Word: WholeText},
		HTMLField{Field: "second", Selector: "li", Index: 1, Word: WholeText},
	)

	rec, err := extractor.Extract([]byte(`<ul><li>5</li><li>n/a</li></ul>`))
	if err == nil {
		t.Fatalf("expected error for non-numeric cell")
	}
	if rec.Len() != 0 {
		t.Fatalf("expected empty record on failure, got %v", rec.Fields())
	}
}

func TestHTMLExtractor_MissingWord(t *testing.T) {
	extractor := NewHTMLExtractor(Federal,
		HTMLField{Field: "deaths", Selector: "li", Index: 0, Word: 2},
	)

	_, err := extractor.Extract([]byte(`<ul><li>deaths</li></ul>`))
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestGvizExtractor_Failures(t *testing.T) {
	extractor := NewGvizExtractor(RhodeIsland,
		GvizCell{Field: "positive_cases", Row: 0, Col: 1},
		GvizCell{Field: "quarantine", Row: 3, Col: 1},
	)

	cases := []struct {
		name string
		raw  string
	}{
		{"not jsonp", "<html>oops</html>"},
		{"bad json", "setResponse({not json});"},
		{"missing row", `setResponse({"table":{"rows":[{"c":[{"v":"Positive"},{"v":1}]}]}});`},
		{"null cell", `setResponse({"table":{"rows":[{"c":[{"v":"a"},{"v":null}]},{},{},{"c":[{"v":"b"},{"v":2}]}]}});`},
		{"text cell", `setResponse({"table":{"rows":[{"c":[{"v":"a"},{"v":"none"}]},{},{},{"c":[{"v":"b"},{"v":2}]}]}});`},
		{"overflowing cell", `setResponse({"table":{"rows":[{"c":[{"v":"a"},{"v":1e30}]},{},{},{"c":[{"v":"b"},{"v":2}]}]}});`},
		{"negative overflow", `setResponse({"table":{"rows":[{"c":[{"v":"a"},{"v":3}]},{},{},{"c":[{"v":"b"},{"v":-1e19}]}]}});`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := extractor.Extract([]byte(tc.raw))
			var extractErr *ExtractionError
			if !errors.As(err, &extractErr) {
				t.Fatalf("expected ExtractionError, got %v", err)
			}
		})
	}
}

func TestCellValue_FloatRange(t *testing.T) {
	cases := []struct {
		name    string
		input   float64
		want    int64
		wantErr bool
	}{
		{name: "whole", input: 20, want: 20},
		{name: "fraction truncates", input: 7.9, want: 7},
		{name: "negative", input: -4, want: -4},
		{name: "largest exact", input: 9007199254740992, want: 9007199254740992},
		{name: "min int64", input: math.MinInt64, want: math.MinInt64},
		{name: "two to the 63", input: 9.223372036854775808e18, wantErr: true},
		{name: "huge", input: 1e30, wantErr: true},
		{name: "below min", input: -1e19, wantErr: true},
		{name: "nan", input: math.NaN(), wantErr: true},
		{name: "positive infinity", input: math.Inf(1), wantErr: true},
		{name: "negative infinity", input: math.Inf(-1), wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := cellValue(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("cellValue(%g) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseCount(t *testing.T) {
	cases := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"12", 12, false},
		{"  1,629\n", 1629, false},
		{"14 positive", 14, false},
		{"41*", 41, false},
		{"-3", -3, false},
		{"", 0, true},
		{"n/a", 0, true},
		{"-", 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parseCount(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("parseCount(%q) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestNewRegistry(t *testing.T) {
	if _, err := NewRegistry(nil); err == nil || !strings.Contains(err.Error(), `"mn"`) {
		t.Fatalf("expected missing mn url error, got %v", err)
	}

	if _, err := NewRegistry(map[ID]Override{"tx": {URL: "https://example.com"}}); err == nil {
		t.Fatalf("expected unknown source error")
	}

	registry, err := NewRegistry(map[ID]Override{
		Minnesota: {URL: "https://example.com/mn"},
		Federal:   {URL: "https://example.com/fed", Timeout: 3 * time.Second},
	})
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}

	ids := registry.IDs()
	want := []ID{Minnesota, Federal, NewYork, RhodeIsland, Oregon}
	if len(ids) != len(want) {
		t.Fatalf("unexpected ids: %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("unexpected order: %v", ids)
		}
	}

	fed, _ := registry.Get(Federal)
	if fed.URL != "https://example.com/fed" || fed.Timeout != 3*time.Second {
		t.Fatalf("override not applied: %+v", fed)
	}
	ny, _ := registry.Lookup(" NY ")
	if ny.URL != defaultNYURL {
		t.Fatalf("unexpected ny url: %s", ny.URL)
	}
	if _, ok := registry.Lookup("tx"); ok {
		t.Fatalf("unexpected lookup hit")
	}
}
