package source

const (
	defaultFedURL = "https://www.cdc.gov/coronavirus/2019-ncov/cases-in-us.html"
	defaultNYURL  = "https://www.health.ny.gov/diseases/communicable/coronavirus/"
	defaultRIURL  = "https://docs.google.com/spreadsheets/u/0/d/1n-zMS9Al94CPj_Tc3K7Adin-tN9x1RSjjx2UzJ4SV7Q/gviz/tq?headers=0&range=A2:B5&gid=0&tqx=reqId:1"
	defaultORURL  = "https://www.oregon.gov/oha/PH/DISEASESCONDITIONS/DISEASESAZ/Pages/emerging-respiratory-infections.aspx"
)

// DefaultURL returns the built-in endpoint for id. Minnesota has none and
// must be configured.
func DefaultURL(id ID) string {
	for _, def := range builtin() {
		if def.ID == id {
			return def.URL
		}
	}
	return ""
}

func builtin() []Source {
	return []Source{
		{
			ID:   Minnesota,
			Name: "Minnesota",
			Extractor: NewHTMLExtractor(Minnesota,
				HTMLField{Field: "positive_cases", Scope: "#body", Selector: "li", Index: 1, Word: 0},
				HTMLField{Field: "total_cases", Scope: "#body", Selector: "li", Index: 0, Word: 0},
			),
			Lines: []Line{
				{Label: "Positive", Field: "positive_cases"},
				{Label: "Total Tested", Field: "total_cases"},
			},
		},
		{
			ID:   Federal,
			Name: "Federal",
			URL:  defaultFedURL,
			// The class name starts with a digit, which a class selector cannot express.
			Extractor: NewHTMLExtractor(Federal,
				HTMLField{Field: "positive_cases", Scope: `[class~="2019coronavirus-summary"]`, Selector: "li", Index: 0, Word: 2},
				HTMLField{Field: "deaths", Scope: `[class~="2019coronavirus-summary"]`, Selector: "li", Index: 1, Word: 2},
			),
			Lines: []Line{
				{Label: "Positive", Field: "positive_cases"},
				{Label: "Deaths", Field: "deaths"},
			},
			UpdateLines: []Line{
				{Label: "Positive Cases", Field: "positive_cases"},
				{Label: "Deaths", Field: "deaths"},
			},
		},
		{
			ID:   NewYork,
			Name: "New York",
			URL:  defaultNYURL,
			Extractor: NewHTMLExtractor(NewYork,
				HTMLField{Field: "upstate_cases", Selector: "td", Index: -5, Word: WholeText},
				HTMLField{Field: "nyc_cases", Selector: "td", Index: -3, Word: WholeText},
				HTMLField{Field: "total_cases", Selector: "td", Index: -1, Word: WholeText},
			),
			Lines: []Line{
				{Label: "NYC Positive", Field: "nyc_cases"},
				{Label: "Non-NYC Positive", Field: "upstate_cases"},
				{Label: "Total Positive", Field: "total_cases"},
			},
			UpdateTitle: "New York Coronavirus Data",
			UpdateLines: []Line{
				{Label: "NYC Positive Cases", Field: "nyc_cases"},
				{Label: "Non-NYC Positive Cases", Field: "upstate_cases"},
				{Label: "Total Positive Cases", Field: "total_cases"},
			},
		},
		{
			ID:   RhodeIsland,
			Name: "Rhode Island",
			URL:  defaultRIURL,
			Extractor: NewGvizExtractor(RhodeIsland,
				GvizCell{Field: "positive_cases", Row: 0, Col: 1},
				GvizCell{Field: "negative_tests", Row: 1, Col: 1},
				GvizCell{Field: "pending_tests", Row: 2, Col: 1},
				GvizCell{Field: "quarantine", Row: 3, Col: 1},
			),
			Lines: []Line{
				{Label: "Positive", Field: "positive_cases"},
				{Label: "Negative tests", Field: "negative_tests"},
				{Label: "Pending Tests", Field: "pending_tests"},
				{Label: "Under Quarantine", Field: "quarantine"},
			},
		},
		{
			ID:   Oregon,
			Name: "Oregon",
			URL:  defaultORURL,
			Extractor: NewHTMLExtractor(Oregon,
				HTMLField{Field: "positive_cases", Scope: ".ExternalClass23E56795FBF0468C9F856CD297450134", Selector: "td", Index: 2, Word: WholeText},
				HTMLField{Field: "negative_tests", Scope: ".ExternalClass23E56795FBF0468C9F856CD297450134", Selector: "td", Index: 4, Word: WholeText},
				HTMLField{Field: "pending_tests", Scope: ".ExternalClass23E56795FBF0468C9F856CD297450134", Selector: "td", Index: 6, Word: WholeText},
			),
			Lines: []Line{
				{Label: "Positive", Field: "positive_cases"},
				{Label: "Negative tests", Field: "negative_tests"},
				{Label: "Pending Tests", Field: "pending_tests"},
			},
		},
	}
}
