package report

import (
	"fmt"
	"strings"

	"github.com/nholik/case-sentinel/internal/record"
	"github.com/nholik/case-sentinel/internal/source"
)

// Update renders the push message sent when a source's data changed.
func Update(src source.Source, rec record.Record) string {
	return render(src.PushTitle()+": ", src.PushLines(), rec)
}

// Current renders the reply to an on-demand chat command.
func Current(src source.Source, rec record.Record) string {
	return render(fmt.Sprintf("%s Coronavirus Data: ", src.Name), src.Lines, rec)
}

// Missing renders the reply for a source that has not been scraped yet.
func Missing(src source.Source) string {
	return fmt.Sprintf("No %s data yet.", src.Name)
}

func render(title string, lines []source.Line, rec record.Record) string {
	var b strings.Builder
	b.WriteString(title)
	for _, line := range lines {
		value := "unknown"
		if v, ok := rec.Get(line.Field); ok {
			value = fmt.Sprintf("%d", v)
		}
		fmt.Fprintf(&b, "\n%s: %s", line.Label, value)
	}
	return b.String()
}
