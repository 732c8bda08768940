package notify

import (
	"context"

	"github.com/nholik/case-sentinel/internal/record"
	"github.com/nholik/case-sentinel/internal/report"
	"github.com/nholik/case-sentinel/internal/source"
)

// Update is a freshly committed record that differs from its predecessor.
type Update struct {
	Source source.Source
	Record record.Record
}

// Message renders the human-readable summary of the update.
func (u Update) Message() string {
	return report.Update(u.Source, u.Record)
}

// Notifier delivers update alerts to external systems. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, update Update) error
}
