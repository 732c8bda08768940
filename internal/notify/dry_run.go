package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// DryRunNotifier logs updates without sending notifications.
type DryRunNotifier struct {
	logger zerolog.Logger
	inner  Notifier
}

// NewDryRunNotifier returns a notifier that suppresses delivery and logs instead.
func NewDryRunNotifier(logger zerolog.Logger, inner Notifier) *DryRunNotifier {
	return &DryRunNotifier{logger: logger, inner: inner}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, update Update) error {
	n.logger.Info().
		Str("source", string(update.Source.ID)).
		Interface("record", update.Record).
		Str("message", update.Message()).
		Msg("[DRY-RUN] Would notify")
	return nil
}
