package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// NoopNotifier drops notifications when no delivery target is configured.
type NoopNotifier struct {
	logger zerolog.Logger
	reason string
}

// NewNoop returns a notifier that logs once and does nothing thereafter.
func NewNoop(logger zerolog.Logger, reason string) *NoopNotifier {
	if reason != "" {
		logger.Info().Msg(reason)
	}
	return &NoopNotifier{logger: logger, reason: reason}
}

// Notify implements Notifier.
func (n *NoopNotifier) Notify(_ context.Context, update Update) error {
	n.logger.Debug().
		Str("source", string(update.Source.ID)).
		Str("reason", n.reason).
		Msg("notification skipped")
	return nil
}
