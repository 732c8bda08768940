package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// SlackNotifier posts update summaries to a Slack incoming webhook.
type SlackNotifier struct {
	logger zerolog.Logger
	poster *httpPoster
}

// NewSlackNotifier creates a Slack notifier or a noop notifier when the webhook is empty.
func NewSlackNotifier(logger zerolog.Logger, webhookURL string, opts ...Option) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "slack webhook not configured; slack notifications disabled")
	}
	return &SlackNotifier{
		logger: logger,
		poster: newHTTPPoster(logger, "slack", webhookURL, "application/json", applyOptions(opts)),
	}
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, update Update) error {
	payload, err := json.Marshal(buildSlackMessage(update))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := n.poster.post(ctx, update.Source.ID, payload); err != nil {
		return err
	}

	n.logger.Debug().
		Str("source", string(update.Source.ID)).
		Msg("slack notification sent")
	return nil
}

func buildSlackMessage(update Update) slack.WebhookMessage {
	header := slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", update.Source.PushTitle(), false, false))

	lines := update.Source.PushLines()
	fields := make([]*slack.TextBlockObject, 0, len(lines))
	for _, line := range lines {
		value := "unknown"
		if v, ok := update.Record.Get(line.Field); ok {
			value = fmt.Sprintf("%d", v)
		}
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*%s:*\n%s", line.Label, value), false, false))
	}
	section := slack.NewSectionBlock(nil, fields, nil)
	footer := slack.NewContextBlock("",
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("Source: *%s*", update.Source.ID), false, false),
	)

	blockSet := slack.Blocks{BlockSet: []slack.Block{header, section, footer}}
	return slack.WebhookMessage{
		Text:   update.Message(),
		Blocks: &blockSet,
	}
}
