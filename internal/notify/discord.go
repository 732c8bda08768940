package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// discordContentLimit is the maximum message length Discord accepts.
const discordContentLimit = 2000

// DiscordNotifier posts update summaries to a Discord channel webhook.
type DiscordNotifier struct {
	logger zerolog.Logger
	poster *httpPoster
}

// NewDiscordNotifier creates a Discord webhook notifier or a noop notifier when
// the webhook is empty.
func NewDiscordNotifier(logger zerolog.Logger, webhookURL string, opts ...Option) Notifier {
	if webhookURL == "" {
		return NewNoop(logger, "discord webhook not configured; notifications disabled")
	}
	return &DiscordNotifier{
		logger: logger,
		poster: newHTTPPoster(logger, "discord", webhookURL, "application/json", applyOptions(opts)),
	}
}

// Notify implements Notifier.
func (n *DiscordNotifier) Notify(ctx context.Context, update Update) error {
	payload, err := json.Marshal(buildDiscordMessage(update))
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	if err := n.poster.post(ctx, update.Source.ID, payload); err != nil {
		return err
	}

	n.logger.Debug().
		Str("source", string(update.Source.ID)).
		Msg("discord notification sent")
	return nil
}

func buildDiscordMessage(update Update) discordgo.WebhookParams {
	return discordgo.WebhookParams{
		Content: truncateContent(update.Message(), discordContentLimit),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}
}

// truncateContent cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncateContent(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
