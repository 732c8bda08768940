package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/nholik/case-sentinel/internal/record"
	"github.com/rs/zerolog"
)

const defaultWebhookTemplate = `{"source":"{{ .Source }}","record":{{ toJson .Record }},"message":{{ toJson .Message }}}`

// WebhookPayload is the template context for webhook notifications.
type WebhookPayload struct {
	Source      string
	Name        string
	Record      record.Record
	Message     string
	GeneratedAt time.Time
}

// WebhookNotifier sends update notifications to a generic webhook.
type WebhookNotifier struct {
	logger   zerolog.Logger
	template *template.Template
	poster   *httpPoster
}

// NewWebhookNotifier creates a webhook notifier with the provided template.
// It returns nil when no webhook is configured.
func NewWebhookNotifier(logger zerolog.Logger, webhookURL string, tmpl string, opts ...Option) (*WebhookNotifier, error) {
	if webhookURL == "" {
		return nil, nil
	}
	if tmpl == "" {
		tmpl = defaultWebhookTemplate
	}

	parsed, err := template.New("webhook").Funcs(template.FuncMap{
		"toJson": func(v any) (string, error) {
			encoded, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return string(encoded), nil
		},
	}).Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse webhook template: %w", err)
	}

	return &WebhookNotifier{
		logger:   logger,
		template: parsed,
		poster:   newHTTPPoster(logger, "webhook", webhookURL, "application/json", applyOptions(opts)),
	}, nil
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, update Update) error {
	if n == nil {
		return nil
	}

	payload := WebhookPayload{
		Source:      string(update.Source.ID),
		Name:        update.Source.Name,
		Record:      update.Record,
		Message:     update.Message(),
		GeneratedAt: time.Now().UTC(),
	}

	var buf bytes.Buffer
	if err := n.template.Execute(&buf, payload); err != nil {
		return fmt.Errorf("render webhook template: %w", err)
	}

	if err := n.poster.post(ctx, update.Source.ID, buf.Bytes()); err != nil {
		return err
	}

	n.logger.Debug().
		Str("source", payload.Source).
		Msg("webhook notification sent")

	return nil
}
