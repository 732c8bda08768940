package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	defaultLoginMaxElapsed = 2 * time.Minute
	loginInitialInterval   = time.Second
)

// Session is the subset of *discordgo.Session the bot needs.
type Session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordBot answers chat commands in Discord channels.
type DiscordBot struct {
	logger          zerolog.Logger
	session         Session
	dispatcher      *Dispatcher
	loginMaxElapsed time.Duration
}

// BotOption customizes bot behavior.
type BotOption func(*DiscordBot)

// WithSession replaces the discordgo session (primarily for testing).
func WithSession(session Session) BotOption {
	return func(b *DiscordBot) {
		b.session = session
	}
}

// WithLoginMaxElapsed bounds how long startup keeps retrying the gateway login.
func WithLoginMaxElapsed(d time.Duration) BotOption {
	return func(b *DiscordBot) {
		if d > 0 {
			b.loginMaxElapsed = d
		}
	}
}

// NewDiscordBot creates a bot authenticated with token.
func NewDiscordBot(logger zerolog.Logger, token string, dispatcher *Dispatcher, opts ...BotOption) (*DiscordBot, error) {
	b := &DiscordBot{
		logger:          logger,
		dispatcher:      dispatcher,
		loginMaxElapsed: defaultLoginMaxElapsed,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.session == nil {
		if token == "" {
			return nil, errors.New("discord token is required")
		}
		session, err := discordgo.New("Bot " + token)
		if err != nil {
			return nil, fmt.Errorf("create discord session: %w", err)
		}
		session.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages |
			discordgo.IntentMessageContent
		b.session = session
	}

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	return b, nil
}

// Run logs in and serves commands until ctx is canceled.
func (b *DiscordBot) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = loginInitialInterval
	policy.MaxElapsedTime = b.loginMaxElapsed

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := b.session.Open(); err != nil {
			b.logger.Warn().Err(err).Int("attempt", attempt).Msg("discord login failed")
			return err
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("discord login: %w", err)
	}

	<-ctx.Done()
	if err := b.session.Close(); err != nil {
		b.logger.Warn().Err(err).Msg("discord close failed")
	}
	b.logger.Info().Msg("discord bot stopped")
	return nil
}

func (b *DiscordBot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		b.logger.Info().Str("user", r.User.Username).Msg("discord bot logged in")
	}
}

func (b *DiscordBot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s != nil && s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	b.handle(m.Message)
}

func (b *DiscordBot) handle(m *discordgo.Message) {
	reply, ok := b.dispatcher.Handle(m.Content)
	if !ok {
		return
	}
	if _, err := b.session.ChannelMessageSendReply(m.ChannelID, reply, m.Reference()); err != nil {
		b.logger.Warn().Err(err).Str("channel", m.ChannelID).Msg("discord reply failed")
		return
	}
	b.logger.Debug().Str("channel", m.ChannelID).Str("command", m.Content).Msg("command answered")
}
