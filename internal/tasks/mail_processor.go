package tasks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"contactbook/internal/mail"
	"contactbook/internal/queue"
)

// MailProcessor delivers queued mail entries through an outbound sender.
type MailProcessor struct {
	sender mail.Sender
	logger zerolog.Logger
}

func NewMailProcessor(sender mail.Sender, logger zerolog.Logger) *MailProcessor {
	return &MailProcessor{
		sender: sender,
		logger: logger,
	}
}

func (p *MailProcessor) Handle(ctx context.Context, msg redis.XMessage) error {
	m, err := mail.DecodeMessage(msg.Values)
	if err != nil {
		return fmt.Errorf("%w: decode mail %s: %v", queue.ErrPermanent, msg.ID, err)
	}

	if err := p.sender.Send(ctx, m); err != nil {
		return fmt.Errorf("deliver mail %s: %w", msg.ID, err)
	}

	p.logger.Info().
		Str("message_id", msg.ID).
		Str("subject", m.Subject).
		Msg("mail delivered")
	return nil
}
