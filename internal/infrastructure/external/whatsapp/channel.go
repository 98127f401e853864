package whatsapp

import (
	"context"
	"log/slog"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/notification"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/circuitbreaker"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOUD CHANNEL
// ══════════════════════════════════════════════════════════════════════════════

// CloudChannel delivers reminders through the Cloud API. Each send is
// retried per retry.WhatsApp and judged by a breaker that trips on provider
// failures and throttling, not on refused recipients.
type CloudChannel struct {
	client      *Client
	countryCode string
	policy      retry.Policy
	breaker     *circuitbreaker.Breaker
	logger      *slog.Logger
}

// NewCloudChannel creates the Cloud API channel. countryCode is prepended to
// phones stored without an international prefix.
func NewCloudChannel(client *Client, countryCode string, logger *slog.Logger) *CloudChannel {
	if logger == nil {
		logger = slog.Default()
	}
	ch := &CloudChannel{
		client:      client,
		countryCode: countryCode,
		policy:      retry.WhatsApp(),
		logger:      logger,
	}
	ch.policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		ch.logger.Warn("retrying whatsapp send", "attempt", attempt, "delay", delay.String(), "error", err)
	}
	ch.breaker = circuitbreaker.WhatsApp(func(name string, from, to circuitbreaker.State) {
		ch.logger.Warn("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})
	return ch
}

// Type implements notification.Channel.
func (c *CloudChannel) Type() notification.ChannelType {
	return notification.ChannelTypeWhatsApp
}

// Send implements notification.Channel.
func (c *CloudChannel) Send(ctx context.Context, reminder *notification.Reminder) notification.DeliveryResult {
	to := reminder.Phone.Digits(c.countryCode)
	if to == "" {
		return notification.NewFailureResult(c.Type(), notification.ErrUnsupportedRecipient, false)
	}
	if err := c.breaker.Allow(); err != nil {
		return notification.NewFailureResult(c.Type(), notification.ErrChannelUnavailable, true)
	}

	var messageID string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		id, err := c.client.SendText(ctx, to, reminder.Message)
		messageID = id
		return err
	})
	c.breaker.Report(outcome(err))

	switch {
	case err == nil:
		result := notification.NewSuccessResult(c.Type(), messageID)
		result.Link = reminder.Link(c.countryCode)
		return result
	case IsRecipientInvalid(err):
		return notification.NewFailureResult(c.Type(), notification.ErrUnsupportedRecipient, false)
	case IsRateLimited(err):
		return notification.NewFailureResult(c.Type(), notification.ErrRateLimited, true)
	}

	c.logger.Error("whatsapp send failed",
		"student_id", reminder.StudentID,
		"kind", string(reminder.Kind),
		"error", err,
	)
	return notification.NewFailureResult(c.Type(), err, IsRetryableError(err))
}

// BreakerState exposes the breaker position for health reporting.
func (c *CloudChannel) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// ══════════════════════════════════════════════════════════════════════════════
// LINK CHANNEL
// ══════════════════════════════════════════════════════════════════════════════

// LinkChannel does not deliver anything: it produces the wa.me link and logs
// it so staff can send the message by hand. Used when the Cloud API is not
// configured.
type LinkChannel struct {
	countryCode string
	logger      *slog.Logger
}

// NewLinkChannel creates the link-only channel.
func NewLinkChannel(countryCode string, logger *slog.Logger) *LinkChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkChannel{countryCode: countryCode, logger: logger}
}

// Type implements notification.Channel.
func (c *LinkChannel) Type() notification.ChannelType {
	return notification.ChannelTypeLink
}

// Send implements notification.Channel.
func (c *LinkChannel) Send(_ context.Context, reminder *notification.Reminder) notification.DeliveryResult {
	link := reminder.Link(c.countryCode)
	if link == "" {
		return notification.NewFailureResult(c.Type(), notification.ErrUnsupportedRecipient, false)
	}

	c.logger.Info("reminder link ready",
		"student_id", reminder.StudentID,
		"kind", string(reminder.Kind),
		"link", link,
	)

	result := notification.NewSuccessResult(c.Type(), "")
	result.Link = link
	return result
}
