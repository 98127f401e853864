package notification

import (
	"context"
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL TYPE
// ══════════════════════════════════════════════════════════════════════════════

// ChannelType identifies a delivery channel.
type ChannelType string

const (
	// ChannelTypeWhatsApp delivers through the WhatsApp Cloud API.
	ChannelTypeWhatsApp ChannelType = "whatsapp"

	// ChannelTypeLink only produces a wa.me link for staff to open.
	ChannelTypeLink ChannelType = "link"
)

// Delivery errors.
var (
	ErrUnsupportedRecipient = errors.New("recipient not supported by channel")
	ErrRateLimited          = errors.New("rate limited by channel")
	ErrChannelUnavailable   = errors.New("channel unavailable")
)

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY RESULT
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryResult describes the outcome of one delivery attempt.
type DeliveryResult struct {
	Success     bool
	MessageID   string
	Channel     ChannelType
	DeliveredAt time.Time

	// Link is the click-to-chat link, when the channel produces one.
	Link string

	Error     error
	Retryable bool
}

// NewSuccessResult creates a successful result.
func NewSuccessResult(channel ChannelType, messageID string) DeliveryResult {
	return DeliveryResult{
		Success:     true,
		MessageID:   messageID,
		Channel:     channel,
		DeliveredAt: time.Now().UTC(),
	}
}

// NewFailureResult creates a failed result.
func NewFailureResult(channel ChannelType, err error, retryable bool) DeliveryResult {
	return DeliveryResult{
		Channel:     channel,
		DeliveredAt: time.Now().UTC(),
		Error:       err,
		Retryable:   retryable,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Channel delivers reminders. Implementations live in infrastructure.
type Channel interface {
	// Type returns the channel type.
	Type() ChannelType

	// Send delivers one reminder.
	Send(ctx context.Context, reminder *Reminder) DeliveryResult
}

// ReminderLog remembers which reminders were already sent.
type ReminderLog interface {
	// MarkSent records the key and reports whether it was new. A false
	// result means the reminder was sent before and must be skipped.
	MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Forget removes a key, so a failed delivery can be retried.
	Forget(ctx context.Context, key string) error
}
