package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/notification"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/circuitbreaker"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, msg TextMessage)) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v19.0/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var msg TextMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		handler(w, msg)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig("secret", "12345")
	cfg.BaseURL = srv.URL
	return NewClient(cfg)
}

func reminder(phone string) *notification.Reminder {
	return &notification.Reminder{
		Kind:      notification.KindFeeReminder,
		StudentID: "s1",
		Name:      "Ana",
		Phone:     shared.Phone(phone),
		Message:   "Hola Ana",
	}
}

func TestCloudChannelSend(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, msg TextMessage) {
		assert.Equal(t, "whatsapp", msg.MessagingProduct)
		assert.Equal(t, "34612345678", msg.To)
		assert.Equal(t, "Hola Ana", msg.Text.Body)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	})

	r := reminder("612 345 678")

	res := NewCloudChannel(client, "34", nil).Send(context.Background(), r)
	require.True(t, res.Success, "error: %v", res.Error)
	assert.Equal(t, "wamid.1", res.MessageID)
	assert.Equal(t, notification.ChannelTypeWhatsApp, res.Channel)
	assert.Contains(t, res.Link, "https://wa.me/34612345678")
}

func TestCloudChannelInvalidRecipient(t *testing.T) {
	calls := 0
	client := newTestServer(t, func(w http.ResponseWriter, _ TextMessage) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"not a whatsapp user","code":131026}}`))
	})

	r := reminder("+44 7700 900123")

	res := NewCloudChannel(client, "34", nil).Send(context.Background(), r)
	assert.False(t, res.Success)
	assert.False(t, res.Retryable)
	assert.ErrorIs(t, res.Error, notification.ErrUnsupportedRecipient)
	assert.Equal(t, 1, calls)
}

func TestCloudChannelNoPhone(t *testing.T) {
	res := NewCloudChannel(NewClient(DefaultClientConfig("x", "y")), "34", nil).
		Send(context.Background(), reminder(""))
	assert.ErrorIs(t, res.Error, notification.ErrUnsupportedRecipient)
}

func TestLinkChannel(t *testing.T) {
	ch := NewLinkChannel("34", nil)

	r := reminder("600111222")
	res := ch.Send(context.Background(), r)
	require.True(t, res.Success)
	assert.Equal(t, notification.ChannelTypeLink, res.Channel)
	assert.Equal(t, "https://wa.me/34600111222?text=Hola+Ana", res.Link)

	res = ch.Send(context.Background(), reminder(""))
	assert.False(t, res.Success)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(&APIError{Status: 503}))
	assert.True(t, IsRetryableError(&APIError{Status: 400, Code: codeRateLimited}))
	assert.False(t, IsRetryableError(&APIError{Status: 401, Code: 190}))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.False(t, IsRetryableError(nil))
}

func TestCloudChannelRetriesServerErrors(t *testing.T) {
	calls := 0
	client := newTestServer(t, func(w http.ResponseWriter, _ TextMessage) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.3"}]}`))
	})

	ch := NewCloudChannel(client, "34", nil)
	ch.policy.InitialDelay, ch.policy.MaxDelay = time.Millisecond, time.Millisecond

	res := ch.Send(context.Background(), reminder("612345678"))
	require.True(t, res.Success, "error: %v", res.Error)
	assert.Equal(t, "wamid.3", res.MessageID)
	assert.Equal(t, 3, calls)
	assert.Equal(t, circuitbreaker.StateClosed, ch.BreakerState())
}

func TestCloudChannelThrottlingOpensBreaker(t *testing.T) {
	calls := 0
	client := newTestServer(t, func(w http.ResponseWriter, _ TextMessage) {
		calls++
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"too many messages","code":130429}}`))
	})

	ch := NewCloudChannel(client, "34", nil)
	ch.policy.MaxAttempts = 1

	res := ch.Send(context.Background(), reminder("612345678"))
	assert.ErrorIs(t, res.Error, notification.ErrRateLimited)
	assert.True(t, res.Retryable)
	assert.Equal(t, circuitbreaker.StateOpen, ch.BreakerState())

	res = ch.Send(context.Background(), reminder("612345679"))
	assert.ErrorIs(t, res.Error, notification.ErrChannelUnavailable)
	assert.Equal(t, 1, calls)
}

func TestRefusedRecipientsKeepBreakerClosed(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, _ TextMessage) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"not a whatsapp user","code":131026}}`))
	})

	ch := NewCloudChannel(client, "34", nil)
	for i := 0; i < 8; i++ {
		res := ch.Send(context.Background(), reminder("612345678"))
		require.ErrorIs(t, res.Error, notification.ErrUnsupportedRecipient)
	}
	assert.Equal(t, circuitbreaker.StateClosed, ch.BreakerState())
}

func TestSendOutcome(t *testing.T) {
	o, wait := outcome(&APIError{Status: 429, Wait: time.Minute})
	assert.Equal(t, circuitbreaker.Throttled, o)
	assert.Equal(t, time.Minute, wait)

	o, _ = outcome(&APIError{Status: 502})
	assert.Equal(t, circuitbreaker.Failed, o)

	o, _ = outcome(&APIError{Status: 401, Code: 190})
	assert.Equal(t, circuitbreaker.Rejected, o)

	o, _ = outcome(context.Canceled)
	assert.Equal(t, circuitbreaker.Abandoned, o)

	o, _ = outcome(nil)
	assert.Equal(t, circuitbreaker.Delivered, o)
}
