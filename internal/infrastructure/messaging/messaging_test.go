package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/shared"
	"github.com/LitoFortuna/XDS-ERP-sub000/pkg/retry"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})
}

func TestInMemoryBusDeliversByType(t *testing.T) {
	bus := syncBus()

	var typed, all int
	require.NoError(t, bus.Subscribe(shared.EventPaymentRecorded, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return nil }))

	require.NoError(t, bus.Publish(shared.NewPaymentRecordedEvent("p1", "s1", "45", "Cuota", time.Now())))
	require.NoError(t, bus.Publish(shared.NewStudentSavedEvent("s1", "Ana", true, true)))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)
	assert.EqualValues(t, 2, bus.Metrics().Snapshot().TotalPublished)
}

func TestInMemoryBusSwallowsHandlerFailures(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))

	assert.NoError(t, bus.Publish(shared.NewStudentSavedEvent("s1", "Ana", true, false)))
	assert.EqualValues(t, 1, bus.Metrics().Snapshot().HandlerFailures)
}

func TestInMemoryBusAsyncAndClose(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var n atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { n.Add(1); return nil }))
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewStudentSavedEvent("s1", "Ana", true, false)))
	}
	bus.Wait()
	assert.EqualValues(t, 5, n.Load())

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(shared.NewStudentSavedEvent("s1", "Ana", true, false)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventStudentSaved, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

// fakeRedis loops published messages back to subscribers.
type fakeRedis struct {
	mu  sync.Mutex
	out chan RedisMessage
	pub []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{out: make(chan RedisMessage, 10)}
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) error {
	f.mu.Lock()
	f.pub = append(f.pub, message.(string))
	f.mu.Unlock()
	return nil
}

func (f *fakeRedis) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	return f.out, nil
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisBusPublishesAndReceivesRemoteEvents(t *testing.T) {
	client := newFakeRedis()
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: client, InstanceID: "api-1"})
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan shared.Event, 4)
	require.NoError(t, bus.Subscribe(shared.EventAbsenceAlert, func(e shared.Event) error {
		received <- e
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewAbsenceAlertEvent("s1", 4, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC))))

	client.mu.Lock()
	require.Len(t, client.pub, 1)
	var env eventEnvelope
	require.NoError(t, json.Unmarshal([]byte(client.pub[0]), &env))
	client.mu.Unlock()
	assert.Equal(t, "api-1", env.InstanceID)
	assert.Equal(t, shared.EventAbsenceAlert, env.EventType)

	select {
	case e := <-received:
		assert.Equal(t, "s1", e.AggregateID())
	case <-time.After(time.Second):
		t.Fatal("local event not delivered")
	}

	// Our own message echoed back is ignored; another worker's is delivered.
	client.out <- RedisMessage{Payload: client.pub[0]}
	env.InstanceID = "worker-1"
	env.AggregateID = "s2"
	remote, _ := json.Marshal(env)
	client.out <- RedisMessage{Payload: string(remote)}

	select {
	case e := <-received:
		assert.Equal(t, "s2", e.AggregateID())
		assert.IsType(t, &RemoteEvent{}, e)
		assert.EqualValues(t, 4, e.Payload()["streak"])
	case <-time.After(time.Second):
		t.Fatal("remote event not delivered")
	}
}

func TestDispatcherRetriesThenDeadLetters(t *testing.T) {
	bus := syncBus()
	cfg := DefaultDispatcherConfig(bus)
	cfg.Retry = retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	d := NewDispatcher(cfg)
	require.NoError(t, d.Start())

	var flaky, broken int
	require.NoError(t, d.Register(shared.EventPaymentRecorded, "flaky", func(shared.Event) error {
		flaky++
		if flaky < 2 {
			return errors.New("temporary")
		}
		return nil
	}))
	require.NoError(t, d.Register(shared.EventPaymentRecorded, "broken", func(shared.Event) error {
		broken++
		return errors.New("always")
	}))

	err := d.Dispatch(shared.NewPaymentRecordedEvent("p1", "s1", "45", "Cuota", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, 2, flaky)
	assert.Equal(t, 3, broken)

	entry, ok := d.DeadLetterQueue().Pop()
	require.True(t, ok)
	assert.Equal(t, "broken", entry.HandlerName)
	assert.Equal(t, 3, entry.Attempts)
}

func TestDispatcherRecoversPanics(t *testing.T) {
	cfg := DefaultDispatcherConfig(syncBus())
	cfg.Retry = retry.Policy{MaxAttempts: 1, Multiplier: 1}
	d := NewDispatcher(cfg)

	require.NoError(t, d.Register(shared.EventStudentSaved, "panicky", func(shared.Event) error { panic("nil map") }))

	err := d.Dispatch(shared.NewStudentSavedEvent("s1", "Ana", true, true))
	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.Equal(t, 1, d.DeadLetterQueue().Size())
}
