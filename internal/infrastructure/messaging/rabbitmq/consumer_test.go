package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/usecase"
)

func TestDecode_Created(t *testing.T) {
	body := []byte(`{"event_id":"evt-1","subscription_id":"sub-1","user_id":"u1","type":"Premium","status":"active","start_at":"2026-01-01T00:00:00Z","end_at":"2027-01-01T00:00:00Z","amount":99.5}`)

	cmd, err := decode(KeySubscriptionCreated, body)
	require.NoError(t, err)

	create, ok := cmd.(usecase.CreateSubscription)
	require.True(t, ok, "expected CreateSubscription, got %T", cmd)
	assert.Equal(t, domain.SystemActor, create.ActorID)
	assert.Equal(t, "sub-1", create.ID)
	assert.Equal(t, domain.SubscriptionPremium, create.Type)
	assert.Equal(t, domain.SubscriptionActive, create.Status)
	assert.Equal(t, 2027, create.EndAt.Year())
	assert.Equal(t, "billing:evt-1", create.IdempotencyKey())
	assert.Equal(t, "u1", create.ShardKey())
}

func TestDecode_CreatedDefaultsToPending(t *testing.T) {
	cmd, err := decode(KeySubscriptionCreated, []byte(`{"subscription_id":"sub-1","user_id":"u1","type":"basic"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionPending, cmd.(usecase.CreateSubscription).Status)
}

func TestDecode_StatusTransitions(t *testing.T) {
	cases := map[string]domain.SubscriptionStatus{
		KeySubscriptionActivated: domain.SubscriptionActive,
		KeySubscriptionCancelled: domain.SubscriptionCancelled,
		KeySubscriptionExpired:   domain.SubscriptionExpired,
		KeySubscriptionSuspended: domain.SubscriptionSuspended,
	}
	for key, want := range cases {
		t.Run(key, func(t *testing.T) {
			cmd, err := decode(key, []byte(`{"event_id":"e","subscription_id":"sub-1","user_id":"u1"}`))
			require.NoError(t, err)
			update, ok := cmd.(usecase.UpdateSubscriptionStatus)
			require.True(t, ok)
			assert.Equal(t, want, update.Status)
			assert.Equal(t, "sub-1", update.SubscriptionID)
			assert.Equal(t, domain.SystemActor, update.ActorID)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	_, err := decode(KeySubscriptionCreated, []byte(`{not json`))
	assert.Error(t, err)

	_, err = decode(KeySubscriptionCancelled, []byte(`{"subscription_id":"sub-1"}`))
	assert.Error(t, err)

	_, err = decode(KeySubscriptionCreated, []byte(`{"subscription_id":"s","user_id":"u","status":"paused"}`))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = decode("subscription.renamed", []byte(`{"subscription_id":"s","user_id":"u"}`))
	assert.ErrorIs(t, err, errUnroutable)
}

type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }

func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func TestSettle(t *testing.T) {
	valid := []byte(`{"event_id":"e1","subscription_id":"sub-1","user_id":"u1"}`)

	t.Run("enqueued message is acked", func(t *testing.T) {
		var got any
		c := &Consumer{log: zerolog.Nop(), enqueue: func(_ context.Context, cmd any) error {
			got = cmd
			return nil
		}}
		a := &fakeAck{}
		c.settle(context.Background(), KeySubscriptionExpired, valid, a)

		assert.True(t, a.acked)
		assert.False(t, a.nacked)
		assert.IsType(t, usecase.UpdateSubscriptionStatus{}, got)
	})

	t.Run("malformed message is dropped", func(t *testing.T) {
		called := false
		c := &Consumer{log: zerolog.Nop(), enqueue: func(context.Context, any) error {
			called = true
			return nil
		}}
		a := &fakeAck{}
		c.settle(context.Background(), KeySubscriptionExpired, []byte(`[]`), a)

		assert.False(t, called)
		assert.True(t, a.nacked)
		assert.False(t, a.requeue)
	})

	t.Run("enqueue failure is requeued", func(t *testing.T) {
		c := &Consumer{log: zerolog.Nop(), enqueue: func(context.Context, any) error {
			return errors.New("queue stopped")
		}}
		a := &fakeAck{}
		c.settle(context.Background(), KeySubscriptionExpired, valid, a)

		assert.True(t, a.nacked)
		assert.True(t, a.requeue)
		assert.False(t, a.acked)
	})
}

func TestConsumer_CloseWaitsForRunningLoop(t *testing.T) {
	c := &Consumer{log: zerolog.Nop()}
	require.NoError(t, c.begin())

	drained := make(chan struct{})
	go func() {
		c.drain()
		close(drained)
	}()

	select {
	case <-drained:
		t.Fatal("drain returned while a loop was still running")
	case <-time.After(50 * time.Millisecond):
	}

	c.wg.Done()
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("drain did not return after the loop finished")
	}
}

func TestConsumer_RunAfterCloseDoesNotStart(t *testing.T) {
	c := &Consumer{log: zerolog.Nop()}
	c.drain()

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrConsumerClosed)
}
