package retry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baechuer/jobcore/internal/bus"
	"github.com/baechuer/jobcore/internal/events"
)

type fakePublisher struct {
	published []bus.Message
}

func (f *fakePublisher) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	f.published = append(f.published, bus.Message{Topic: topic, PartitionKey: key, Body: payload, Headers: headers})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func envelopeMessage(t *testing.T, env events.RetryEnvelope) bus.Message {
	t.Helper()
	body, err := json.Marshal(env)
	require.NoError(t, err)
	acked := false
	return bus.Message{
		Topic:        events.TopicNotificationRetry,
		PartitionKey: env.PartitionKey(),
		Body:         body,
		Ack:          func() error { acked = true; return nil },
	}
}

func testPipeline(pub bus.Publisher) *Pipeline {
	return NewPipeline(nil, pub, BackoffConfig{Initial: time.Millisecond, Multiplier: 2, Max: 10 * time.Millisecond, MaxAttempts: 3}, events.TopicNotificationRetry, "retryworker-test")
}

func TestHandleOne_SuccessAcksWithoutRepublish(t *testing.T) {
	pub := &fakePublisher{}
	p := testPipeline(pub)
	p.RegisterChannel("notification", func(ctx context.Context, channel string, body []byte) error { return nil })

	env := events.RetryEnvelope{Original: []byte(`{"userId":7}`), EventType: "APPLICATION_CREATED", RetryAttempt: 1, RetryChannel: "notification", RetryDelayMs: 1, RecipientUserID: 7}
	p.handleOne(context.Background(), envelopeMessage(t, env))

	require.Empty(t, pub.published)
}

func TestHandleOne_FailureRepublishesWithIncrementedAttempt(t *testing.T) {
	pub := &fakePublisher{}
	p := testPipeline(pub)
	p.RegisterChannel("notification", func(ctx context.Context, channel string, body []byte) error { return errDummy })

	env := events.RetryEnvelope{Original: []byte(`{"userId":7}`), EventType: "APPLICATION_CREATED", RetryAttempt: 1, RetryChannel: "notification", RetryDelayMs: 1, RecipientUserID: 7}
	p.handleOne(context.Background(), envelopeMessage(t, env))

	require.Len(t, pub.published, 1)
	var next events.RetryEnvelope
	require.NoError(t, json.Unmarshal(pub.published[0].Body, &next))
	require.Equal(t, 2, next.RetryAttempt)
	require.Equal(t, env.Original, next.Original)
	require.Equal(t, env.EventType, next.EventType)
	require.Equal(t, env.RecipientUserID, next.RecipientUserID)
	require.Greater(t, next.RetryDelayMs, int64(0))
}

func TestHandleOne_ExhaustedAttemptsDeadLettersWithoutRepublish(t *testing.T) {
	pub := &fakePublisher{}
	p := testPipeline(pub)
	p.RegisterChannel("notification", func(ctx context.Context, channel string, body []byte) error { return errDummy })

	env := events.RetryEnvelope{Original: []byte(`{}`), RetryAttempt: 3, RetryChannel: "notification", RetryDelayMs: 1}
	p.handleOne(context.Background(), envelopeMessage(t, env))

	require.Empty(t, pub.published)
}

func TestHandleOne_UnregisteredChannelDropsWithoutRepublish(t *testing.T) {
	pub := &fakePublisher{}
	p := testPipeline(pub)

	env := events.RetryEnvelope{Original: []byte(`{}`), RetryAttempt: 1, RetryChannel: "sms", RetryDelayMs: 1}
	p.handleOne(context.Background(), envelopeMessage(t, env))

	require.Empty(t, pub.published)
}

type dummyErr struct{}

func (dummyErr) Error() string { return "handler failed" }

var errDummy = dummyErr{}
