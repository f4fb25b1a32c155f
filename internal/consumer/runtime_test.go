package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baechuer/jobcore/internal/bus"
	"github.com/baechuer/jobcore/internal/events"
	"github.com/baechuer/jobcore/internal/retry"
)

func TestEventID_PrefersChannelEventTypePartitionKey(t *testing.T) {
	msg := bus.Message{Topic: "application.created", PartitionKey: "42"}
	id := EventID("notification", "APPLICATION_CREATED", msg)
	require.Equal(t, "notification|APPLICATION_CREATED|42", id)
}

func TestEventID_FallsBackToContentHashWithoutEventType(t *testing.T) {
	msg := bus.Message{Topic: "application.created", PartitionKey: "42", Body: []byte(`{"a":1}`)}
	id := EventID("notification", "", msg)
	require.NotContains(t, id, "|")
	require.Contains(t, id, "application.created-42-")
}

func TestEventID_FallbackIsDeterministicForSameBody(t *testing.T) {
	msg := bus.Message{Topic: "job.lifecycle", PartitionKey: "7", Body: []byte(`{"x":true}`)}
	id1 := EventID("notification", "", msg)
	id2 := EventID("notification", "", msg)
	require.Equal(t, id1, id2)
}

func TestEventID_FallbackDiffersForDifferentBody(t *testing.T) {
	base := bus.Message{Topic: "job.lifecycle", PartitionKey: "7"}
	a := base
	a.Body = []byte(`{"x":1}`)
	b := base
	b.Body = []byte(`{"x":2}`)
	require.NotEqual(t, EventID("notification", "", a), EventID("notification", "", b))
}

func TestEventID_WithoutPartitionKeyFallsBackEvenWithEventType(t *testing.T) {
	msg := bus.Message{Topic: "application.created", Body: []byte(`{}`)}
	id := EventID("notification", "APPLICATION_CREATED", msg)
	require.NotContains(t, id, "|")
}

func TestRecipientID_PrefersUserIDFromBody(t *testing.T) {
	msg := bus.Message{PartitionKey: "99", Body: []byte(`{"userId":42}`)}
	require.Equal(t, int64(42), recipientID(msg))
}

func TestRecipientID_FallsBackToPartitionKey(t *testing.T) {
	msg := bus.Message{PartitionKey: "99", Body: []byte(`{"jobId":7}`)}
	require.Equal(t, int64(99), recipientID(msg))
}

func TestRecipientID_ZeroWhenNothingResolves(t *testing.T) {
	msg := bus.Message{Body: []byte(`{}`)}
	require.Equal(t, int64(0), recipientID(msg))
}

type fakeRetryPublisher struct {
	published []bus.Message
}

func (f *fakeRetryPublisher) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	f.published = append(f.published, bus.Message{Topic: topic, PartitionKey: key, Body: payload, Headers: headers})
	return nil
}

func (f *fakeRetryPublisher) Close() error { return nil }

func TestEscalateToRetry_PublishesStampedEnvelope(t *testing.T) {
	pub := &fakeRetryPublisher{}
	backoff := retry.BackoffConfig{Initial: 10 * time.Millisecond, Multiplier: 2, Max: 100 * time.Millisecond, MaxAttempts: 3}
	r := NewRuntime(nil, pub, nil, "notification.retry", backoff)

	msg := bus.Message{PartitionKey: "7", Body: []byte(`{"userId":7}`)}
	r.escalateToRetry(context.Background(), "notification", "APPLICATION_CREATED", msg, errTest("handler failed"))

	require.Len(t, pub.published, 1)
	require.Equal(t, "notification.retry", pub.published[0].Topic)
	require.Equal(t, "7", pub.published[0].PartitionKey)

	var env events.RetryEnvelope
	require.NoError(t, json.Unmarshal(pub.published[0].Body, &env))
	require.Equal(t, 1, env.RetryAttempt)
	require.Equal(t, "notification", env.RetryChannel)
	require.Equal(t, "APPLICATION_CREATED", env.EventType)
	require.Equal(t, int64(7), env.RecipientUserID)
	require.Equal(t, msg.Body, env.Original)
	require.Greater(t, env.RetryDelayMs, int64(0))
	require.Greater(t, env.RetryScheduledAt, int64(0))
}

type errTest string

func (e errTest) Error() string { return string(e) }
