// Package events defines the tagged-union wire contracts of spec.md §6.
// Payload decoding happens here, at the bus boundary, not inside handlers
// (spec.md §9: "dynamic-type payloads ... re-express as tagged unions").
package events

import (
	"strconv"
	"time"
)

// ApplicationEventType enumerates the tagged union of ApplicationEvent.
type ApplicationEventType string

const (
	ApplicationCreated        ApplicationEventType = "APPLICATION_CREATED"
	ApplicationStatusChanged  ApplicationEventType = "APPLICATION_STATUS_CHANGED"
	ApplicationWithdrawn      ApplicationEventType = "APPLICATION_WITHDRAWN"
)

// ApplicationEvent is the wire contract of spec.md §6. PartitionKey is
// jobId stringified; this is mandatory for application.created so that
// per-aggregate order holds (spec.md §5).
type ApplicationEvent struct {
	EventType     ApplicationEventType `json:"eventType"`
	ApplicationID int64                `json:"applicationId"`
	JobID         int64                `json:"jobId"`
	UserID        int64                `json:"userId"`
	Status        string               `json:"status"`
	Timestamp     int64                `json:"timestamp"`
	Metadata      map[string]any       `json:"metadata,omitempty"`
}

// Topic and PartitionKey implement the Envelope interface the Outbox Store
// needs at insertion time (spec.md §4.1, §6).
func (e ApplicationEvent) Topic() string        { return TopicApplicationCreated }
func (e ApplicationEvent) PartitionKey() string { return itoa(e.JobID) }

// JobEventType enumerates the tagged union of JobEvent.
type JobEventType string

const (
	JobCreated        JobEventType = "JOB_CREATED"
	JobUpdated        JobEventType = "JOB_UPDATED"
	JobStatusChanged  JobEventType = "JOB_STATUS_CHANGED"
)

// JobEvent is the wire contract of spec.md §6. Partition key: jobId.
type JobEvent struct {
	EventType JobEventType   `json:"eventType"`
	JobID     int64          `json:"jobId"`
	Status    string         `json:"status"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (e JobEvent) Topic() string        { return TopicJobLifecycle }
func (e JobEvent) PartitionKey() string { return itoa(e.JobID) }

// RetryEnvelope carries the original event fields plus retry metadata
// (spec.md §6 "Retry envelope"). Partition key: userId, so that a single
// recipient's retries stay ordered (spec.md §5). This is the tagged union
// the Consumer Runtime and Retry Pipeline both decode/emit at the bus
// boundary (spec.md §9's redesign away from a dynamic-type payload), not
// a set of ad hoc headers.
type RetryEnvelope struct {
	Original         []byte `json:"original"`
	EventType        string `json:"eventType"`
	RetryAttempt     int    `json:"_retry_attempt"`
	RetryChannel     string `json:"_retry_channel"`
	RetryDelayMs     int64  `json:"_retry_delay_ms"`
	RetryReason      string `json:"_retry_reason"`
	RetryScheduledAt int64  `json:"_retry_scheduled_at"`
	RecipientUserID  int64  `json:"recipientUserId"`
}

func (e RetryEnvelope) Topic() string        { return TopicNotificationRetry }
func (e RetryEnvelope) PartitionKey() string { return itoa(e.RecipientUserID) }

// Logical topics of spec.md §4.2.
const (
	TopicApplicationCreated = "application.created"
	TopicJobLifecycle       = "job.lifecycle"
	TopicNotificationRetry  = "notification.retry"
)

// NowMillis is the canonical timestamp producers stamp onto events.
func NowMillis(t time.Time) int64 { return t.UnixMilli() }

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
