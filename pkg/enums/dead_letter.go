package enums

// OutboxDLQErrorReason says why the publisher gave up on an outbox row.
type OutboxDLQErrorReason string

const (
	// Transient broker failures exhausted FIVESCENT_OUTBOX_MAX_ATTEMPTS.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// No descriptor or topic exists for the event type.
	OutboxDLQReasonUnroutable OutboxDLQErrorReason = "unroutable"
	// The stored envelope or payload does not decode.
	OutboxDLQReasonMalformed OutboxDLQErrorReason = "malformed"
	// The broker refused the message for good, e.g. it is too large.
	OutboxDLQReasonRejected OutboxDLQErrorReason = "rejected"
)

var deadLetterReasons = set[OutboxDLQErrorReason]{
	OutboxDLQReasonMaxAttempts, OutboxDLQReasonUnroutable, OutboxDLQReasonMalformed, OutboxDLQReasonRejected,
}

func (r OutboxDLQErrorReason) IsValid() bool { return deadLetterReasons.has(r) }

func ParseOutboxDLQErrorReason(value string) (OutboxDLQErrorReason, error) {
	return deadLetterReasons.parse("dead letter reason", value)
}
