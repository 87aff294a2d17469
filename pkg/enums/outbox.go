package enums

import "fmt"

// OutboxAggregateType names the record set an outbox event was emitted for.
type OutboxAggregateType string

const (
	AggregateRequest     OutboxAggregateType = "request"
	AggregateRequestItem OutboxAggregateType = "request_item"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateRequest,
	AggregateRequestItem,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names the mutation recorded in the outbox.
type OutboxEventType string

const (
	EventRequestSubmitted OutboxEventType = "request_submitted"
	EventRequestAmended   OutboxEventType = "request_amended"
	EventItemApproved     OutboxEventType = "item_approved"
	EventItemRejected     OutboxEventType = "item_rejected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventRequestSubmitted,
	EventRequestAmended,
	EventItemApproved,
	EventItemRejected,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
