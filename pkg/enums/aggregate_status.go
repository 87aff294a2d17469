package enums

import "iter"

// AggregateStatus is the derived status of a request computed from its items.
// It is never persisted.
type AggregateStatus string

const (
	AggregateStatusEmpty     AggregateStatus = "EMPTY"
	AggregateStatusPending   AggregateStatus = "PENDING"
	AggregateStatusCompleted AggregateStatus = "COMPLETED"
	AggregateStatusPartial   AggregateStatus = "PARTIAL"
)

// String implements fmt.Stringer.
func (a AggregateStatus) String() string {
	return string(a)
}

// Aggregate derives the request status from the item statuses:
// EMPTY with no items, PENDING when every item is pending, COMPLETED when none
// is, PARTIAL otherwise.
func Aggregate(statuses iter.Seq[ItemStatus]) AggregateStatus {
	total, pending := 0, 0
	for status := range statuses {
		total++
		if status == ItemStatusPending {
			pending++
		}
	}
	switch {
	case total == 0:
		return AggregateStatusEmpty
	case pending == total:
		return AggregateStatusPending
	case pending == 0:
		return AggregateStatusCompleted
	default:
		return AggregateStatusPartial
	}
}
