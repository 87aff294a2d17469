package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// RequestSubmittedEvent is emitted when a requester creates a request.
type RequestSubmittedEvent struct {
	RequestID uuid.UUID `json:"request_id"`
	Code      string    `json:"code"`
	ItemCount int       `json:"item_count"`
}

// RequestAmendedEvent is emitted when a pending request's lines are replaced.
type RequestAmendedEvent struct {
	RequestID uuid.UUID `json:"request_id"`
	ItemCount int       `json:"item_count"`
}

// ItemDecidedEvent is emitted for each approve or reject decision.
type ItemDecidedEvent struct {
	ItemID      uuid.UUID        `json:"item_id"`
	RequestID   uuid.UUID        `json:"request_id"`
	Status      enums.ItemStatus `json:"status"`
	DispatchQty int              `json:"dispatch_qty,omitempty"`
	ExitID      *uuid.UUID       `json:"exit_id,omitempty"`
}
