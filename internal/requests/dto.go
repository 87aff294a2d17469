package requests

import (
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/internal/users"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
)

// MissingCode is rendered for requests created before codes were assigned.
const MissingCode = "SIN CÓDIGO"

// ItemDraft is one not-yet-persisted request line.
type ItemDraft struct {
	ProductCode       *string `json:"product_code,omitempty"`
	ProductName       string  `json:"product_name"`
	QuantityRequested int     `json:"quantity_requested"`
	IsNewProduct      bool    `json:"is_new_product"`
	Description       *string `json:"description,omitempty"`
}

// Validate checks the draft in isolation. Stock availability is the basket's
// concern.
func (d ItemDraft) Validate() error {
	if strings.TrimSpace(d.ProductName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if d.QuantityRequested < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if !d.IsNewProduct && (d.ProductCode == nil || strings.TrimSpace(*d.ProductCode) == "") {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock items require a product code")
	}
	return nil
}

// SubmitInput carries a new request.
type SubmitInput struct {
	RequesterID uuid.UUID
	ActorRole   enums.UserRole
	Items       []ItemDraft
}

// AmendInput replaces the item set of a pending request. RequesterID, when
// set, must own the request.
type AmendInput struct {
	RequestID   uuid.UUID
	RequesterID *uuid.UUID
	ActorRole   enums.UserRole
	Items       []ItemDraft
}

// ListOptions pages through request listings newest first.
type ListOptions struct {
	Limit  int
	Cursor string
}

// ItemView is the read shape of a request line.
type ItemView struct {
	ID                uuid.UUID        `json:"id"`
	Position          int              `json:"position"`
	ProductCode       *string          `json:"product_code,omitempty"`
	ProductName       string           `json:"product_name"`
	QuantityRequested int              `json:"quantity_requested"`
	IsNewProduct      bool             `json:"is_new_product"`
	Description       *string          `json:"description,omitempty"`
	Status            enums.ItemStatus `json:"status"`
	ReviewedAt        *time.Time       `json:"reviewed_at,omitempty"`
	ReviewedBy        *uuid.UUID       `json:"reviewed_by,omitempty"`
}

// RequestView is the read shape of a request with its derived status.
type RequestView struct {
	ID          uuid.UUID             `json:"id"`
	Code        string                `json:"code"`
	RequesterID uuid.UUID             `json:"requester_id"`
	Requester   *users.ProfileDTO     `json:"requester,omitempty"`
	Status      enums.AggregateStatus `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Items       []ItemView            `json:"items"`
}

// RequestList wraps a page of requests plus the next page cursor.
type RequestList struct {
	Requests   []RequestView `json:"requests"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// Aggregate derives the request status from its items.
func Aggregate(items []models.RequestItem) enums.AggregateStatus {
	return enums.Aggregate(Statuses(items))
}

// Statuses yields the item statuses in order.
func Statuses(items []models.RequestItem) iter.Seq[enums.ItemStatus] {
	return func(yield func(enums.ItemStatus) bool) {
		for _, item := range items {
			if !yield(item.Status) {
				return
			}
		}
	}
}

// DisplayCode renders the request code for listings.
func DisplayCode(code *string) string {
	if code == nil || strings.TrimSpace(*code) == "" {
		return MissingCode
	}
	return *code
}

// NewView maps a loaded request into its read shape.
func NewView(req models.Request) RequestView {
	items := make([]ItemView, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ItemView{
			ID:                item.ID,
			Position:          item.Position,
			ProductCode:       item.ProductCode,
			ProductName:       item.ProductName,
			QuantityRequested: item.QuantityRequested,
			IsNewProduct:      item.IsNewProduct,
			Description:       item.Description,
			Status:            item.Status,
			ReviewedAt:        item.ReviewedAt,
			ReviewedBy:        item.ReviewedBy,
		})
	}
	return RequestView{
		ID:          req.ID,
		Code:        DisplayCode(req.Code),
		RequesterID: req.RequesterID,
		Requester:   users.FromModel(req.Requester),
		Status:      Aggregate(req.Items),
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
		Items:       items,
	}
}

func toItemModels(requestID uuid.UUID, drafts []ItemDraft) []models.RequestItem {
	rows := make([]models.RequestItem, 0, len(drafts))
	for i, draft := range drafts {
		var code *string
		if draft.ProductCode != nil {
			trimmed := strings.TrimSpace(*draft.ProductCode)
			if trimmed != "" {
				code = &trimmed
			}
		}
		rows = append(rows, models.RequestItem{
			ID:                uuid.New(),
			RequestID:         requestID,
			Position:          i,
			ProductCode:       code,
			ProductName:       strings.TrimSpace(draft.ProductName),
			QuantityRequested: draft.QuantityRequested,
			IsNewProduct:      draft.IsNewProduct,
			Description:       draft.Description,
			Status:            enums.ItemStatusPending,
		})
	}
	return rows
}

func validateDrafts(drafts []ItemDraft) error {
	if len(drafts) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "request must contain at least one item")
	}
	for i, draft := range drafts {
		if err := draft.Validate(); err != nil {
			if typed := pkgerrors.As(err); typed != nil {
				return typed.WithDetails(map[string]any{"index": i})
			}
			return err
		}
	}
	return nil
}
