package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
)

// Fixed values stamped on every exit written for an approved request item.
const (
	DocumentTypeRequest = "SOLICITUD"
	RequestingArea      = "DOCENCIA"
	DefaultUnit         = "UNIDAD"
	DefaultAuthorizer   = "DIRECTOR"
	DefaultReceiver     = "Docente"
)

// Service defines operations that record stock exits.
type Service interface {
	WithTx(tx *gorm.DB) Service
	RecordExit(ctx context.Context, input RecordExitInput) (*models.InventoryExit, error)
	ExitForItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryExit, error)
}

type service struct {
	repo Repository
}

// RecordExitInput captures what an approval knows about the dispatched line.
// Blank names and units fall back to the ledger defaults.
type RecordExitInput struct {
	RequestItemID uuid.UUID
	RequestCode   string
	ProductCode   string
	Unit          string
	Quantity      int
	Authorizer    string
	Receiver      string
	ExitDate      time.Time
}

// NewService wires an exit ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

// RecordExit appends exactly one exit for the item. Anything other than one
// inserted row is a consistency violation.
func (s *service) RecordExit(ctx context.Context, input RecordExitInput) (*models.InventoryExit, error) {
	exit, err := BuildExit(input)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.Insert(ctx, exit)
	if err != nil {
		if pkgerrors.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConsistency, err, "exit already recorded for request item").
				WithDetails(map[string]any{"request_item_id": input.RequestItemID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert inventory exit")
	}
	if rows != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeConsistency, "inventory exit insert did not affect exactly one row").
			WithDetails(map[string]any{"request_item_id": input.RequestItemID, "rows": rows})
	}
	return exit, nil
}

func (s *service) ExitForItem(ctx context.Context, itemID uuid.UUID) (*models.InventoryExit, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request item id is required")
	}
	exit, err := s.repo.FindByRequestItem(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory exit")
	}
	return exit, nil
}

// BuildExit renders the exit row for an approved item without persisting it.
func BuildExit(input RecordExitInput) (*models.InventoryExit, error) {
	if input.RequestItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request item id is required")
	}
	code := strings.TrimSpace(input.ProductCode)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product code is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exit quantity must be positive")
	}

	exitDate := input.ExitDate
	if exitDate.IsZero() {
		exitDate = time.Now()
	}
	exitDate = exitDate.UTC().Truncate(24 * time.Hour)
	itemID := input.RequestItemID

	return &models.InventoryExit{
		ID:             uuid.New(),
		Code:           code,
		ExitDate:       exitDate,
		DocumentType:   DocumentTypeRequest,
		RequestingArea: RequestingArea,
		Description:    "Despacho Solicitud " + input.RequestCode,
		Unit:           orDefault(input.Unit, DefaultUnit),
		Quantity:       input.Quantity,
		Authorizer:     orDefault(input.Authorizer, DefaultAuthorizer),
		Receiver:       orDefault(input.Receiver, DefaultReceiver),
		Reason:         "Atención de Solicitud " + input.RequestCode,
		RequestItemID:  &itemID,
	}, nil
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
