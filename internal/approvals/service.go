// Package approvals decides request items. Approving an in-stock item writes
// its stock exit in the same transaction as the status change.
package approvals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/internal/ledger"
	"github.com/angelmondragon/stockroom-backend/internal/requests"
	"github.com/angelmondragon/stockroom-backend/internal/users"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/metrics"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox/payloads"
)

const (
	decisionApprove = "approve"
	decisionReject  = "reject"

	defaultTimeout = 10 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service approves and rejects request items.
type Service interface {
	Approve(ctx context.Context, input ApproveInput) (*Decision, error)
	Reject(ctx context.Context, input RejectInput) (*Decision, error)
}

// ApproveInput identifies the item and reviewer. DispatchQty defaults to the
// requested quantity.
type ApproveInput struct {
	ItemID      uuid.UUID
	ReviewerID  uuid.UUID
	DispatchQty *int
}

type RejectInput struct {
	ItemID     uuid.UUID
	ReviewerID uuid.UUID
}

// Decision is the outcome of a successful approve or reject.
type Decision struct {
	ItemID      uuid.UUID             `json:"item_id"`
	RequestID   uuid.UUID             `json:"request_id"`
	Status      enums.ItemStatus      `json:"status"`
	ReviewedAt  time.Time             `json:"reviewed_at"`
	ReviewedBy  uuid.UUID             `json:"reviewed_by"`
	DispatchQty int                   `json:"dispatch_qty,omitempty"`
	Exit        *models.InventoryExit `json:"exit,omitempty"`
}

type ServiceParams struct {
	Repository Repository
	Ledger     ledger.Service
	Tx         txRunner
	Outbox     outbox.Emitter
	Logger     *logger.Logger
	Metrics    *metrics.EngineMetrics
	Timeout    time.Duration
}

type service struct {
	repo    Repository
	ledger  ledger.Service
	tx      txRunner
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics *metrics.EngineMetrics
	timeout time.Duration
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("approvals repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &service{
		repo:    params.Repository,
		ledger:  params.Ledger,
		tx:      params.Tx,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Approve(ctx context.Context, input ApproveInput) (decision *Decision, err error) {
	defer func() { s.observe(ctx, decisionApprove, input.ItemID, input.ReviewerID, decision, err) }()

	if err := validateIdentity(input.ItemID, input.ReviewerID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := loadItem(ctx, repo, input.ItemID)
		if err != nil {
			return err
		}

		qty, err := dispatchQuantity(item, input.DispatchQty)
		if err != nil {
			return err
		}

		now := s.now()
		if err := decide(ctx, repo, item, enums.ItemStatusApproved, input.ReviewerID, now); err != nil {
			return err
		}

		decision = &Decision{
			ItemID:      item.ID,
			RequestID:   item.RequestID,
			Status:      enums.ItemStatusApproved,
			ReviewedAt:  now,
			ReviewedBy:  input.ReviewerID,
			DispatchQty: qty,
		}

		if !item.IsNewProduct {
			exit, err := s.recordExit(ctx, tx, repo, item, input.ReviewerID, qty, now)
			if err != nil {
				return err
			}
			decision.Exit = exit
		}

		return s.emit(ctx, tx, input.ReviewerID, decision)
	})
	if err != nil {
		return nil, asDependency(err, "approve item")
	}
	return decision, nil
}

func (s *service) Reject(ctx context.Context, input RejectInput) (decision *Decision, err error) {
	defer func() { s.observe(ctx, decisionReject, input.ItemID, input.ReviewerID, decision, err) }()

	if err := validateIdentity(input.ItemID, input.ReviewerID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := loadItem(ctx, repo, input.ItemID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := decide(ctx, repo, item, enums.ItemStatusRejected, input.ReviewerID, now); err != nil {
			return err
		}

		decision = &Decision{
			ItemID:     item.ID,
			RequestID:  item.RequestID,
			Status:     enums.ItemStatusRejected,
			ReviewedAt: now,
			ReviewedBy: input.ReviewerID,
		}
		return s.emit(ctx, tx, input.ReviewerID, decision)
	})
	if err != nil {
		return nil, asDependency(err, "reject item")
	}
	return decision, nil
}

// recordExit runs only after the status flip succeeded, inside the same
// transaction.
func (s *service) recordExit(ctx context.Context, tx *gorm.DB, repo Repository, item *models.RequestItem, reviewerID uuid.UUID, qty int, now time.Time) (*models.InventoryExit, error) {
	if item.ProductCode == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConsistency, "stock item has no product code").
			WithDetails(map[string]any{"item_id": item.ID})
	}
	req, err := repo.FindRequest(ctx, item.RequestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	reviewer, err := repo.FindProfile(ctx, reviewerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reviewer profile")
	}
	line, err := repo.LookupStock(ctx, *item.ProductCode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock line")
	}
	unit := ""
	if line != nil {
		unit = line.Unit
	}

	return s.ledger.WithTx(tx).RecordExit(ctx, ledger.RecordExitInput{
		RequestItemID: item.ID,
		RequestCode:   requests.DisplayCode(req.Code),
		ProductCode:   *item.ProductCode,
		Unit:          unit,
		Quantity:      qty,
		Authorizer:    users.DisplayNameOr(reviewer, ledger.DefaultAuthorizer),
		Receiver:      users.DisplayNameOr(req.Requester, ledger.DefaultReceiver),
		ExitDate:      now,
	})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, reviewerID uuid.UUID, decision *Decision) error {
	eventType := enums.EventItemApproved
	if decision.Status == enums.ItemStatusRejected {
		eventType = enums.EventItemRejected
	}
	var exitID *uuid.UUID
	if decision.Exit != nil {
		id := decision.Exit.ID
		exitID = &id
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateRequestItem,
		AggregateID:   decision.ItemID,
		Actor:         &outbox.ActorRef{UserID: reviewerID},
		Data: payloads.ItemDecidedEvent{
			ItemID:      decision.ItemID,
			RequestID:   decision.RequestID,
			Status:      decision.Status,
			DispatchQty: decision.DispatchQty,
			ExitID:      exitID,
		},
	})
}

func (s *service) observe(ctx context.Context, kind string, itemID, reviewerID uuid.UUID, decision *Decision, err error) {
	s.metrics.ObserveDecision(kind, err)
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithItemID(ctx, itemID.String())
	logCtx = s.logg.WithReviewerID(logCtx, reviewerID.String())
	logCtx = s.logg.WithField(logCtx, "decision", kind)
	if err != nil {
		switch pkgerrors.CodeOf(err) {
		case pkgerrors.CodeConsistency:
			s.logg.Error(logCtx, "decision rolled back on ledger mismatch", err)
		case pkgerrors.CodeDependency, pkgerrors.CodeInternal:
			s.logg.Error(logCtx, "decision failed", err)
		default:
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "decision refused")
		}
		return
	}
	logCtx = s.logg.WithRequestRecord(logCtx, decision.RequestID.String())
	if decision.Exit != nil {
		logCtx = s.logg.WithFields(logCtx, map[string]any{"exit_id": decision.Exit.ID.String(), "dispatch_qty": decision.DispatchQty})
	}
	s.logg.Info(logCtx, "item decided")
}

func validateIdentity(itemID, reviewerID uuid.UUID) error {
	if itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if reviewerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "reviewer identity missing")
	}
	return nil
}

func loadItem(ctx context.Context, repo Repository, itemID uuid.UUID) (*models.RequestItem, error) {
	item, err := repo.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request item")
	}
	return item, nil
}

func decide(ctx context.Context, repo Repository, item *models.RequestItem, status enums.ItemStatus, reviewerID uuid.UUID, at time.Time) error {
	rows, err := repo.Decide(ctx, item.ID, status, reviewerID, at)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item status")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "item is no longer pending").
			WithDetails(map[string]any{"item_id": item.ID})
	}
	return nil
}

// dispatchQuantity resolves the quantity leaving stock. It must stay within
// 1..quantity_requested.
func dispatchQuantity(item *models.RequestItem, requested *int) (int, error) {
	if requested == nil {
		return item.QuantityRequested, nil
	}
	qty := *requested
	if qty < 1 || qty > item.QuantityRequested {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "dispatch quantity out of range").
			WithDetails(map[string]any{"dispatch_qty": qty, "quantity_requested": item.QuantityRequested})
	}
	return qty, nil
}

func asDependency(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
