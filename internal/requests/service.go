package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

const defaultStoreTimeout = 10 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type codeIssuer interface {
	Next(ctx context.Context) (string, error)
}

// Service persists request headers and items and serves request reads.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*RequestView, error)
	Amend(ctx context.Context, input AmendInput) (*RequestView, error)
	Get(ctx context.Context, id uuid.UUID) (*RequestView, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID, opts ListOptions) (*RequestList, error)
	ListAll(ctx context.Context, opts ListOptions) (*RequestList, error)
}

type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Outbox     outbox.Emitter
	Codes      codeIssuer
	Logger     *logger.Logger
	Timeout    time.Duration
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	codes   codeIssuer
	logg    *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("requests repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Codes == nil {
		return nil, fmt.Errorf("code issuer required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &service{
		repo:    params.Repository,
		tx:      params.Tx,
		outbox:  params.Outbox,
		codes:   params.Codes,
		logg:    params.Logger,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*RequestView, error) {
	if input.RequesterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "requester identity missing")
	}
	if err := validateDrafts(input.Items); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	code, err := s.codes.Next(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign request code")
	}

	now := s.now()
	req := &models.Request{
		ID:          uuid.New(),
		RequesterID: input.RequesterID,
		Code:        &code,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	items := toItemModels(req.ID, input.Items)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateRequest(ctx, req); err != nil {
			if pkgerrors.IsForeignKeyViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "requester profile not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request")
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request items")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestSubmitted,
			AggregateType: enums.AggregateRequest,
			AggregateID:   req.ID,
			Actor:         buildActor(input.RequesterID, input.ActorRole),
			Data: payloads.RequestSubmittedEvent{
				RequestID: req.ID,
				Code:      code,
				ItemCount: len(items),
			},
		})
	})
	if err != nil {
		return nil, asDependency(err, "submit request")
	}

	if s.logg != nil {
		logCtx := s.logg.WithRequestRecord(ctx, req.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{"request_code": code, "item_count": len(items)})
		s.logg.Info(logCtx, "request submitted")
	}

	req.Items = items
	view := NewView(*req)
	return &view, nil
}

func (s *service) Amend(ctx context.Context, input AmendInput) (*RequestView, error) {
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if err := validateDrafts(input.Items); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var amended *models.Request
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := repo.FindRequest(ctx, input.RequestID, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
		}
		if input.RequesterID != nil && req.RequesterID != *input.RequesterID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "request belongs to another requester")
		}
		if status := Aggregate(req.Items); status != enums.AggregateStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending requests can be amended").
				WithDetails(map[string]any{"status": status})
		}

		// a decision that lands between the read above and this delete
		// shrinks the deleted set
		deleted, err := repo.DeletePendingItems(ctx, req.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete request items")
		}
		if deleted != int64(len(req.Items)) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "request changed while amending")
		}

		items := toItemModels(req.ID, input.Items)
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request items")
		}
		now := s.now()
		if err := repo.TouchRequest(ctx, req.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch request")
		}

		actorID := req.RequesterID
		if input.RequesterID != nil {
			actorID = *input.RequesterID
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestAmended,
			AggregateType: enums.AggregateRequest,
			AggregateID:   req.ID,
			Actor:         buildActor(actorID, input.ActorRole),
			Data: payloads.RequestAmendedEvent{
				RequestID: req.ID,
				ItemCount: len(items),
			},
		}); err != nil {
			return err
		}

		req.Items = items
		req.UpdatedAt = now
		amended = req
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "amend request")
	}

	if s.logg != nil {
		logCtx := s.logg.WithRequestRecord(ctx, amended.ID.String())
		s.logg.Info(s.logg.WithField(logCtx, "item_count", len(amended.Items)), "request amended")
	}

	view := NewView(*amended)
	return &view, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*RequestView, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.repo.FindRequest(ctx, id, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	view := NewView(*req)
	return &view, nil
}

func (s *service) ListByRequester(ctx context.Context, requesterID uuid.UUID, opts ListOptions) (*RequestList, error) {
	if requesterID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "requester identity missing")
	}
	return s.list(ctx, ListFilter{RequesterID: &requesterID}, opts)
}

func (s *service) ListAll(ctx context.Context, opts ListOptions) (*RequestList, error) {
	return s.list(ctx, ListFilter{WithRequester: true}, opts)
}

func (s *service) list(ctx context.Context, filter ListFilter, opts ListOptions) (*RequestList, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := pagination.Params{Limit: opts.Limit, Cursor: opts.Cursor}
	rows, err := s.repo.ListRequests(ctx, filter, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}

	rows, more := pagination.Trim(rows, opts.Limit)
	list := &RequestList{Requests: make([]RequestView, 0, len(rows))}
	if more {
		last := rows[len(rows)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	for _, row := range rows {
		list.Requests = append(list.Requests, NewView(row))
	}
	return list, nil
}

func buildActor(userID uuid.UUID, role enums.UserRole) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: userID, Role: role}
}

// asDependency keeps typed errors and classifies anything else as a store
// failure.
func asDependency(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
