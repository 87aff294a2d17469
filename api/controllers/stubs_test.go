package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/api/middleware"
	"github.com/angelmondragon/stockroom-backend/internal/approvals"
	"github.com/angelmondragon/stockroom-backend/internal/requests"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubStockReader struct {
	lines []models.StockLine
	err   error
}

func (s stubStockReader) Snapshot(ctx context.Context) ([]models.StockLine, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.lines, nil
}

func defaultStock() stubStockReader {
	return stubStockReader{lines: []models.StockLine{
		{Code: "P-001", Description: "Cajas de tiza", Unit: "CAJA", Quantity: 5},
		{Code: "P-002", Description: "Papel bond A4", Unit: "PAQUETE", Quantity: 0},
	}}
}

type stubRequestsService struct {
	submitFn          func(ctx context.Context, input requests.SubmitInput) (*requests.RequestView, error)
	amendFn           func(ctx context.Context, input requests.AmendInput) (*requests.RequestView, error)
	getFn             func(ctx context.Context, id uuid.UUID) (*requests.RequestView, error)
	listByRequesterFn func(ctx context.Context, requesterID uuid.UUID, opts requests.ListOptions) (*requests.RequestList, error)
	listAllFn         func(ctx context.Context, opts requests.ListOptions) (*requests.RequestList, error)
}

func (s *stubRequestsService) Submit(ctx context.Context, input requests.SubmitInput) (*requests.RequestView, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, input)
	}
	return &requests.RequestView{}, nil
}

func (s *stubRequestsService) Amend(ctx context.Context, input requests.AmendInput) (*requests.RequestView, error) {
	if s.amendFn != nil {
		return s.amendFn(ctx, input)
	}
	return &requests.RequestView{}, nil
}

func (s *stubRequestsService) Get(ctx context.Context, id uuid.UUID) (*requests.RequestView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return &requests.RequestView{ID: id}, nil
}

func (s *stubRequestsService) ListByRequester(ctx context.Context, requesterID uuid.UUID, opts requests.ListOptions) (*requests.RequestList, error) {
	if s.listByRequesterFn != nil {
		return s.listByRequesterFn(ctx, requesterID, opts)
	}
	return &requests.RequestList{}, nil
}

func (s *stubRequestsService) ListAll(ctx context.Context, opts requests.ListOptions) (*requests.RequestList, error) {
	if s.listAllFn != nil {
		return s.listAllFn(ctx, opts)
	}
	return &requests.RequestList{}, nil
}

type stubApprovalsService struct {
	approveFn func(ctx context.Context, input approvals.ApproveInput) (*approvals.Decision, error)
	rejectFn  func(ctx context.Context, input approvals.RejectInput) (*approvals.Decision, error)
}

func (s *stubApprovalsService) Approve(ctx context.Context, input approvals.ApproveInput) (*approvals.Decision, error) {
	if s.approveFn != nil {
		return s.approveFn(ctx, input)
	}
	return &approvals.Decision{ItemID: input.ItemID, Status: enums.ItemStatusApproved}, nil
}

func (s *stubApprovalsService) Reject(ctx context.Context, input approvals.RejectInput) (*approvals.Decision, error) {
	if s.rejectFn != nil {
		return s.rejectFn(ctx, input)
	}
	return &approvals.Decision{ItemID: input.ItemID, Status: enums.ItemStatusRejected}, nil
}

func withActor(req *http.Request, userID uuid.UUID, role enums.UserRole) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}
