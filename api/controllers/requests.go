package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/stockroom-backend/api/middleware"
	"github.com/angelmondragon/stockroom-backend/api/responses"
	"github.com/angelmondragon/stockroom-backend/api/validators"
	"github.com/angelmondragon/stockroom-backend/internal/basket"
	"github.com/angelmondragon/stockroom-backend/internal/requests"
	"github.com/angelmondragon/stockroom-backend/internal/stock"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

type basketLineRequest struct {
	ProductCode  string `json:"product_code"`
	ProductName  string `json:"product_name"`
	Quantity     int    `json:"quantity"`
	IsNewProduct bool   `json:"is_new_product"`
}

type basketRequest struct {
	Items []basketLineRequest `json:"items" validate:"required,min=1,dive"`
}

// SubmitRequest builds a basket against a fresh stock snapshot and submits it.
func SubmitRequest(svc requests.Service, reader stock.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}

		var body basketRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		drafts, err := buildDrafts(r.Context(), reader, body.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Submit(r.Context(), requests.SubmitInput{
			RequesterID: middleware.UserUUIDFromContext(r.Context()),
			ActorRole:   middleware.UserRoleFromContext(r.Context()),
			Items:       drafts,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// AmendRequest replaces the lines of a pending request. Reviewers may amend
// any request; everyone else only their own.
func AmendRequest(svc requests.Service, reader stock.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}

		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body basketRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		drafts, err := buildDrafts(r.Context(), reader, body.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := middleware.UserRoleFromContext(r.Context())
		input := requests.AmendInput{
			RequestID: requestID,
			ActorRole: role,
			Items:     drafts,
		}
		if !role.CanReview() {
			userID := middleware.UserUUIDFromContext(r.Context())
			input.RequesterID = &userID
		}

		view, err := svc.Amend(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ListMyRequests pages through the caller's own requests.
func ListMyRequests(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}

		opts, err := parseListOptions(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByRequester(r.Context(), middleware.UserUUIDFromContext(r.Context()), opts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func buildDrafts(ctx context.Context, reader stock.Reader, lines []basketLineRequest) ([]requests.ItemDraft, error) {
	b, err := basket.Load(ctx, reader)
	if err != nil {
		return nil, err
	}
	for i, line := range lines {
		if line.IsNewProduct {
			err = b.AddNew(line.ProductName, line.Quantity)
		} else {
			stockLine, ok := b.Lookup(line.ProductCode)
			if !ok {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "product not found in stock").
					WithDetails(map[string]any{"index": i, "product_code": line.ProductCode})
			}
			err = b.AddFromStock(stockLine, line.Quantity)
		}
		if err != nil {
			return nil, err
		}
	}
	return b.Items(), nil
}

func parseListOptions(r *http.Request) (requests.ListOptions, error) {
	limit, err := validators.QueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return requests.ListOptions{}, err
	}
	return requests.ListOptions{
		Limit:  limit,
		Cursor: validators.QueryString(r, "cursor", 0),
	}, nil
}
