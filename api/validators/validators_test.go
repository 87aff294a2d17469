package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
)

type lineBody struct {
	ProductCode string `json:"product_code" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gte=1"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_code":"P-001","quantity":2}`))
	var body lineBody
	require.NoError(t, DecodeJSONBody(req, &body))
	require.Equal(t, "P-001", body.ProductCode)
	require.Equal(t, 2, body.Quantity)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_code":"P-001","quantity":2,"extra":true}`))
	var body lineBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":0}`))
	var body lineBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["product_code"])
	require.Equal(t, "must be greater than or equal to 1", details["quantity"])
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10", nil)
	got, err := QueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 10, got)

	got, err = QueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 25, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 25, got)

	_, err = QueryInt(httptest.NewRequest(http.MethodGet, "/?limit=abc", nil), "limit", 25, 1, 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = QueryInt(httptest.NewRequest(http.MethodGet, "/?limit=500", nil), "limit", 25, 1, 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("itemID", value)
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	got, err := ParseUUIDParam(withParam(id.String()), "itemID")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseUUIDParam(withParam("nope"), "itemID")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseUUIDParam(withParam(""), "itemID")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?q=%20%20caja%20%20&name=se%C3%B1al", nil)
	require.Equal(t, "caja", QueryString(req, "q", 0))
	require.Equal(t, "caj", QueryString(req, "q", 3))
	require.Equal(t, "señ", QueryString(req, "name", 3))
	require.Empty(t, QueryString(req, "missing", 10))
}

type basketBody struct {
	Items []lineBody `json:"items" validate:"required,min=1,dive"`
}

func TestDecodeJSONBodyNestedPaths(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[{"product_code":"P-1","quantity":1},{"product_code":"P-2","quantity":0}]}`))
	var body basketBody
	err := DecodeJSONBody(req, &body)

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be greater than or equal to 1", details["items[1].quantity"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[]}`))
	err = DecodeJSONBody(req, &body)
	details, ok = pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must contain at least 1 entries", details["items"])
}

func TestDecodeJSONBodyRejectsEmptyAndTrailing(t *testing.T) {
	var body lineBody
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "request body is empty", pkgerrors.As(err).Message())

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_code":"P","quantity":1}{}`)), &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	huge := `{"product_code":"` + strings.Repeat("x", MaxBodyBytes) + `","quantity":1}`
	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge)), &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
