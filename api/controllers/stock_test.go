package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeStockResponse(t *testing.T, resp *httptest.ResponseRecorder) stockSearchResponse {
	t.Helper()
	var envelope struct {
		Data stockSearchResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

func TestSearchStockMatchesCodeAndDescription(t *testing.T) {
	resp := httptest.NewRecorder()
	SearchStock(defaultStock(), testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/stock?q=tiza", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeStockResponse(t, resp)
	require.Len(t, body.Lines, 1)
	require.Equal(t, "P-001", body.Lines[0].Code)
	require.False(t, body.SuggestNew)
}

func TestSearchStockSuggestsNewProduct(t *testing.T) {
	resp := httptest.NewRecorder()
	SearchStock(defaultStock(), testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/stock?q=plumones", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeStockResponse(t, resp)
	require.Empty(t, body.Lines)
	require.True(t, body.SuggestNew)
}

func TestSearchStockEmptyQueryReturnsProjection(t *testing.T) {
	resp := httptest.NewRecorder()
	SearchStock(defaultStock(), testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/stock", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeStockResponse(t, resp)
	require.Len(t, body.Lines, 2)
	require.False(t, body.SuggestNew)
}

func TestSearchStockReaderFailure(t *testing.T) {
	resp := httptest.NewRecorder()
	SearchStock(stubStockReader{err: errors.New("view offline")}, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/stock?q=x", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
