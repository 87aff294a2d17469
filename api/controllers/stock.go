package controllers

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/stockroom-backend/api/responses"
	"github.com/angelmondragon/stockroom-backend/api/validators"
	"github.com/angelmondragon/stockroom-backend/internal/basket"
	"github.com/angelmondragon/stockroom-backend/internal/stock"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

const maxSearchTermLen = 120

type stockSearchResponse struct {
	Lines      []models.StockLine `json:"lines"`
	SuggestNew bool               `json:"suggest_new"`
}

// SearchStock filters the stock projection by code or description. An empty
// query returns the whole projection.
func SearchStock(reader stock.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock reader unavailable"))
			return
		}

		b, err := basket.Load(r.Context(), reader)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		term := validators.QueryString(r, "q", maxSearchTermLen)
		if term == "" {
			responses.WriteSuccess(w, stockSearchResponse{Lines: b.Lines()})
			return
		}

		lines := slices.Collect(b.Search(term))
		if lines == nil {
			lines = []models.StockLine{}
		}
		responses.WriteSuccess(w, stockSearchResponse{
			Lines:      lines,
			SuggestNew: b.SuggestNew(term),
		})
	}
}
