package controllers

import (
	"net/http"

	"github.com/upliftlabs/calculator-backend/api/responses"
	"github.com/upliftlabs/calculator-backend/api/validators"
	"github.com/upliftlabs/calculator-backend/internal/quote"
	pkgerrors "github.com/upliftlabs/calculator-backend/pkg/errors"
	"github.com/upliftlabs/calculator-backend/pkg/logger"
)

type quoteRequest struct {
	ItemIDs []string                      `json:"item_ids" validate:"required"`
	Params  map[string]map[string]float64 `json:"params"`
}

// QuotePreview computes a quote for a selection without opening a checkout
// session. The frontend calls this on every slider change.
func QuotePreview(engine *quote.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote engine unavailable"))
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		computed := engine.Compute(quote.Selection{
			ItemIDs: payload.ItemIDs,
			Params:  payload.Params,
		})
		responses.WriteSuccess(w, computed)
	}
}
