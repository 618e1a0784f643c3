package controllers

import (
	"net/http"

	"github.com/upliftlabs/calculator-backend/api/responses"
	"github.com/upliftlabs/calculator-backend/internal/catalog"
	pkgerrors "github.com/upliftlabs/calculator-backend/pkg/errors"
	"github.com/upliftlabs/calculator-backend/pkg/logger"
)

// CatalogList exposes the bot catalog: prices, setup fees, and the slider
// schema the frontend renders. The catalog is static per deployment.
func CatalogList(cat *catalog.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cat == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": cat.Items()})
	}
}
