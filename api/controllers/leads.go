package controllers

import (
	"net/http"

	"github.com/upliftlabs/calculator-backend/api/responses"
	"github.com/upliftlabs/calculator-backend/api/validators"
	"github.com/upliftlabs/calculator-backend/internal/crm"
	"github.com/upliftlabs/calculator-backend/internal/quote"
	pkgerrors "github.com/upliftlabs/calculator-backend/pkg/errors"
	"github.com/upliftlabs/calculator-backend/pkg/logger"
)

type leadSubmissionRequest struct {
	Name        string   `json:"name" validate:"required"`
	Email       string   `json:"email" validate:"required,email"`
	Phone       string   `json:"phone"`
	CompanyName string   `json:"company_name"`
	Website     string   `json:"website"`
	ItemIDs     []string `json:"item_ids"`

	Params map[string]map[string]float64 `json:"params"`
}

// LeadCreate forwards a standalone lead to the CRM. Delivery failures are
// logged but still acknowledged: a broken CRM must never bounce a visitor
// who just handed over their contact details.
func LeadCreate(notifier *crm.Notifier, engine *quote.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notifier == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crm notifier unavailable"))
			return
		}

		var payload leadSubmissionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		submission := crm.LeadSubmission{
			Name:          payload.Name,
			Email:         payload.Email,
			Phone:         payload.Phone,
			CompanyName:   payload.CompanyName,
			Website:       payload.Website,
			SelectedItems: payload.ItemIDs,
		}
		if engine != nil && len(payload.ItemIDs) > 0 {
			computed := engine.Compute(quote.Selection{
				ItemIDs: payload.ItemIDs,
				Params:  payload.Params,
			})
			submission.Quote = &computed
		}

		if err := notifier.RecordLead(r.Context(), submission); err != nil && logg != nil {
			logg.Error(r.Context(), "lead delivery failed", err)
		}
		responses.WriteSuccess(w, map[string]string{"status": "received"})
	}
}
