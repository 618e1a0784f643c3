package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/upliftlabs/calculator-backend/api/responses"
	"github.com/upliftlabs/calculator-backend/api/validators"
	"github.com/upliftlabs/calculator-backend/internal/checkout"
	"github.com/upliftlabs/calculator-backend/internal/quote"
	pkgerrors "github.com/upliftlabs/calculator-backend/pkg/errors"
	"github.com/upliftlabs/calculator-backend/pkg/logger"
)

type checkoutSessionRequest struct {
	ItemIDs []string                      `json:"item_ids"`
	Params  map[string]map[string]float64 `json:"params"`
}

type leadRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required"`
	Role         string `json:"role"`
	BusinessName string `json:"business_name" validate:"required"`
	TaxNumber    string `json:"tax_number"`
	EntityType   string `json:"entity_type"`
	Address      string `json:"address"`
	Region       string `json:"region"`
	Postcode     string `json:"postcode"`
	Website      string `json:"website"`
}

type beginPaymentRequest struct {
	TermsAccepted bool `json:"terms_accepted"`
}

type signatureRequest struct {
	TypedName string `json:"typed_name"`
	ImagePNG  []byte `json:"image_png"`
}

type paymentHandleResponse struct {
	Session *checkout.Session `json:"session"`
	Payment struct {
		Policy       string `json:"policy"`
		RedirectURL  string `json:"redirect_url,omitempty"`
		ClientSecret string `json:"client_secret,omitempty"`
	} `json:"payment"`
}

// CheckoutStart opens a session in the browsing state.
func CheckoutStart(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Start(r.Context(), quote.Selection{
			ItemIDs: payload.ItemIDs,
			Params:  payload.Params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// CheckoutGet returns the current session snapshot.
func CheckoutGet(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// CheckoutUpdateSelection replaces the selection and recomputes the quote.
// Rejected once a payment attempt has frozen the quote.
func CheckoutUpdateSelection(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.UpdateSelection(r.Context(), id, quote.Selection{
			ItemIDs: payload.ItemIDs,
			Params:  payload.Params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// CheckoutCaptureLead records contact details and advances the session.
func CheckoutCaptureLead(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload leadRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.CaptureLead(r.Context(), id, checkout.LeadProfile{
			Name:         payload.Name,
			Email:        payload.Email,
			Phone:        payload.Phone,
			Role:         payload.Role,
			BusinessName: payload.BusinessName,
			TaxNumber:    payload.TaxNumber,
			EntityType:   payload.EntityType,
			Address:      payload.Address,
			Region:       payload.Region,
			Postcode:     payload.Postcode,
			Website:      payload.Website,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// CheckoutBeginPayment freezes the quote and starts a payment attempt.
func CheckoutBeginPayment(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload beginPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, handle, err := svc.BeginPayment(r.Context(), id, payload.TermsAccepted)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := paymentHandleResponse{Session: session}
		resp.Payment.Policy = handle.Policy
		resp.Payment.RedirectURL = handle.RedirectURL
		resp.Payment.ClientSecret = handle.ClientSecret
		responses.WriteSuccess(w, resp)
	}
}

// CheckoutConfirmPayment is the client's optimistic confirmation after the
// provider redirect. The webhook remains the authoritative path; this only
// races it.
func CheckoutConfirmPayment(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.ConfirmPayment(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// CheckoutSubmitSignature records the signed service agreement.
func CheckoutSubmitSignature(svc *checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload signatureRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.SubmitSignature(r.Context(), id, checkout.Signature{
			TypedName: payload.TypedName,
			ImagePNG:  payload.ImagePNG,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

func sessionIDFromURL(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "sessionID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid session id")
	}
	return id, nil
}
