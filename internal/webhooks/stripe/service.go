package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/upliftlabs/calculator-backend/internal/checkout"
	pkgerrors "github.com/upliftlabs/calculator-backend/pkg/errors"
	"github.com/upliftlabs/calculator-backend/pkg/logger"
	"github.com/upliftlabs/calculator-backend/pkg/metrics"
)

type checkoutConfirmer interface {
	ConfirmFromProvider(ctx context.Context, providerRef string, amountCents int64, currency string) (*checkout.Session, error)
}

type ServiceParams struct {
	Checkout checkoutConfirmer
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

// Service reconciles Stripe's webhook feed against the checkout state
// machine. The webhook is the authoritative confirmation path; the client's
// optimistic confirm only races it.
type Service struct {
	checkout checkoutConfirmer
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout service required")
	}
	return &Service{
		checkout: params.Checkout,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// HandleEvent routes a verified Stripe event. Unhandled event types are
// acknowledged without effect.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			s.metrics.IncWebhookEvent(string(event.Type), "error")
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			s.metrics.IncWebhookEvent(string(event.Type), "ignored")
			return nil
		}
		return s.confirm(ctx, event, cs.ID, cs.AmountTotal, string(cs.Currency))
	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			s.metrics.IncWebhookEvent(string(event.Type), "error")
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		return s.confirm(ctx, event, pi.ID, pi.Amount, string(pi.Currency))
	default:
		s.metrics.IncWebhookEvent(string(event.Type), "ignored")
		return nil
	}
}

func (s *Service) confirm(ctx context.Context, event *stripe.Event, providerRef string, amountCents int64, currency string) error {
	session, err := s.checkout.ConfirmFromProvider(ctx, providerRef, amountCents, currency)
	if err != nil {
		// A payment for a session this instance never issued is not
		// retryable; acknowledge it so Stripe stops redelivering.
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeNotFound {
			s.metrics.IncWebhookEvent(string(event.Type), "unmatched")
			if s.logg != nil {
				s.logg.Warn(ctx, fmt.Sprintf("stripe event %s references unknown payment %s", event.ID, providerRef))
			}
			return nil
		}
		s.metrics.IncWebhookEvent(string(event.Type), "error")
		return err
	}

	s.metrics.IncWebhookEvent(string(event.Type), "confirmed")
	if s.logg != nil {
		s.logg.Info(s.logg.WithSessionID(ctx, session.ID.String()),
			fmt.Sprintf("payment %s confirmed via stripe event %s", providerRef, event.ID))
	}
	return nil
}
